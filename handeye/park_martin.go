package handeye

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// eigenFloor is the smallest eigenvalue admitted when forming E^(-1/2).
const eigenFloor = 1e-15

// SolveParkMartin estimates X on the Lie algebra: with M = Σ b·a^T over the
// rotation vectors of the selected motions, Rx = (M^T·M)^(-1/2)·M^T projected
// onto SO(3). The translation is solved like Tsai-Lenz and Z comes from
// RefineZ.
func SolveParkMartin(a, b PoseSequence, opts SelectionOptions) (Transform, Transform, error) {
	if err := checkSequences(a, b); err != nil {
		return Transform{}, Transform{}, fmt.Errorf("park-martin: %w", err)
	}
	pairs, err := SelectMotionPairs(a, b, opts)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("park-martin: %w", err)
	}

	m := mat.NewDense(3, 3, nil)
	for _, p := range pairs {
		alpha := LogSO3(p.A.Rotation())
		beta := LogSO3(p.B.Rotation())
		var outer mat.Dense
		outer.Outer(1, vec3(beta), vec3(alpha))
		m.Add(m, &outer)
	}

	var e mat.Dense
	e.Mul(m.T(), m)
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			sym.SetSym(i, j, (e.At(i, j)+e.At(j, i))/2)
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return Transform{}, Transform{}, fmt.Errorf("park-martin: eigendecomposition did not converge: %w", ErrAlgorithmFailed)
	}
	w := eig.Values(nil)
	var u mat.Dense
	eig.VectorsTo(&u)

	scale := make([]float64, 3)
	for i, v := range w {
		scale[i] = 1 / math.Sqrt(math.Max(v, eigenFloor))
	}
	var invSqrt mat.Dense
	invSqrt.Product(&u, mat.NewDiagDense(3, scale), u.T())

	var raw mat.Dense
	raw.Mul(&invSqrt, m.T())
	rx, err := NearestRotation(&raw)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("park-martin: %w", err)
	}

	tx, err := solveHandTranslation(pairs, rx)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("park-martin translation: %w", err)
	}
	X := Compose(rx, tx)

	Z, err := RefineZ(a, b, X)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("park-martin: %w", err)
	}
	return X, Z, nil
}
