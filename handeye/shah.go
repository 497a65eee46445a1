package handeye

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// SolveShah solves A·X = Y·B in closed form. For each pose
// (Rb⊗Ra)·vec(Rx) = vec(Ry) with column-major vec, so the summed 9×9 operator
// has vec(Rx), vec(Ry) as its dominant right and left singular pair. Both
// are rescaled to unit determinant and projected onto SO(3); the translations
// follow from one stacked least squares system.
func SolveShah(a, b PoseSequence) (Transform, Transform, error) {
	if err := checkSequences(a, b); err != nil {
		return Transform{}, Transform{}, fmt.Errorf("shah: %w", err)
	}

	t9 := mat.NewDense(9, 9, nil)
	for i := range a {
		t9.Add(t9, kron(b[i].Rotation(), a[i].Rotation()))
	}

	var svd mat.SVD
	if !svd.Factorize(t9, mat.SVDFull) {
		return Transform{}, Transform{}, fmt.Errorf("shah: svd did not converge: %w", ErrAlgorithmFailed)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rx, err := unitDeterminantRotation(reshapeColMajor(v.ColView(0), 0))
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("shah X rotation: %w", err)
	}
	ry, err := unitDeterminantRotation(reshapeColMajor(u.ColView(0), 0))
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("shah Y rotation: %w", err)
	}
	ryVec := vecColMajor(ry)

	n := len(a)
	sys := mat.NewDense(3*n, 6, nil)
	rhs := mat.NewVecDense(3*n, nil)
	eye := identity3()
	for i := range a {
		var negRa mat.Dense
		negRa.Scale(-1, a[i].Rotation())
		setBlock(sys, 3*i, 0, &negRa)
		setBlock(sys, 3*i, 3, eye)
		// (tb^T⊗I)·vec(Ry) = Ry·tb
		tb := mat.NewDense(1, 3, []float64{b[i].T.X, b[i].T.Y, b[i].T.Z})
		var rytb mat.VecDense
		rytb.MulVec(kron(tb, eye), ryVec)
		d := r3.Sub(a[i].T, vecFrom(&rytb, 0))
		rhs.SetVec(3*i, d.X)
		rhs.SetVec(3*i+1, d.Y)
		rhs.SetVec(3*i+2, d.Z)
	}
	sol, err := leastSquares(sys, rhs)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("shah translation: %w", err)
	}
	return Compose(rx, vecFrom(sol, 0)), Compose(ry, vecFrom(sol, 3)), nil
}

// unitDeterminantRotation rescales m by sign(det)/|det|^(1/3) and projects it
// onto SO(3).
func unitDeterminantRotation(m *mat.Dense) (*mat.Dense, error) {
	det := mat.Det(m)
	if math.Abs(det) < 1e-12 {
		return nil, fmt.Errorf("singular rotation block (det %g): %w", det, ErrAlgorithmFailed)
	}
	var scaled mat.Dense
	scaled.Scale(math.Copysign(1, det)/cbrtAbs(det), m)
	return NearestRotation(&scaled)
}
