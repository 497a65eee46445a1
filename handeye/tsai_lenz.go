package handeye

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// SolveTsaiLenz estimates X from the selected relative motions using the
// modified Rodrigues parametrization, then recovers Z with RefineZ.
//
// For each pair the unit rotation axes a, b give hat(a+b)·x = a − b. The least
// squares x encodes the rotation by θ = 2·atan(‖x‖) about x/‖x‖; the rotation
// built from it is transposed before use, which the regression tests pin.
func SolveTsaiLenz(a, b PoseSequence, opts SelectionOptions) (Transform, Transform, error) {
	if err := checkSequences(a, b); err != nil {
		return Transform{}, Transform{}, fmt.Errorf("tsai-lenz: %w", err)
	}
	pairs, err := SelectMotionPairs(a, b, opts)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("tsai-lenz: %w", err)
	}

	n := len(pairs)
	s := mat.NewDense(3*n, 3, nil)
	v := mat.NewVecDense(3*n, nil)
	for i, p := range pairs {
		ua := unitOrZero(LogSO3(p.A.Rotation()))
		ub := unitOrZero(LogSO3(p.B.Rotation()))
		setBlock(s, 3*i, 0, Hat(r3.Add(ua, ub)))
		d := r3.Sub(ua, ub)
		v.SetVec(3*i, d.X)
		v.SetVec(3*i+1, d.Y)
		v.SetVec(3*i+2, d.Z)
	}
	x, err := leastSquares(s, v)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("tsai-lenz rotation: %w", err)
	}

	rx := identity3()
	xv := vecFrom(x, 0)
	if xn := r3.Norm(xv); xn >= 1e-12 {
		rot := AxisAngle(r3.Scale(1/xn, xv), 2*math.Atan(xn))
		rx.CloneFrom(rot.T())
	}

	tx, err := solveHandTranslation(pairs, rx)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("tsai-lenz translation: %w", err)
	}
	X := Compose(rx, tx)

	Z, err := RefineZ(a, b, X)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("tsai-lenz: %w", err)
	}
	return X, Z, nil
}

func unitOrZero(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < 1e-12 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
