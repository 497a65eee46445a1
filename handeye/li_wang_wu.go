package handeye

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SolveLiWangWu solves A·X = Y·B jointly for both unknowns from the absolute
// pose correspondences. Each pose contributes nine rotation rows
// [Ra⊗I, −I⊗Rb^T]·[vec(Rx); vec(Ry)] = 0 and three translation rows
// (I⊗tb^T)·vec(Ry) − Ra·tx + ty = ta, with vec taken row by row. The 24
// unknowns are solved in one least squares step and both rotation blocks are
// projected onto SO(3).
func SolveLiWangWu(a, b PoseSequence) (Transform, Transform, error) {
	if err := checkSequences(a, b); err != nil {
		return Transform{}, Transform{}, fmt.Errorf("li-wang-wu: %w", err)
	}

	n := len(a)
	sys := mat.NewDense(12*n, 24, nil)
	rhs := mat.NewVecDense(12*n, nil)
	eye := identity3()
	for i := range a {
		ra := a[i].Rotation()
		rb := b[i].Rotation()
		r := 12 * i

		setBlock(sys, r, 0, kron(ra, eye))
		var neg mat.Dense
		neg.Scale(-1, kron(eye, rb.T()))
		setBlock(sys, r, 9, &neg)

		tb := mat.NewDense(1, 3, []float64{b[i].T.X, b[i].T.Y, b[i].T.Z})
		setBlock(sys, r+9, 9, kron(eye, tb))
		var negRa mat.Dense
		negRa.Scale(-1, ra)
		setBlock(sys, r+9, 18, &negRa)
		setBlock(sys, r+9, 21, eye)

		rhs.SetVec(r+9, a[i].T.X)
		rhs.SetVec(r+10, a[i].T.Y)
		rhs.SetVec(r+11, a[i].T.Z)
	}

	sol, err := leastSquares(sys, rhs)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("li-wang-wu: %w", err)
	}

	rx, err := NearestRotation(reshapeRowMajor(sol, 0))
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("li-wang-wu X rotation: %w", err)
	}
	ry, err := NearestRotation(reshapeRowMajor(sol, 9))
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("li-wang-wu Y rotation: %w", err)
	}
	return Compose(rx, vecFrom(sol, 18)), Compose(ry, vecFrom(sol, 21)), nil
}
