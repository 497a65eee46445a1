package handeye

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// checkSequences enforces the shared solver precondition: equal-length,
// non-empty pose sequences.
func checkSequences(a, b PoseSequence) error {
	if len(a) != len(b) {
		return fmt.Errorf("%d A poses vs %d B poses: %w", len(a), len(b), ErrLengthMismatch)
	}
	if len(a) == 0 {
		return fmt.Errorf("empty pose sequences: %w", ErrInsufficientPoses)
	}
	return nil
}

// RefineZ recovers the second unknown Z of A·X = Z·B once X is known.
// The rotation is the nearest proper rotation to Σ Ra·Rx·Rb^T; the translation
// is the least squares solution of Rz·tb + tz = ta + Ra·tx over all poses.
func RefineZ(a, b PoseSequence, x Transform) (Transform, error) {
	if err := checkSequences(a, b); err != nil {
		return Transform{}, fmt.Errorf("refining Z: %w", err)
	}

	var sum [3][3]float64
	for i := range a {
		term := mul3(mul3(a[i].R, x.R), transpose3(b[i].R))
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				sum[r][c] += term[r][c]
			}
		}
	}
	rz, err := NearestRotation(denseFrom3(sum))
	if err != nil {
		return Transform{}, fmt.Errorf("refining Z rotation: %w", err)
	}
	rzArr := array3(rz)

	n := len(a)
	coef := mat.NewDense(3*n, 3, nil)
	rhs := mat.NewVecDense(3*n, nil)
	for i := range a {
		setBlock(coef, 3*i, 0, identity3())
		d := r3.Sub(r3.Add(a[i].T, rotate(a[i].R, x.T)), rotate(rzArr, b[i].T))
		rhs.SetVec(3*i, d.X)
		rhs.SetVec(3*i+1, d.Y)
		rhs.SetVec(3*i+2, d.Z)
	}
	tz, err := leastSquares(coef, rhs)
	if err != nil {
		return Transform{}, fmt.Errorf("refining Z translation: %w", err)
	}
	return Compose(rz, vecFrom(tz, 0)), nil
}

// solveHandTranslation solves (I − Ra)·t = ta − Rx·tb over all motion pairs.
func solveHandTranslation(pairs []MotionPair, rx mat.Matrix) (r3.Vec, error) {
	n := len(pairs)
	rxArr := array3(rx)
	coef := mat.NewDense(3*n, 3, nil)
	rhs := mat.NewVecDense(3*n, nil)
	for i, p := range pairs {
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				v := -p.A.R[r][c]
				if r == c {
					v++
				}
				coef.Set(3*i+r, c, v)
			}
		}
		d := r3.Sub(p.A.T, rotate(rxArr, p.B.T))
		rhs.SetVec(3*i, d.X)
		rhs.SetVec(3*i+1, d.Y)
		rhs.SetVec(3*i+2, d.Z)
	}
	t, err := leastSquares(coef, rhs)
	if err != nil {
		return r3.Vec{}, err
	}
	return vecFrom(t, 0), nil
}

func transpose3(m [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}
