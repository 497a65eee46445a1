package handeye

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// SolveDaniilidis estimates X from the dual quaternion form of the selected
// relative motions. The two right singular vectors of the stacked 6n×8 system
// with the smallest singular values span the solution; the mix satisfying
// q·q′ = 0 and ‖q‖ = 1 is chosen. Z comes from RefineZ.
func SolveDaniilidis(a, b PoseSequence, opts SelectionOptions) (Transform, Transform, error) {
	if err := checkSequences(a, b); err != nil {
		return Transform{}, Transform{}, fmt.Errorf("daniilidis: %w", err)
	}
	pairs, err := SelectMotionPairs(a, b, opts)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("daniilidis: %w", err)
	}

	n := len(pairs)
	sys := mat.NewDense(6*n, 8, nil)
	for i, p := range pairs {
		da := TransformToDualQuat(p.A)
		db := TransformToDualQuat(p.B)
		va1, vb1 := quatVector(da.Real), quatVector(db.Real)
		va2, vb2 := quatVector(da.Dual), quatVector(db.Dual)

		r := 6 * i
		setColumn(sys, r, 0, r3.Sub(va1, vb1))
		setBlock(sys, r, 1, Hat(r3.Add(va1, vb1)))
		setColumn(sys, r+3, 0, r3.Sub(va2, vb2))
		setBlock(sys, r+3, 1, Hat(r3.Add(va2, vb2)))
		setColumn(sys, r+3, 4, r3.Sub(va1, vb1))
		setBlock(sys, r+3, 5, Hat(r3.Add(va1, vb1)))
	}

	var svd mat.SVD
	if !svd.Factorize(sys, mat.SVDFull) {
		return Transform{}, Transform{}, fmt.Errorf("daniilidis: svd did not converge: %w", ErrAlgorithmFailed)
	}
	var v mat.Dense
	svd.VTo(&v)

	v7 := mat.Col(nil, 6, &v)
	v8 := mat.Col(nil, 7, &v)
	u1, w1 := v7[:4], v7[4:]
	u2, w2 := v8[:4], v8[4:]

	qa := floats.Dot(u1, w1)
	qb := floats.Dot(u1, w2) + floats.Dot(u2, w1)
	qc := floats.Dot(u2, w2)

	var roots []float64
	switch {
	case math.Abs(qa) < 1e-15:
		if math.Abs(qb) > 1e-15 {
			roots = []float64{-qc / qb}
		} else {
			roots = []float64{0}
		}
	default:
		disc := math.Sqrt(math.Max(qb*qb-4*qa*qc, 0))
		roots = []float64{(-qb + disc) / (2 * qa), (-qb - disc) / (2 * qa)}
	}

	u11, u12, u22 := floats.Dot(u1, u1), floats.Dot(u1, u2), floats.Dot(u2, u2)
	s, best := roots[0], math.Inf(-1)
	for _, r := range roots {
		val := r*r*u11 + 2*r*u12 + u22
		if val > best {
			s, best = r, val
		}
	}

	l2 := 1.0
	if best > 1e-18 {
		l2 = math.Sqrt(1 / best)
	}
	l1 := s * l2

	q := make([]float64, 8)
	for i := range q {
		q[i] = l1*v7[i] + l2*v8[i]
	}
	X := DualQuatToTransform(dualquat.Number{
		Real: quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]},
		Dual: quat.Number{Real: q[4], Imag: q[5], Jmag: q[6], Kmag: q[7]},
	})
	if !X.IsFinite() {
		return Transform{}, Transform{}, fmt.Errorf("daniilidis: non-finite solution: %w", ErrAlgorithmFailed)
	}

	Z, err := RefineZ(a, b, X)
	if err != nil {
		return Transform{}, Transform{}, fmt.Errorf("daniilidis: %w", err)
	}
	return X, Z, nil
}

func setColumn(dst *mat.Dense, i, j int, v r3.Vec) {
	dst.Set(i, j, v.X)
	dst.Set(i+1, j, v.Y)
	dst.Set(i+2, j, v.Z)
}
