package handeye

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// lstsqRcond matches the default cutoff of a minimum-norm SVD solver:
// singular values below eps·max(m, n)·σmax are treated as zero.
const lstsqRcond = 2.220446049250313e-16

// NearestRotation projects a 3x3 matrix onto SO(3) in the Frobenius sense.
// With M = U·S·V^T it returns U·V^T, flipping the last column of U when the
// product would be a reflection.
func NearestRotation(m mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDFull) {
		return nil, fmt.Errorf("nearest rotation: svd did not converge: %w", ErrAlgorithmFailed)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var rot mat.Dense
	rot.Mul(&u, v.T())
	if mat.Det(&rot) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		rot.Mul(&u, v.T())
	}
	if !denseFinite(&rot) {
		return nil, fmt.Errorf("nearest rotation: non-finite result: %w", ErrAlgorithmFailed)
	}
	return &rot, nil
}

// leastSquares returns the minimum-norm solution of min ‖a·x − b‖.
// Rank-deficient systems are solved on their effective rank; a system of rank
// zero yields the zero vector.
func leastSquares(a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error) {
	r, c := a.Dims()
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, fmt.Errorf("least squares %dx%d: svd did not converge: %w", r, c, ErrAlgorithmFailed)
	}
	x := mat.NewVecDense(c, nil)
	rank := svd.Rank(lstsqRcond * float64(max(r, c)))
	if rank == 0 {
		return x, nil
	}
	svd.SolveVecTo(x, b, rank)
	for i := 0; i < c; i++ {
		if !finite(x.AtVec(i)) {
			return nil, fmt.Errorf("least squares %dx%d: non-finite solution: %w", r, c, ErrAlgorithmFailed)
		}
	}
	return x, nil
}

// setBlock copies src into dst with its top-left corner at (i, j).
func setBlock(dst *mat.Dense, i, j int, src mat.Matrix) {
	r, c := src.Dims()
	for a := 0; a < r; a++ {
		for b := 0; b < c; b++ {
			dst.Set(i+a, j+b, src.At(a, b))
		}
	}
}

// kron returns the Kronecker product a ⊗ b.
func kron(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Kronecker(a, b)
	return &out
}

// reshapeRowMajor reads nine consecutive entries of v as a 3x3 matrix in
// row-major order.
func reshapeRowMajor(v mat.Vector, offset int) *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, v.AtVec(offset+3*i+j))
		}
	}
	return out
}

// reshapeColMajor reads nine consecutive entries of v as a 3x3 matrix in
// column-major order.
func reshapeColMajor(v mat.Vector, offset int) *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			out.Set(i, j, v.AtVec(offset+3*j+i))
		}
	}
	return out
}

// vecColMajor stacks the columns of a 3x3 matrix.
func vecColMajor(m mat.Matrix) *mat.VecDense {
	out := mat.NewVecDense(9, nil)
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			out.SetVec(3*j+i, m.At(i, j))
		}
	}
	return out
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func denseFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !finite(m.At(i, j)) {
				return false
			}
		}
	}
	return true
}

// cbrtAbs returns |x|^(1/3).
func cbrtAbs(x float64) float64 {
	return math.Cbrt(math.Abs(x))
}

func vec3(v r3.Vec) *mat.VecDense {
	return mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
}
