package handeye

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNearestRotation(t *testing.T) {
	rot := EulerZYXToRotation(0.4, -0.3, 1.1)

	tests := []struct {
		name string
		m    mat.Matrix
		want mat.Matrix
	}{
		{"already a rotation", rot, rot},
		{"scaled rotation", scaled(3.5, rot), rot},
		{"identity", identity3(), identity3()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NearestRotation(tt.m)
			require.NoError(t, err)
			requireRotation(t, got, 1e-12)
			if tt.want != nil {
				assert.True(t, mat.EqualApprox(got, tt.want, 1e-12))
			}
		})
	}

	t.Run("reflection is made proper", func(t *testing.T) {
		reflect := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
		var m mat.Dense
		m.Mul(rot, reflect)
		got, err := NearestRotation(&m)
		require.NoError(t, err)
		requireRotation(t, got, 1e-12)
	})

	t.Run("noisy rotation", func(t *testing.T) {
		m := mat.DenseCopyOf(rot)
		m.Set(0, 1, m.At(0, 1)+0.01)
		m.Set(2, 0, m.At(2, 0)-0.02)
		got, err := NearestRotation(m)
		require.NoError(t, err)
		requireRotation(t, got, 1e-12)
		_, deg := transformDistance(Compose(got, r3.Vec{}), Compose(rot, r3.Vec{}))
		assert.Less(t, deg, 2.0)
	})
}

func scaled(s float64, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(s, m)
	return &out
}

func TestLeastSquares(t *testing.T) {
	t.Run("overdetermined exact", func(t *testing.T) {
		a := mat.NewDense(4, 2, []float64{1, 0, 0, 1, 1, 1, 2, -1})
		want := []float64{3, -2}
		b := mat.NewVecDense(4, nil)
		b.MulVec(a, mat.NewVecDense(2, want))

		x, err := leastSquares(a, b)
		require.NoError(t, err)
		assert.InDelta(t, want[0], x.AtVec(0), 1e-12)
		assert.InDelta(t, want[1], x.AtVec(1), 1e-12)
	})

	t.Run("rank deficient gives minimum norm", func(t *testing.T) {
		a := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
		b := mat.NewVecDense(2, []float64{2, 2})
		x, err := leastSquares(a, b)
		require.NoError(t, err)
		assert.InDelta(t, 1, x.AtVec(0), 1e-12)
		assert.InDelta(t, 1, x.AtVec(1), 1e-12)
	})

	t.Run("zero system", func(t *testing.T) {
		x, err := leastSquares(mat.NewDense(3, 3, nil), mat.NewVecDense(3, []float64{1, 2, 3}))
		require.NoError(t, err)
		assert.Equal(t, 0.0, mat.Norm(x, 2))
	})
}

func TestReshape(t *testing.T) {
	v := mat.NewVecDense(10, []float64{-1, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	row := reshapeRowMajor(v, 1)
	assert.Equal(t, 2.0, row.At(0, 1))
	assert.Equal(t, 4.0, row.At(1, 0))

	col := reshapeColMajor(v, 1)
	assert.Equal(t, 4.0, col.At(0, 1))
	assert.Equal(t, 2.0, col.At(1, 0))

	assert.True(t, mat.Equal(vecColMajor(col), v.SliceVec(1, 10)))
}

func TestKronVecIdentity(t *testing.T) {
	// vec(A·X·B) = (B^T ⊗ A)·vec(X) with column-major vec.
	a := EulerZYXToRotation(0.1, 0.7, -0.4)
	x := mat.NewDense(3, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 10})
	b := EulerZYXToRotation(-1.2, 0.3, 0.5)

	var axb mat.Dense
	axb.Product(a, x, b)
	var got mat.VecDense
	got.MulVec(kron(b.T(), a), vecColMajor(x))
	assert.True(t, mat.EqualApprox(&got, vecColMajor(&axb), 1e-12))
}

func TestCbrtAbs(t *testing.T) {
	assert.InDelta(t, 2, cbrtAbs(-8), 1e-15)
	assert.InDelta(t, 3, cbrtAbs(27), 1e-15)
	assert.True(t, math.IsInf(1/cbrtAbs(0), 1))
}

func TestUnitDeterminantRotation(t *testing.T) {
	rot := EulerZYXToRotation(0.9, -0.1, 0.2)
	got, err := unitDeterminantRotation(scaled(-0.25, rot))
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(got, rot, 1e-12))

	_, err = unitDeterminantRotation(mat.NewDense(3, 3, nil))
	assert.True(t, errors.Is(err, ErrAlgorithmFailed))
}
