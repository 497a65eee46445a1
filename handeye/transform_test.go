package handeye

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestInvert(t *testing.T) {
	tests := []struct {
		name string
		tf   Transform
	}{
		{"identity", Identity()},
		{"pure translation", Compose(identity3(), r3.Vec{X: 1, Y: -2, Z: 3})},
		{"generic", PoseFromEuler(0.7, -0.4, 1.2, r3.Vec{X: 10, Y: 20, Z: -5})},
		{"half turn", Compose(AxisAngle(r3.Vec{Z: 1}, math.Pi), r3.Vec{X: 4})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, transformsClose(Invert(Invert(tt.tf)), tt.tf, 1e-12), "invert(invert(T)) != T")
			assert.True(t, transformsClose(tt.tf.Mul(Invert(tt.tf)), Identity(), 1e-12), "T·invert(T) != I")
			assert.True(t, transformsClose(Invert(tt.tf).Mul(tt.tf), Identity(), 1e-12), "invert(T)·T != I")
		})
	}
}

func TestInvertMatchesGeneralInverse(t *testing.T) {
	tf := PoseFromEuler(-1.1, 0.3, 0.8, r3.Vec{X: 3, Y: 1, Z: -9})
	var inv mat.Dense
	require.NoError(t, inv.Inverse(tf.Matrix()))
	assert.True(t, mat.EqualApprox(&inv, tf.Inverse().Matrix(), 1e-12))
}

func TestComposeAndFromMatrix(t *testing.T) {
	rot := EulerZYXToRotation(0.2, 0.1, -0.3)
	tf := Compose(rot, r3.Vec{X: 1, Y: 2, Z: 3})

	m := tf.Matrix()
	assert.Equal(t, []float64{0, 0, 0, 1}, mat.Row(nil, 3, m))
	assert.Equal(t, 3.0, m.At(2, 3))

	back, err := FromMatrix(m)
	require.NoError(t, err)
	assert.Equal(t, tf, back)

	_, err = FromMatrix(mat.NewDense(3, 3, nil))
	assert.Error(t, err)
}

func TestMulApply(t *testing.T) {
	p := PoseFromEuler(0.5, 0, 0, r3.Vec{X: 1})
	q := PoseFromEuler(0, 0.4, 0, r3.Vec{Y: 2})
	pt := r3.Vec{X: 0.3, Y: -0.7, Z: 1.1}

	want := p.Apply(q.Apply(pt))
	got := p.Mul(q).Apply(pt)
	assert.InDelta(t, want.X, got.X, 1e-12)
	assert.InDelta(t, want.Y, got.Y, 1e-12)
	assert.InDelta(t, want.Z, got.Z, 1e-12)
}

func TestEulerZYXToRotation(t *testing.T) {
	// A pure yaw of 90° maps x onto y.
	r := EulerZYXToRotation(math.Pi/2, 0, 0)
	v := rotate(array3(r), r3.Vec{X: 1})
	assert.InDelta(t, 0, v.X, 1e-12)
	assert.InDelta(t, 1, v.Y, 1e-12)

	// Rz·Ry·Rx order.
	rz := EulerZYXToRotation(0.3, 0, 0)
	ry := EulerZYXToRotation(0, -0.2, 0)
	rx := EulerZYXToRotation(0, 0, 0.9)
	var want mat.Dense
	want.Product(rz, ry, rx)
	assert.True(t, mat.EqualApprox(&want, EulerZYXToRotation(0.3, -0.2, 0.9), 1e-12))

	requireRotation(t, EulerZYXToRotation(1.2, -0.7, 2.9), 1e-12)
}

func TestLogSO3(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		assert.Equal(t, r3.Vec{}, LogSO3(identity3()))
	})

	tests := []struct {
		name  string
		axis  r3.Vec
		theta float64
	}{
		{"small", r3.Unit(r3.Vec{X: 1, Y: 2, Z: 3}), 1e-6},
		{"two degrees", r3.Vec{Z: 1}, 2 * math.Pi / 180},
		{"generic", r3.Unit(r3.Vec{X: -1, Y: 0.5, Z: 0.2}), 1.3},
		{"near pi", r3.Unit(r3.Vec{X: 0.3, Y: -0.4, Z: 0.866}), math.Pi - 1e-8},
		{"pi", r3.Unit(r3.Vec{X: 1, Y: 1}), math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := LogSO3(AxisAngle(tt.axis, tt.theta))
			assert.InDelta(t, tt.theta, r3.Norm(w), 1e-7)
			// The axis is only defined up to sign at π.
			dot := math.Abs(r3.Dot(r3.Unit(w), tt.axis))
			assert.InDelta(t, 1, dot, 1e-6)
		})
	}
}

func TestLogSO3NearPiKeepsAxisSign(t *testing.T) {
	axis := r3.Unit(r3.Vec{X: 0.3, Y: -0.4, Z: 0.866})
	for _, gap := range []float64{1e-5, 1e-7, 1e-9} {
		theta := math.Pi - gap
		rot := AxisAngle(axis, theta)
		w := LogSO3(rot)

		assert.Greater(t, r3.Dot(w, axis), 0.0, "gap %g: axis sign flipped", gap)
		var diff mat.Dense
		diff.Sub(ExpSO3(w), rot)
		assert.Less(t, mat.Norm(&diff, math.Inf(1)), 1e-9, "gap %g: round trip", gap)
	}
}

func TestLogSO3BelowThreshold(t *testing.T) {
	w := LogSO3(AxisAngle(r3.Vec{X: 1}, 1e-13))
	assert.Equal(t, r3.Vec{}, w)
}

func TestExpLogRoundTrip(t *testing.T) {
	for _, w := range []r3.Vec{{X: 0.1}, {X: 0.3, Y: -0.2, Z: 0.9}, {Y: 2.5}} {
		got := LogSO3(ExpSO3(w))
		assert.InDelta(t, w.X, got.X, 1e-12)
		assert.InDelta(t, w.Y, got.Y, 1e-12)
		assert.InDelta(t, w.Z, got.Z, 1e-12)
	}
}

func TestHat(t *testing.T) {
	for _, w := range []r3.Vec{{}, {X: 1, Y: 2, Z: 3}, {X: -0.5, Y: 7, Z: -2}} {
		h := Hat(w)
		var neg mat.Dense
		neg.Scale(-1, h.T())
		assert.True(t, mat.Equal(h, &neg), "hat(%v) is not skew-symmetric", w)

		v := r3.Vec{X: 0.4, Y: -1, Z: 2}
		got := rotate(array3(h), v)
		want := r3.Cross(w, v)
		assert.InDelta(t, want.X, got.X, 1e-12)
		assert.InDelta(t, want.Y, got.Y, 1e-12)
		assert.InDelta(t, want.Z, got.Z, 1e-12)
	}
}

func TestIsFinite(t *testing.T) {
	tf := Identity()
	assert.True(t, tf.IsFinite())
	tf.T.Y = math.NaN()
	assert.False(t, tf.IsFinite())
	tf = Identity()
	tf.R[1][2] = math.Inf(1)
	assert.False(t, tf.IsFinite())
}

func TestTransformJSON(t *testing.T) {
	tf := PoseFromEuler(0.1, 0.2, 0.3, r3.Vec{X: 1, Y: 2, Z: 3})
	data, err := tf.MarshalJSON()
	require.NoError(t, err)

	var back Transform
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, transformsClose(tf, back, 0))

	err = back.UnmarshalJSON([]byte(`[[1,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,1,1]]`))
	assert.Error(t, err, "bottom row must be rejected")
	err = back.UnmarshalJSON([]byte(`[[1,0,0],[0,1,0],[0,0,1]]`))
	assert.Error(t, err)
}
