package handeye

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// knownX and knownY are the ground truth of the synthetic trajectories.
var (
	knownX = PoseFromEuler(0.35, -0.25, 0.5, r3.Vec{X: 12, Y: -7, Z: 30})
	knownY = PoseFromEuler(-0.6, 0.15, 0.2, r3.Vec{X: 400, Y: 250, Z: -50})
)

// genericTrajectory returns n poses rotating about varying axes with
// non-trivial translations, together with B = inv(Y)·A·X so that
// A·X = Y·B holds exactly.
func genericTrajectory(n int, x, y Transform) (PoseSequence, PoseSequence) {
	yInv := y.Inverse()
	a := make(PoseSequence, n)
	b := make(PoseSequence, n)
	for i := 0; i < n; i++ {
		f := float64(i)
		a[i] = PoseFromEuler(0.45*f, 0.3*math.Sin(0.9*f), 0.35*math.Cos(1.3*f), r3.Vec{
			X: 150 * math.Cos(0.7*f),
			Y: 120 * math.Sin(0.5*f),
			Z: 60 + 25*f,
		})
		b[i] = yInv.Mul(a[i]).Mul(x)
	}
	return a, b
}

// planarTrajectory returns n poses rotating by i·π/8 about Z and translating
// by (0.5i, 0.3i, 0.1i).
func planarTrajectory(n int) PoseSequence {
	out := make(PoseSequence, n)
	for i := 0; i < n; i++ {
		f := float64(i)
		out[i] = PoseFromEuler(f*math.Pi/8, 0, 0, r3.Vec{X: 0.5 * f, Y: 0.3 * f, Z: 0.1 * f})
	}
	return out
}

// addNoise perturbs each pose by a Gaussian translation (transSigma) and a
// Gaussian rotation vector (rotSigma radians).
func addNoise(seq PoseSequence, transSigma, rotSigma float64, seed uint64) PoseSequence {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make(PoseSequence, len(seq))
	for i, p := range seq {
		w := r3.Vec{X: rng.NormFloat64() * rotSigma, Y: rng.NormFloat64() * rotSigma, Z: rng.NormFloat64() * rotSigma}
		dt := r3.Vec{X: rng.NormFloat64() * transSigma, Y: rng.NormFloat64() * transSigma, Z: rng.NormFloat64() * transSigma}
		noise := Compose(ExpSO3(w), dt)
		out[i] = p.Mul(noise)
	}
	return out
}

// transformDistance returns the translation distance and rotation angle in
// degrees between two transforms.
func transformDistance(p, q Transform) (float64, float64) {
	d := p.Inverse().Mul(q)
	return r3.Norm(r3.Sub(p.T, q.T)), RotationAngle(d.Rotation()) * 180 / math.Pi
}

// requireRotation fails unless m is orthonormal with determinant +1.
func requireRotation(t *testing.T, m mat.Matrix, tol float64) {
	t.Helper()
	var rrt mat.Dense
	rrt.Mul(m, m.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(rrt.At(i, j)-want) > tol {
				t.Fatalf("R·R^T[%d][%d] = %g, want %g", i, j, rrt.At(i, j), want)
			}
		}
	}
	if det := mat.Det(m); math.Abs(det-1) > tol {
		t.Fatalf("det(R) = %g, want 1", det)
	}
}

func transformsClose(p, q Transform, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(p.At(i, j)-q.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}
