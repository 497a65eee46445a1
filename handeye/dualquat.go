package handeye

import (
	"math"

	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// QuaternionMultiply returns the Hamilton product p·q.
func QuaternionMultiply(p, q quat.Number) quat.Number {
	return quat.Mul(p, q)
}

// RotationToQuaternion converts the rotation of t to a unit quaternion through
// its rotation vector. A zero rotation yields the identity quaternion.
func RotationToQuaternion(t Transform) quat.Number {
	w := LogSO3(t.Rotation())
	theta := r3.Norm(w)
	if theta < 1e-12 {
		return quat.Number{Real: 1}
	}
	axis := r3.Scale(1/theta, w)
	s := math.Sin(theta / 2)
	return quat.Number{Real: math.Cos(theta / 2), Imag: s * axis.X, Jmag: s * axis.Y, Kmag: s * axis.Z}
}

// TransformToDualQuat encodes a rigid transform as a unit dual quaternion
// q + ε·q′ with q′ = ½·(0, t)·q.
func TransformToDualQuat(t Transform) dualquat.Number {
	q := RotationToQuaternion(t)
	pure := quat.Number{Imag: t.T.X, Jmag: t.T.Y, Kmag: t.T.Z}
	return dualquat.Number{Real: q, Dual: quat.Scale(0.5, QuaternionMultiply(pure, q))}
}

// DualQuatToTransform decodes a dual quaternion. The real part is normalized
// first; a real part with norm below 1e-12 decodes to the identity rotation.
func DualQuatToTransform(d dualquat.Number) Transform {
	q := d.Real
	if n := quat.Abs(q); n < 1e-12 {
		q = quat.Number{Real: 1}
	} else {
		q = quat.Scale(1/n, q)
	}
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	var out Transform
	out.R = [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
	t := quat.Scale(2, QuaternionMultiply(d.Dual, quat.Conj(q)))
	out.T = r3.Vec{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
	return out
}

func quatVector(q quat.Number) r3.Vec {
	return r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}
