package handeye

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compose builds a transform from a 3x3 rotation and a translation.
func Compose(rot mat.Matrix, t r3.Vec) Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = rot.At(i, j)
		}
	}
	out.T = t
	return out
}

// FromMatrix converts a 4x4 homogeneous matrix into a Transform.
func FromMatrix(m mat.Matrix) (Transform, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return Transform{}, fmt.Errorf("homogeneous transform must be 4x4, got %dx%d", r, c)
	}
	out := Compose(m, r3.Vec{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)})
	return out, nil
}

// Invert returns the inverse of a rigid transform: (R^T, -R^T t).
func Invert(t Transform) Transform {
	return t.Inverse()
}

// Inverse returns the inverse of the receiver.
func (t Transform) Inverse() Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = t.R[j][i]
		}
	}
	out.T = r3.Scale(-1, rotate(out.R, t.T))
	return out
}

// Mul returns the product t·u. Applying the result is equivalent to applying
// u first, then t.
func (t Transform) Mul(u Transform) Transform {
	var out Transform
	out.R = mul3(t.R, u.R)
	out.T = r3.Add(rotate(t.R, u.T), t.T)
	return out
}

// Apply maps a point through the transform.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(rotate(t.R, p), t.T)
}

// At returns element (i, j) of the 4x4 homogeneous matrix.
func (t Transform) At(i, j int) float64 {
	switch {
	case i < 3 && j < 3:
		return t.R[i][j]
	case i < 3 && j == 3:
		return vecAt(t.T, i)
	case i == 3 && j == 3:
		return 1
	default:
		return 0
	}
}

// Rotation returns the rotation block as a 3x3 matrix.
func (t Transform) Rotation() *mat.Dense {
	return denseFrom3(t.R)
}

// Translation returns the translation vector.
func (t Transform) Translation() r3.Vec {
	return t.T
}

// Matrix returns the full 4x4 homogeneous matrix.
func (t Transform) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m.Set(i, j, t.At(i, j))
		}
	}
	return m
}

// IsFinite reports whether every entry is a finite number.
func (t Transform) IsFinite() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !finite(t.R[i][j]) {
				return false
			}
		}
	}
	return finite(t.T.X) && finite(t.T.Y) && finite(t.T.Z)
}

// EulerZYXToRotation builds R = Rz(rz)·Ry(ry)·Rx(rx). Angles are in radians.
func EulerZYXToRotation(rz, ry, rx float64) *mat.Dense {
	cz, sz := math.Cos(rz), math.Sin(rz)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cx, sx := math.Cos(rx), math.Sin(rx)

	Rz := [3][3]float64{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}
	Ry := [3][3]float64{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	Rx := [3][3]float64{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}
	return denseFrom3(mul3(mul3(Rz, Ry), Rx))
}

// PoseFromEuler is a convenience for building a transform from ZYX Euler
// angles in radians and a translation.
func PoseFromEuler(rz, ry, rx float64, t r3.Vec) Transform {
	return Compose(EulerZYXToRotation(rz, ry, rx), t)
}

// LogSO3 returns the rotation vector w = θ·axis of a rotation matrix, with
// θ in [0, π]. Rotations closer than 1e-12 rad to the identity map to zero.
//
// The angle is taken from atan2 of the skew and trace parts rather than from
// arccos of the trace alone, which keeps near-identity rotations accurate.
func LogSO3(rot mat.Matrix) r3.Vec {
	cos := (rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2) - 1) / 2
	cos = math.Max(-1, math.Min(1, cos))
	skew := r3.Vec{
		X: rot.At(2, 1) - rot.At(1, 2),
		Y: rot.At(0, 2) - rot.At(2, 0),
		Z: rot.At(1, 0) - rot.At(0, 1),
	}
	theta := math.Atan2(r3.Norm(skew)/2, cos)
	if theta < 1e-12 {
		return r3.Vec{}
	}
	if math.Pi-theta < 1e-6 {
		return piRotationVector(rot, theta, skew)
	}
	return r3.Scale(theta/(2*math.Sin(theta)), skew)
}

// piSkewNoise is the skew magnitude below which its sign is rounding noise.
const piSkewNoise = 1e-10

// piRotationVector recovers the axis of a rotation by (nearly) π, where the
// skew part is too small to give the axis accurately. The axis comes from the
// diagonal of (R + I)/2 = u·u^T; its sign is taken from the skew part while
// that still rises above rounding noise.
func piRotationVector(rot mat.Matrix, theta float64, skew r3.Vec) r3.Vec {
	diag := [3]float64{rot.At(0, 0), rot.At(1, 1), rot.At(2, 2)}
	k := 0
	for i := 1; i < 3; i++ {
		if diag[i] > diag[k] {
			k = i
		}
	}
	var u [3]float64
	u[k] = math.Sqrt(math.Max(0, (diag[k]+1)/2))
	for i := 0; i < 3; i++ {
		if i != k {
			u[i] = (rot.At(i, k) + rot.At(k, i)) / (4 * u[k])
		}
	}
	axis := r3.Unit(r3.Vec{X: u[0], Y: u[1], Z: u[2]})
	if r3.Norm(skew) > piSkewNoise && r3.Dot(axis, skew) < 0 {
		axis = r3.Scale(-1, axis)
	}
	return r3.Scale(theta, axis)
}

// RotationAngle returns the rotation angle of R in radians.
func RotationAngle(rot mat.Matrix) float64 {
	return r3.Norm(LogSO3(rot))
}

// AxisAngle builds the rotation by theta radians about a unit axis
// (Rodrigues' formula).
func AxisAngle(axis r3.Vec, theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	out := mat.NewDense(3, 3, nil)
	u := [3]float64{axis.X, axis.Y, axis.Z}
	K := Hat(axis)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := (1 - c) * u[i] * u[j]
			if i == j {
				v += c
			}
			out.Set(i, j, v+s*K.At(i, j))
		}
	}
	return out
}

// ExpSO3 is the inverse of LogSO3.
func ExpSO3(w r3.Vec) *mat.Dense {
	theta := r3.Norm(w)
	if theta < 1e-12 {
		return denseFrom3(Identity().R)
	}
	return AxisAngle(r3.Scale(1/theta, w), theta)
}

// Hat returns the skew-symmetric matrix of w, so that Hat(w)·v = w × v.
func Hat(w r3.Vec) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -w.Z, w.Y,
		w.Z, 0, -w.X,
		-w.Y, w.X, 0,
	})
}

func rotate(rot [3][3]float64, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: rot[0][0]*v.X + rot[0][1]*v.Y + rot[0][2]*v.Z,
		Y: rot[1][0]*v.X + rot[1][1]*v.Y + rot[1][2]*v.Z,
		Z: rot[2][0]*v.X + rot[2][1]*v.Y + rot[2][2]*v.Z,
	}
}

func mul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func denseFrom3(rot [3][3]float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		rot[0][0], rot[0][1], rot[0][2],
		rot[1][0], rot[1][1], rot[1][2],
		rot[2][0], rot[2][1], rot[2][2],
	})
}

func vecAt(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func vecFrom(v mat.Vector, offset int) r3.Vec {
	return r3.Vec{X: v.AtVec(offset), Y: v.AtVec(offset + 1), Z: v.AtVec(offset + 2)}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func array3(m mat.Matrix) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
