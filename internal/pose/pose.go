// Package pose holds orientation and vector helpers as free functions over
// gonum r3 vectors and quaternions.
package pose

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ForwardAxis is the body-frame forward direction.
	ForwardAxis = r3.Vec{Z: -1}
	// UpAxis is the body-frame up direction.
	UpAxis = r3.Vec{Y: 1}
)

const eps = 1e-12

func Identity() quat.Number { return quat.Number{Real: 1} }

// Rotate applies the rotation q to v. q is assumed to be a unit quaternion.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func Forward(q quat.Number) r3.Vec { return Rotate(q, ForwardAxis) }

func Up(q quat.Number) r3.Vec { return Rotate(q, UpAxis) }

// FromAxisAngle returns the rotation of angle radians about axis. axis must be unit length.
func FromAxisAngle(axis r3.Vec, angle float64) quat.Number {
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// Normalize returns q scaled to unit length, or the identity for a zero quaternion.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < eps || math.IsNaN(n) {
		return Identity()
	}
	return quat.Scale(1/n, q)
}

// FaceDirection turns q so its forward vector moves toward dir by the
// fraction amt of the remaining angle. A zero dir leaves q unchanged.
func FaceDirection(q quat.Number, dir r3.Vec, amt float64) quat.Number {
	d, ok := SafeUnit(dir)
	if !ok || amt <= 0 {
		return q
	}
	if amt > 1 {
		amt = 1
	}

	f := Forward(q)
	angle := math.Acos(Clamp(r3.Dot(f, d), -1, 1))
	if angle < 1e-9 {
		return q
	}

	axis, ok := SafeUnit(r3.Cross(f, d))
	if !ok {
		// antiparallel: any axis orthogonal to forward works, up keeps roll stable
		axis, ok = SafeUnit(Up(q))
		if !ok {
			return q
		}
	}
	return Normalize(quat.Mul(FromAxisAngle(axis, angle*amt), q))
}

// FaceToward turns q, located at from, toward the point target.
func FaceToward(q quat.Number, from, target r3.Vec, amt float64) quat.Number {
	return FaceDirection(q, r3.Sub(target, from), amt)
}

// LookAlong returns an orientation whose forward vector is dir.
func LookAlong(dir r3.Vec) quat.Number {
	return FaceDirection(Identity(), dir, 1)
}

// SafeUnit returns the unit vector along v and false when v has no direction.
func SafeUnit(v r3.Vec) (r3.Vec, bool) {
	n := r3.Norm(v)
	if n < eps || math.IsNaN(n) || math.IsInf(n, 0) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

// Lerp moves a toward b by t.
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// ClampNorm limits |v| to max. A non-positive max returns v unchanged.
func ClampNorm(v r3.Vec, max float64) r3.Vec {
	if max <= 0 {
		return v
	}
	n := r3.Norm(v)
	if n <= max {
		return v
	}
	return r3.Scale(max/n, v)
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
