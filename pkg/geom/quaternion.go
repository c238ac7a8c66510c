package geom

import "github.com/chewxy/math32"

// Quaternion is a rotation quaternion stored as (X, Y, Z, W).
type Quaternion struct {
	X, Y, Z, W float32
}

// IdentityQuaternion returns the rotation that leaves vectors unchanged.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// QuaternionFromAxisAngle builds a rotation of angle radians around axis.
func QuaternionFromAxisAngle(axis Vec3, angle float32) Quaternion {
	axis = axis.Normalize()
	s, c := math32.Sin(angle/2), math32.Cos(angle/2)
	return Quaternion{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: c}
}

// Normalize returns q scaled to unit length. A zero quaternion becomes the
// identity.
func (q Quaternion) Normalize() Quaternion {
	l := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return IdentityQuaternion()
	}
	inv := 1 / l
	return Quaternion{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

// Rotate applies the rotation to v.
func (q Quaternion) Rotate(v Vec3) Vec3 {
	u := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}
