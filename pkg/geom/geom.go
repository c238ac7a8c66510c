// Package geom defines the small float32 value types shared by the mesh
// state, the solver boundary and the importers. Values are plain structs
// laid out the way host vertex buffers store them.
package geom

import "github.com/chewxy/math32"

// Vec2 is a 2D vector, used for texture coordinates.
type Vec2 struct {
	X, Y float32
}

// Vec3 is a 3D vector, used for positions and normals.
type Vec3 struct {
	X, Y, Z float32
}

// Face is one triangle as three vertex indices.
type Face [3]uint32

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// LengthSqr returns the squared length.
func (v Vec3) LengthSqr() float32 {
	return v.Dot(v)
}

// Length returns the euclidean length.
func (v Vec3) Length() float32 {
	return math32.Sqrt(v.LengthSqr())
}

// DistanceSqr returns the squared distance between v and o.
func (v Vec3) DistanceSqr(o Vec3) float32 {
	return v.Sub(o).LengthSqr()
}

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

// Mean returns the average of the given points, or the zero vector when
// there are none.
func Mean(points []Vec3) Vec3 {
	if len(points) == 0 {
		return Vec3{}
	}
	var sx, sy, sz float64
	for _, p := range points {
		sx += float64(p.X)
		sy += float64(p.Y)
		sz += float64(p.Z)
	}
	n := float64(len(points))
	return Vec3{X: float32(sx / n), Y: float32(sy / n), Z: float32(sz / n)}
}

// Bounds returns the axis-aligned bounding box of points. ok is false for
// an empty slice.
func Bounds(points []Vec3) (min, max Vec3, ok bool) {
	if len(points) == 0 {
		return Vec3{}, Vec3{}, false
	}
	min, max = points[0], points[0]
	for _, p := range points[1:] {
		min.X = math32.Min(min.X, p.X)
		min.Y = math32.Min(min.Y, p.Y)
		min.Z = math32.Min(min.Z, p.Z)
		max.X = math32.Max(max.X, p.X)
		max.Y = math32.Max(max.Y, p.Y)
		max.Z = math32.Max(max.Z, p.Z)
	}
	return min, max, true
}
