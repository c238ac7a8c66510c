// Package kernel defines the solid modeling interface procedural meshes
// are built through. A backend (see kernel/sdfx) builds solids and turns
// them into triangle soups; Weld turns a soup into an indexed mesh the
// editing engine can load.
package kernel

// Solid is an opaque handle to a backend solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel builds solids and meshes them. Primitives are centered on the
// origin. Constructors return an error for non-positive dimensions.
type Kernel interface {
	// Primitives
	Sphere(radius float64) (Solid, error)
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// ToMesh samples s on a grid with cells cells along its longest side.
	ToMesh(s Solid, cells int) (*Mesh, error)
}
