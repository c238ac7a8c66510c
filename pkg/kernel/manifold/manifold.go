//go:build manifold

// Package manifold is a geometry backend on the Manifold library
// (https://github.com/elalish/manifold). Unlike the sdfx backend it meshes
// solids exactly, so the cells argument of ToMesh is ignored; curved
// primitives are faceted with Kernel.Segments instead.
//
// Requires manifoldc. Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/kernel"
	"github.com/chazu/meshedit/pkg/logger"
)

var (
	_ kernel.Kernel = (*Kernel)(nil)
	_ kernel.Solid  = (*solid)(nil)
)

// DefaultSegments facets spheres and cylinders.
const DefaultSegments = 48

type solid struct {
	ptr *C.ManifoldManifold
}

func (s *solid) BoundingBox() (min, max [3]float64) {
	bbox := C.manifold_bounding_box(C.manifold_alloc_box(), s.ptr)
	defer C.manifold_delete_box(bbox)

	min = [3]float64{
		float64(C.manifold_box_min_x(bbox)),
		float64(C.manifold_box_min_y(bbox)),
		float64(C.manifold_box_min_z(bbox)),
	}
	max = [3]float64{
		float64(C.manifold_box_max_x(bbox)),
		float64(C.manifold_box_max_y(bbox)),
		float64(C.manifold_box_max_z(bbox)),
	}
	return min, max
}

func wrap(ptr *C.ManifoldManifold) *solid {
	s := &solid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *solid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

func unwrap(s kernel.Solid) *C.ManifoldManifold {
	return s.(*solid).ptr
}

// Kernel implements kernel.Kernel with Manifold.
type Kernel struct {
	Segments int
}

// New returns a Kernel with DefaultSegments.
func New() (kernel.Kernel, error) {
	return &Kernel{Segments: DefaultSegments}, nil
}

func (k *Kernel) Sphere(r float64) (kernel.Solid, error) {
	if !(r > 0) {
		return nil, fmt.Errorf("sphere: radius must be positive, got %g", r)
	}
	return wrap(C.manifold_sphere(C.manifold_alloc_manifold(), C.double(r), C.int(k.Segments))), nil
}

// Box is centered at the origin.
func (k *Kernel) Box(x, y, z float64) (kernel.Solid, error) {
	if !(x > 0 && y > 0 && z > 0) {
		return nil, fmt.Errorf("box: sides must be positive, got %g,%g,%g", x, y, z)
	}
	ptr := C.manifold_cube(C.manifold_alloc_manifold(),
		C.double(x), C.double(y), C.double(z), C.int(1))
	return wrap(ptr), nil
}

// Cylinder runs along Z, centered at the origin.
func (k *Kernel) Cylinder(height, radius float64) (kernel.Solid, error) {
	if !(height > 0 && radius > 0) {
		return nil, fmt.Errorf("cylinder: height and radius must be positive, got %g,%g", height, radius)
	}
	ptr := C.manifold_cylinder(C.manifold_alloc_manifold(),
		C.double(height), C.double(radius), C.double(radius), C.int(k.Segments), C.int(1))
	return wrap(ptr), nil
}

func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(C.manifold_union(C.manifold_alloc_manifold(), unwrap(a), unwrap(b)))
}

func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(C.manifold_difference(C.manifold_alloc_manifold(), unwrap(a), unwrap(b)))
}

func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(C.manifold_intersection(C.manifold_alloc_manifold(), unwrap(a), unwrap(b)))
}

func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return wrap(C.manifold_translate(C.manifold_alloc_manifold(), unwrap(s),
		C.double(x), C.double(y), C.double(z)))
}

// Rotate applies Euler angles in degrees about X, then Y, then Z.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return wrap(C.manifold_rotate(C.manifold_alloc_manifold(), unwrap(s),
		C.double(x), C.double(y), C.double(z)))
}

// ToMesh reads the solid's MeshGL. Positions are the first three vertex
// properties; normals are rebuilt from the faces.
func (k *Kernel) ToMesh(s kernel.Solid, _ int) (*kernel.Mesh, error) {
	gl := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), unwrap(s))
	defer C.manifold_delete_meshgl(gl)

	numVert := int(C.manifold_meshgl_num_vert(gl))
	numTri := int(C.manifold_meshgl_num_tri(gl))
	numProp := int(C.manifold_meshgl_num_prop(gl))
	if numVert == 0 || numTri == 0 {
		return nil, errors.New("manifold: empty solid")
	}
	if numProp < 3 {
		return nil, fmt.Errorf("manifold: %d vertex properties, need 3", numProp)
	}

	props := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&props[0])), gl)
	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), gl)

	points := make([]geom.Vec3, numVert)
	for i := range points {
		p := props[i*numProp:]
		points[i] = geom.Vec3{X: p[0], Y: p[1], Z: p[2]}
	}
	faces := make([]geom.Face, numTri)
	for t := range faces {
		faces[t] = geom.Face{indices[3*t], indices[3*t+1], indices[3*t+2]}
		for _, v := range faces[t] {
			if int(v) >= numVert {
				return nil, fmt.Errorf("manifold: triangle %d references vertex %d of %d", t, v, numVert)
			}
		}
	}

	m := &kernel.Mesh{
		Vertices: make([]float32, 0, 3*numVert),
		Normals:  make([]float32, 0, 3*numVert),
		Indices:  indices,
	}
	for _, p := range points {
		m.Vertices = append(m.Vertices, p.X, p.Y, p.Z)
	}
	for _, n := range geom.VertexNormals(points, faces) {
		m.Normals = append(m.Normals, n.X, n.Y, n.Z)
	}
	logger.Logger().Debug("manifold mesh", "vertices", numVert, "triangles", numTri)
	return m, nil
}
