package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeshCounts(t *testing.T) {
	tests := []struct {
		name      string
		vertices  []float32
		indices   []uint32
		wantVerts int
		wantTris  int
	}{
		{"empty", nil, nil, 0, 0},
		{"one vertex", []float32{1, 2, 3}, nil, 1, 0},
		{"quad", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, []uint32{0, 1, 2, 2, 3, 0}, 4, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices, Indices: tt.indices}
			assert.Equal(t, tt.wantVerts, m.VertexCount())
			assert.Equal(t, tt.wantTris, m.TriangleCount())
			assert.Equal(t, tt.wantVerts == 0, m.IsEmpty())
		})
	}
}

// soupQuad is two triangles of the unit square with unshared corners.
func soupQuad() *Mesh {
	return &Mesh{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 1, 1, 0,
			0, 0, 0, 1, 1, 0, 0, 1, 0,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
}

func TestWeldMergesSharedCorners(t *testing.T) {
	for _, eps := range []float64{0, 1e-6} {
		w := soupQuad().Weld(eps)
		require.Equal(t, 4, w.VertexCount(), "eps=%g", eps)
		assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, w.Indices)
		require.Len(t, w.Normals, 12)
		for i := 0; i < 4; i++ {
			assert.InDelta(t, 1, w.Normals[3*i+2], 1e-6)
		}
	}
}

func TestWeldTolerance(t *testing.T) {
	m := soupQuad()
	m.Vertices[9] = 1e-7 // second copy of the origin, slightly off
	assert.Equal(t, 5, m.Weld(0).VertexCount())
	assert.Equal(t, 4, m.Weld(1e-4).VertexCount())
}

func TestWeldDropsCollapsedTriangles(t *testing.T) {
	m := &Mesh{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 0, 1, 0,
			0, 0, 0, 0.00001, 0, 0, 0, 1, 0,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
	w := m.Weld(1e-3)
	assert.Equal(t, 3, w.VertexCount())
	assert.Equal(t, 1, w.TriangleCount())
}

func TestWeldDropsOrphanVertices(t *testing.T) {
	m := &Mesh{
		Vertices: []float32{
			5, 5, 5, 5.00001, 5, 5, 5, 5.00002, 5,
			0, 0, 0, 1, 0, 0, 0, 1, 0,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
	w := m.Weld(1e-3)
	assert.Equal(t, 3, w.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2}, w.Indices)
	assert.Equal(t, float32(1), w.Vertices[3])
}

type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

// stubKernel proves the interface is satisfiable without a backend.
type stubKernel struct{}

func (k *stubKernel) Sphere(r float64) (Solid, error) {
	return &stubSolid{minBB: [3]float64{-r, -r, -r}, maxBB: [3]float64{r, r, r}}, nil
}

func (k *stubKernel) Box(x, y, z float64) (Solid, error) {
	return &stubSolid{minBB: [3]float64{-x / 2, -y / 2, -z / 2}, maxBB: [3]float64{x / 2, y / 2, z / 2}}, nil
}

func (k *stubKernel) Cylinder(h, r float64) (Solid, error) {
	return &stubSolid{minBB: [3]float64{-r, -r, -h / 2}, maxBB: [3]float64{r, r, h / 2}}, nil
}

func (k *stubKernel) Union(a, _ Solid) Solid        { return a }
func (k *stubKernel) Difference(a, _ Solid) Solid   { return a }
func (k *stubKernel) Intersection(a, _ Solid) Solid { return a }

func (k *stubKernel) Translate(s Solid, _, _, _ float64) Solid { return s }
func (k *stubKernel) Rotate(s Solid, _, _, _ float64) Solid    { return s }

func (k *stubKernel) ToMesh(Solid, int) (*Mesh, error) { return &Mesh{}, nil }

var _ Kernel = (*stubKernel)(nil)

func TestStubKernel(t *testing.T) {
	var k Kernel = &stubKernel{}
	s, err := k.Box(10, 20, 30)
	require.NoError(t, err)
	min, max := s.BoundingBox()
	assert.Equal(t, [3]float64{-5, -10, -15}, min)
	assert.Equal(t, [3]float64{5, 10, 15}, max)

	m, err := k.ToMesh(s, 8)
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())
	assert.True(t, m.Weld(0).IsEmpty())
}
