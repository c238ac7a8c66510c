package kernel

import (
	"math"

	"github.com/chazu/meshedit/pkg/geom"
)

// Mesh is a flat triangle mesh. Vertices and Normals hold 3 floats per
// vertex, Indices 3 per triangle. Backends emit unshared corners.
type Mesh struct {
	Vertices []float32
	Normals  []float32
	Indices  []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

func (m *Mesh) vertex(i uint32) geom.Vec3 {
	return geom.Vec3{X: m.Vertices[3*i], Y: m.Vertices[3*i+1], Z: m.Vertices[3*i+2]}
}

// Weld merges vertices that fall in the same eps-sized grid cell and
// returns an indexed mesh. Triangles that collapse onto fewer than three
// distinct vertices are dropped, along with any vertex no remaining
// triangle uses. Normals are recomputed from the welded
// faces. eps <= 0 merges only exact duplicates.
func (m *Mesh) Weld(eps float64) *Mesh {
	type key [3]int64
	quantize := func(v geom.Vec3) key {
		if eps <= 0 {
			return key{
				int64(math.Float32bits(v.X)),
				int64(math.Float32bits(v.Y)),
				int64(math.Float32bits(v.Z)),
			}
		}
		return key{
			int64(math.Round(float64(v.X) / eps)),
			int64(math.Round(float64(v.Y) / eps)),
			int64(math.Round(float64(v.Z) / eps)),
		}
	}

	lookup := make(map[key]uint32, m.VertexCount())
	var points []geom.Vec3
	remap := make([]uint32, m.VertexCount())
	for i := range remap {
		v := m.vertex(uint32(i))
		k := quantize(v)
		idx, ok := lookup[k]
		if !ok {
			idx = uint32(len(points))
			lookup[k] = idx
			points = append(points, v)
		}
		remap[i] = idx
	}

	var faces []geom.Face
	for t := 0; t+2 < len(m.Indices); t += 3 {
		f := geom.Face{remap[m.Indices[t]], remap[m.Indices[t+1]], remap[m.Indices[t+2]]}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		faces = append(faces, f)
	}
	points, faces = compact(points, faces)

	out := &Mesh{
		Vertices: make([]float32, 0, 3*len(points)),
		Normals:  make([]float32, 0, 3*len(points)),
		Indices:  make([]uint32, 0, 3*len(faces)),
	}
	for _, p := range points {
		out.Vertices = append(out.Vertices, p.X, p.Y, p.Z)
	}
	for _, n := range geom.VertexNormals(points, faces) {
		out.Normals = append(out.Normals, n.X, n.Y, n.Z)
	}
	for _, f := range faces {
		out.Indices = append(out.Indices, f[0], f[1], f[2])
	}
	return out
}

func compact(points []geom.Vec3, faces []geom.Face) ([]geom.Vec3, []geom.Face) {
	index := make([]int64, len(points))
	for i := range index {
		index[i] = -1
	}
	var kept []geom.Vec3
	for fi := range faces {
		for c, v := range faces[fi] {
			if index[v] < 0 {
				index[v] = int64(len(kept))
				kept = append(kept, points[v])
			}
			faces[fi][c] = uint32(index[v])
		}
	}
	return kept, faces
}
