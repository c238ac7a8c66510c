package mesh

import (
	"fmt"

	"github.com/chazu/meshedit/pkg/geom"
)

// Buffers is the engine-owned geometry of a mesh. All per-vertex slices
// have the same length.
type Buffers struct {
	V  []geom.Vec3
	N  []geom.Vec3
	C  []geom.Color
	UV []geom.Vec2
	F  []geom.Face
}

// HostBuffers is the flat layout a host keeps its vertex data in. The
// engine copies it once when a State is created and afterwards writes to
// it only from Sync.
type HostBuffers struct {
	VertexCount int
	FaceCount   int

	Positions []float32 // 3 per vertex
	Normals   []float32 // 3 per vertex
	Colors    []float32 // 4 per vertex, RGBA
	UVs       []float32 // 2 per vertex
	Faces     []uint32  // 3 per face
}

// NewHostBuffers allocates zeroed host buffers for the given counts.
func NewHostBuffers(vertices, faces int) *HostBuffers {
	return &HostBuffers{
		VertexCount: vertices,
		FaceCount:   faces,
		Positions:   make([]float32, 3*vertices),
		Normals:     make([]float32, 3*vertices),
		Colors:      make([]float32, 4*vertices),
		UVs:         make([]float32, 2*vertices),
		Faces:       make([]uint32, 3*faces),
	}
}

// checkSource validates h as load input. Normals, colors and UVs may be
// nil; when present they must be long enough.
func (h *HostBuffers) checkSource() error {
	if h.VertexCount < 0 || h.FaceCount < 0 {
		return fmt.Errorf("negative counts (%d vertices, %d faces)", h.VertexCount, h.FaceCount)
	}
	if err := checkLen("positions", h.Positions, 3*h.VertexCount); err != nil {
		return err
	}
	if err := checkLen("faces", h.Faces, 3*h.FaceCount); err != nil {
		return err
	}
	for _, opt := range []struct {
		name string
		buf  []float32
		per  int
	}{
		{"normals", h.Normals, 3},
		{"colors", h.Colors, 4},
		{"uvs", h.UVs, 2},
	} {
		if opt.buf == nil {
			continue
		}
		if err := checkLen(opt.name, opt.buf, opt.per*h.VertexCount); err != nil {
			return err
		}
	}
	for i, idx := range h.Faces[:3*h.FaceCount] {
		if int(idx) >= h.VertexCount {
			return fmt.Errorf("face %d references vertex %d of %d", i/3, idx, h.VertexCount)
		}
	}
	return nil
}

// checkTarget validates h as a Sync destination for a mesh of the given
// size. Every buffer must be present.
func (h *HostBuffers) checkTarget(vertices, faces int) error {
	if h.VertexCount != vertices || h.FaceCount != faces {
		return fmt.Errorf("host buffers sized for %d vertices and %d faces, mesh has %d and %d",
			h.VertexCount, h.FaceCount, vertices, faces)
	}
	if err := checkLen("positions", h.Positions, 3*vertices); err != nil {
		return err
	}
	if err := checkLen("normals", h.Normals, 3*vertices); err != nil {
		return err
	}
	if err := checkLen("colors", h.Colors, 4*vertices); err != nil {
		return err
	}
	if err := checkLen("uvs", h.UVs, 2*vertices); err != nil {
		return err
	}
	return checkLen("faces", h.Faces, 3*faces)
}

func checkLen[T any](name string, buf []T, want int) error {
	if len(buf) < want {
		return fmt.Errorf("%s buffer has %d values, need %d", name, len(buf), want)
	}
	return nil
}

// buffers transposes the flat host layout into owned per-vertex slices.
// Missing optional attributes are zero-filled.
func (h *HostBuffers) buffers() Buffers {
	n := h.VertexCount
	b := Buffers{
		V:  make([]geom.Vec3, n),
		N:  make([]geom.Vec3, n),
		C:  make([]geom.Color, n),
		UV: make([]geom.Vec2, n),
		F:  make([]geom.Face, h.FaceCount),
	}
	readVec3(b.V, h.Positions)
	if h.Normals != nil {
		readVec3(b.N, h.Normals)
	}
	if h.Colors != nil {
		for i := range b.C {
			c := h.Colors[4*i : 4*i+4]
			b.C[i] = geom.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
		}
	}
	if h.UVs != nil {
		for i := range b.UV {
			b.UV[i] = geom.Vec2{X: h.UVs[2*i], Y: h.UVs[2*i+1]}
		}
	}
	for i := range b.F {
		b.F[i] = geom.Face{h.Faces[3*i], h.Faces[3*i+1], h.Faces[3*i+2]}
	}
	return b
}

func readVec3(dst []geom.Vec3, src []float32) {
	for i := range dst {
		dst[i] = geom.Vec3{X: src[3*i], Y: src[3*i+1], Z: src[3*i+2]}
	}
}

func writeVec3(dst []float32, src []geom.Vec3) {
	for i, v := range src {
		dst[3*i], dst[3*i+1], dst[3*i+2] = v.X, v.Y, v.Z
	}
}

// commit copies the buffers selected by flags into h.
func (b *Buffers) commit(h *HostBuffers, flags DirtyFlag) {
	if flags&PositionsChanged != 0 {
		writeVec3(h.Positions, b.V)
	}
	if flags&NormalsChanged != 0 {
		writeVec3(h.Normals, b.N)
	}
	if flags&ColorsChanged != 0 {
		for i, c := range b.C {
			h.Colors[4*i], h.Colors[4*i+1], h.Colors[4*i+2], h.Colors[4*i+3] = c.R, c.G, c.B, c.A
		}
	}
	if flags&UVChanged != 0 {
		for i, uv := range b.UV {
			h.UVs[2*i], h.UVs[2*i+1] = uv.X, uv.Y
		}
	}
	if flags&FacesChanged != 0 {
		for i, f := range b.F {
			h.Faces[3*i], h.Faces[3*i+1], h.Faces[3*i+2] = f[0], f[1], f[2]
		}
	}
}
