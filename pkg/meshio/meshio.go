// Package meshio reads mesh files into the flat buffers a mesh state is
// created from. It supports OFF (including the C/N/CN variants) and glTF
// 2.0 in both .gltf and .glb form.
package meshio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/mesh"
)

// ErrUnsupportedFormat is returned for file extensions no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported mesh format")

// ImportOptions adjusts positions after reading.
type ImportOptions struct {
	// CenterToMean moves the mesh so X and Z are centered on their mean
	// and Y on the middle of its extent.
	CenterToMean bool
	// Normalize divides by the Y extent so the mesh ends up Scale tall.
	Normalize bool
	// Scale multiplies every position last.
	Scale float32
}

// DefaultImportOptions centers and normalizes to unit height.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{CenterToMean: true, Normalize: true, Scale: 1}
}

// Data is a mesh as read from a file.
type Data struct {
	Positions []geom.Vec3
	Normals   []geom.Vec3 // nil when the file has none
	Colors    []geom.Color
	UVs       []geom.Vec2
	Faces     []geom.Face
}

// ReadMeshFile reads path, picking the reader by extension, applies opts
// and returns host buffers ready for mesh.New. Missing normals are
// computed from the faces.
func ReadMeshFile(path string, opts ImportOptions) (*mesh.HostBuffers, error) {
	var (
		data *Data
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".off":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", path, err)
		}
		defer f.Close()
		data, err = ReadOFF(f)
	case ".gltf", ".glb":
		data, err = ReadGLTF(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	ApplyScale(data.Positions, opts)
	if data.Normals == nil {
		data.Normals = geom.VertexNormals(data.Positions, data.Faces)
	}
	logger.Logger().Info("mesh imported",
		"path", path, "vertices", len(data.Positions), "faces", len(data.Faces))
	return data.HostBuffers(), nil
}

// ApplyScale centers and scales points in place per opts. Normalization is
// skipped for a mesh without Y extent.
func ApplyScale(points []geom.Vec3, opts ImportOptions) {
	if len(points) == 0 {
		return
	}
	scale := opts.Scale
	if opts.CenterToMean || opts.Normalize {
		lo, hi, _ := geom.Bounds(points)
		if opts.CenterToMean {
			mean := geom.Mean(points)
			offset := geom.Vec3{X: mean.X, Y: (lo.Y + hi.Y) / 2, Z: mean.Z}
			for i := range points {
				points[i] = points[i].Sub(offset)
			}
		}
		if h := math32.Abs(hi.Y - lo.Y); opts.Normalize && h > 0 {
			scale /= h
		}
	}
	for i := range points {
		points[i] = points[i].Scale(scale)
	}
}

// HostBuffers lays d out flat. Absent colors and UVs stay zero.
func (d *Data) HostBuffers() *mesh.HostBuffers {
	h := mesh.NewHostBuffers(len(d.Positions), len(d.Faces))
	for i, p := range d.Positions {
		h.Positions[3*i], h.Positions[3*i+1], h.Positions[3*i+2] = p.X, p.Y, p.Z
	}
	for i, n := range d.Normals {
		h.Normals[3*i], h.Normals[3*i+1], h.Normals[3*i+2] = n.X, n.Y, n.Z
	}
	for i, c := range d.Colors {
		copy(h.Colors[4*i:], []float32{c.R, c.G, c.B, c.A})
	}
	for i, uv := range d.UVs {
		h.UVs[2*i], h.UVs[2*i+1] = uv.X, uv.Y
	}
	for i, f := range d.Faces {
		copy(h.Faces[3*i:], f[:])
	}
	return h
}
