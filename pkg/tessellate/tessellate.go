// Package tessellate builds procedural meshes from short shape
// descriptions and turns them into host buffers a mesh state can load.
//
// A description is a ';'-separated list of terms. Each term names a
// primitive with its parameters and an optional "@x,y,z" offset; a
// leading '-' subtracts the term from everything before it, any other
// term is unioned in:
//
//	sphere:1
//	box:2,1,1;-cylinder:3,0.25@0.5,0,0
package tessellate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/meshedit/pkg/kernel"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/mesh"
)

// Kind names a primitive.
type Kind string

const (
	Sphere   Kind = "sphere"   // sphere:radius
	Box      Kind = "box"      // box:x,y,z
	Cylinder Kind = "cylinder" // cylinder:height,radius
)

var arity = map[Kind]int{Sphere: 1, Box: 3, Cylinder: 2}

// Term is one primitive of a Shape.
type Term struct {
	Kind     Kind
	Params   []float64
	Offset   [3]float64
	Subtract bool
}

// Shape is a parsed description.
type Shape struct {
	Terms []Term
}

// ErrSyntax marks a malformed description.
var ErrSyntax = errors.New("bad shape description")

// Parse reads a shape description.
func Parse(desc string) (*Shape, error) {
	var sh Shape
	for i, raw := range strings.Split(desc, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		term, err := parseTerm(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: term %d %q: %v", ErrSyntax, i, raw, err)
		}
		if len(sh.Terms) == 0 && term.Subtract {
			return nil, fmt.Errorf("%w: first term cannot subtract", ErrSyntax)
		}
		sh.Terms = append(sh.Terms, term)
	}
	if len(sh.Terms) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrSyntax)
	}
	return &sh, nil
}

func parseTerm(s string) (Term, error) {
	var t Term
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		t.Subtract = true
		s = rest
	}
	if body, at, ok := strings.Cut(s, "@"); ok {
		off, err := parseFloats(at)
		if err != nil {
			return t, err
		}
		if len(off) != 3 {
			return t, fmt.Errorf("offset needs 3 values, got %d", len(off))
		}
		copy(t.Offset[:], off)
		s = body
	}
	name, params, ok := strings.Cut(s, ":")
	if !ok {
		return t, errors.New("missing ':'")
	}
	t.Kind = Kind(strings.ToLower(strings.TrimSpace(name)))
	n, known := arity[t.Kind]
	if !known {
		return t, fmt.Errorf("unknown primitive %q", name)
	}
	vals, err := parseFloats(params)
	if err != nil {
		return t, err
	}
	if len(vals) != n {
		return t, fmt.Errorf("%s needs %d parameters, got %d", t.Kind, n, len(vals))
	}
	t.Params = vals
	return t, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// Build combines the terms into one solid, left to right.
func (sh *Shape) Build(k kernel.Kernel) (kernel.Solid, error) {
	var acc kernel.Solid
	for i, t := range sh.Terms {
		s, err := t.solid(k)
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i, err)
		}
		switch {
		case acc == nil:
			acc = s
		case t.Subtract:
			acc = k.Difference(acc, s)
		default:
			acc = k.Union(acc, s)
		}
	}
	return acc, nil
}

func (t Term) solid(k kernel.Kernel) (kernel.Solid, error) {
	var (
		s   kernel.Solid
		err error
	)
	switch t.Kind {
	case Sphere:
		s, err = k.Sphere(t.Params[0])
	case Box:
		s, err = k.Box(t.Params[0], t.Params[1], t.Params[2])
	case Cylinder:
		s, err = k.Cylinder(t.Params[0], t.Params[1])
	default:
		return nil, fmt.Errorf("unknown primitive %q", t.Kind)
	}
	if err != nil {
		return nil, err
	}
	if o := t.Offset; o != [3]float64{} {
		s = k.Translate(s, o[0], o[1], o[2])
	}
	return s, nil
}

// Options control meshing.
type Options struct {
	// Cells is the marching cubes resolution along the longest side.
	Cells int
	// WeldEpsilon merges corners closer than this. Zero picks a value
	// relative to the solid's size.
	WeldEpsilon float64
}

// DefaultOptions returns a resolution suitable for interactive editing.
func DefaultOptions() Options {
	return Options{Cells: 48}
}

// Tessellate meshes solid with k, welds the soup into an indexed mesh and
// returns it as host buffers.
func Tessellate(k kernel.Kernel, solid kernel.Solid, opts Options) (*mesh.HostBuffers, error) {
	soup, err := k.ToMesh(solid, opts.Cells)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	eps := opts.WeldEpsilon
	if eps <= 0 {
		lo, hi := solid.BoundingBox()
		size := max(hi[0]-lo[0], hi[1]-lo[1], hi[2]-lo[2])
		eps = size * 1e-6
	}
	welded := soup.Weld(eps)
	if welded.TriangleCount() == 0 {
		return nil, errors.New("tessellate: no triangles left after welding")
	}

	h := mesh.NewHostBuffers(welded.VertexCount(), welded.TriangleCount())
	copy(h.Positions, welded.Vertices)
	copy(h.Normals, welded.Normals)
	copy(h.Faces, welded.Indices)
	logger.Logger().Debug("tessellated",
		"soup_vertices", soup.VertexCount(), "vertices", h.VertexCount, "faces", h.FaceCount)
	return h, nil
}

// Primitive parses desc, builds it with k and tessellates the result.
func Primitive(k kernel.Kernel, desc string, opts Options) (*mesh.HostBuffers, error) {
	sh, err := Parse(desc)
	if err != nil {
		return nil, err
	}
	solid, err := sh.Build(k)
	if err != nil {
		return nil, fmt.Errorf("build %q: %w", desc, err)
	}
	return Tessellate(k, solid, opts)
}
