package meshio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/meshedit/pkg/geom"
)

// maxPrealloc bounds the capacity reserved from header counts.
const maxPrealloc = 1 << 20

// ReadOFF parses an OFF stream. The header keyword may carry C (per-vertex
// colors) and N (per-vertex normals) prefixes, as in COFF, NOFF and CNOFF.
// Polygons with more than three corners are fan-triangulated.
func ReadOFF(r io.Reader) (*Data, error) {
	sc := &offScanner{s: bufio.NewScanner(r)}

	header, err := sc.next()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	keyword := header[0]
	if !strings.HasSuffix(keyword, "OFF") {
		return nil, fmt.Errorf("line %d: expected OFF header, got %q", sc.line, keyword)
	}
	prefix := strings.TrimSuffix(keyword, "OFF")
	hasColors := strings.Contains(prefix, "C")
	hasNormals := strings.Contains(prefix, "N")

	counts := header[1:]
	if len(counts) == 0 {
		if counts, err = sc.next(); err != nil {
			return nil, fmt.Errorf("counts: %w", err)
		}
	}
	if len(counts) < 2 {
		return nil, fmt.Errorf("line %d: expected vertex and face counts", sc.line)
	}
	nv, err1 := strconv.Atoi(counts[0])
	nf, err2 := strconv.Atoi(counts[1])
	if err1 != nil || err2 != nil || nv < 0 || nf < 0 {
		return nil, fmt.Errorf("line %d: bad counts %q", sc.line, strings.Join(counts, " "))
	}
	if uint64(nv) > math.MaxUint32 {
		return nil, fmt.Errorf("line %d: %d vertices exceed 32-bit indices", sc.line, nv)
	}

	// Header counts are untrusted; slices grow with the lines actually read.
	capV := min(nv, maxPrealloc)
	d := &Data{Positions: make([]geom.Vec3, 0, capV)}
	if hasNormals {
		d.Normals = make([]geom.Vec3, 0, capV)
	}
	if hasColors {
		d.Colors = make([]geom.Color, 0, capV)
	}
	d.Faces = make([]geom.Face, 0, min(nf, maxPrealloc))

	for i := 0; i < nv; i++ {
		fields, err := sc.next()
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		vals, err := parseFloats(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", sc.line, err)
		}
		need := 3
		if hasNormals {
			need += 3
		}
		if hasColors {
			need += 3
		}
		if len(vals) < need {
			return nil, fmt.Errorf("line %d: vertex %d has %d values, need %d", sc.line, i, len(vals), need)
		}
		d.Positions = append(d.Positions, geom.Vec3{X: vals[0], Y: vals[1], Z: vals[2]})
		rest := vals[3:]
		if hasNormals {
			d.Normals = append(d.Normals, geom.Vec3{X: rest[0], Y: rest[1], Z: rest[2]})
			rest = rest[3:]
		}
		if hasColors {
			d.Colors = append(d.Colors, offColor(rest))
		}
	}

	for i := 0; i < nf; i++ {
		fields, err := sc.next()
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		k, err := strconv.Atoi(fields[0])
		if err != nil || k < 3 || len(fields) < k+1 {
			return nil, fmt.Errorf("line %d: bad polygon", sc.line)
		}
		idx := make([]uint32, k)
		for j := range idx {
			v, err := strconv.ParseUint(fields[j+1], 10, 32)
			if err != nil || int(v) >= nv {
				return nil, fmt.Errorf("line %d: bad vertex index %q", sc.line, fields[j+1])
			}
			idx[j] = uint32(v)
		}
		for j := 1; j+1 < k; j++ {
			d.Faces = append(d.Faces, geom.Face{idx[0], idx[j], idx[j+1]})
		}
	}
	return d, nil
}

// offColor reads RGB or RGBA given either as floats in [0,1] or as bytes.
func offColor(v []float32) geom.Color {
	c := geom.Color{R: v[0], G: v[1], B: v[2], A: 1}
	if len(v) > 3 {
		c.A = v[3]
	}
	if c.R > 1 || c.G > 1 || c.B > 1 || c.A > 1 {
		c = c.Scale(1.0 / 255)
		if len(v) == 3 {
			c.A = 1
		}
	}
	return c
}

func parseFloats(fields []string) ([]float32, error) {
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", f)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// offScanner yields the fields of the next non-empty line, with #
// comments stripped.
type offScanner struct {
	s    *bufio.Scanner
	line int
}

func (o *offScanner) next() ([]string, error) {
	for o.s.Scan() {
		o.line++
		text := o.s.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		if fields := strings.Fields(text); len(fields) > 0 {
			return fields, nil
		}
	}
	if err := o.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}
