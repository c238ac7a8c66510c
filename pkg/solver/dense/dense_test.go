package dense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/solver"
)

// grid builds an n x n planar grid in the XY plane, two triangles per cell
// split along the (x,y)-(x+1,y+1) diagonal.
func grid(n int) ([]geom.Vec3, []geom.Face) {
	var verts []geom.Vec3
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			verts = append(verts, geom.Vec3{X: float32(x), Y: float32(y)})
		}
	}
	var faces []geom.Face
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			a := uint32(y*n + x)
			b, c := a+1, a+uint32(n)
			d := c + 1
			faces = append(faces, geom.Face{a, b, d}, geom.Face{a, d, c})
		}
	}
	return verts, faces
}

// border returns the indices on the outer ring of an n x n grid.
func border(n int) []int {
	var out []int
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if x == 0 || y == 0 || x == n-1 || y == n-1 {
				out = append(out, y*n+x)
			}
		}
	}
	return out
}

func gather(points []geom.Vec3, idx []int, offset geom.Vec3) []geom.Vec3 {
	out := make([]geom.Vec3, len(idx))
	for j, i := range idx {
		out[j] = points[i].Add(offset)
	}
	return out
}

func assertVec(t *testing.T, want, got geom.Vec3, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-4, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, 1e-4, msgAndArgs...)
	assert.InDelta(t, want.Z, got.Z, 1e-4, msgAndArgs...)
}

func TestSolveHarmonicCenter(t *testing.T) {
	verts, faces := grid(3)
	fixed := border(3)

	// The free center vertex starts off-plane; only connectivity matters.
	base := append([]geom.Vec3(nil), verts...)
	base[4] = geom.Vec3{X: 5, Y: 5, Z: 5}

	out, err := New(Options{}).Solve(base, faces, fixed, gather(verts, fixed, geom.Vec3{}), 1)
	require.NoError(t, err)
	assertVec(t, geom.Vec3{X: 1, Y: 1}, out[4])
	for _, i := range fixed {
		assert.Equal(t, verts[i], out[i], "fixed vertex %d", i)
	}
}

func TestSolveConstantField(t *testing.T) {
	verts, faces := grid(5)
	fixed := border(5)
	d := geom.Vec3{X: 0.5, Y: -2, Z: 3}

	targets := make([]geom.Vec3, len(fixed))
	for j := range targets {
		targets[j] = d
	}
	for _, k := range []int{1, 2, 3} {
		out, err := New(Options{}).Solve(verts, faces, fixed, targets, k)
		require.NoError(t, err, "exponent %d", k)
		for i, p := range out {
			assertVec(t, d, p, "exponent %d vertex %d", k, i)
		}
	}
}

func TestSolveErrors(t *testing.T) {
	verts, faces := grid(3)
	fixed := border(3)
	targets := gather(verts, fixed, geom.Vec3{})

	// Two triangles sharing nothing; only the first is pinned.
	twoVerts := []geom.Vec3{{}, {X: 1}, {Y: 1}, {X: 5}, {X: 6}, {X: 5, Y: 1}}
	twoFaces := []geom.Face{{0, 1, 2}, {3, 4, 5}}

	tests := []struct {
		name     string
		base     []geom.Vec3
		faces    []geom.Face
		fixed    []int
		targets  []geom.Vec3
		exponent int
		want     error
	}{
		{"no fixed vertices", verts, faces, nil, nil, 2, solver.ErrDegenerateBoundary},
		{"target count mismatch", verts, faces, fixed, targets[:2], 2, solver.ErrInvalidInput},
		{"zero exponent", verts, faces, fixed, targets, 0, solver.ErrInvalidInput},
		{"index out of range", verts, faces, []int{9}, []geom.Vec3{{}}, 2, solver.ErrInvalidInput},
		{"isolated free vertex", append(verts, geom.Vec3{X: 9}), faces, fixed, targets, 2, solver.ErrSingular},
		{"unpinned component", twoVerts, twoFaces, []int{0, 1, 2}, twoVerts[:3], 1, solver.ErrSingular},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}).Solve(tt.base, tt.faces, tt.fixed, tt.targets, tt.exponent)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSolveAllFixed(t *testing.T) {
	verts, faces := grid(2)
	fixed := []int{0, 1, 2, 3}
	targets := gather(verts, fixed, geom.Vec3{Z: 1})

	out, err := New(Options{}).Solve(verts, faces, fixed, targets, 2)
	require.NoError(t, err)
	assert.Equal(t, targets, out)
}

func TestArapTranslation(t *testing.T) {
	verts, faces := grid(5)
	fixed := []int{0, 4, 20, 24, 12}
	d := geom.Vec3{X: 1, Y: 2, Z: -0.5}

	s := New(Options{})
	pre, err := s.Precompute(verts, faces, fixed, 100)
	require.NoError(t, err)
	assert.Equal(t, fixed, pre.Fixed())

	out, err := s.SolveWithState(gather(verts, fixed, d), pre, verts)
	require.NoError(t, err)
	for i := range verts {
		assertVec(t, verts[i].Add(d), out[i], "vertex %d", i)
	}
}

func TestArapWithWorkerPool(t *testing.T) {
	require.NoError(t, solver.Init(4))

	verts, faces := grid(4)
	fixed := border(4)
	d := geom.Vec3{Z: 2}

	s := New(Options{})
	pre, err := s.Precompute(verts, faces, fixed, 100)
	require.NoError(t, err)
	out, err := s.SolveWithState(gather(verts, fixed, d), pre, verts)
	require.NoError(t, err)
	for i := range verts {
		assertVec(t, verts[i].Add(d), out[i], "vertex %d", i)
	}
}

func TestArapIterationCapIsNotAnError(t *testing.T) {
	verts, faces := grid(4)
	fixed := []int{0, 3}
	targets := []geom.Vec3{{}, {X: 6}}

	s := New(Options{Tolerance: 1e-12})
	pre, err := s.Precompute(verts, faces, fixed, 1)
	require.NoError(t, err)
	out, err := s.SolveWithState(targets, pre, verts)
	require.NoError(t, err)
	assert.Len(t, out, len(verts))
	assert.Equal(t, targets[1], out[3])
}

func TestPrecomputeDoesNotAliasFixed(t *testing.T) {
	verts, faces := grid(3)
	fixed := []int{0, 8}
	pre, err := New(Options{}).Precompute(verts, faces, fixed, 10)
	require.NoError(t, err)
	fixed[0] = 5
	assert.Equal(t, []int{0, 8}, pre.Fixed())
}

type foreignState struct{}

func (foreignState) Fixed() []int { return nil }

func TestArapErrors(t *testing.T) {
	verts, faces := grid(3)
	s := New(Options{})

	_, err := s.Precompute(verts, faces, nil, 100)
	assert.ErrorIs(t, err, solver.ErrDegenerateBoundary)

	_, err = s.Precompute(verts, faces, []int{0}, 0)
	assert.ErrorIs(t, err, solver.ErrInvalidInput)

	_, err = s.Precompute(append(verts, geom.Vec3{}), faces, []int{0}, 10)
	assert.ErrorIs(t, err, solver.ErrSingular)

	pre, err := s.Precompute(verts, faces, []int{0, 8}, 10)
	require.NoError(t, err)

	_, err = s.SolveWithState([]geom.Vec3{{}}, pre, verts)
	assert.ErrorIs(t, err, solver.ErrInvalidInput, "target count")

	_, err = s.SolveWithState([]geom.Vec3{{}, {}}, pre, verts[:4])
	assert.ErrorIs(t, err, solver.ErrInvalidInput, "base length")

	_, err = s.SolveWithState([]geom.Vec3{{}, {}}, foreignState{}, verts)
	assert.ErrorIs(t, err, solver.ErrInvalidInput, "foreign state")
}
