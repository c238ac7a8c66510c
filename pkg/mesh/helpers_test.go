package mesh

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/solver"
)

// tetra is the four-vertex mesh used throughout: the origin and the three
// unit axis points.
var tetraPoints = []geom.Vec3{{}, {X: 1}, {Y: 1}, {Z: 1}}

var tetraFaces = []geom.Face{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}}

func hostFrom(points []geom.Vec3, faces []geom.Face) *HostBuffers {
	h := NewHostBuffers(len(points), len(faces))
	writeVec3(h.Positions, points)
	for i, f := range faces {
		copy(h.Faces[3*i:], f[:])
	}
	return h
}

func newTetra(t *testing.T, opts ...Option) *State {
	t.Helper()
	s, err := New(hostFrom(tetraPoints, tetraFaces), opts...)
	require.NoError(t, err)
	return s
}

// gridMesh builds an n x n unit grid in the XY plane.
func gridMesh(n int) ([]geom.Vec3, []geom.Face) {
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
			faces = append(faces, geom.Face{a, b, c + 1}, geom.Face{a, c + 1, c})
		}
	}
	return verts, faces
}

// fakeSolver pins the fixed vertices to their targets and leaves every
// other vertex at base. It counts calls and can be told to fail.
type fakeSolver struct {
	solves      int
	precomputes int
	arapSolves  int
	err         error

	lastFixed    []int
	lastTargets  []geom.Vec3
	lastExponent int
}

type fakePrecomputation struct{ fixed []int }

func (p *fakePrecomputation) Fixed() []int { return p.fixed }

func (f *fakeSolver) Solve(base []geom.Vec3, _ []geom.Face, fixed []int, targets []geom.Vec3, exponent int) ([]geom.Vec3, error) {
	f.solves++
	f.lastFixed = slices.Clone(fixed)
	f.lastTargets = slices.Clone(targets)
	f.lastExponent = exponent
	if f.err != nil {
		return nil, f.err
	}
	return pin(base, fixed, targets), nil
}

func (f *fakeSolver) Precompute(_ []geom.Vec3, _ []geom.Face, fixed []int, _ int) (solver.Precomputation, error) {
	f.precomputes++
	if f.err != nil {
		return nil, f.err
	}
	return &fakePrecomputation{fixed: slices.Clone(fixed)}, nil
}

func (f *fakeSolver) SolveWithState(targets []geom.Vec3, state solver.Precomputation, base []geom.Vec3) ([]geom.Vec3, error) {
	f.arapSolves++
	f.lastTargets = slices.Clone(targets)
	if f.err != nil {
		return nil, f.err
	}
	return pin(base, state.Fixed(), targets), nil
}

func pin(base []geom.Vec3, fixed []int, targets []geom.Vec3) []geom.Vec3 {
	out := slices.Clone(base)
	for j, i := range fixed {
		out[i] = targets[j]
	}
	return out
}
