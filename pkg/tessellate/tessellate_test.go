package tessellate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshedit/pkg/kernel"
	"github.com/chazu/meshedit/pkg/kernel/sdfx"
	"github.com/chazu/meshedit/pkg/mesh"
	"github.com/chazu/meshedit/pkg/tessellate"
)

func newKernel() kernel.Kernel {
	return sdfx.New()
}

var coarse = tessellate.Options{Cells: 20}

func TestParse(t *testing.T) {
	tests := []struct {
		desc string
		want []tessellate.Term
	}{
		{"sphere:1", []tessellate.Term{{Kind: tessellate.Sphere, Params: []float64{1}}}},
		{" Box: 2, 1 ,0.5 ", []tessellate.Term{{Kind: tessellate.Box, Params: []float64{2, 1, 0.5}}}},
		{
			"box:2,2,2;-cylinder:3,0.5@0.5,-1,0;sphere:0.5@0,0,1",
			[]tessellate.Term{
				{Kind: tessellate.Box, Params: []float64{2, 2, 2}},
				{Kind: tessellate.Cylinder, Params: []float64{3, 0.5}, Offset: [3]float64{0.5, -1, 0}, Subtract: true},
				{Kind: tessellate.Sphere, Params: []float64{0.5}, Offset: [3]float64{0, 0, 1}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			sh, err := tessellate.Parse(tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sh.Terms)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, desc := range []string{
		"",
		";;",
		"sphere",
		"torus:1,2",
		"sphere:1,2",
		"box:1,x,1",
		"sphere:1@0,0",
		"-sphere:1",
	} {
		t.Run(desc, func(t *testing.T) {
			_, err := tessellate.Parse(desc)
			assert.True(t, errors.Is(err, tessellate.ErrSyntax), "got %v", err)
		})
	}
}

func TestPrimitiveSphere(t *testing.T) {
	h, err := tessellate.Primitive(newKernel(), "sphere:1", coarse)
	require.NoError(t, err)
	assert.Greater(t, h.VertexCount, 0)
	assert.Greater(t, h.FaceCount, h.VertexCount, "closed surface has about twice as many faces")

	s, err := mesh.New(h)
	require.NoError(t, err, "welded output loads into a state")
	assert.Equal(t, h.VertexCount, s.VertexCount())
}

func TestPrimitiveDifference(t *testing.T) {
	k := newKernel()
	box, err := tessellate.Primitive(k, "box:2,2,2", coarse)
	require.NoError(t, err)
	drilled, err := tessellate.Primitive(k, "box:2,2,2;-cylinder:3,0.5", coarse)
	require.NoError(t, err)
	assert.Greater(t, drilled.FaceCount, box.FaceCount)
}

func TestPrimitiveOffsetMovesGeometry(t *testing.T) {
	h, err := tessellate.Primitive(newKernel(), "sphere:1@10,0,0", coarse)
	require.NoError(t, err)
	for i := 0; i < h.VertexCount; i++ {
		assert.InDelta(t, 10, h.Positions[3*i], 1.1)
	}
}

func TestPrimitiveBuildError(t *testing.T) {
	_, err := tessellate.Primitive(newKernel(), "sphere:-1", coarse)
	require.Error(t, err)
	assert.False(t, errors.Is(err, tessellate.ErrSyntax), "parsed fine, failed in the kernel")
}

func TestTessellateExplicitEpsilon(t *testing.T) {
	k := newKernel()
	s, err := k.Sphere(1)
	require.NoError(t, err)
	h, err := tessellate.Tessellate(k, s, tessellate.Options{Cells: 16, WeldEpsilon: 1e-5})
	require.NoError(t, err)
	assert.Len(t, h.Positions, 3*h.VertexCount)
	assert.Len(t, h.Faces, 3*h.FaceCount)
	assert.Len(t, h.Colors, 4*h.VertexCount)
}
