package mesh

import (
	"slices"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/logger"
)

// boundaryCache is the fixed vertex set handed to the solver. indices and
// targets are replaced, never written in place, so a copy of the struct is
// a valid snapshot.
type boundaryCache struct {
	indices  []int
	targets  []geom.Vec3
	mask     Mask
	computed bool

	// dirtyForBoundary collects channels resized by Sync since the indices
	// were last derived.
	dirtyForBoundary Mask
	conditionsStale  bool
}

// UpdateBoundary derives the boundary indices from the vertices in any
// channel of mask, in ascending vertex order. It does nothing and returns
// false when the indices were already derived for mask and none of its
// channels has been resized since. A recompute marks the boundary
// conditions stale.
func (s *State) UpdateBoundary(mask Mask) bool {
	if !s.live() {
		return false
	}
	b := &s.boundary
	if b.computed && b.mask == mask && b.dirtyForBoundary&mask == 0 {
		return false
	}

	indices := make([]int, 0, len(b.indices))
	for i, w := range s.sel {
		if w&mask != 0 {
			indices = append(indices, i)
		}
	}
	b.indices = indices
	b.targets = nil
	b.mask = mask
	b.computed = true
	b.dirtyForBoundary &^= mask
	b.conditionsStale = true

	logger.Logger().Debug("boundary recomputed", "name", s.name, "mask", mask, "vertices", len(indices))
	return true
}

// UpdateBoundaryConditions captures the current positions of the boundary
// vertices as solve targets. It returns false when the conditions were not
// stale.
func (s *State) UpdateBoundaryConditions() bool {
	if !s.live() || !s.boundary.conditionsStale {
		return false
	}
	b := &s.boundary
	targets := make([]geom.Vec3, len(b.indices))
	for j, i := range b.indices {
		targets[j] = s.buf.V[i]
	}
	b.targets = targets
	b.conditionsStale = false
	return true
}

// BoundaryIndices returns a copy of the cached boundary indices.
func (s *State) BoundaryIndices() []int {
	return slices.Clone(s.boundary.indices)
}

// BoundaryTargets returns a copy of the cached boundary targets.
func (s *State) BoundaryTargets() []geom.Vec3 {
	return slices.Clone(s.boundary.targets)
}

// BoundaryMask returns the mask the boundary indices were derived from.
func (s *State) BoundaryMask() Mask {
	return s.boundary.mask
}
