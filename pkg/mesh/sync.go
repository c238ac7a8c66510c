package mesh

import "github.com/chazu/meshedit/pkg/logger"

// SyncReport describes one Sync.
type SyncReport struct {
	// Copied lists the buffers written to the host.
	Copied DirtyFlag
	// Pending lists dirty buffers left uncopied because no host target
	// was given.
	Pending DirtyFlag
	// CountsRecomputed is set when channel counts were refreshed.
	CountsRecomputed bool
	// ColorsRecomputed is set when the color shader ran.
	ColorsRecomputed bool
	// Resized lists the channels whose count changed.
	Resized Mask

	suppressed DirtyFlag
}

// Empty reports whether the Sync did nothing.
func (r SyncReport) Empty() bool {
	return r.Copied == 0 && r.Pending == 0 && !r.CountsRecomputed && !r.ColorsRecomputed
}

// RecomputeNormals reports whether the host should rebuild normals from the
// new positions: positions were copied, normals were not, and the caller
// did not suppress it.
func (r SyncReport) RecomputeNormals() bool {
	return r.Copied&PositionsChanged != 0 &&
		r.Copied&NormalsChanged == 0 &&
		r.suppressed&SuppressNormalRecompute == 0
}

// RecomputeBounds reports whether the host should refresh the mesh bounds.
func (r SyncReport) RecomputeBounds() bool {
	return r.Copied&PositionsChanged != 0 && r.suppressed&SuppressBoundsRecompute == 0
}

// Sync brings the derived caches up to date and copies the dirty buffers
// into dst, in this order:
//
//  1. channel counts and the total, when any channel is dirty; channels
//     whose count changed invalidate the boundary
//  2. colors, when a dirty channel is visible or visibility changed since
//     the last shading, unless SuppressColorRecompute is set
//  3. dirty buffers into dst, after which every dirty flag is cleared
//  4. the dirty channel set is cleared
//
// A nil dst refreshes the caches but copies nothing and keeps the dirty
// flags. A dst sized for another mesh is rejected before anything changes.
// A second Sync without intervening edits does nothing.
func (s *State) Sync(dst *HostBuffers, visible Mask) (SyncReport, error) {
	const op = "Sync"
	var rep SyncReport
	if err := s.check(op); err != nil {
		return rep, err
	}
	if dst != nil {
		if err := dst.checkTarget(len(s.buf.V), len(s.buf.F)); err != nil {
			return rep, &Error{Op: op, Kind: ErrInvalidArgument, Err: err}
		}
	}

	s.resized = 0
	if s.dirtySel != 0 {
		s.resized = s.recount()
		s.boundary.dirtyForBoundary |= s.resized
		rep.CountsRecomputed = true
		rep.Resized = s.resized
	}

	if s.dirty&SuppressColorRecompute == 0 &&
		(visible&s.dirtySel != 0 || s.shade.stale(visible, s.channelsInUse)) {
		s.shadeColors(visible)
		rep.ColorsRecomputed = true
	}

	pending := s.dirty & bufferFlags
	if s.dirty&PositionsChangedExclBoundary != 0 {
		pending |= PositionsChanged
	}
	if dst != nil {
		s.buf.commit(dst, pending)
		rep.Copied = pending
		rep.suppressed = s.dirty & suppressFlags
		s.dirty = 0
	} else {
		rep.Pending = pending
	}

	s.dirtySel = 0

	if !rep.Empty() {
		logger.Logger().Debug("sync",
			"name", s.name, "copied", rep.Copied, "pending", rep.Pending,
			"counts", rep.CountsRecomputed, "colors", rep.ColorsRecomputed, "resized", rep.Resized)
	}
	return rep, nil
}
