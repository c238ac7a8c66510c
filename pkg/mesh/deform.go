package mesh

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/solver"
)

// HarmonicExponent is the k of the k-harmonic solve; 2 is biharmonic.
const HarmonicExponent = 2

type solveKind uint8

const (
	solveNone solveKind = iota
	solveHarmonic
	solveDisplacement
	solveArap
)

var errNoSolver = errors.New("no solver configured")

// deformSnapshot is what a failed solve restores.
type deformSnapshot struct {
	boundary  boundaryCache
	arap      solver.Precomputation
	lastSolve solveKind
}

func (s *State) snapshot() deformSnapshot {
	return deformSnapshot{boundary: s.boundary, arap: s.arap, lastSolve: s.lastSolve}
}

func (s *State) rollback(op string, snap deformSnapshot, cause error) error {
	s.boundary = snap.boundary
	s.arap = snap.arap
	s.lastSolve = snap.lastSolve
	logger.Logger().Warn("solve failed, state rolled back", "name", s.name, "op", op, "err", cause)
	return &Error{Op: op, Kind: ErrSolverFailure, Err: cause}
}

// Harmonic moves the mesh so that the vertices in any channel of mask sit
// at their captured targets and everything else follows the biharmonic
// interpolation over the rest pose. With showDisplacementField the solver
// interpolates the displacement from the rest pose instead of absolute
// positions. It reports whether a solve ran: with an unchanged boundary,
// unchanged conditions and the same mode as the last solve it skips.
//
// On failure V, the dirty flags and the boundary cache keep their pre-call
// values and the error matches ErrSolverFailure.
func (s *State) Harmonic(mask Mask, showDisplacementField bool) (bool, error) {
	const op = "Harmonic"
	if err := s.check(op); err != nil {
		return false, err
	}
	if s.solver == nil {
		return false, &Error{Op: op, Kind: ErrStateInconsistency, Err: errNoSolver}
	}

	snap := s.snapshot()
	boundaryChanged := s.UpdateBoundary(mask)
	conditionsChanged := s.UpdateBoundaryConditions()
	kind := solveHarmonic
	if showDisplacementField {
		kind = solveDisplacement
	}
	if !boundaryChanged && !conditionsChanged && s.lastSolve == kind {
		return false, nil
	}

	b := &s.boundary
	targets := b.targets
	if showDisplacementField {
		targets = make([]geom.Vec3, len(b.indices))
		for j, i := range b.indices {
			targets[j] = b.targets[j].Sub(s.rest[i])
		}
	}
	out, err := s.solver.Solve(s.rest, s.buf.F, b.indices, targets, HarmonicExponent)
	if err == nil {
		err = s.checkSolution(out)
	}
	if err != nil {
		return false, s.rollback(op, snap, err)
	}
	if showDisplacementField {
		for i := range out {
			out[i] = out[i].Add(s.rest[i])
		}
	}

	s.buf.V = out
	s.dirty |= PositionsChanged
	s.lastSolve = kind
	return true, nil
}

// Arap runs an as-rigid-as-possible solve with the vertices in any channel
// of mask pinned to their captured targets. The solver precomputation is
// rebuilt only when the boundary indices differ from the ones it was built
// for. It reports whether a solve ran. Failure semantics match Harmonic.
func (s *State) Arap(mask Mask) (bool, error) {
	const op = "Arap"
	if err := s.check(op); err != nil {
		return false, err
	}
	if s.solver == nil {
		return false, &Error{Op: op, Kind: ErrStateInconsistency, Err: errNoSolver}
	}

	snap := s.snapshot()
	s.UpdateBoundary(mask)
	conditionsChanged := s.UpdateBoundaryConditions()

	rebuilt := false
	if s.arap == nil || !slices.Equal(s.arap.Fixed(), s.boundary.indices) {
		pre, err := s.solver.Precompute(s.rest, s.buf.F, s.boundary.indices, s.arapIterations)
		if err != nil {
			return false, s.rollback(op, snap, err)
		}
		s.arap = pre
		rebuilt = true
		logger.Logger().Debug("arap precomputation rebuilt", "name", s.name, "fixed", len(s.boundary.indices))
	}
	if !conditionsChanged && !rebuilt && s.lastSolve == solveArap {
		return false, nil
	}

	out, err := s.solver.SolveWithState(s.boundary.targets, s.arap, s.buf.V)
	if err == nil {
		err = s.checkSolution(out)
	}
	if err != nil {
		return false, s.rollback(op, snap, err)
	}

	s.buf.V = out
	s.dirty |= PositionsChanged
	s.lastSolve = solveArap
	return true, nil
}

// ResetV restores the rest pose. The boundary indices stay valid; the
// conditions go stale because positions moved.
func (s *State) ResetV() error {
	if err := s.check("ResetV"); err != nil {
		return err
	}
	s.buf.V = slices.Clone(s.rest)
	s.dirty |= PositionsChanged
	s.boundary.conditionsStale = true
	return nil
}

func (s *State) checkSolution(out []geom.Vec3) error {
	if len(out) != len(s.buf.V) {
		return fmt.Errorf("solver returned %d positions for %d vertices", len(out), len(s.buf.V))
	}
	return nil
}
