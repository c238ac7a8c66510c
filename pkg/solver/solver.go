// Package solver defines the boundary between the mesh state engine and
// the numerical deformation backend. The engine treats a Solver as a pure
// service: inputs are never mutated and every call returns fresh
// positions. Backends (see solver/dense) implement the interface; the
// process-wide worker pool they share is configured with Init/Shutdown.
package solver

import (
	"errors"
	"fmt"

	"github.com/chazu/meshedit/pkg/geom"
)

// Errors reported by backends. Callers match them with errors.Is.
var (
	// ErrDegenerateBoundary means the fixed set cannot pin the system,
	// e.g. it is empty.
	ErrDegenerateBoundary = errors.New("degenerate boundary")
	// ErrSingular means the constrained system has no unique solution,
	// typically a mesh component without any fixed vertex.
	ErrSingular = errors.New("singular system")
	// ErrNumerical means the solve produced non-finite values.
	ErrNumerical = errors.New("numerical failure")
	// ErrInvalidInput means inconsistent lengths or out-of-range indices.
	ErrInvalidInput = errors.New("invalid solver input")
)

// Precomputation is opaque backend state prepared for a fixed set of
// boundary vertices. It is only valid for the indices it was built with.
type Precomputation interface {
	// Fixed returns the boundary vertex indices the state was built for.
	Fixed() []int
}

// Solver is the deformation backend.
type Solver interface {
	// Solve interpolates values over the mesh so that vertex fixed[j]
	// takes targets[j], minimising the k-harmonic energy with k=exponent.
	// base supplies the mesh geometry.
	Solve(base []geom.Vec3, faces []geom.Face, fixed []int, targets []geom.Vec3, exponent int) ([]geom.Vec3, error)

	// Precompute prepares an as-rigid-as-possible solve around base with
	// the given fixed vertices. maxIterations caps later solves.
	Precompute(base []geom.Vec3, faces []geom.Face, fixed []int, maxIterations int) (Precomputation, error)

	// SolveWithState runs the iterative ARAP solve, pinning the fixed
	// vertices of state to targets. base is the initial guess.
	SolveWithState(targets []geom.Vec3, state Precomputation, base []geom.Vec3) ([]geom.Vec3, error)
}

// ValidateProblem checks the shape of a solve request: matching fixed and
// target lengths, indices inside [0, n) without repeats, faces inside
// [0, n). Backends call it before doing any work.
func ValidateProblem(n int, faces []geom.Face, fixed []int, targets []geom.Vec3) error {
	if targets != nil && len(fixed) != len(targets) {
		return fmt.Errorf("%w: %d fixed vertices but %d targets", ErrInvalidInput, len(fixed), len(targets))
	}
	seen := make(map[int]struct{}, len(fixed))
	for _, i := range fixed {
		if i < 0 || i >= n {
			return fmt.Errorf("%w: fixed index %d outside [0,%d)", ErrInvalidInput, i, n)
		}
		if _, dup := seen[i]; dup {
			return fmt.Errorf("%w: fixed index %d repeated", ErrInvalidInput, i)
		}
		seen[i] = struct{}{}
	}
	for fi, f := range faces {
		for _, v := range f {
			if int(v) >= n {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrInvalidInput, fi, v, n)
			}
		}
	}
	return nil
}
