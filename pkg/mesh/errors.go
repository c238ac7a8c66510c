package mesh

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a State is an *Error whose Kind is
// one of these, so callers can match with errors.Is.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrSolverFailure      = errors.New("solver failure")
	ErrStateInconsistency = errors.New("state inconsistency")
)

// Error describes a failed mesh operation.
type Error struct {
	Op   string // operation that failed, e.g. "SelectSphere"
	Kind error  // ErrInvalidArgument, ErrSolverFailure or ErrStateInconsistency
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mesh: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("mesh: %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause, so that a solver failure
// matches ErrSolverFailure as well as the solver's own sentinel.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidArgument(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrInvalidArgument, Err: fmt.Errorf(format, args...)}
}

var errDisposed = errors.New("mesh state is disposed")
