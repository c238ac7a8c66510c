package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/meshedit/pkg/logger"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// evalOutcome carries an evaluation's results out of its goroutine.
type evalOutcome struct {
	result *EvalResult
	errors []EvalError
	err    error
}

// errSuperseded is returned when a newer evaluation started on the same
// session before this one finished.
var errSuperseded = errors.New("evaluation superseded by newer request")

// waitWithTimeout waits for a result from ch, giving up after timeout.
// On timeout the session is fenced: the goroutine may keep running the
// script, but none of its builtins reach the state again.
func waitWithTimeout(ch <-chan evalOutcome, gen uint64, sess *Session, timeout time.Duration) (*EvalResult, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if !sess.current(gen) {
			return nil, nil, errSuperseded
		}
		return out.result, out.errors, out.err

	case <-timer.C:
		sess.fence(gen)
		logger.Logger().Warn("script timed out", "timeout", timeout)
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
