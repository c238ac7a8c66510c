// Package engine runs mesh edit scripts. Scripts are zygomys Lisp with a
// set of builtins bound to one mesh state, so a host or the CLI can drive
// selection, deformation and sync from text:
//
//	(select-sphere (vec3 0 0 0) 0.5 :channel 1)
//	(translate-selection (vec3 0 0.1 0) (mask 1))
//	(harmonic (mask 1))
//	(sync)
package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/mesh"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a failing builtin.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalResult is what a script left behind.
type EvalResult struct {
	// Value is the printed value of the last expression.
	Value string
	// Report is the result of the last (sync) call, if Synced.
	Report mesh.SyncReport
	Synced bool
	Errors []EvalError
}

// Session binds scripts to one mesh state and, optionally, the host
// buffers (sync) writes into. A session must not be shared between
// concurrent Evaluate calls.
type Session struct {
	State *mesh.State
	Host  *mesh.HostBuffers

	mu     sync.Mutex
	seq    uint64
	active uint64
}

// NewSession returns a session over s. host may be nil.
func NewSession(s *mesh.State, host *mesh.HostBuffers) *Session {
	return &Session{State: s, Host: host}
}

// begin starts a new evaluation generation, retiring any previous one.
func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.active = s.seq
	return s.seq
}

// fence retires gen. It waits for a builtin of gen that is already
// running, so nothing of gen touches the state once fence returns.
func (s *Session) fence(gen uint64) {
	s.mu.Lock()
	if s.active == gen {
		s.active = 0
	}
	s.mu.Unlock()
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == gen
}

// guard runs fn against the state unless gen has been fenced.
func (s *Session) guard(gen uint64, fn func(*mesh.State) (zygo.Sexp, error)) (zygo.Sexp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != gen {
		return zygo.SexpNull, ErrFenced
	}
	return fn(s.State)
}

var (
	// ErrFenced is returned by builtins of an evaluation that timed out
	// or was superseded.
	ErrFenced = errors.New("evaluation no longer owns the session")
	// ErrTimeout is returned when a script exceeds its time budget.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrNoState is returned for a nil session or state.
	ErrNoState = errors.New("session has no mesh state")
)

// Options configure an Engine.
type Options struct {
	// Timeout bounds one evaluation. Zero means EvalTimeout.
	Timeout time.Duration
}

// Engine evaluates scripts. It is safe for concurrent use across
// sessions; each call to Evaluate creates a fresh sandboxed environment.
type Engine struct {
	timeout time.Duration
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = EvalTimeout
	}
	return &Engine{timeout: opts.Timeout}
}

// Evaluate runs source against sess.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns result (with partial effects recorded),
//     the eval errors and a nil error
//   - On fatal failure (timeout, panic, no state): returns nil + nil + error
func (e *Engine) Evaluate(source string, sess *Session) (*EvalResult, []EvalError, error) {
	if sess == nil || sess.State == nil {
		return nil, nil, ErrNoState
	}
	gen := sess.begin()

	ch := make(chan evalOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalOutcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		res, evalErrs := e.evaluate(source, sess, gen)
		ch <- evalOutcome{result: res, errors: evalErrs}
	}()

	return waitWithTimeout(ch, gen, sess, e.timeout)
}

// evaluate performs the zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string, sess *Session, gen uint64) (*EvalResult, []EvalError) {
	res := &EvalResult{}
	if strings.TrimSpace(source) == "" {
		return res, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, sess, gen, res)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		res.Errors = parseZygomysError(err)
		return res, res.Errors
	}
	v, err := env.Run()
	if err != nil {
		res.Errors = parseZygomysError(err)
		return res, res.Errors
	}
	if v != nil {
		res.Value = v.SexpString(nil)
	}
	logger.Logger().Debug("script evaluated", "value", res.Value, "synced", res.Synced)
	return res, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// keeping the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
