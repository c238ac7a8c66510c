package engine

import (
	"errors"
	"strings"
	"testing"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/meshedit/pkg/mesh"
	"github.com/chazu/meshedit/pkg/solver/dense"
)

// tetra returns a session over the unit tetrahedron with a host target.
func tetra(t *testing.T) *Session {
	t.Helper()
	h := mesh.NewHostBuffers(4, 4)
	copy(h.Positions, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1})
	copy(h.Faces, []uint32{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3})
	s, err := mesh.New(h, mesh.WithSolver(dense.New(dense.Options{})), mesh.WithName("tetra"))
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}
	return NewSession(s, mesh.NewHostBuffers(4, 4))
}

func mustEval(t *testing.T, eng *Engine, sess *Session, source string) *EvalResult {
	t.Helper()
	res, evalErrs, err := eng.Evaluate(source, sess)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if res == nil {
		t.Fatal("expected non-nil result")
	}
	return res
}

func TestEvaluateEmptyString(t *testing.T) {
	eng := New(Options{})
	for _, src := range []string{"", "   \n\t  \n  "} {
		res := mustEval(t, eng, tetra(t), src)
		if res.Value != "" || res.Synced {
			t.Errorf("empty source produced %+v", res)
		}
	}
}

func TestEvaluateValidExpression(t *testing.T) {
	res := mustEval(t, New(Options{}), tetra(t), "(+ 1 2)")
	if res.Value != "3" {
		t.Errorf("Value = %q, want 3", res.Value)
	}
}

func TestEvaluateNoState(t *testing.T) {
	eng := New(Options{})
	if _, _, err := eng.Evaluate("(+ 1 2)", nil); !errors.Is(err, ErrNoState) {
		t.Errorf("nil session: got %v", err)
	}
	if _, _, err := eng.Evaluate("(+ 1 2)", &Session{}); !errors.Is(err, ErrNoState) {
		t.Errorf("nil state: got %v", err)
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := New(Options{})

	// Unmatched paren is a parse error; the error lands on line 2.
	res, evalErrs, err := eng.Evaluate("(+ 1 2)\n(+ 3", tetra(t))
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
	if res == nil || len(res.Errors) != len(evalErrs) {
		t.Error("result should carry the eval errors")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	_, evalErrs, err := New(Options{}).Evaluate("(+ 1 undefined-symbol)", tetra(t))
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	if s := e.Error(); !strings.Contains(s, "line 5") || !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() = %q", s)
	}
	if s := (EvalError{Message: "no location"}).Error(); strings.Contains(s, "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", s)
	}
}

func TestWaitWithTimeout(t *testing.T) {
	sess := tetra(t)
	gen := sess.begin()
	ch := make(chan evalOutcome) // never sends

	start := time.Now()
	_, _, err := waitWithTimeout(ch, gen, sess, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout error, got: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout took far longer than requested")
	}

	// The timed-out generation is fenced.
	_, err = sess.guard(gen, func(*mesh.State) (zygo.Sexp, error) {
		t.Error("fenced builtin reached the state")
		return zygo.SexpNull, nil
	})
	if !errors.Is(err, ErrFenced) {
		t.Errorf("guard after timeout: got %v", err)
	}

	// A new evaluation owns the session again.
	mustEval(t, New(Options{}), sess, "(vertex-count)")
}

func TestWaitDiscardsSuperseded(t *testing.T) {
	sess := tetra(t)
	old := sess.begin()
	sess.begin()

	ch := make(chan evalOutcome, 1)
	ch <- evalOutcome{result: &EvalResult{}}
	_, _, err := waitWithTimeout(ch, old, sess, time.Second)
	if err == nil || !strings.Contains(err.Error(), "superseded") {
		t.Errorf("expected superseded error, got: %v", err)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{"error on line format", "Error on line 5: unexpected token\n", 5, "unexpected token"},
		{"no line info", "some generic error", 0, "some generic error"},
		{"line format lowercase", "error on line 12: missing paren", 12, "missing paren"},
		{"short line format", "line 3: bad", 3, "bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errors.New(tt.msg))
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1", len(errs))
			}
			if errs[0].Line != tt.wantLine {
				t.Errorf("line = %d, want %d", errs[0].Line, tt.wantLine)
			}
			if !strings.Contains(errs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}
