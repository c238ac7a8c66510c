// Package dense is the default deformation backend. It assembles the
// uniform graph Laplacian of the mesh as a dense gonum matrix, so it suits
// the small and medium meshes an interactive session edits.
package dense

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/solver"
)

const (
	DefaultTolerance    = 1e-6
	DefaultMaxCondition = 1e12
)

// Options configures a Solver. Zero fields take the defaults.
type Options struct {
	// Tolerance ends an ARAP solve once no vertex moved further than this
	// during the last iteration.
	Tolerance float64
	// MaxCondition rejects constrained systems whose estimated condition
	// number is larger, reporting solver.ErrSingular.
	MaxCondition float64
}

// Solver implements solver.Solver with dense linear algebra.
type Solver struct {
	tolerance    float64
	maxCondition float64
}

var _ solver.Solver = (*Solver)(nil)

// New creates a dense backend.
func New(opts Options) *Solver {
	s := &Solver{tolerance: opts.Tolerance, maxCondition: opts.MaxCondition}
	if s.tolerance <= 0 {
		s.tolerance = DefaultTolerance
	}
	if s.maxCondition <= 0 {
		s.maxCondition = DefaultMaxCondition
	}
	return s
}

// Solve minimises the k-harmonic energy x^T L^k x with the fixed rows
// pinned to targets. Only the connectivity of base matters to the uniform
// Laplacian; its length gives the vertex count.
func (s *Solver) Solve(base []geom.Vec3, faces []geom.Face, fixed []int, targets []geom.Vec3, exponent int) ([]geom.Vec3, error) {
	n := len(base)
	if len(targets) != len(fixed) {
		return nil, fmt.Errorf("%w: %d fixed vertices but %d targets", solver.ErrInvalidInput, len(fixed), len(targets))
	}
	if err := solver.ValidateProblem(n, faces, fixed, targets); err != nil {
		return nil, err
	}
	if exponent < 1 {
		return nil, fmt.Errorf("%w: exponent %d", solver.ErrInvalidInput, exponent)
	}
	if len(fixed) == 0 {
		return nil, fmt.Errorf("%w: no fixed vertices", solver.ErrDegenerateBoundary)
	}

	start := time.Now()
	q := power(laplacian(adjacency(n, faces)), exponent)
	free := freeIndices(n, fixed)

	out := make([]geom.Vec3, n)
	for j, i := range fixed {
		out[i] = targets[j]
	}
	if len(free) > 0 {
		quu, qub := split(q, free, fixed)
		chol, err := s.factorize(quu)
		if err != nil {
			return nil, err
		}
		var rhs mat.Dense
		rhs.Mul(qub, toDense(targets))
		rhs.Scale(-1, &rhs)

		var xu mat.Dense
		if err := chol.SolveTo(&xu, &rhs); err != nil {
			return nil, fmt.Errorf("%w: %v", solver.ErrSingular, err)
		}
		for a, i := range free {
			out[i] = geom.Vec3{X: float32(xu.At(a, 0)), Y: float32(xu.At(a, 1)), Z: float32(xu.At(a, 2))}
		}
	}
	if err := checkFinite(out); err != nil {
		return nil, err
	}

	logger.Logger().Debug("harmonic solve",
		"vertices", n, "fixed", len(fixed), "exponent", exponent, "elapsed", time.Since(start))
	return out, nil
}

// factorize returns the Cholesky factor of a, rejecting matrices that are
// not positive definite or too badly conditioned to trust.
func (s *Solver) factorize(a *mat.SymDense) (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("%w: constrained system is not positive definite", solver.ErrSingular)
	}
	if c := chol.Cond(); math.IsNaN(c) || c > s.maxCondition {
		return nil, fmt.Errorf("%w: condition number %.3g", solver.ErrSingular, c)
	}
	return &chol, nil
}

// adjacency returns the sorted neighbour list of every vertex.
func adjacency(n int, faces []geom.Face) [][]int {
	adj := make([][]int, n)
	for _, f := range faces {
		for e := 0; e < 3; e++ {
			a, b := int(f[e]), int(f[(e+1)%3])
			if a == b {
				continue
			}
			adj[a] = append(adj[a], b)
			adj[b] = append(adj[b], a)
		}
	}
	for i := range adj {
		slices.Sort(adj[i])
		adj[i] = slices.Compact(adj[i])
	}
	return adj
}

// laplacian builds the uniform graph Laplacian: degree on the diagonal,
// -1 per edge.
func laplacian(adj [][]int) *mat.SymDense {
	l := mat.NewSymDense(len(adj), nil)
	for i, nb := range adj {
		l.SetSym(i, i, float64(len(nb)))
		for _, j := range nb {
			if j > i {
				l.SetSym(i, j, -1)
			}
		}
	}
	return l
}

func power(l *mat.SymDense, k int) *mat.SymDense {
	if k == 1 {
		return l
	}
	n, _ := l.Dims()
	acc := mat.DenseCopyOf(l)
	for range k - 1 {
		next := mat.NewDense(n, n, nil)
		next.Mul(acc, l)
		acc = next
	}
	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			q.SetSym(i, j, acc.At(i, j))
		}
	}
	return q
}

func freeIndices(n int, fixed []int) []int {
	pinned := make([]bool, n)
	for _, i := range fixed {
		pinned[i] = true
	}
	free := make([]int, 0, n-len(fixed))
	for i := range pinned {
		if !pinned[i] {
			free = append(free, i)
		}
	}
	return free
}

// split extracts the free/free block and the free/fixed block of m.
func split(m mat.Symmetric, free, fixed []int) (*mat.SymDense, *mat.Dense) {
	uu := mat.NewSymDense(len(free), nil)
	ub := mat.NewDense(len(free), len(fixed), nil)
	for a, i := range free {
		for b := a; b < len(free); b++ {
			uu.SetSym(a, b, m.At(i, free[b]))
		}
		for c, j := range fixed {
			ub.Set(a, c, m.At(i, j))
		}
	}
	return uu, ub
}

// toDense lays points out as an n x 3 matrix.
func toDense(points []geom.Vec3) *mat.Dense {
	d := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		d.Set(i, 0, float64(p.X))
		d.Set(i, 1, float64(p.Y))
		d.Set(i, 2, float64(p.Z))
	}
	return d
}

func toR3(points []geom.Vec3) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = r3.Vec{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
	}
	return out
}

func fromR3(points []r3.Vec) []geom.Vec3 {
	out := make([]geom.Vec3, len(points))
	for i, p := range points {
		out[i] = geom.Vec3{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
	}
	return out
}

func checkFinite(points []geom.Vec3) error {
	for i, p := range points {
		if !p.IsFinite() {
			return fmt.Errorf("%w: vertex %d is not finite", solver.ErrNumerical, i)
		}
	}
	return nil
}
