package dense

import (
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/solver"
)

// arapPrecomputation holds everything an ARAP solve needs that depends
// only on the rest pose and the fixed set.
type arapPrecomputation struct {
	fixed     []int
	free      []int
	adj       [][]int
	rest      []r3.Vec
	chol      *mat.Cholesky // factor of L_uu, nil when every vertex is fixed
	lub       *mat.Dense
	maxIter   int
	tolerance float64
}

func (p *arapPrecomputation) Fixed() []int { return p.fixed }

// Precompute factors the free block of the Laplacian for the given fixed
// set. The factor is reused by every SolveWithState call.
func (s *Solver) Precompute(base []geom.Vec3, faces []geom.Face, fixed []int, maxIterations int) (solver.Precomputation, error) {
	n := len(base)
	if err := solver.ValidateProblem(n, faces, fixed, nil); err != nil {
		return nil, err
	}
	if len(fixed) == 0 {
		return nil, fmt.Errorf("%w: no fixed vertices", solver.ErrDegenerateBoundary)
	}
	if maxIterations < 1 {
		return nil, fmt.Errorf("%w: max iterations %d", solver.ErrInvalidInput, maxIterations)
	}

	start := time.Now()
	adj := adjacency(n, faces)
	p := &arapPrecomputation{
		fixed:     slices.Clone(fixed),
		free:      freeIndices(n, fixed),
		adj:       adj,
		rest:      toR3(base),
		maxIter:   maxIterations,
		tolerance: s.tolerance,
	}
	if len(p.free) > 0 {
		luu, lub := split(laplacian(adj), p.free, p.fixed)
		chol, err := s.factorize(luu)
		if err != nil {
			return nil, err
		}
		p.chol, p.lub = chol, lub
	}

	logger.Logger().Debug("arap precompute",
		"vertices", n, "fixed", len(fixed), "elapsed", time.Since(start))
	return p, nil
}

// SolveWithState alternates the local step (best rotation per vertex) and
// the global step (linear solve for positions) starting from base, until
// the iteration cap or the tolerance is reached. Running out of iterations
// is not an error; the last iterate is returned.
func (s *Solver) SolveWithState(targets []geom.Vec3, state solver.Precomputation, base []geom.Vec3) ([]geom.Vec3, error) {
	p, ok := state.(*arapPrecomputation)
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: precomputation %T was not built by this backend", solver.ErrInvalidInput, state)
	}
	if len(base) != len(p.rest) {
		return nil, fmt.Errorf("%w: %d base positions for %d vertices", solver.ErrInvalidInput, len(base), len(p.rest))
	}
	if len(targets) != len(p.fixed) {
		return nil, fmt.Errorf("%w: %d fixed vertices but %d targets", solver.ErrInvalidInput, len(p.fixed), len(targets))
	}

	start := time.Now()
	x := toR3(base)
	pinned := toR3(targets)
	rot := make([]*mat.Dense, len(x))

	iter, delta := 0, 0.0
	for iter < p.maxIter {
		iter++
		if err := p.rotations(x, rot); err != nil {
			return nil, err
		}
		next, err := p.positions(rot, pinned)
		if err != nil {
			return nil, err
		}
		delta = 0
		for i := range next {
			delta = max(delta, r3.Norm(r3.Sub(next[i], x[i])))
		}
		x = next
		if delta < p.tolerance {
			break
		}
	}

	out := fromR3(x)
	if err := checkFinite(out); err != nil {
		return nil, err
	}
	logger.Logger().Debug("arap solve",
		"iterations", iter, "delta", delta, "elapsed", time.Since(start))
	return out, nil
}

// rotations runs the local step: for every vertex, the rotation that best
// maps its rest edges onto the edges of x.
func (p *arapPrecomputation) rotations(x []r3.Vec, rot []*mat.Dense) error {
	return solver.Parallel(len(x), func(i int) error {
		cov := mat.NewDense(3, 3, nil)
		for _, j := range p.adj[i] {
			e := r3.Sub(p.rest[i], p.rest[j])
			d := r3.Sub(x[i], x[j])
			ev := [3]float64{e.X, e.Y, e.Z}
			dv := [3]float64{d.X, d.Y, d.Z}
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					cov.Set(r, c, cov.At(r, c)+ev[r]*dv[c])
				}
			}
		}

		var svd mat.SVD
		if ok := svd.Factorize(cov, mat.SVDFull); !ok {
			return fmt.Errorf("%w: rotation fit failed at vertex %d", solver.ErrNumerical, i)
		}
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)

		r := mat.NewDense(3, 3, nil)
		r.Mul(&v, u.T())
		if mat.Det(r) < 0 {
			// Reflection: flip the axis of the smallest singular value.
			for k := 0; k < 3; k++ {
				v.Set(k, 2, -v.At(k, 2))
			}
			r.Mul(&v, u.T())
		}
		rot[i] = r
		return nil
	})
}

// positions runs the global step: solve L x = b with the fixed rows pinned,
// where b_i sums (R_i + R_j)/2 applied to each rest edge.
func (p *arapPrecomputation) positions(rot []*mat.Dense, pinned []r3.Vec) ([]r3.Vec, error) {
	out := make([]r3.Vec, len(p.rest))
	for j, i := range p.fixed {
		out[i] = pinned[j]
	}
	if len(p.free) == 0 {
		return out, nil
	}

	var avg mat.Dense
	rhs := mat.NewDense(len(p.free), 3, nil)
	for a, i := range p.free {
		var b r3.Vec
		for _, j := range p.adj[i] {
			avg.Add(rot[i], rot[j])
			e := r3.Sub(p.rest[i], p.rest[j])
			b = r3.Add(b, r3.Scale(0.5, r3.Vec{
				X: avg.At(0, 0)*e.X + avg.At(0, 1)*e.Y + avg.At(0, 2)*e.Z,
				Y: avg.At(1, 0)*e.X + avg.At(1, 1)*e.Y + avg.At(1, 2)*e.Z,
				Z: avg.At(2, 0)*e.X + avg.At(2, 1)*e.Y + avg.At(2, 2)*e.Z,
			}))
		}
		rhs.Set(a, 0, b.X)
		rhs.Set(a, 1, b.Y)
		rhs.Set(a, 2, b.Z)
	}

	xb := mat.NewDense(len(p.fixed), 3, nil)
	for c, v := range pinned {
		xb.Set(c, 0, v.X)
		xb.Set(c, 1, v.Y)
		xb.Set(c, 2, v.Z)
	}
	var coupling mat.Dense
	coupling.Mul(p.lub, xb)
	rhs.Sub(rhs, &coupling)

	var xu mat.Dense
	if err := p.chol.SolveTo(&xu, rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", solver.ErrSingular, err)
	}
	for a, i := range p.free {
		out[i] = r3.Vec{X: xu.At(a, 0), Y: xu.At(a, 1), Z: xu.At(a, 2)}
	}
	return out, nil
}
