package solver

import (
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/meshedit/pkg/logger"
)

// ErrPoolClosed is returned by Init after Shutdown.
var ErrPoolClosed = errors.New("solver pool already shut down")

type poolState int

const (
	poolIdle poolState = iota
	poolRunning
	poolClosed
)

// pool is the only process-wide mutable state of the engine. It is
// configured once by the entry point and torn down once at exit.
var pool struct {
	mu      sync.Mutex
	state   poolState
	workers int
}

// DefaultWorkers leaves two cores for the host's main and render threads.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-2)
}

// Init configures the worker pool. workers <= 0 selects DefaultWorkers.
// Only the first call has an effect; later calls are no-ops. Calling Init
// after Shutdown returns ErrPoolClosed.
func Init(workers int) error {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	switch pool.state {
	case poolRunning:
		return nil
	case poolClosed:
		return ErrPoolClosed
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	pool.workers = workers
	pool.state = poolRunning
	logger.Logger().Info("solver pool initialized", "workers", workers)
	return nil
}

// Shutdown tears the pool down. Work already running completes; later
// Parallel calls run serially. Safe to call more than once.
func Shutdown() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.state == poolRunning {
		logger.Logger().Info("solver pool shut down")
	}
	pool.state = poolClosed
	pool.workers = 0
}

// Workers returns the configured worker count, or 0 when the pool is not
// running.
func Workers() int {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return pool.workers
}

// Parallel calls fn(i) for every i in [0, n), splitting the range into one
// contiguous chunk per worker. It returns the first error. Without a
// running pool the loop runs on the calling goroutine.
func Parallel(n int, fn func(i int) error) error {
	workers := Workers()
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		lo, hi := start, min(start+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
