//go:build !manifold

// Package manifold is a geometry backend on the Manifold library. Without
// the "manifold" build tag only this stub is compiled and New fails.
//
// Build with: go build -tags=manifold
package manifold

import (
	"errors"

	"github.com/chazu/meshedit/pkg/kernel"
)

// ErrUnavailable is returned by New in builds without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// New reports ErrUnavailable.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
