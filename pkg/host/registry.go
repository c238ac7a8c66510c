// Package host is the handle-based surface a host application drives the
// engine through. The host never holds a *mesh.State; it holds an opaque
// Handle and passes it back with every call.
package host

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/mesh"
)

// Handle identifies a live mesh state. The zero Handle is never issued.
type Handle struct {
	id uuid.UUID
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.id == uuid.Nil }

func (h Handle) String() string { return h.id.String() }

// ParseHandle reads back a handle printed by Handle.String.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, fmt.Errorf("parse handle: %w", err)
	}
	return Handle{id: id}, nil
}

// Registry owns the mesh states created through it. It is safe for
// concurrent use; the states themselves are not, so a host drives each
// handle from one goroutine at a time.
type Registry struct {
	mu     sync.Mutex
	states map[Handle]*mesh.State
	opts   []mesh.Option
}

// NewRegistry creates an empty registry. opts apply to every state it
// creates, before the per-call options.
func NewRegistry(opts ...mesh.Option) *Registry {
	return &Registry{states: make(map[Handle]*mesh.State), opts: opts}
}

// Create loads buffers into a new state and returns its handle.
func (r *Registry) Create(buffers *mesh.HostBuffers, opts ...mesh.Option) (Handle, error) {
	all := append(append([]mesh.Option(nil), r.opts...), opts...)
	s, err := mesh.New(buffers, all...)
	if err != nil {
		return Handle{}, err
	}
	h := Handle{id: uuid.New()}

	r.mu.Lock()
	r.states[h] = s
	n := len(r.states)
	r.mu.Unlock()

	logger.Logger().Debug("handle created", "handle", h, "live", n)
	return h, nil
}

// Get returns the state behind h.
func (r *Registry) Get(h Handle) (*mesh.State, error) {
	r.mu.Lock()
	s, ok := r.states[h]
	r.mu.Unlock()
	if !ok {
		return nil, unknownHandle("Get", h)
	}
	return s, nil
}

// Dispose releases the state behind h. Disposing an unknown or already
// disposed handle is an error.
func (r *Registry) Dispose(h Handle) error {
	r.mu.Lock()
	s, ok := r.states[h]
	delete(r.states, h)
	r.mu.Unlock()
	if !ok {
		return unknownHandle("Dispose", h)
	}
	s.Dispose()
	return nil
}

// DisposeAll releases every state, as a plugin unload would.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	states := r.states
	r.states = make(map[Handle]*mesh.State)
	r.mu.Unlock()
	for _, s := range states {
		s.Dispose()
	}
}

// ApplyDirty runs Sync on the state behind h, writing into dst.
func (r *Registry) ApplyDirty(h Handle, dst *mesh.HostBuffers, visible mesh.Mask) (mesh.SyncReport, error) {
	s, err := r.Get(h)
	if err != nil {
		return mesh.SyncReport{}, err
	}
	return s.Sync(dst, visible)
}

// SelectSphere forwards to mesh.State.SelectSphere.
func (r *Registry) SelectSphere(h Handle, center geom.Vec3, radius float32, ch mesh.Channel, mode mesh.Mode) error {
	s, err := r.Get(h)
	if err != nil {
		return err
	}
	return s.SelectSphere(center, radius, ch, mode)
}

// Harmonic forwards to mesh.State.Harmonic.
func (r *Registry) Harmonic(h Handle, mask mesh.Mask, showDisplacementField bool) (bool, error) {
	s, err := r.Get(h)
	if err != nil {
		return false, err
	}
	return s.Harmonic(mask, showDisplacementField)
}

// Arap forwards to mesh.State.Arap.
func (r *Registry) Arap(h Handle, mask mesh.Mask) (bool, error) {
	s, err := r.Get(h)
	if err != nil {
		return false, err
	}
	return s.Arap(mask)
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Handles lists the live handles in a stable order.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	out := make([]Handle, 0, len(r.states))
	for h := range r.states {
		out = append(out, h)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func unknownHandle(op string, h Handle) error {
	if h.IsZero() {
		return &mesh.Error{Op: op, Kind: mesh.ErrStateInconsistency, Err: fmt.Errorf("zero handle")}
	}
	return &mesh.Error{Op: op, Kind: mesh.ErrStateInconsistency, Err: fmt.Errorf("unknown handle %s", h)}
}
