// Package mesh is the incremental mesh-edit state engine. A State owns a
// copy of the host's geometry plus a 32-channel selection word per vertex,
// and keeps the caches derived from them (channel counts, colors, the
// deformation boundary) consistent through dirty flags. Hosts mutate a
// State through selection, transform and deformation calls and then call
// Sync once per edit cycle to push the changed buffers back.
//
// A State is not safe for concurrent use. Distinct States may be driven
// from different goroutines.
package mesh

import (
	"slices"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/solver"
)

// DefaultArapIterations caps each ARAP solve unless WithArapIterations
// says otherwise.
const DefaultArapIterations = 100

// State is the editable state of one loaded mesh.
type State struct {
	name string
	buf  Buffers
	rest []geom.Vec3 // V0

	sel           []Mask
	counts        [MaxChannels]uint32
	total         uint32
	channelsInUse int

	dirty    DirtyFlag
	dirtySel Mask
	resized  Mask

	boundary  boundaryCache
	arap      solver.Precomputation
	lastSolve solveKind

	solver         solver.Solver
	arapIterations int

	palette    []geom.Color
	background geom.Color
	shade      shadeState

	disposed bool
}

// Option configures a State at creation.
type Option func(*State)

// WithSolver sets the deformation backend. Without one, Harmonic and Arap
// report ErrStateInconsistency.
func WithSolver(s solver.Solver) Option {
	return func(st *State) { st.solver = s }
}

// WithPalette replaces the channel palette. The slice is copied.
func WithPalette(p []geom.Color) Option {
	return func(st *State) { st.palette = slices.Clone(p) }
}

// WithBackground sets the color of vertices in no visible channel.
func WithBackground(c geom.Color) Option {
	return func(st *State) { st.background = c }
}

// WithArapIterations sets the ARAP iteration cap.
func WithArapIterations(n int) Option {
	return func(st *State) { st.arapIterations = n }
}

// WithName labels the state in log output.
func WithName(name string) Option {
	return func(st *State) { st.name = name }
}

// New copies host into a new State. V0 is snapshot from the host
// positions, every channel starts dirty and the boundary conditions start
// stale.
func New(host *HostBuffers, opts ...Option) (*State, error) {
	const op = "New"
	if host == nil {
		return nil, invalidArgument(op, "nil host buffers")
	}
	if err := host.checkSource(); err != nil {
		return nil, &Error{Op: op, Kind: ErrInvalidArgument, Err: err}
	}

	s := &State{
		channelsInUse:  1,
		arapIterations: DefaultArapIterations,
		palette:        defaultPalette,
		background:     DefaultBackground,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.palette) == 0 {
		return nil, invalidArgument(op, "empty palette")
	}
	if s.arapIterations < 1 {
		return nil, invalidArgument(op, "arap iterations %d, need at least 1", s.arapIterations)
	}

	s.buf = host.buffers()
	s.rest = slices.Clone(s.buf.V)
	s.sel = make([]Mask, host.VertexCount)
	s.dirtySel = AllChannels
	s.boundary.conditionsStale = true

	logger.Logger().Info("mesh loaded",
		"name", s.name, "vertices", host.VertexCount, "faces", host.FaceCount)
	return s, nil
}

// Dispose releases the buffers and caches. Every later call that can fail
// returns ErrStateInconsistency; accessors return zero values. Disposing
// twice is a no-op.
func (s *State) Dispose() {
	if s == nil || s.disposed {
		return
	}
	s.disposed = true
	s.buf = Buffers{}
	s.rest = nil
	s.sel = nil
	s.boundary = boundaryCache{}
	s.arap = nil
	logger.Logger().Info("mesh disposed", "name", s.name)
}

// check guards every fallible entry point.
func (s *State) check(op string) error {
	if s == nil || s.disposed {
		return &Error{Op: op, Kind: ErrStateInconsistency, Err: errDisposed}
	}
	return nil
}

func (s *State) live() bool { return s != nil && !s.disposed }

// Name returns the label given with WithName.
func (s *State) Name() string { return s.name }

// VertexCount returns the number of vertices.
func (s *State) VertexCount() int {
	if !s.live() {
		return 0
	}
	return len(s.buf.V)
}

// FaceCount returns the number of triangles.
func (s *State) FaceCount() int {
	if !s.live() {
		return 0
	}
	return len(s.buf.F)
}

// Positions returns a copy of V.
func (s *State) Positions() []geom.Vec3 {
	if !s.live() {
		return nil
	}
	return slices.Clone(s.buf.V)
}

// Normals returns a copy of N.
func (s *State) Normals() []geom.Vec3 {
	if !s.live() {
		return nil
	}
	return slices.Clone(s.buf.N)
}

// Colors returns a copy of C.
func (s *State) Colors() []geom.Color {
	if !s.live() {
		return nil
	}
	return slices.Clone(s.buf.C)
}

// Faces returns a copy of F.
func (s *State) Faces() []geom.Face {
	if !s.live() {
		return nil
	}
	return slices.Clone(s.buf.F)
}

// Selection returns a copy of the per-vertex selection words.
func (s *State) Selection() []Mask {
	if !s.live() {
		return nil
	}
	return slices.Clone(s.sel)
}

// RestPose returns a copy of V0.
func (s *State) RestPose() []geom.Vec3 {
	if !s.live() {
		return nil
	}
	return slices.Clone(s.rest)
}

// ChannelCount returns the cached member count of ch as of the last Sync.
func (s *State) ChannelCount(ch Channel) uint32 {
	if !s.live() || !ch.Valid() {
		return 0
	}
	return s.counts[ch]
}

// TotalSelected returns the number of vertices in at least one channel as
// of the last Sync.
func (s *State) TotalSelected() uint32 {
	if !s.live() {
		return 0
	}
	return s.total
}

// Dirty returns the pending dirty flags.
func (s *State) Dirty() DirtyFlag { return s.dirty }

// DirtySelections returns the channels changed since the last Sync.
func (s *State) DirtySelections() Mask { return s.dirtySel }

// ResizedChannels returns the channels whose count changed in the last
// Sync.
func (s *State) ResizedChannels() Mask { return s.resized }

// ChannelsInUse returns how many channels, counting from 0, the color
// shader considers.
func (s *State) ChannelsInUse() int { return s.channelsInUse }

// SetChannelsInUse sets how many channels the color shader considers.
func (s *State) SetChannelsInUse(n int) error {
	const op = "SetChannelsInUse"
	if err := s.check(op); err != nil {
		return err
	}
	if n < 1 || n > MaxChannels {
		return invalidArgument(op, "channels in use %d outside [1,%d]", n, MaxChannels)
	}
	s.channelsInUse = n
	return nil
}

// MarkDirty ORs flags into the dirty state, forcing the named buffers to be
// copied on the next Sync or suppressing host recomputations for it.
// PositionsChanged marks the boundary conditions stale;
// PositionsChangedExclBoundary does not.
func (s *State) MarkDirty(flags DirtyFlag) error {
	const op = "MarkDirty"
	if err := s.check(op); err != nil {
		return err
	}
	if flags&^allFlags != 0 {
		return invalidArgument(op, "unknown dirty bits %s", flags&^allFlags)
	}
	s.dirty |= flags
	if flags&PositionsChanged != 0 {
		s.boundary.conditionsStale = true
	}
	return nil
}

// ReplaceFaces swaps the triangle list. The ARAP precomputation depends on
// connectivity and is dropped.
func (s *State) ReplaceFaces(faces []geom.Face) error {
	const op = "ReplaceFaces"
	if err := s.check(op); err != nil {
		return err
	}
	n := len(s.buf.V)
	for i, f := range faces {
		for _, v := range f {
			if int(v) >= n {
				return invalidArgument(op, "face %d references vertex %d of %d", i, v, n)
			}
		}
	}
	s.buf.F = slices.Clone(faces)
	s.dirty |= FacesChanged
	s.arap = nil
	s.lastSolve = solveNone
	return nil
}
