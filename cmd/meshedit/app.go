package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chazu/meshedit/pkg/config"
	"github.com/chazu/meshedit/pkg/engine"
	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/host"
	"github.com/chazu/meshedit/pkg/kernel"
	"github.com/chazu/meshedit/pkg/kernel/manifold"
	"github.com/chazu/meshedit/pkg/kernel/sdfx"
	"github.com/chazu/meshedit/pkg/logger"
	"github.com/chazu/meshedit/pkg/mesh"
	"github.com/chazu/meshedit/pkg/meshio"
	"github.com/chazu/meshedit/pkg/solver"
	"github.com/chazu/meshedit/pkg/solver/dense"
	"github.com/chazu/meshedit/pkg/tessellate"
)

// App wires the engine pieces together for the command line. It plays
// the host: it owns the registry, loads meshes into it and keeps one host
// buffer per handle for Sync to write into.
type App struct {
	cfg      *config.Config
	engine   *engine.Engine
	kernel   kernel.Kernel
	registry *host.Registry
	buffers  map[host.Handle]*mesh.HostBuffers
	tess     tessellate.Options
}

// MeshInfo summarizes a loaded mesh.
type MeshInfo struct {
	Handle    string     `json:"handle"`
	Name      string     `json:"name"`
	Vertices  int        `json:"vertices"`
	Faces     int        `json:"faces"`
	BoundsMin [3]float32 `json:"boundsMin"`
	BoundsMax [3]float32 `json:"boundsMax"`
	Selected  uint32     `json:"selected"`
	Channels  []uint32   `json:"channelCounts,omitempty"`
}

// EvalErrorData is a JSON-serializable script error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ReportData is a JSON-serializable sync report.
type ReportData struct {
	Copied           string `json:"copied"`
	Pending          string `json:"pending"`
	CountsRecomputed bool   `json:"countsRecomputed"`
	ColorsRecomputed bool   `json:"colorsRecomputed"`
	Resized          []int  `json:"resized,omitempty"`
	RecomputeNormals bool   `json:"recomputeNormals"`
	RecomputeBounds  bool   `json:"recomputeBounds"`
}

// RunResult is what the run command prints.
type RunResult struct {
	Value  string          `json:"value,omitempty"`
	Report ReportData      `json:"report"`
	Errors []EvalErrorData `json:"errors"`
	Info   MeshInfo        `json:"info"`
}

// NewApp builds an App from cfg. The solver pool is process-wide and is
// started separately with startRuntime.
func NewApp(cfg *config.Config) (*App, error) {
	opts, err := cfg.MeshOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, mesh.WithSolver(dense.New(cfg.DenseOptions())))
	return &App{
		cfg:      cfg,
		engine:   engine.New(engine.Options{Timeout: cfg.ScriptTimeout()}),
		kernel:   sdfx.New(),
		registry: host.NewRegistry(opts...),
		buffers:  make(map[host.Handle]*mesh.HostBuffers),
		tess:     tessellate.DefaultOptions(),
	}, nil
}

// kernelByName picks the geometry backend for procedural meshes.
func kernelByName(name string) (kernel.Kernel, error) {
	switch strings.ToLower(name) {
	case "", "sdfx":
		return sdfx.New(), nil
	case "manifold":
		return manifold.New()
	default:
		return nil, fmt.Errorf("unknown kernel %q (want sdfx or manifold)", name)
	}
}

// Close releases every mesh.
func (a *App) Close() {
	a.registry.DisposeAll()
}

// startRuntime installs the logger and starts the solver pool for the
// process. stopRuntime undoes it.
func startRuntime(cfg *config.Config, log *slog.Logger) error {
	logger.SetLogger(log)
	if err := solver.Init(cfg.Solver.Workers); err != nil {
		return fmt.Errorf("solver pool: %w", err)
	}
	return nil
}

func stopRuntime() {
	solver.Shutdown()
	logger.SetLogger(nil)
}

// LoadMesh reads a mesh file and registers it.
func (a *App) LoadMesh(path string) (host.Handle, error) {
	h, err := meshio.ReadMeshFile(path, a.cfg.ImportOptions())
	if err != nil {
		return host.Handle{}, err
	}
	return a.add(h, path)
}

// LoadPrimitive tessellates a shape description and registers the result.
func (a *App) LoadPrimitive(desc string) (host.Handle, error) {
	h, err := tessellate.Primitive(a.kernel, desc, a.tess)
	if err != nil {
		return host.Handle{}, err
	}
	return a.add(h, desc)
}

func (a *App) add(buffers *mesh.HostBuffers, name string) (host.Handle, error) {
	handle, err := a.registry.Create(buffers, mesh.WithName(name))
	if err != nil {
		return host.Handle{}, err
	}
	// The loaded buffers become the host copy Sync writes back into.
	a.buffers[handle] = buffers
	return handle, nil
}

// Run evaluates source against the mesh behind h, then syncs with the
// visible mask so the host copy reflects the script's edits.
func (a *App) Run(h host.Handle, source string, visible mesh.Mask) (RunResult, error) {
	result := RunResult{Errors: []EvalErrorData{}}
	s, err := a.registry.Get(h)
	if err != nil {
		return result, err
	}

	res, evalErrs, err := a.engine.Evaluate(source, engine.NewSession(s, a.buffers[h]))
	if err != nil {
		return result, err
	}
	for _, e := range evalErrs {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
	}
	result.Value = res.Value

	rep, err := a.registry.ApplyDirty(h, a.buffers[h], visible)
	if err != nil {
		return result, err
	}
	if res.Synced && rep.Empty() {
		rep = res.Report
	}
	result.Report = reportData(rep)
	result.Info, err = a.Info(h)
	return result, err
}

func reportData(r mesh.SyncReport) ReportData {
	d := ReportData{
		Copied:           r.Copied.String(),
		Pending:          r.Pending.String(),
		CountsRecomputed: r.CountsRecomputed,
		ColorsRecomputed: r.ColorsRecomputed,
		RecomputeNormals: r.RecomputeNormals(),
		RecomputeBounds:  r.RecomputeBounds(),
	}
	for _, ch := range r.Resized.Channels() {
		d.Resized = append(d.Resized, int(ch))
	}
	return d
}

// Info summarizes the mesh behind h.
func (a *App) Info(h host.Handle) (MeshInfo, error) {
	s, err := a.registry.Get(h)
	if err != nil {
		return MeshInfo{}, err
	}
	info := MeshInfo{
		Handle:   h.String(),
		Name:     s.Name(),
		Vertices: s.VertexCount(),
		Faces:    s.FaceCount(),
		Selected: s.TotalSelected(),
	}
	if lo, hi, ok := geom.Bounds(s.Positions()); ok {
		info.BoundsMin = [3]float32{lo.X, lo.Y, lo.Z}
		info.BoundsMax = [3]float32{hi.X, hi.Y, hi.Z}
	}
	if info.Selected > 0 {
		for ch := 0; ch < s.ChannelsInUse(); ch++ {
			info.Channels = append(info.Channels, s.ChannelCount(mesh.Channel(ch)))
		}
	}
	return info, nil
}

// parseVisible reads "all" or a comma-separated channel list.
func parseVisible(s string) (mesh.Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return mesh.AllChannels, nil
	}
	var chans []mesh.Channel
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n >= mesh.MaxChannels {
			return 0, fmt.Errorf("bad channel %q in visible list", part)
		}
		chans = append(chans, mesh.Channel(n))
	}
	return mesh.MaskOf(chans...), nil
}
