package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/meshedit/pkg/config"
	"github.com/chazu/meshedit/pkg/mesh"
	"github.com/chazu/meshedit/pkg/tessellate"
)

const pullScript = "../../examples/pull.zy"

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(config.Default())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	app.tess = tessellate.Options{Cells: 10}
	t.Cleanup(app.Close)
	return app
}

// TestRunPullExample drives the whole pipeline: tessellate a primitive,
// run the example script against it and read the synced host buffers.
func TestRunPullExample(t *testing.T) {
	app := newTestApp(t)
	h, err := app.LoadPrimitive("sphere:1")
	if err != nil {
		t.Fatalf("LoadPrimitive: %v", err)
	}
	before, err := app.Info(h)
	if err != nil {
		t.Fatal(err)
	}

	source, err := os.ReadFile(pullScript)
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	res, err := app.Run(h, string(source), mesh.MaskOf(0, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	if !strings.Contains(res.Report.Copied, "Positions") {
		t.Errorf("positions not copied, report %+v", res.Report)
	}
	if !res.Report.ColorsRecomputed {
		t.Error("colors not recomputed")
	}
	if res.Info.Selected == 0 || res.Value == "0" {
		t.Errorf("nothing selected: value %q, info %+v", res.Value, res.Info)
	}
	if len(res.Info.Channels) < 2 || res.Info.Channels[0] == 0 || res.Info.Channels[1] == 0 {
		t.Errorf("channel counts = %v, want both channels populated", res.Info.Channels)
	}

	// The top was pulled up, the pinned bottom stayed put.
	if got := res.Info.BoundsMax[1]; got < before.BoundsMax[1]+0.2 {
		t.Errorf("top at %v, want above %v", got, before.BoundsMax[1]+0.2)
	}
	if got := res.Info.BoundsMin[1]; got != before.BoundsMin[1] {
		t.Errorf("bottom moved from %v to %v", before.BoundsMin[1], got)
	}

	host := app.buffers[h]
	var top float32
	for i := 0; i < host.VertexCount; i++ {
		top = max(top, host.Positions[3*i+1])
	}
	if top != res.Info.BoundsMax[1] {
		t.Errorf("host copy top = %v, state top = %v", top, res.Info.BoundsMax[1])
	}
}

func TestRunReportsScriptErrors(t *testing.T) {
	app := newTestApp(t)
	h, err := app.LoadPrimitive("box:1,1,1")
	if err != nil {
		t.Fatal(err)
	}
	res, err := app.Run(h, "(select-sphere (vec3 0 0 0))", mesh.AllChannels)
	if err != nil {
		t.Fatalf("script errors must not be fatal: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected an eval error")
	}
	if res.Info.Selected != 0 {
		t.Errorf("selected = %d after failed script", res.Info.Selected)
	}
}

func TestRunEmptySource(t *testing.T) {
	app := newTestApp(t)
	h, err := app.LoadPrimitive("sphere:0.5")
	if err != nil {
		t.Fatal(err)
	}
	res, err := app.Run(h, "", mesh.AllChannels)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 0 || res.Value != "" {
		t.Errorf("unexpected result for empty source: %+v", res)
	}
	// The first sync still delivers the initial colors.
	if !res.Report.CountsRecomputed {
		t.Errorf("report = %+v, want counts recomputed", res.Report)
	}
}

func TestLoadMeshOFF(t *testing.T) {
	off := "OFF\n4 4 0\n0 0 0\n1 0 0\n0 1 0\n0 0 1\n3 0 2 1\n3 0 1 3\n3 0 3 2\n3 1 2 3\n"
	path := filepath.Join(t.TempDir(), "tetra.off")
	if err := os.WriteFile(path, []byte(off), 0o644); err != nil {
		t.Fatal(err)
	}
	app := newTestApp(t)
	h, err := app.LoadMesh(path)
	if err != nil {
		t.Fatalf("LoadMesh: %v", err)
	}
	info, err := app.Info(h)
	if err != nil {
		t.Fatal(err)
	}
	if info.Vertices != 4 || info.Faces != 4 || info.Name != path {
		t.Errorf("info = %+v", info)
	}
	// Import normalizes the height to one unit.
	if height := info.BoundsMax[1] - info.BoundsMin[1]; height < 0.99999 || height > 1.00001 {
		t.Errorf("height = %v, want 1", height)
	}

	if _, err := app.LoadMesh(filepath.Join(t.TempDir(), "none.off")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadPrimitiveErrors(t *testing.T) {
	app := newTestApp(t)
	for _, desc := range []string{"", "cone:1", "-sphere:1", "sphere:-1"} {
		if _, err := app.LoadPrimitive(desc); err == nil {
			t.Errorf("LoadPrimitive(%q): expected error", desc)
		}
	}
	if app.registry.Len() != 0 {
		t.Errorf("registry holds %d meshes after failures", app.registry.Len())
	}
}

func TestKernelByName(t *testing.T) {
	for _, name := range []string{"", "sdfx", "SDFX"} {
		if k, err := kernelByName(name); err != nil || k == nil {
			t.Errorf("kernelByName(%q) = %v, %v", name, k, err)
		}
	}
	if _, err := kernelByName("cgal"); err == nil {
		t.Error("expected error for unknown kernel")
	}
}

func TestParseVisible(t *testing.T) {
	tests := []struct {
		in      string
		want    mesh.Mask
		wantErr bool
	}{
		{in: "", want: mesh.AllChannels},
		{in: "all", want: mesh.AllChannels},
		{in: "ALL", want: mesh.AllChannels},
		{in: "0", want: 1},
		{in: "0, 2", want: 5},
		{in: "31", want: 1 << 31},
		{in: "32", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseVisible(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("parseVisible(%q) = %b, want %b", tt.in, got, tt.want)
			}
		})
	}
}

// TestRunCommand runs the CLI once end to end. The solver pool is
// process-wide and cannot be restarted, so this is the only test that
// goes through the root command's runtime hooks.
func TestRunCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{
		"run",
		"--config", "../../examples/meshedit.toml",
		"--primitive", "sphere:1",
		"--cells", "10",
		"--script", pullScript,
		"--visible", "0,1",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	var res RunResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout.String())
	}
	if len(res.Errors) != 0 || res.Info.Selected == 0 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(stderr.String(), "solver pool initialized") {
		t.Errorf("expected pool log on stderr, got %q", stderr.String())
	}
}

func TestCommandArgErrors(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	cmd.SetArgs([]string{"primitive"})
	if err := cmd.Execute(); err == nil {
		t.Error("primitive without a description should fail")
	}
}
