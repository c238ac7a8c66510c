// Package config loads meshedit settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"

	"github.com/chazu/meshedit/pkg/geom"
	"github.com/chazu/meshedit/pkg/mesh"
	"github.com/chazu/meshedit/pkg/meshio"
	"github.com/chazu/meshedit/pkg/solver/dense"
)

// Config is the full settings tree. The zero value is not valid; start
// from Default.
type Config struct {
	Log    LogConfig    `toml:"log"`
	Solver SolverConfig `toml:"solver"`
	Colors ColorConfig  `toml:"colors"`
	Import ImportConfig `toml:"import"`
	Script ScriptConfig `toml:"script"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type SolverConfig struct {
	// Workers sizes the solver pool; 0 picks a size from the CPU count.
	Workers           int     `toml:"workers"`
	ArapMaxIterations int     `toml:"arap_max_iterations"`
	Tolerance         float64 `toml:"tolerance"`
}

// ColorConfig overrides the channel palette. Empty values keep the
// built-in colors.
type ColorConfig struct {
	Palette    []string `toml:"palette,omitempty"`
	Background string   `toml:"background,omitempty"`
}

type ImportConfig struct {
	Center    bool    `toml:"center"`
	Normalize bool    `toml:"normalize"`
	Scale     float32 `toml:"scale"`
}

type ScriptConfig struct {
	Timeout Duration `toml:"timeout"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Solver: SolverConfig{
			ArapMaxIterations: mesh.DefaultArapIterations,
			Tolerance:         dense.DefaultTolerance,
		},
		Import: ImportConfig{Center: true, Normalize: true, Scale: 1},
		Script: ScriptConfig{Timeout: Duration(5 * time.Second)},
	}
}

// Load reads path over the defaults, so keys missing from the file keep
// their default values. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML from r over the defaults and validates the result.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks ranges and parses every color.
func (c *Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Solver.Workers < 0 {
		errs = append(errs, fmt.Errorf("solver.workers must be >= 0, got %d", c.Solver.Workers))
	}
	if c.Solver.ArapMaxIterations < 1 {
		errs = append(errs, fmt.Errorf("solver.arap_max_iterations must be >= 1, got %d", c.Solver.ArapMaxIterations))
	}
	if !(c.Solver.Tolerance > 0) {
		errs = append(errs, fmt.Errorf("solver.tolerance must be > 0, got %g", c.Solver.Tolerance))
	}
	if !(c.Import.Scale > 0) {
		errs = append(errs, fmt.Errorf("import.scale must be > 0, got %g", c.Import.Scale))
	}
	if c.Script.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("script.timeout must be positive, got %s", time.Duration(c.Script.Timeout)))
	}
	if _, err := c.Palette(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Background(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	l, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Palette returns the configured channel colors, or the built-in palette
// when none are set.
func (c *Config) Palette() ([]geom.Color, error) {
	if len(c.Colors.Palette) == 0 {
		return mesh.DefaultPalette(), nil
	}
	out := make([]geom.Color, len(c.Colors.Palette))
	for i, s := range c.Colors.Palette {
		col, err := parseHex(s)
		if err != nil {
			return nil, fmt.Errorf("colors.palette[%d]: %w", i, err)
		}
		out[i] = col
	}
	return out, nil
}

// Background returns the configured background color, or the built-in one.
func (c *Config) Background() (geom.Color, error) {
	if c.Colors.Background == "" {
		return mesh.DefaultBackground, nil
	}
	col, err := parseHex(c.Colors.Background)
	if err != nil {
		return geom.Color{}, fmt.Errorf("colors.background: %w", err)
	}
	return col, nil
}

func parseHex(s string) (geom.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return geom.Color{}, err
	}
	return geom.Color{R: float32(c.R), G: float32(c.G), B: float32(c.B), A: 1}, nil
}

// HexColor formats c the way the palette keys expect. Alpha is dropped.
func HexColor(c geom.Color) string {
	return colorful.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B)}.Clamped().Hex()
}

// MeshOptions turns the color and solver settings into state options.
func (c *Config) MeshOptions() ([]mesh.Option, error) {
	palette, err := c.Palette()
	if err != nil {
		return nil, err
	}
	bg, err := c.Background()
	if err != nil {
		return nil, err
	}
	return []mesh.Option{
		mesh.WithPalette(palette),
		mesh.WithBackground(bg),
		mesh.WithArapIterations(c.Solver.ArapMaxIterations),
	}, nil
}

// ImportOptions returns the mesh import settings.
func (c *Config) ImportOptions() meshio.ImportOptions {
	return meshio.ImportOptions{
		CenterToMean: c.Import.Center,
		Normalize:    c.Import.Normalize,
		Scale:        c.Import.Scale,
	}
}

// ScriptTimeout returns the script evaluation budget.
func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.Script.Timeout)
}

// DenseOptions returns the settings of the built-in solver backend.
func (c *Config) DenseOptions() dense.Options {
	return dense.Options{Tolerance: c.Solver.Tolerance}
}
