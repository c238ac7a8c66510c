// Command meshedit loads a mesh from a file or a procedural description,
// runs an edit script against it and reports what changed.
//
//	meshedit run --primitive sphere:1 --script pull.zy --visible 0,1
//	meshedit info --mesh bunny.off
//	meshedit primitive "box:2,2,2;-cylinder:3,0.5"
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/meshedit/pkg/config"
	"github.com/chazu/meshedit/pkg/host"
)

type flags struct {
	config    string
	mesh      string
	primitive string
	script    string
	visible   string
	kernel    string
	cells     int
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "meshedit",
		Short:        "Interactive mesh deformation engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if f.config != "" {
				cfg, err = config.Load(f.config)
			} else {
				cfg = config.Default()
			}
			if err != nil {
				return err
			}
			log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
			return startRuntime(cfg, log)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			stopRuntime()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&f.config, "config", "", "TOML settings file")
	root.PersistentFlags().StringVar(&f.mesh, "mesh", "", "mesh file to load (.off, .gltf, .glb)")
	root.PersistentFlags().StringVar(&f.primitive, "primitive", "", "procedural shape, e.g. sphere:1")
	root.PersistentFlags().StringVar(&f.kernel, "kernel", "sdfx", "geometry backend for --primitive: sdfx or manifold")
	root.PersistentFlags().IntVar(&f.cells, "cells", 0, "marching cubes resolution for --primitive")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run an edit script against a mesh and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.script == "" {
				return errors.New("--script is required")
			}
			source, err := os.ReadFile(f.script)
			if err != nil {
				return err
			}
			visible, err := parseVisible(f.visible)
			if err != nil {
				return err
			}
			return withMesh(cfg, f, func(app *App, h host.Handle) error {
				res, err := app.Run(h, string(source), visible)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if len(res.Errors) > 0 {
					return fmt.Errorf("script failed with %d error(s)", len(res.Errors))
				}
				return nil
			})
		},
	}
	run.Flags().StringVar(&f.script, "script", "", "edit script to run")
	run.Flags().StringVar(&f.visible, "visible", "all", "visible channels: all or a list such as 0,2")

	info := &cobra.Command{
		Use:   "info",
		Short: "Print mesh statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMesh(cfg, f, func(app *App, h host.Handle) error {
				mi, err := app.Info(h)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), mi)
			})
		},
	}

	primitive := &cobra.Command{
		Use:   "primitive DESCRIPTION",
		Short: "Tessellate a procedural shape and print its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.mesh, f.primitive = "", args[0]
			return withMesh(cfg, f, func(app *App, h host.Handle) error {
				mi, err := app.Info(h)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), mi)
			})
		},
	}

	root.AddCommand(run, info, primitive)
	return root
}

// withMesh builds an App, loads the mesh selected by the flags and hands
// both to fn.
func withMesh(cfg *config.Config, f flags, fn func(*App, host.Handle) error) error {
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	if app.kernel, err = kernelByName(f.kernel); err != nil {
		return err
	}
	if f.cells > 0 {
		app.tess.Cells = f.cells
	}

	var h host.Handle
	switch {
	case f.mesh != "" && f.primitive != "":
		return errors.New("--mesh and --primitive are mutually exclusive")
	case f.mesh != "":
		h, err = app.LoadMesh(f.mesh)
	case f.primitive != "":
		h, err = app.LoadPrimitive(f.primitive)
	default:
		return errors.New("one of --mesh or --primitive is required")
	}
	if err != nil {
		return err
	}
	return fn(app, h)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
