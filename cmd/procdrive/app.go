// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/procdrive/procdrive/internal/config"
	"github.com/procdrive/procdrive/internal/process"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: all Cobra command handlers receive an App reference.
	App struct {
		Config   ConfigProvider
		Registry *process.ShutdownRegistry
		stdout   io.Writer
		stderr   io.Writer

		// Set by the root command before any subcommand runs.
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
		verbose bool
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Registry *process.ShutdownRegistry
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	// This abstraction enables testing with custom config sources.
	ConfigProvider interface {
		LoadWithSource(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Registry == nil {
		deps.Registry = process.DefaultShutdownRegistry
	}

	return &App{
		Config:   deps.Config,
		Registry: deps.Registry,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
		cfg:      config.DefaultConfig(),
		logger:   newLogger(deps.Stderr, log.InfoLevel),
	}
}

// loadConfig loads the configuration and derives the logger from it. A
// broken config file is reported as a warning and defaults are used.
func (a *App) loadConfig(ctx context.Context, cfgFile string, verbose bool) {
	cfg, path, err := a.Config.LoadWithSource(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		a.warn(err)
		cfg, path = config.DefaultConfig(), ""
	}
	a.cfg = cfg
	a.cfgPath = path
	a.verbose = verbose || cfg.UI.Verbose

	applyColorScheme(cfg.UI.ColorScheme)

	level := log.InfoLevel
	if parsed, err := log.ParseLevel(cfg.LogLevel.String()); err == nil {
		level = parsed
	}
	if a.verbose {
		level = log.DebugLevel
	}
	a.logger = newLogger(a.stderr, level)
}

// shutdown terminates every daemon still registered.
func (a *App) shutdown() {
	if n := a.Registry.Len(); n > 0 {
		a.logger.Debug("terminating daemons", "count", n)
	}
	if err := a.Registry.Shutdown(); err != nil {
		a.logger.Warn("shutdown hook failed", "error", err)
	}
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}
