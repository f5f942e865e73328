// SPDX-License-Identifier: MPL-2.0

package process

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/procdrive/procdrive/pkg/command"
	"github.com/procdrive/procdrive/pkg/interaction"

	"github.com/charmbracelet/log"
)

type (
	// Option configures an Executor or a Consumer.
	Option func(*config)

	config struct {
		launcher Launcher
		launch   LaunchOptions
		strategy interaction.Strategy
		stdout   io.Writer
		stderr   io.Writer
		boundary interaction.Boundary
		logger   *log.Logger
		registry *ShutdownRegistry
	}

	// Executor launches commands and drives them with a strategy.
	Executor struct {
		cfg config
	}
)

// WithLauncher selects how children are started. The default is native.
func WithLauncher(l Launcher) Option {
	return func(c *config) { c.launcher = l }
}

// WithLaunchOptions sets the child's working directory and environment.
func WithLaunchOptions(opts LaunchOptions) Option {
	return func(c *config) { c.launch = opts }
}

// WithStrategy sets the interaction strategy. The default echoes every
// sentence to stdout and answers nothing.
func WithStrategy(s interaction.Strategy) Option {
	return func(c *config) { c.strategy = s }
}

// WithStdout sets where sentences selected by ShouldOutput are written.
func WithStdout(w io.Writer) Option {
	return func(c *config) { c.stdout = w }
}

// WithStderr sets where sentences selected by ShouldOutputToErr are written.
func WithStderr(w io.Writer) Option {
	return func(c *config) { c.stderr = w }
}

// WithBoundary replaces the newline sentence boundary.
func WithBoundary(b interaction.Boundary) Option {
	return func(c *config) { c.boundary = b }
}

// WithLogger sets the logger for lifecycle events and captured sentences.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRegistry sets where daemon shutdown hooks are registered.
func WithRegistry(r *ShutdownRegistry) Option {
	return func(c *config) { c.registry = r }
}

func newConfig(opts ...Option) config {
	cfg := config{
		launch:   DefaultLaunchOptions(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		boundary: interaction.NewlineBoundary,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.launcher == nil {
		cfg.launcher = NewNativeLauncher()
	}
	if cfg.strategy == nil {
		cfg.strategy = interaction.Default()
	}
	if cfg.registry == nil {
		cfg.registry = DefaultShutdownRegistry
	}
	if cfg.logger == nil {
		cfg.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "procdrive"})
	}
	return cfg
}

// NewExecutor creates an executor.
func NewExecutor(opts ...Option) *Executor {
	return &Executor{cfg: newConfig(opts...)}
}

// Execute launches cmd and starts consuming its output in the background.
// It returns a *LaunchError, and no Execution, when the child cannot start.
func (e *Executor) Execute(ctx context.Context, cmd command.Command) (*Execution, error) {
	if cmd.IsEmpty() {
		return nil, &LaunchError{Launcher: e.cfg.launcher.Kind(), Err: ErrEmptyCommand}
	}
	proc, err := e.cfg.launcher.Launch(ctx, cmd, e.cfg.launch)
	if err != nil {
		var launchErr *LaunchError
		if !errors.As(err, &launchErr) {
			err = &LaunchError{Program: cmd.ProgramName(), Launcher: e.cfg.launcher.Kind(), Err: err}
		}
		return nil, err
	}

	ex := NewExecution(cmd, proc, e.cfg.registry, e.cfg.logger)
	e.cfg.logger.Debug("process started",
		"program", cmd.ProgramName(),
		"command", cmd.String(),
		"launcher", e.cfg.launcher.Kind(),
		"pid", proc.PID(),
		"daemon", cmd.IsDaemon(),
		"id", ex.ID())

	consumer := &Consumer{
		strategy: e.cfg.strategy,
		stdout:   e.cfg.stdout,
		stderr:   e.cfg.stderr,
		boundary: e.cfg.boundary,
		logger:   e.cfg.logger,
	}
	go func() {
		if err := consumer.Consume(ctx, ex); err != nil {
			e.cfg.logger.Error("interaction failed", "program", cmd.ProgramName(), "error", err)
		}
	}()
	return ex, nil
}

// Run executes cmd and waits for the result.
func (e *Executor) Run(ctx context.Context, cmd command.Command) (*Result, error) {
	ex, err := e.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return ex.Await(ctx)
}

// terminateGrace bounds how long AwaitTimeout waits for the Consumer to
// finish after killing the child.
const terminateGrace = 2 * time.Second

// AwaitTimeout waits for ex like Await, but terminates the child when it has
// not completed within d. The partial result is returned with a
// *TimeoutError. A non-positive d waits without limit.
func AwaitTimeout(ctx context.Context, ex *Execution, d time.Duration) (*Result, error) {
	if d <= 0 {
		return ex.Await(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	res, err := ex.Await(timeoutCtx)
	if err == nil || !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return res, err
	}

	timeoutErr := &TimeoutError{Program: ex.ProgramName(), Timeout: d}
	if kerr := ex.Terminate(); kerr != nil {
		return ex.Result(), errors.Join(timeoutErr, kerr)
	}
	grace := time.NewTimer(terminateGrace)
	defer grace.Stop()
	select {
	case <-ex.Done():
	case <-ctx.Done():
	case <-grace.C:
		ex.logger.Warn("output did not end after termination", "program", ex.ProgramName(), "grace", terminateGrace)
	}
	return ex.Result(), timeoutErr
}
