// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/procdrive/procdrive/internal/issue"
	"github.com/procdrive/procdrive/internal/process"
	"github.com/procdrive/procdrive/internal/session"
	"github.com/procdrive/procdrive/internal/watch"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ruleSeparator splits PATTERN=>TEXT flag values.
const ruleSeparator = "=>"

// errInvalidRule is returned for --answer and --remap values without a separator.
var errInvalidRule = errors.New("expected PATTERN" + ruleSeparator + "TEXT")

type runOptions struct {
	file          string
	line          string
	launcher      string
	daemon        bool
	dir           string
	env           map[string]string
	inheritEnv    bool
	noColor       bool
	timeout       time.Duration
	answers       []string
	terminateOn   []string
	outputs       []string
	errOutputs    []string
	prefix        bool
	quiet         bool
	requiresInput bool
	watch         []string
	watchDir      string
}

func newRunCommand(app *App) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] [-- program [args...]]",
		Short: "Run a program and answer its prompts",
		Long: `Run a program, print what it writes, and answer its prompts.

The program is given after "--", as a raw line with --line, or in a session
file with --file. Flags override the values of the session file.

Answers are full-match regular expressions over the output read so far,
followed by "=>" and the reply. A newline is appended to every reply.

` + SubtitleStyle.Render("Examples:") + `
  procdrive run -- ls -la
  procdrive run --line 'git commit -m "first commit"'
  procdrive run --answer 'Password: =>s3cret' --terminate-on 'Bye.*' -- ./login
  procdrive run --launcher pty --timeout 30s -- ssh-keygen -f id_test
  procdrive run -f deploy.cue --prefix
  procdrive run --watch '**/*.go' -- go test ./...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(cmd.Flags(), args)
			if err != nil {
				app.explain(err)
				return err
			}
			if len(opts.watch) > 0 {
				return app.watch(cmd.Context(), s, opts)
			}
			if err := app.run(cmd.Context(), s, opts.timeout); err != nil {
				app.explain(err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "session file describing the run")
	flags.StringVar(&opts.line, "line", "", "command line to split into program and arguments")
	flags.StringVarP(&opts.launcher, "launcher", "l", "", "launcher to use (native, pty, virtual)")
	flags.BoolVar(&opts.daemon, "daemon", false, "leave the program running after the interaction ends")
	flags.StringVarP(&opts.dir, "dir", "C", "", "working directory of the program")
	flags.StringToStringVarP(&opts.env, "env", "e", nil, "environment variable for the program (KEY=VALUE, repeatable)")
	flags.BoolVar(&opts.inheritEnv, "inherit-env", true, "start from procdrive's own environment")
	flags.BoolVar(&opts.noColor, "no-color", false, "ask the program for uncolored output")
	flags.DurationVarP(&opts.timeout, "timeout", "t", 0, "terminate the program after this long (0 waits forever)")
	flags.StringArrayVarP(&opts.answers, "answer", "a", nil, "reply to a prompt (PATTERN=>REPLY, repeatable)")
	flags.StringArrayVar(&opts.terminateOn, "terminate-on", nil, "end the interaction at a matching sentence (repeatable)")
	flags.StringArrayVar(&opts.outputs, "output", nil, "print only sentences matching the pattern (repeatable)")
	flags.StringArrayVar(&opts.errOutputs, "error-output", nil, "print sentences matching the pattern to stderr (repeatable)")
	flags.BoolVarP(&opts.prefix, "prefix", "p", false, "prefix printed sentences with the program name")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "print nothing; only report the exit code")
	flags.BoolVar(&opts.requiresInput, "require-input", false, "keep the program's input open even without answers")
	flags.StringArrayVarP(&opts.watch, "watch", "w", nil, "run again when files matching the glob change (repeatable)")
	flags.StringVar(&opts.watchDir, "watch-dir", ".", "root of the watched tree")

	return cmd
}

// session merges the session file, if any, with the command-line flags.
func (o *runOptions) session(flags *pflag.FlagSet, args []string) (*session.Session, error) {
	s := &session.Session{}
	if o.file != "" {
		loaded, err := session.Read(o.file)
		if err != nil {
			return nil, sessionError(err, o.file)
		}
		s = loaded
	}

	if len(args) > 0 {
		s.Command, s.Line = args, ""
	}
	if flags.Changed("line") {
		s.Command, s.Line = nil, o.line
	}
	if flags.Changed("launcher") {
		s.Launcher = o.launcher
	}
	if flags.Changed("daemon") {
		s.Daemon = o.daemon
	}
	if flags.Changed("dir") {
		s.Dir = o.dir
	}
	if len(o.env) > 0 {
		if s.Env == nil {
			s.Env = make(map[string]string, len(o.env))
		}
		maps.Copy(s.Env, o.env)
	}
	if flags.Changed("inherit-env") {
		s.InheritEnv = &o.inheritEnv
	}
	if flags.Changed("no-color") {
		s.DisableColors = &o.noColor
	}
	if flags.Changed("prefix") {
		s.Prefix = o.prefix
	}
	if flags.Changed("quiet") {
		s.Quiet = o.quiet
	}
	if flags.Changed("require-input") {
		s.RequireInput = o.requiresInput
	}

	for _, raw := range o.answers {
		pattern, reply, err := splitRule(raw)
		if err != nil {
			return nil, fmt.Errorf("--answer %q: %w", raw, err)
		}
		s.Answers = append(s.Answers, session.Answer{When: pattern, Reply: reply, Newline: true})
	}
	for _, pattern := range o.terminateOn {
		s.Answers = append(s.Answers, session.Answer{When: pattern, Terminate: true})
	}
	s.Outputs = append(s.Outputs, o.outputs...)
	s.ErrorOutputs = append(s.ErrorOutputs, o.errOutputs...)

	if err := s.Validate(); err != nil {
		return nil, sessionError(err, o.file)
	}
	return s, nil
}

// run executes the session and waits for it. Daemons keep running until the
// program exits or procdrive is interrupted.
func (a *App) run(ctx context.Context, s *session.Session, timeoutFlag time.Duration) error {
	defer a.shutdown()

	s.Prefix = s.Prefix || a.cfg.Output.PrefixProgramName
	s.Quiet = s.Quiet || a.cfg.Output.Quiet

	cmd := s.BuildCommand()
	strategy, err := s.Strategy(programPrefix)
	if err != nil {
		return sessionError(err, s.Path())
	}
	launcher, err := s.NewLauncher(process.LauncherKind(a.cfg.Launcher))
	if err != nil {
		return sessionError(err, s.Path())
	}
	timeout, err := a.timeout(s, timeoutFlag)
	if err != nil {
		return sessionError(err, s.Path())
	}

	base := process.LaunchOptions{
		InheritEnv:    a.cfg.Process.InheritEnv,
		DisableColors: a.cfg.Process.DisableColors,
		SpawnOnHost:   a.cfg.Process.SpawnOnHost,
	}
	executor := process.NewExecutor(
		process.WithLauncher(launcher),
		process.WithLaunchOptions(s.LaunchOptions(base)),
		process.WithStrategy(strategy),
		process.WithStdout(a.stdout),
		process.WithStderr(a.stderr),
		process.WithLogger(a.logger),
		process.WithRegistry(a.Registry),
	)

	ex, err := executor.Execute(ctx, cmd)
	if err != nil {
		return runError(err, cmd.ProgramName())
	}
	res, err := process.AwaitTimeout(ctx, ex, timeout)
	if err != nil {
		return runError(err, cmd.ProgramName())
	}

	if res.Daemon {
		a.logger.Info("daemon running, interrupt to stop", "program", res.ProgramName, "pid", ex.PID())
		select {
		case <-ex.Exited():
			a.logger.Info("daemon exited", "program", res.ProgramName, "exit_code", ex.ExitCode())
		case <-ctx.Done():
		}
		return nil
	}

	a.logger.Debug("process finished", "program", res.ProgramName, "exit_code", res.ExitCode, "sentences", len(res.Output))
	if !res.Success() {
		return &ExitError{Program: res.ProgramName, Code: exitCodeFor(res.ExitCode)}
	}
	return nil
}

// watch runs the session once, then again after every batch of changes to
// files matching the --watch globs, until interrupted. Failed runs are
// reported and do not end the watch.
func (a *App) watch(ctx context.Context, s *session.Session, opts *runOptions) error {
	runOnce := func(ctx context.Context) {
		if err := a.run(ctx, s, opts.timeout); err != nil {
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				a.logger.Warn("program failed", "program", exitErr.Program, "exit_code", exitErr.Code)
				return
			}
			a.warn(err)
		}
	}

	w, err := watch.New(watch.Config{
		Patterns: opts.watch,
		BaseDir:  opts.watchDir,
		Logger:   a.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			a.logger.Info("change detected, running again", "files", changed)
			runOnce(ctx)
			return nil
		},
	})
	if err != nil {
		err = sessionError(err, s.Path())
		a.explain(err)
		return err
	}

	runOnce(ctx)
	a.logger.Info("watching for changes", "dir", opts.watchDir, "patterns", opts.watch)
	return w.Run(ctx)
}

// timeout picks the --timeout flag, then the session's timeout, then the
// configured default.
func (a *App) timeout(s *session.Session, flag time.Duration) (time.Duration, error) {
	if flag > 0 {
		return flag, nil
	}
	if s.Timeout != "" {
		return s.TimeoutDuration()
	}
	return a.cfg.TimeoutDuration()
}

// splitRule splits "PATTERN=>TEXT" at the last separator, so patterns may
// contain "=>" themselves.
func splitRule(raw string) (pattern, text string, err error) {
	i := strings.LastIndex(raw, ruleSeparator)
	if i < 0 {
		return "", "", errInvalidRule
	}
	return raw[:i], raw[i+len(ruleSeparator):], nil
}

// sessionError attaches the session issue to an invalid run description.
func sessionError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("prepare session").
		WithResource(path).
		WithIssue(issue.SessionInvalidId).
		WithSuggestion("Give the program after \"--\", with --line, or in a session file").
		WithSuggestion("Run 'procdrive run --help' for the accepted flags").
		Wrap(err).
		BuildError()
}
