// SPDX-License-Identifier: MPL-2.0

package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/procdrive/procdrive/pkg/command"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualLauncher runs the command line inside the embedded POSIX shell
// interpreter. Shell builtins such as echo and read run in-process; other
// programs are still executed by the interpreter's exec handler.
type VirtualLauncher struct{}

// NewVirtualLauncher creates a new virtual launcher.
func NewVirtualLauncher() *VirtualLauncher { return &VirtualLauncher{} }

// Kind returns LauncherVirtual.
func (l *VirtualLauncher) Kind() LauncherKind { return LauncherVirtual }

// Launch parses cmd as a single shell command and runs it on its own
// goroutine. The returned Process has no pid.
func (l *VirtualLauncher) Launch(ctx context.Context, cmd command.Command, opts LaunchOptions) (*Process, error) {
	if cmd.IsEmpty() {
		return nil, &LaunchError{Launcher: LauncherVirtual, Err: ErrEmptyCommand}
	}
	launchErr := func(err error) error {
		return &LaunchError{Program: cmd.ProgramName(), Launcher: LauncherVirtual, Err: err}
	}

	env := expand.ListEnviron(opts.Environ()...)
	if err := lookProgram(cmd.ProgramName(), opts.Dir, env); err != nil {
		return nil, launchErr(err)
	}

	line, err := quoteLine(cmd.Tokens())
	if err != nil {
		return nil, launchErr(err)
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(line), cmd.ProgramName())
	if err != nil {
		return nil, launchErr(fmt.Errorf("parse command line: %w", err))
	}

	// Real pipes let external programs inherit the descriptors directly;
	// os/exec would otherwise keep copying goroutines alive until input closes.
	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, launchErr(fmt.Errorf("input pipe: %w", err))
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		_ = inR.Close()
		_ = inW.Close()
		return nil, launchErr(fmt.Errorf("output pipe: %w", err))
	}
	closeAll := func() {
		for _, f := range []*os.File{inR, inW, outR, outW} {
			_ = f.Close()
		}
	}

	runnerOpts := []interp.RunnerOption{
		interp.Env(env),
		interp.StdIO(inR, outW, outW),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}
	runner, err := interp.New(runnerOpts...)
	if err != nil {
		closeAll()
		return nil, launchErr(fmt.Errorf("create interpreter: %w", err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		runErr = runner.Run(runCtx, prog)
		_ = outW.Close()
		_ = inR.Close()
	}()

	wait := func() (ExitCode, error) {
		<-done
		cancel()
		if runErr == nil {
			return 0, nil
		}
		var status interp.ExitStatus
		if errors.As(runErr, &status) {
			return ExitCode(status), nil
		}
		if errors.Is(runErr, context.Canceled) {
			return ExitCodeUnknown, nil
		}
		return 1, runErr
	}
	kill := func() error {
		cancel()
		// Unblock builtins waiting on input.
		if err := inW.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
		return nil
	}
	return NewProcess(0, inW, outR, wait, kill), nil
}

// lookProgram fails when name is neither a shell builtin nor an executable
// reachable through PATH (or dir, for relative paths).
func lookProgram(name, dir string, env expand.Environ) error {
	if interp.IsBuiltin(name) {
		return nil
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}
	if _, err := interp.LookPathDir(dir, env, name); err != nil {
		return &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return nil
}

func quoteLine(tokens []string) (string, error) {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		q, err := syntax.Quote(tok, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", tok, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}
