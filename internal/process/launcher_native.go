// SPDX-License-Identifier: MPL-2.0

package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/procdrive/procdrive/pkg/command"
)

// NativeLauncher starts commands directly with os/exec. Standard output and
// standard error share one pipe, so the kernel preserves their interleaving.
type NativeLauncher struct{}

// NewNativeLauncher creates a new native launcher.
func NewNativeLauncher() *NativeLauncher { return &NativeLauncher{} }

// Kind returns LauncherNative.
func (l *NativeLauncher) Kind() LauncherKind { return LauncherNative }

// Launch starts cmd. The context bounds the child's lifetime.
func (l *NativeLauncher) Launch(ctx context.Context, cmd command.Command, opts LaunchOptions) (*Process, error) {
	if cmd.IsEmpty() {
		return nil, &LaunchError{Launcher: LauncherNative, Err: ErrEmptyCommand}
	}
	launchErr := func(err error) error {
		return &LaunchError{Program: cmd.ProgramName(), Launcher: LauncherNative, Err: err}
	}

	name, args := opts.argv(cmd)
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = opts.Dir
	c.Env = opts.Environ()
	// The child leads its own group so that killing it also kills whatever
	// it forked; those would otherwise keep the output pipe open.
	setProcessGroup(c)
	c.Cancel = func() error { return killProcess(c.Process, true) }

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, launchErr(fmt.Errorf("stdin pipe: %w", err))
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, launchErr(fmt.Errorf("output pipe: %w", err))
	}
	c.Stdout = outW
	c.Stderr = outW

	if err := c.Start(); err != nil {
		_ = stdin.Close()
		_ = outR.Close()
		_ = outW.Close()
		return nil, launchErr(err)
	}
	// The child holds its own copy of the write end; ours must go so that
	// reads observe EOF once the child exits.
	_ = outW.Close()

	return NewProcess(c.Process.Pid, stdin, outR,
		func() (ExitCode, error) { return exitCodeOf(c.Wait()) },
		func() error { return killProcess(c.Process, true) },
	), nil
}
