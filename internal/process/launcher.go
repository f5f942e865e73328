// SPDX-License-Identifier: MPL-2.0

package process

import (
	"context"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/procdrive/procdrive/pkg/command"
	"github.com/procdrive/procdrive/pkg/platform"

	"golang.org/x/exp/maps"
)

const (
	// LauncherNative runs commands with os/exec.
	LauncherNative LauncherKind = "native"
	// LauncherPTY runs commands attached to a pseudo-terminal.
	LauncherPTY LauncherKind = "pty"
	// LauncherVirtual runs commands through the embedded shell interpreter.
	LauncherVirtual LauncherKind = "virtual"
)

type (
	// LauncherKind names one of the available launchers.
	LauncherKind string

	// Launcher starts a child process for a command. Implementations must
	// return a *LaunchError when the process cannot be started.
	Launcher interface {
		Kind() LauncherKind
		Launch(ctx context.Context, cmd command.Command, opts LaunchOptions) (*Process, error)
	}

	// LaunchOptions configure the environment of a launched child.
	LaunchOptions struct {
		// Dir is the working directory. Empty means the current directory.
		Dir string
		// Env holds variables added on top of the (possibly inherited) environment.
		Env map[string]string
		// InheritEnv starts from the driving process's environment.
		InheritEnv bool
		// DisableColors asks the child to produce plain, uncolored output.
		DisableColors bool
		// SpawnOnHost runs the program on the host when procdrive itself
		// runs inside a Flatpak sandbox. Ignored by the virtual launcher.
		SpawnOnHost bool
	}

	// Process is a started child: its input, its merged output stream, and
	// the functions to reap or kill it. Launchers build it with NewProcess.
	Process struct {
		pid    int
		stdin  io.WriteCloser
		output io.ReadCloser
		wait   func() (ExitCode, error)
		kill   func() error

		outputOnce sync.Once
		outputErr  error
	}
)

// noColorEnv is the set of variables commonly honored by CLI tools to turn
// off ANSI styling.
var noColorEnv = map[string]string{
	"NO_COLOR":       "1",
	"TERM":           "dumb",
	"CLICOLOR":       "0",
	"CLICOLOR_FORCE": "0",
	"FORCE_COLOR":    "0",
}

// String returns the string representation of the LauncherKind.
func (k LauncherKind) String() string { return string(k) }

// IsValid returns whether the LauncherKind names a known launcher,
// and a list of validation errors if it does not.
func (k LauncherKind) IsValid() (bool, []error) {
	switch k {
	case LauncherNative, LauncherPTY, LauncherVirtual:
		return true, nil
	default:
		return false, []error{&InvalidLauncherKindError{Value: k}}
	}
}

// NewLauncher returns the launcher registered under kind.
func NewLauncher(kind LauncherKind) (Launcher, error) {
	switch kind {
	case LauncherNative, "":
		return NewNativeLauncher(), nil
	case LauncherPTY:
		return NewPTYLauncher(), nil
	case LauncherVirtual:
		return NewVirtualLauncher(), nil
	default:
		return nil, &InvalidLauncherKindError{Value: kind}
	}
}

// DefaultLaunchOptions inherits the environment of the driving process.
func DefaultLaunchOptions() LaunchOptions {
	return LaunchOptions{InheritEnv: true}
}

// Environ composes the child's environment as KEY=VALUE pairs. The result is
// never nil, so an empty environment stays empty instead of falling back to
// os/exec's inheritance.
func (o LaunchOptions) Environ() []string {
	env := []string{}
	if o.InheritEnv {
		env = append(env, os.Environ()...)
	}
	keys := maps.Keys(o.Env)
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+o.Env[k])
	}
	if o.DisableColors {
		keys = maps.Keys(noColorEnv)
		slices.Sort(keys)
		for _, k := range keys {
			env = append(env, k+"="+noColorEnv[k])
		}
	}
	return env
}

// argv returns the program and arguments to exec for cmd.
func (o LaunchOptions) argv(cmd command.Command) (string, []string) {
	tokens := cmd.Tokens()
	if o.SpawnOnHost {
		tokens = platform.HostCommand(tokens)
	}
	return tokens[0], tokens[1:]
}

// NewProcess wraps a started child. wait must block until the child exits;
// kill must stop it forcibly.
func NewProcess(pid int, stdin io.WriteCloser, output io.ReadCloser, wait func() (ExitCode, error), kill func() error) *Process {
	return &Process{pid: pid, stdin: stdin, output: output, wait: wait, kill: kill}
}

// PID returns the child's process id, or 0 when it has none.
func (p *Process) PID() int { return p.pid }

// closeOutput closes the read end of the output stream once. A reader
// blocked on it returns, even when a grandchild still holds the write end.
func (p *Process) closeOutput() error {
	p.outputOnce.Do(func() { p.outputErr = p.output.Close() })
	return p.outputErr
}
