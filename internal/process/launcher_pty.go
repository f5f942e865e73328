// SPDX-License-Identifier: MPL-2.0

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/procdrive/procdrive/pkg/command"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// eot is the terminal end-of-transmission character (^D).
const eot = "\x04"

// ptyInput writes to the pty master. Closing it sends EOT instead of closing
// the master, which also carries the child's output.
type ptyInput struct {
	master *os.File
	once   sync.Once
}

func (p *ptyInput) Write(b []byte) (int, error) { return p.master.Write(b) }

func (p *ptyInput) Close() error {
	var err error
	p.once.Do(func() { _, err = io.WriteString(p.master, eot) })
	return err
}

// ptyOutput reads from the pty master. Linux reports EIO once the slave side
// is gone; that is the normal end of the stream.
type ptyOutput struct {
	master *os.File
}

func (p *ptyOutput) Read(b []byte) (int, error) {
	n, err := p.master.Read(b)
	if err != nil && errors.Is(err, syscall.EIO) {
		return n, io.EOF
	}
	return n, err
}

func (p *ptyOutput) Close() error { return p.master.Close() }

// Launch starts cmd attached to a new pseudo-terminal.
func (l *PTYLauncher) Launch(ctx context.Context, cmd command.Command, opts LaunchOptions) (*Process, error) {
	if cmd.IsEmpty() {
		return nil, &LaunchError{Launcher: LauncherPTY, Err: ErrEmptyCommand}
	}
	launchErr := func(err error) error {
		return &LaunchError{Program: cmd.ProgramName(), Launcher: LauncherPTY, Err: err}
	}

	master, tty, err := pty.Open()
	if err != nil {
		return nil, launchErr(fmt.Errorf("open pty: %w", err))
	}
	closeBoth := func() {
		_ = master.Close()
		_ = tty.Close()
	}
	if err := pty.Setsize(master, &pty.Winsize{Rows: l.Rows, Cols: l.Cols}); err != nil {
		closeBoth()
		return nil, launchErr(fmt.Errorf("set pty size: %w", err))
	}
	if !l.Echo {
		if err := disableEcho(tty); err != nil {
			closeBoth()
			return nil, launchErr(fmt.Errorf("disable pty echo: %w", err))
		}
	}

	name, args := opts.argv(cmd)
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = opts.Dir
	c.Env = opts.Environ()
	c.Stdin = tty
	c.Stdout = tty
	c.Stderr = tty
	// The child leads a new session with the tty as its controlling
	// terminal, so its pid is also its process group id.
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}
	c.Cancel = func() error { return killProcess(c.Process, true) }

	if err := c.Start(); err != nil {
		closeBoth()
		return nil, launchErr(err)
	}
	_ = tty.Close()

	return NewProcess(c.Process.Pid, &ptyInput{master: master}, &ptyOutput{master: master},
		func() (ExitCode, error) { return exitCodeOf(c.Wait()) },
		func() error { return killProcess(c.Process, true) },
	), nil
}

func disableEcho(tty *os.File) error {
	fd := int(tty.Fd())
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	termios.Lflag &^= unix.ECHO
	return unix.IoctlSetTermios(fd, ioctlSetTermios, termios)
}
