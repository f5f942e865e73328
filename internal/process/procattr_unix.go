// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(c *exec.Cmd) {
	if c.SysProcAttr == nil {
		c.SysProcAttr = &syscall.SysProcAttr{}
	}
	c.SysProcAttr.Setpgid = true
}

// killProcess sends SIGKILL to p, or to its whole process group when group
// is set. A process that already exited is not an error.
func killProcess(p *os.Process, group bool) error {
	if p == nil {
		return nil
	}
	if group {
		err := unix.Kill(-p.Pid, unix.SIGKILL)
		if err == nil || errors.Is(err, unix.ESRCH) {
			return nil
		}
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
