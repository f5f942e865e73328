// SPDX-License-Identifier: MPL-2.0

//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on Windows; Terminate kills only the direct child.
func setProcessGroup(*exec.Cmd) {}

func killProcess(p *os.Process, _ bool) error {
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
