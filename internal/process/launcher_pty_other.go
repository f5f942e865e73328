// SPDX-License-Identifier: MPL-2.0

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package process

import (
	"context"

	"github.com/procdrive/procdrive/pkg/command"
)

// Launch always fails: pseudo-terminals are not available on this platform.
func (l *PTYLauncher) Launch(_ context.Context, cmd command.Command, _ LaunchOptions) (*Process, error) {
	return nil, &LaunchError{Program: cmd.ProgramName(), Launcher: LauncherPTY, Err: ErrUnsupported}
}
