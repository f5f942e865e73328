// SPDX-License-Identifier: MPL-2.0

package process

const (
	defaultPTYRows = 24
	defaultPTYCols = 80
)

// PTYLauncher starts commands attached to a pseudo-terminal, for programs
// that refuse to prompt unless they see a terminal. Terminal output is
// already merged. Closing the child's input sends EOT (^D).
type PTYLauncher struct {
	// Rows and Cols set the terminal window size.
	Rows uint16
	Cols uint16
	// Echo keeps the terminal's input echo on. It is off by default because
	// the engine already appends each answer to the current sentence.
	Echo bool
}

// NewPTYLauncher creates a PTY launcher with a 24x80 terminal and echo off.
func NewPTYLauncher() *PTYLauncher {
	return &PTYLauncher{Rows: defaultPTYRows, Cols: defaultPTYCols}
}

// Kind returns LauncherPTY.
func (l *PTYLauncher) Kind() LauncherKind { return LauncherPTY }
