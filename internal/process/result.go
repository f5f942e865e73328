// SPDX-License-Identifier: MPL-2.0

package process

// Result is a snapshot of a completed interaction.
type Result struct {
	ProgramName string
	// ExitCode is ExitCodeUnknown for daemons that are still running and for
	// children killed by a signal.
	ExitCode ExitCode
	// Output holds every completed sentence in order, trimmed.
	Output []string
	Daemon bool
}

// Success reports whether the child exited with status 0. A daemon that is
// still running also counts as successful.
func (r *Result) Success() bool {
	if r.Daemon && r.ExitCode == ExitCodeUnknown {
		return true
	}
	return r.ExitCode.IsSuccess()
}
