// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/procdrive/procdrive/internal/process"
)

// ExitError carries a child's failure out of RunE so main can exit with the
// child's status instead of calling os.Exit mid-command.
type ExitError struct {
	Program string
	Code    process.ExitCode
	Err     error
}

func (e *ExitError) Error() string {
	switch {
	case e.Err != nil:
		return e.Err.Error()
	case e.Program != "":
		return fmt.Sprintf("%s: exit status %d", e.Program, e.Code)
	default:
		return fmt.Sprintf("exit status %d", e.Code)
	}
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCodeFor maps a child's exit code to the CLI's. Codes that cannot be
// reported (a child killed by a signal) become 1.
func exitCodeFor(code process.ExitCode) process.ExitCode {
	if ok, _ := code.IsValid(); !ok || code == 0 {
		return 1
	}
	return code
}
