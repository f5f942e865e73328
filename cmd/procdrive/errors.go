// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/procdrive/procdrive/internal/issue"
	"github.com/procdrive/procdrive/internal/process"
)

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// warn prints a non-fatal error.
func (a *App) warn(err error) {
	fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, a.verbose))
}

// explain prints the suggestions attached to err and, in verbose mode, the
// catalog guidance for its issue.
func (a *App) explain(err error) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}
	if ae.HasSuggestions() || a.verbose {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+ae.Format(a.verbose))
	}
	if !a.verbose {
		return
	}
	if iss := ae.Issue(); iss != nil {
		rendered, rerr := iss.Render(glamourStyle())
		if rerr != nil {
			a.logger.Debug("rendering issue", "id", iss.Id(), "error", rerr)
			return
		}
		fmt.Fprint(a.stderr, rendered)
	}
}

// runError attaches an issue and suggestions to a failure of "procdrive run".
func runError(err error, program string) error {
	ctx := issue.NewErrorContext().WithResource(program).Wrap(err)

	var timeoutErr *process.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		ctx.WithOperation("wait for process").
			WithIssue(issue.TimeoutId).
			WithSuggestion("Raise --timeout, or set timeout: \"0s\" to wait without limit").
			WithSuggestion("Check that every prompt has a matching --answer")
	case errors.Is(err, process.ErrUnsupported):
		ctx.WithOperation("launch process").
			WithIssue(issue.PTYUnsupportedId).
			WithSuggestion("Use --launcher native or --launcher virtual on this platform")
	case errors.Is(err, exec.ErrNotFound):
		ctx.WithOperation("launch process").
			WithIssue(issue.ProgramNotFoundId).
			WithSuggestion("Check the program name for typos").
			WithSuggestion("Make sure the program is installed and on your PATH")
	case errors.Is(err, os.ErrPermission):
		ctx.WithOperation("launch process").
			WithIssue(issue.PermissionDeniedId).
			WithSuggestion("Make sure the program file is executable (chmod +x)")
	case errors.Is(err, process.ErrLaunch):
		ctx.WithOperation("launch process").
			WithIssue(issue.LaunchFailedId)
	case errors.Is(err, process.ErrStrategy):
		ctx.WithOperation("interact with process").
			WithIssue(issue.StrategyFailedId).
			WithSuggestion("Check the answer and output patterns for mistakes")
	default:
		ctx.WithOperation("run process")
	}
	return ctx.BuildError()
}
