// SPDX-License-Identifier: MPL-2.0

package process

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyCommand is returned when launching a command without tokens.
	ErrEmptyCommand = errors.New("empty command")
	// ErrLaunch is the sentinel wrapped by LaunchError.
	ErrLaunch = errors.New("failed to launch process")
	// ErrStrategy is the sentinel wrapped by StrategyError.
	ErrStrategy = errors.New("interaction strategy failed")
	// ErrTimeout is the sentinel wrapped by TimeoutError.
	ErrTimeout = errors.New("execution timed out")
	// ErrInputClosed is returned when writing to a child whose input was closed.
	ErrInputClosed = errors.New("process input is closed")
	// ErrUnsupported is returned by launchers unavailable on this platform.
	ErrUnsupported = errors.New("launcher not supported on this platform")
	// ErrInvalidLauncherKind is the sentinel wrapped by InvalidLauncherKindError.
	ErrInvalidLauncherKind = errors.New("invalid launcher kind")
)

type (
	// LaunchError reports a child process that could not be started. No
	// Execution exists when it is returned.
	LaunchError struct {
		Program  string
		Launcher LauncherKind
		Err      error
	}

	// StrategyError reports a failure raised by an interaction strategy or
	// its output transformer. Output captured before the failure is kept on
	// the Execution.
	StrategyError struct {
		Program string
		// Op names the strategy call that failed.
		Op  string
		Err error
	}

	// TimeoutError is returned by AwaitTimeout when the deadline expired and
	// the child was terminated.
	TimeoutError struct {
		Program string
		Timeout time.Duration
	}

	// InvalidLauncherKindError is returned for unknown launcher names.
	InvalidLauncherKindError struct {
		Value LauncherKind
	}
)

// Error implements the error interface.
func (e *LaunchError) Error() string {
	if e.Program == "" {
		return fmt.Sprintf("%s launcher: %v", e.Launcher, e.Err)
	}
	return fmt.Sprintf("%s launcher: start %q: %v", e.Launcher, e.Program, e.Err)
}

// Unwrap exposes both ErrLaunch and the underlying cause.
func (e *LaunchError) Unwrap() []error { return []error{ErrLaunch, e.Err} }

// Error implements the error interface.
func (e *StrategyError) Error() string {
	return fmt.Sprintf("interaction with %q: %s: %v", e.Program, e.Op, e.Err)
}

// Unwrap exposes both ErrStrategy and the underlying cause.
func (e *StrategyError) Unwrap() []error { return []error{ErrStrategy, e.Err} }

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%q did not finish within %s", e.Program, e.Timeout)
}

// Unwrap returns ErrTimeout for errors.Is() compatibility.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Error implements the error interface.
func (e *InvalidLauncherKindError) Error() string {
	return fmt.Sprintf("invalid launcher kind %q (must be one of: %s, %s, %s)",
		e.Value, LauncherNative, LauncherPTY, LauncherVirtual)
}

// Unwrap returns ErrInvalidLauncherKind for errors.Is() compatibility.
func (e *InvalidLauncherKindError) Unwrap() error { return ErrInvalidLauncherKind }
