// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/procdrive/procdrive/internal/process"

	"github.com/charmbracelet/log"
)

var (
	// ErrInvalidHostAddress is the sentinel error wrapped by InvalidHostAddressError.
	ErrInvalidHostAddress = errors.New("invalid host address")
	// ErrInvalidTokenValue is the sentinel error wrapped by InvalidTokenValueError.
	ErrInvalidTokenValue = errors.New("invalid token value")
	// ErrInvalidListenPort is returned for ports outside 0-65535.
	ErrInvalidListenPort = errors.New("invalid listen port")
	// ErrInvalidServerConfig is the sentinel error wrapped by InvalidServerConfigError.
	ErrInvalidServerConfig = errors.New("invalid session server config")
	// ErrInvalidSessionName is returned for names that are not a plain file name.
	ErrInvalidSessionName = errors.New("invalid session name")
	// ErrSessionNotFound is returned when the directory has no such session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotAllowed is returned when the token is scoped to another session.
	ErrSessionNotAllowed = errors.New("session not allowed for token")
)

type (
	// HostAddress is the IP or hostname the server binds to.
	HostAddress string

	// TokenValue is the secret a client presents as its SSH password.
	TokenValue string

	// Token grants access to the sessions of the server until it expires.
	// A token with an empty Session may run any session.
	Token struct {
		Value     TokenValue
		Session   string
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	// Config holds the immutable configuration of a Server.
	Config struct {
		// Host is the address to bind to (default: 127.0.0.1).
		Host HostAddress
		// Port is the port to listen on (0 = auto-select).
		Port int
		// SessionDir holds the "<name>.cue" session files clients may run.
		SessionDir string
		// TokenTTL is how long generated tokens are valid (default: 1 hour).
		TokenTTL time.Duration
		// StartupTimeout bounds Start (default: 5s).
		StartupTimeout time.Duration
		// ShutdownTimeout bounds the graceful part of Stop (default: 10s).
		ShutdownTimeout time.Duration

		// Launcher is used by sessions that do not name one.
		Launcher process.LauncherKind
		// LaunchOptions is the base the session's own settings are laid over.
		LaunchOptions process.LaunchOptions
		// Timeout applies to sessions without their own timeout; 0 waits forever.
		Timeout time.Duration
		// Registry receives the shutdown hooks of daemon sessions.
		Registry *process.ShutdownRegistry
		// Logger defaults to a stderr logger prefixed "ssh-server".
		Logger *log.Logger
	}

	// InvalidHostAddressError is returned when a HostAddress is empty or
	// whitespace-only.
	InvalidHostAddressError struct {
		Value HostAddress
	}

	// InvalidTokenValueError is returned when a TokenValue is empty or
	// whitespace-only.
	InvalidTokenValueError struct {
		Value TokenValue
	}

	// InvalidServerConfigError collects the field errors of a Config.
	InvalidServerConfigError struct {
		FieldErrors []error
	}

	// SessionError reports why a named session could not be run.
	SessionError struct {
		Name string
		Err  error
	}
)

// String returns the string representation of the HostAddress.
func (h HostAddress) String() string { return string(h) }

// Validate returns nil if the HostAddress is non-empty and not whitespace-only.
func (h HostAddress) Validate() error {
	if strings.TrimSpace(string(h)) == "" {
		return &InvalidHostAddressError{Value: h}
	}
	return nil
}

// String returns the string representation of the TokenValue.
func (t TokenValue) String() string { return string(t) }

// Validate returns nil if the TokenValue is non-empty and not whitespace-only.
func (t TokenValue) Validate() error {
	if strings.TrimSpace(string(t)) == "" {
		return &InvalidTokenValueError{Value: t}
	}
	return nil
}

// Allows reports whether the token may run the named session.
func (t *Token) Allows(name string) bool {
	return t.Session == "" || t.Session == name
}

// DefaultConfig returns a configuration serving the current directory on a
// loopback address with an auto-selected port.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		SessionDir:      ".",
		TokenTTL:        time.Hour,
		StartupTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Launcher:        process.LauncherNative,
		LaunchOptions:   process.DefaultLaunchOptions(),
	}
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	var errs []error
	if err := c.Host.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidListenPort, c.Port))
	}
	if c.SessionDir == "" {
		errs = append(errs, errors.New("session directory is required"))
	}
	if c.Launcher != "" {
		if ok, launcherErrs := c.Launcher.IsValid(); !ok {
			errs = append(errs, launcherErrs...)
		}
	}
	if len(errs) > 0 {
		return &InvalidServerConfigError{FieldErrors: errs}
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = d.TokenTTL
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = d.StartupTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.Launcher == "" {
		c.Launcher = d.Launcher
	}
	if c.Registry == nil {
		c.Registry = process.DefaultShutdownRegistry
	}
}

// Error implements the error interface for InvalidHostAddressError.
func (e *InvalidHostAddressError) Error() string {
	return fmt.Sprintf("invalid host address %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidHostAddress for errors.Is() compatibility.
func (e *InvalidHostAddressError) Unwrap() error { return ErrInvalidHostAddress }

// Error implements the error interface for InvalidTokenValueError.
func (e *InvalidTokenValueError) Error() string {
	return "invalid token value: must be non-empty"
}

// Unwrap returns ErrInvalidTokenValue for errors.Is() compatibility.
func (e *InvalidTokenValueError) Unwrap() error { return ErrInvalidTokenValue }

// Error implements the error interface for InvalidServerConfigError.
func (e *InvalidServerConfigError) Error() string {
	return fmt.Sprintf("invalid session server config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns the sentinel followed by the field errors.
func (e *InvalidServerConfigError) Unwrap() []error {
	return append([]error{ErrInvalidServerConfig}, e.FieldErrors...)
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %q: %v", e.Name, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
