// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// LauncherNative starts children with os/exec.
	// Defined locally to avoid coupling config to internal/process.
	LauncherNative LauncherMode = "native"
	// LauncherPTY attaches children to a pseudo-terminal.
	LauncherPTY LauncherMode = "pty"
	// LauncherVirtual runs commands in the embedded mvdan/sh interpreter.
	LauncherVirtual LauncherMode = "virtual"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidLauncherMode is returned when a LauncherMode value is not recognized.
	ErrInvalidLauncherMode = errors.New("invalid launcher")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidTimeout is returned when a timeout is not a non-negative duration.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LauncherMode names the launcher used to start children.
	LauncherMode string

	// LogLevel is the minimum level of log output.
	LogLevel string

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidValueError reports a config value outside its allowed set.
	// It wraps the field's sentinel for errors.Is() compatibility.
	InvalidValueError struct {
		Field    string
		Value    string
		Allowed  string
		sentinel error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Launcher is the default launcher for "procdrive run".
		Launcher LauncherMode `json:"launcher" mapstructure:"launcher" toml:"launcher"`
		// LogLevel is the minimum level of log output.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level" toml:"log_level"`
		// Timeout is the default execution timeout ("0s" for none).
		Timeout string `json:"timeout" mapstructure:"timeout" toml:"timeout"`
		// Process configures the children's environment.
		Process ProcessConfig `json:"process" mapstructure:"process" toml:"process"`
		// Output configures how captured sentences are printed.
		Output OutputConfig `json:"output" mapstructure:"output" toml:"output"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui" toml:"ui"`
	}

	// ProcessConfig configures the environment of launched children.
	ProcessConfig struct {
		InheritEnv    bool `json:"inherit_env" mapstructure:"inherit_env" toml:"inherit_env"`
		DisableColors bool `json:"disable_colors" mapstructure:"disable_colors" toml:"disable_colors"`
		SpawnOnHost   bool `json:"spawn_on_host" mapstructure:"spawn_on_host" toml:"spawn_on_host"`
	}

	// OutputConfig configures how captured sentences are printed.
	OutputConfig struct {
		PrefixProgramName bool `json:"prefix_program_name" mapstructure:"prefix_program_name" toml:"prefix_program_name"`
		Quiet             bool `json:"quiet" mapstructure:"quiet" toml:"quiet"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme" toml:"color_scheme"`
		// Verbose enables debug logging and full error chains
		Verbose bool `json:"verbose" mapstructure:"verbose" toml:"verbose"`
	}
)

// Error implements the error interface.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %q (valid: %s)", e.Field, e.Value, e.Allowed)
}

// Unwrap returns the field's sentinel error.
func (e *InvalidValueError) Unwrap() error { return e.sentinel }

// String returns the string representation of the LauncherMode.
func (m LauncherMode) String() string { return string(m) }

// IsValid returns whether the LauncherMode is one of the defined launchers,
// and a list of validation errors if it is not.
func (m LauncherMode) IsValid() (bool, []error) {
	switch m {
	case LauncherNative, LauncherPTY, LauncherVirtual:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "launcher", Value: string(m), Allowed: "native, pty, virtual", sentinel: ErrInvalidLauncherMode}}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is known.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "log_level", Value: string(l), Allowed: "debug, info, warn, error", sentinel: ErrInvalidLogLevel}}
	}
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "ui.color_scheme", Value: string(cs), Allowed: "auto, dark, light", sentinel: ErrInvalidColorScheme}}
	}
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (c Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidTimeout, c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w %q: must not be negative", ErrInvalidTimeout, c.Timeout)
	}
	return d, nil
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Launcher.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap exposes ErrInvalidConfig and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Launcher: LauncherNative,
		LogLevel: LogLevelInfo,
		Timeout:  "0s",
		Process: ProcessConfig{
			InheritEnv:    true,
			DisableColors: false,
			SpawnOnHost:   false,
		},
		Output: OutputConfig{
			PrefixProgramName: false,
			Quiet:             false,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
