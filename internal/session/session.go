// SPDX-License-Identifier: MPL-2.0

package session

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/procdrive/procdrive/internal/process"
	"github.com/procdrive/procdrive/pkg/cueutil"
)

// FileExt is the conventional session file extension.
const FileExt = ".cue"

//go:embed session_schema.cue
var sessionSchema []byte

var (
	// ErrInvalidSession is the sentinel wrapped by InvalidSessionError.
	ErrInvalidSession = errors.New("invalid session")
	// ErrNoCommand is returned when a session names neither command nor line.
	ErrNoCommand = errors.New("session must set command or line")
	// ErrAmbiguousCommand is returned when a session sets both command and line.
	ErrAmbiguousCommand = errors.New("session must not set both command and line")
)

type (
	// Session is a decoded session file.
	Session struct {
		Command       []string          `json:"command,omitempty"`
		Line          string            `json:"line,omitempty"`
		Launcher      string            `json:"launcher,omitempty"`
		Daemon        bool              `json:"daemon,omitempty"`
		Dir           string            `json:"dir,omitempty"`
		Env           map[string]string `json:"env,omitempty"`
		InheritEnv    *bool             `json:"inherit_env,omitempty"`
		DisableColors *bool             `json:"disable_colors,omitempty"`
		Timeout       string            `json:"timeout,omitempty"`
		Prefix        bool              `json:"prefix,omitempty"`
		Quiet         bool              `json:"quiet,omitempty"`
		RequireInput  bool              `json:"require_input,omitempty"`
		Answers       []Answer          `json:"answers,omitempty"`
		Outputs       []string          `json:"outputs,omitempty"`
		ErrorOutputs  []string          `json:"error_outputs,omitempty"`
		PTY           *PTY              `json:"pty,omitempty"`

		// path is the file the session was loaded from, if any.
		path string
	}

	// Answer is one prompt rule.
	Answer struct {
		When      string `json:"when"`
		Reply     string `json:"reply,omitempty"`
		Newline   bool   `json:"newline"`
		Terminate bool   `json:"terminate"`
	}

	// PTY overrides the pseudo-terminal settings of the pty launcher.
	PTY struct {
		Rows uint16 `json:"rows,omitempty"`
		Cols uint16 `json:"cols,omitempty"`
		Echo *bool  `json:"echo,omitempty"`
	}

	// InvalidSessionError reports a session that passed the schema but
	// cannot be run.
	InvalidSessionError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *InvalidSessionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid session: %v", e.Err)
	}
	return fmt.Sprintf("invalid session %s: %v", e.Path, e.Err)
}

// Unwrap exposes ErrInvalidSession and the cause.
func (e *InvalidSessionError) Unwrap() []error { return []error{ErrInvalidSession, e.Err} }

// Load reads and validates the session file at path.
func Load(path string) (*Session, error) {
	s, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Read checks the session file at path against the schema only. Callers
// that complete the session (e.g. from command-line flags) must call
// Validate before running it.
func Read(path string) (*Session, error) {
	result, err := cueutil.ParseFile[Session](sessionSchema, path, "#Session")
	if err != nil {
		return nil, err
	}
	s := result.Value
	s.path = path
	return s, nil
}

// Parse validates a session held in memory. filename is used in error
// messages and may be empty.
func Parse(data []byte, filename string) (*Session, error) {
	var opts []cueutil.Option
	if filename != "" {
		opts = append(opts, cueutil.WithFilename(filename))
	}
	result, err := cueutil.ParseAndDecode[Session](sessionSchema, data, "#Session", opts...)
	if err != nil {
		return nil, err
	}
	s := result.Value
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file the session was loaded from, or "".
func (s *Session) Path() string { return s.path }

// Validate checks the constraints the schema cannot express.
func (s *Session) Validate() error {
	switch {
	case len(s.Command) == 0 && s.Line == "":
		return &InvalidSessionError{Path: s.path, Err: ErrNoCommand}
	case len(s.Command) > 0 && s.Line != "":
		return &InvalidSessionError{Path: s.path, Err: ErrAmbiguousCommand}
	}
	if s.Launcher != "" {
		if valid, errs := process.LauncherKind(s.Launcher).IsValid(); !valid {
			return &InvalidSessionError{Path: s.path, Err: errs[0]}
		}
	}
	if _, err := s.TimeoutDuration(); err != nil {
		return &InvalidSessionError{Path: s.path, Err: err}
	}
	if _, err := s.Strategy(nil); err != nil {
		return &InvalidSessionError{Path: s.path, Err: err}
	}
	return nil
}

// TimeoutDuration parses Timeout. Zero means no timeout.
func (s *Session) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}

// WorkDir returns Dir resolved against the session file's directory.
func (s *Session) WorkDir() string {
	if s.Dir == "" || filepath.IsAbs(s.Dir) || s.path == "" {
		return s.Dir
	}
	return filepath.Join(filepath.Dir(s.path), s.Dir)
}
