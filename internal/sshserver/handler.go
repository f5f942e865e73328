// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/procdrive/procdrive/internal/process"
	"github.com/procdrive/procdrive/internal/session"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

// sessionExt is the file extension of session files in SessionDir.
const sessionExt = ".cue"

// sessionMiddleware runs the session named by the SSH command. Without a
// command it lists the sessions the token may run. Every path ends the SSH
// session, so the rest of the chain is never reached.
func (s *Server) sessionMiddleware() wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return s.handleSession
	}
}

func (s *Server) handleSession(sess ssh.Session) {
	token, _ := sess.Context().Value(tokenContextKey).(*Token)

	args := sess.Command()
	switch {
	case len(args) == 0:
		s.listSessions(sess, token)
	case len(args) > 1:
		wish.Fatalln(sess, "usage: ssh <host> [session]")
	case token != nil && !token.Allows(args[0]):
		s.logger.Warn("session denied", "session", args[0], "user", sess.User())
		wish.Fatalln(sess, &SessionError{Name: args[0], Err: ErrSessionNotAllowed})
	default:
		s.runSession(sess, args[0])
	}
}

func (s *Server) listSessions(sess ssh.Session, token *Token) {
	names, err := s.Sessions()
	if err != nil {
		wish.Fatalln(sess, err)
		return
	}
	for _, name := range names {
		if token == nil || token.Allows(name) {
			wish.Println(sess, name)
		}
	}
	_ = sess.Exit(0)
}

func (s *Server) runSession(sess ssh.Session, name string) {
	s.logger.Info("running session", "session", name, "user", sess.User(), "remote", sess.RemoteAddr())

	code, err := s.RunSession(sess.Context(), name, sess, sess.Stderr())
	if err != nil {
		s.logger.Warn("session failed", "session", name, "error", err)
		wish.Errorln(sess, err)
		if code == 0 || code == process.ExitCodeUnknown {
			code = 1
		}
	}
	_ = sess.Exit(int(code))
}

// Sessions returns the names of the session files in SessionDir, sorted.
func (s *Server) Sessions() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("reading session directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != sessionExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), sessionExt))
	}
	slices.Sort(names)
	return names, nil
}

// RunSession loads the named session and runs it to completion, routing the
// strategy's output to stdout and stderr. A non-zero exit status is returned
// as a code, not an error. Cancelling ctx kills a non-daemon child. Daemon
// sessions return once the interaction ends and stay registered for shutdown.
func (s *Server) RunSession(ctx context.Context, name string, stdout, stderr io.Writer) (process.ExitCode, error) {
	path, err := s.sessionPath(name)
	if err != nil {
		return process.ExitCodeUnknown, err
	}
	sf, err := session.Load(path)
	if err != nil {
		return process.ExitCodeUnknown, &SessionError{Name: name, Err: err}
	}

	strategy, err := sf.Strategy(nil)
	if err != nil {
		return process.ExitCodeUnknown, &SessionError{Name: name, Err: err}
	}
	launcher, err := sf.NewLauncher(s.cfg.Launcher)
	if err != nil {
		return process.ExitCodeUnknown, &SessionError{Name: name, Err: err}
	}
	timeout := s.cfg.Timeout
	if sf.Timeout != "" {
		if timeout, err = sf.TimeoutDuration(); err != nil {
			return process.ExitCodeUnknown, &SessionError{Name: name, Err: err}
		}
	}

	executor := process.NewExecutor(
		process.WithLauncher(launcher),
		process.WithLaunchOptions(sf.LaunchOptions(s.cfg.LaunchOptions)),
		process.WithStrategy(strategy),
		process.WithStdout(stdout),
		process.WithStderr(stderr),
		process.WithLogger(s.logger),
		process.WithRegistry(s.cfg.Registry),
	)
	// Daemons outlive the connection and end with the server.
	launchCtx := ctx
	if sf.Daemon && s.ctx != nil {
		launchCtx = s.ctx
	}
	ex, err := executor.Execute(launchCtx, sf.BuildCommand())
	if err != nil {
		return process.ExitCodeUnknown, err
	}

	res, err := process.AwaitTimeout(ctx, ex, timeout)
	if err != nil {
		if res != nil {
			return res.ExitCode, err
		}
		return process.ExitCodeUnknown, err
	}
	if res.Daemon {
		s.logger.Info("daemon session running", "session", name, "pid", ex.PID())
		return 0, nil
	}
	return res.ExitCode, nil
}

// sessionPath resolves name to a session file inside SessionDir.
func (s *Server) sessionPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !filepath.IsLocal(name) {
		return "", &SessionError{Name: name, Err: ErrInvalidSessionName}
	}
	path := filepath.Join(s.cfg.SessionDir, name+sessionExt)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &SessionError{Name: name, Err: ErrSessionNotFound}
		}
		return "", &SessionError{Name: name, Err: err}
	}
	return path, nil
}
