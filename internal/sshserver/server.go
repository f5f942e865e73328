// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

const (
	// StateCreated indicates the server was created but Start was not called.
	StateCreated State = iota
	// StateStarting indicates Start was called and the server is initializing.
	StateStarting
	// StateRunning indicates the server is accepting connections.
	StateRunning
	// StateStopping indicates Stop was called and shutdown is in progress.
	StateStopping
	// StateStopped is terminal: the server has stopped.
	StateStopped
	// StateFailed is terminal: the server failed to start or serve.
	StateFailed
)

type (
	// State is the lifecycle state of a Server.
	State int32

	// Server serves session files over SSH.
	// A Server instance is single-use: once stopped or failed, create a new instance.
	Server struct {
		cfg    Config
		logger *log.Logger
		now    func() time.Time

		state   atomic.Int32
		stateMu sync.Mutex
		lastErr error

		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error

		tokenMu sync.RWMutex
		tokens  map[TokenValue]*Token
	}
)

// String returns a human-readable representation of the server state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// New creates a server. It does not listen until Start is called.
func New(cfg Config) *Server {
	cfg.applyDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "ssh-server"})
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		tokens:    make(map[TokenValue]*Token),
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	s.state.Store(int32(StateCreated))
	return s
}

// Start listens and blocks until the server accepts connections, fails, or
// the startup timeout expires. After Start returns nil, use Err to monitor
// runtime errors.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return s.fail(fmt.Errorf("context cancelled before start: %w", ctx.Err()))
	default:
	}
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", s.State())
	}
	if err := s.cfg.Validate(); err != nil {
		return s.fail(err)
	}
	if info, err := os.Stat(s.cfg.SessionDir); err != nil {
		return s.fail(fmt.Errorf("session directory: %w", err))
	} else if !info.IsDir() {
		return s.fail(fmt.Errorf("session directory %s is not a directory", s.cfg.SessionDir))
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	addr := net.JoinHostPort(s.cfg.Host.String(), strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		return s.fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
	}

	srv, err := wish.NewServer(
		wish.WithAddress(addr),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithMiddleware(s.sessionMiddleware()),
	)
	if err != nil {
		_ = listener.Close()
		return s.fail(fmt.Errorf("failed to create SSH server: %w", err))
	}

	s.srvMu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	s.wg.Add(2)
	go s.serve()
	go s.cleanupExpiredTokens()

	select {
	case <-s.startedCh:
		s.logger.Info("SSH server started", "address", s.Address(), "sessions", s.cfg.SessionDir)
		return nil
	case err := <-s.errCh:
		return s.fail(err)
	case <-startupCtx.Done():
		return s.fail(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
	}
}

// Stop shuts the server down and waits for its goroutines. Sessions still
// running are given ShutdownTimeout to finish. Safe to call more than once.
func (s *Server) Stop() error {
	if !s.transitionToStopping() {
		s.wg.Wait()
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	s.srvMu.Lock()
	if s.srv != nil {
		if err := s.srv.Shutdown(shutdownCtx); err != nil && !isClosedErr(err) {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.srvMu.Unlock()

	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	close(s.errCh)
	s.logger.Info("SSH server stopped")
	return shutdownErr
}

// State returns the current server state.
func (s *Server) State() State { return State(s.state.Load()) }

// IsRunning reports whether the server accepts connections.
func (s *Server) IsRunning() bool { return s.State() == StateRunning }

// Err returns a channel receiving errors raised after Start returned.
func (s *Server) Err() <-chan error { return s.errCh }

// LastError returns the error that failed the server, or nil.
func (s *Server) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Address returns the bound host:port, or "" before the server runs.
func (s *Server) Address() string {
	select {
	case <-s.startedCh:
	default:
		return ""
	}
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

// Port returns the bound port, or 0 before the server runs.
func (s *Server) Port() int {
	_, portStr, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// Host returns the configured bind address.
func (s *Server) Host() HostAddress { return s.cfg.Host }

// Wait blocks until the server's goroutines have exited and returns the
// failure, if any.
func (s *Server) Wait() error {
	s.wg.Wait()
	if s.State() == StateFailed {
		return s.LastError()
	}
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(s.startedCh)
	}

	s.srvMu.Lock()
	srv, listener := s.srv, s.listener
	s.srvMu.Unlock()

	if err := srv.Serve(listener); err != nil && !isClosedErr(err) {
		s.sendError(fmt.Errorf("serve error: %w", err))
	}
}

// fail moves the server to StateFailed and records err.
func (s *Server) fail(err error) error {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
	s.state.Store(int32(StateFailed))

	if s.cancel != nil {
		s.cancel()
	}
	s.srvMu.Lock()
	if s.srv != nil {
		_ = s.srv.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.srvMu.Unlock()
	return err
}

func (s *Server) transitionToStopping() bool {
	for {
		current := s.State()
		switch current {
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				if s.cancel != nil {
					s.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

// sendError delivers err to Err consumers without blocking.
func (s *Server) sendError(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed)
}
