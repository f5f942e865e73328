// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/procdrive/procdrive/internal/process"
	"github.com/procdrive/procdrive/internal/testutil"

	"github.com/charmbracelet/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// newTestServer serves a temp directory holding the given session files.
func newTestServer(t *testing.T, sessions map[string]string) *Server {
	t.Helper()

	dir := t.TempDir()
	for name, content := range sessions {
		testutil.MustWriteFile(t, filepath.Join(dir, name), content)
	}
	return New(Config{
		SessionDir: dir,
		Launcher:   process.LauncherVirtual,
		Registry:   process.NewShutdownRegistry(),
		Logger:     testutil.DiscardLogger(),
	})
}

func startTestServer(t *testing.T, sessions map[string]string) *Server {
	t.Helper()

	srv := newTestServer(t, sessions)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	token, err := srv.GenerateToken("deploy")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if err := token.Value.Validate(); err != nil {
		t.Errorf("token value invalid: %v", err)
	}
	if token.Session != "deploy" {
		t.Errorf("Session = %q, want %q", token.Session, "deploy")
	}
	if !token.ExpiresAt.After(token.CreatedAt) {
		t.Error("token should expire after it was created")
	}

	other, err := srv.GenerateToken("deploy")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if other.Value == token.Value {
		t.Error("tokens should be unique")
	}
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now }

	token, err := srv.AddToken("s3cret", "", time.Minute)
	if err != nil {
		t.Fatalf("AddToken() error = %v", err)
	}

	if _, ok := srv.ValidateToken(token.Value); !ok {
		t.Error("token should be valid")
	}
	if _, ok := srv.ValidateToken("wrong"); ok {
		t.Error("unknown token should not be valid")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := srv.ValidateToken(token.Value); ok {
		t.Error("expired token should not be valid")
	}

	now = now.Add(time.Minute)
	if _, err := srv.AddToken("forever", "", 0); err != nil {
		t.Fatalf("AddToken() error = %v", err)
	}
	now = now.Add(24 * 365 * time.Hour)
	if _, ok := srv.ValidateToken("forever"); !ok {
		t.Error("token without ttl should not expire")
	}
}

func TestAddTokenRejectsBlank(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	_, err := srv.AddToken("  ", "", time.Minute)
	if !errors.Is(err, ErrInvalidTokenValue) {
		t.Errorf("AddToken() error = %v, want ErrInvalidTokenValue", err)
	}
}

func TestRevokeTokensForSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	token1, _ := srv.GenerateToken("build")
	token2, _ := srv.GenerateToken("build")
	token3, _ := srv.GenerateToken("test")

	srv.RevokeTokensForSession("build")

	if _, ok := srv.ValidateToken(token1.Value); ok {
		t.Error("token1 should be revoked")
	}
	if _, ok := srv.ValidateToken(token2.Value); ok {
		t.Error("token2 should be revoked")
	}
	if _, ok := srv.ValidateToken(token3.Value); !ok {
		t.Error("token3 should still be valid")
	}

	srv.RevokeToken(token3.Value)
	if _, ok := srv.ValidateToken(token3.Value); ok {
		t.Error("token3 should be revoked")
	}
}

func TestTokenAllows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scope   string
		session string
		want    bool
	}{
		{"", "anything", true},
		{"build", "build", true},
		{"build", "deploy", false},
	}

	for _, tt := range tests {
		tok := &Token{Value: "x", Session: tt.scope}
		if got := tok.Allows(tt.session); got != tt.want {
			t.Errorf("Token{Session: %q}.Allows(%q) = %v, want %v", tt.scope, tt.session, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"blank host", func(c *Config) { c.Host = " " }, ErrInvalidHostAddress},
		{"negative port", func(c *Config) { c.Port = -1 }, ErrInvalidListenPort},
		{"port too large", func(c *Config) { c.Port = 70000 }, ErrInvalidListenPort},
		{"unknown launcher", func(c *Config) { c.Launcher = "docker" }, process.ErrInvalidLauncherKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidServerConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidServerConfig", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	if srv.State() != StateCreated {
		t.Errorf("initial state = %s, want created", srv.State())
	}
	if srv.Address() != "" {
		t.Errorf("Address() before start = %q, want empty", srv.Address())
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !srv.IsRunning() {
		t.Errorf("state after start = %s, want running", srv.State())
	}
	if srv.Port() == 0 {
		t.Error("Port() should be resolved after start")
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("state after stop = %s, want stopped", srv.State())
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("state = %s, want stopped", srv.State())
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("Start() after Stop() should fail")
	}
}

func TestStartFailures(t *testing.T) {
	t.Parallel()

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := srv.Start(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
		if srv.State() != StateFailed {
			t.Errorf("state = %s, want failed", srv.State())
		}
		if !errors.Is(srv.Wait(), context.Canceled) {
			t.Errorf("Wait() error = %v, want context.Canceled", srv.Wait())
		}
	})

	t.Run("missing session dir", func(t *testing.T) {
		t.Parallel()

		srv := New(Config{
			SessionDir: filepath.Join(t.TempDir(), "missing"),
			Logger:     testutil.DiscardLogger(),
		})
		if err := srv.Start(context.Background()); err == nil {
			t.Error("Start() should fail for a missing session directory")
		}
		if srv.LastError() == nil {
			t.Error("LastError() should record the failure")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		srv := New(Config{SessionDir: t.TempDir(), Port: -5, Logger: testutil.DiscardLogger()})
		if err := srv.Start(context.Background()); !errors.Is(err, ErrInvalidListenPort) {
			t.Errorf("Start() error = %v, want ErrInvalidListenPort", err)
		}
	})
}

func TestSessions(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, map[string]string{
		"b.cue":     `command: ["echo", "b"]`,
		"a.cue":     `command: ["echo", "a"]`,
		"notes.txt": "not a session",
	})

	got, err := srv.Sessions()
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if want := []string{"a", "b"}; !slices.Equal(got, want) {
		t.Errorf("Sessions() = %v, want %v", got, want)
	}
}

func TestRunSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, map[string]string{
		"greet.cue":  "command: [\"echo\", \"hello\"]\n",
		"fail.cue":   "command: [\"exit\", \"3\"]\n",
		"quiet.cue":  "command: [\"echo\", \"hidden\"]\nquiet: true\n",
		"broken.cue": "command: []\n",
	})

	tests := []struct {
		name     string
		session  string
		wantOut  string
		wantCode process.ExitCode
		wantErr  error
	}{
		{name: "output", session: "greet", wantOut: "hello\n", wantCode: 0},
		{name: "exit code", session: "fail", wantCode: 3},
		{name: "quiet", session: "quiet", wantCode: 0},
		{name: "not found", session: "missing", wantCode: process.ExitCodeUnknown, wantErr: ErrSessionNotFound},
		{name: "path escape", session: "../greet", wantCode: process.ExitCodeUnknown, wantErr: ErrInvalidSessionName},
		{name: "invalid file", session: "broken", wantCode: process.ExitCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			code, err := srv.RunSession(context.Background(), tt.session, &stdout, &stderr)
			if code != tt.wantCode {
				t.Errorf("RunSession() code = %d, want %d", code, tt.wantCode)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("RunSession() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && tt.wantCode != process.ExitCodeUnknown && err != nil {
				t.Errorf("RunSession() error = %v", err)
			}
			if tt.wantCode == process.ExitCodeUnknown && err == nil {
				t.Error("RunSession() should fail")
			}
			if got := stdout.String(); got != tt.wantOut {
				t.Errorf("stdout = %q, want %q", got, tt.wantOut)
			}
		})
	}
}

func dialTestServer(t *testing.T, srv *Server, password string) (*gossh.Client, error) {
	t.Helper()

	return gossh.Dial("tcp", srv.Address(), &gossh.ClientConfig{
		User:            "procdrive",
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(), //nolint:gosec // test server with generated host key
		Timeout:         5 * time.Second,
	})
}

func TestServerOverSSH(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping SSH round trip in short mode")
	}
	t.Parallel()

	srv := startTestServer(t, map[string]string{
		"greet.cue": "command: [\"echo\", \"hello\"]\n",
		"fail.cue":  "command: [\"exit\", \"3\"]\n",
	})
	token, err := srv.GenerateToken("")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	scoped, err := srv.GenerateToken("greet")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	run := func(t *testing.T, password, command string) ([]byte, error) {
		t.Helper()

		client, err := dialTestServer(t, srv, password)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		defer testutil.MustClose(t, client)
		sess, err := client.NewSession()
		if err != nil {
			t.Fatalf("NewSession() error = %v", err)
		}
		defer func() { _ = sess.Close() }()
		return sess.Output(command)
	}

	t.Run("output", func(t *testing.T) {
		out, err := run(t, token.Value.String(), "greet")
		if err != nil {
			t.Fatalf("Output() error = %v", err)
		}
		if string(out) != "hello\n" {
			t.Errorf("output = %q, want %q", out, "hello\n")
		}
	})

	t.Run("exit status", func(t *testing.T) {
		_, err := run(t, token.Value.String(), "fail")
		var exitErr *gossh.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("Output() error = %v, want *ssh.ExitError", err)
		}
		if exitErr.ExitStatus() != 3 {
			t.Errorf("exit status = %d, want 3", exitErr.ExitStatus())
		}
	})

	t.Run("list", func(t *testing.T) {
		out, err := run(t, scoped.Value.String(), "")
		if err != nil {
			t.Fatalf("Output() error = %v", err)
		}
		if string(out) != "greet\n" {
			t.Errorf("output = %q, want only the scoped session", out)
		}
	})

	t.Run("scoped token", func(t *testing.T) {
		_, err := run(t, scoped.Value.String(), "fail")
		var exitErr *gossh.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitStatus() != 1 {
			t.Errorf("Output() error = %v, want exit status 1", err)
		}
	})

	t.Run("bad token", func(t *testing.T) {
		if _, err := dialTestServer(t, srv, "wrong"); err == nil {
			t.Error("Dial() with an unknown token should fail")
		}
	})
}

// fakeContext carries the authenticated token like the SSH server's context.
type fakeContext struct {
	ssh.Context
	token *Token
}

func (c fakeContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c fakeContext) Done() <-chan struct{}       { return nil }
func (c fakeContext) Err() error                  { return nil }

func (c fakeContext) Value(key any) any {
	if key == tokenContextKey && c.token != nil {
		return c.token
	}
	return nil
}

// fakeSession implements the parts of ssh.Session the handler uses.
type fakeSession struct {
	ssh.Session
	ctx     fakeContext
	command []string
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	exits   []int
}

func (f *fakeSession) Context() ssh.Context        { return f.ctx }
func (f *fakeSession) Command() []string           { return f.command }
func (f *fakeSession) User() string                { return "tester" }
func (f *fakeSession) RemoteAddr() net.Addr        { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (f *fakeSession) Write(p []byte) (int, error) { return f.stdout.Write(p) }
func (f *fakeSession) Stderr() io.ReadWriter       { return &f.stderr }
func (f *fakeSession) Close() error                { return nil }

func (f *fakeSession) Exit(code int) error {
	f.exits = append(f.exits, code)
	return nil
}

func TestSessionMiddlewareEndsChain(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, map[string]string{
		"greet.cue": "command: [\"echo\", \"hello\"]\n",
		"other.cue": "command: [\"echo\", \"other\"]\n",
	})
	scoped := &Token{Value: "t", Session: "greet"}

	tests := []struct {
		name       string
		command    []string
		wantStdout string
		wantExit   int
	}{
		{"list", nil, "greet\n", 0},
		{"run", []string{"greet"}, "hello\n", 0},
		{"denied", []string{"other"}, "", 1},
		{"usage", []string{"greet", "extra"}, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			nextCalled := false
			handler := srv.sessionMiddleware()(func(ssh.Session) { nextCalled = true })

			sess := &fakeSession{ctx: fakeContext{token: scoped}, command: tt.command}
			handler(sess)

			if nextCalled {
				t.Error("handler chained past an exited session")
			}
			if got := sess.stdout.String(); got != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", got, tt.wantStdout)
			}
			if len(sess.exits) == 0 || sess.exits[0] != tt.wantExit {
				t.Errorf("exits = %v, want first exit %d", sess.exits, tt.wantExit)
			}
		})
	}
}
