// SPDX-License-Identifier: MPL-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/procdrive/procdrive/internal/testutil"
	"github.com/procdrive/procdrive/pkg/command"
	"github.com/procdrive/procdrive/pkg/interaction"
)

// fakeInput records what the engine writes to a child's stdin.
type fakeInput struct {
	mu     sync.Mutex
	buf    strings.Builder
	writes int
	closed chan struct{}
	once   sync.Once
}

func newFakeInput() *fakeInput { return &fakeInput{closed: make(chan struct{})} }

func (f *fakeInput) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	f.writes++
	return f.buf.Write(p)
}

func (f *fakeInput) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeInput) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func (f *fakeInput) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeChild is a scripted child process. It exits when killed, or right
// away when exitOnStart is set.
type fakeChild struct {
	stdin    *fakeInput
	output   io.ReadCloser
	exitCode ExitCode
	killed   chan struct{}
	kills    int
	killOnce sync.Once
	mu       sync.Mutex
	// exitOnStart makes wait return immediately.
	exitOnStart bool
}

func newFakeChild(output io.Reader, exitOnStart bool) *fakeChild {
	return &fakeChild{
		stdin:       newFakeInput(),
		output:      io.NopCloser(output),
		killed:      make(chan struct{}),
		exitOnStart: exitOnStart,
	}
}

func (f *fakeChild) process() *Process {
	return NewProcess(0, f.stdin, f.output,
		func() (ExitCode, error) {
			if !f.exitOnStart {
				<-f.killed
				return ExitCodeUnknown, nil
			}
			return f.exitCode, nil
		},
		func() error {
			f.mu.Lock()
			f.kills++
			f.mu.Unlock()
			f.killOnce.Do(func() { close(f.killed) })
			return nil
		})
}

func (f *fakeChild) killCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kills
}

// funcStrategy lets tests plug arbitrary behavior into the engine.
type funcStrategy struct {
	requiresInput bool
	replies       func(*interaction.Sentence) (interaction.Answer, error)
	output        func(*interaction.Sentence) bool
	transformer   interaction.OutputTransformer
}

func (s *funcStrategy) RequiresInput() bool { return s.requiresInput }

func (s *funcStrategy) RepliesTo(sentence *interaction.Sentence) (interaction.Answer, error) {
	if s.replies == nil {
		return interaction.NoAnswer, nil
	}
	return s.replies(sentence)
}

func (s *funcStrategy) ShouldOutput(sentence *interaction.Sentence) bool {
	return s.output != nil && s.output(sentence)
}

func (s *funcStrategy) ShouldOutputToErr(*interaction.Sentence) bool { return false }

func (s *funcStrategy) OutputTransformer() interaction.OutputTransformer { return s.transformer }

func mustBuild(t *testing.T, b *interaction.Builder) *interaction.RuleStrategy {
	t.Helper()
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return s
}

func consume(t *testing.T, cmd command.Command, child *fakeChild, strategy interaction.Strategy, opts ...Option) (*Execution, error) {
	t.Helper()
	registry := NewShutdownRegistry()
	opts = append([]Option{
		WithStrategy(strategy),
		WithLogger(testutil.DiscardLogger()),
		WithRegistry(registry),
		WithStdout(io.Discard),
		WithStderr(io.Discard),
	}, opts...)
	ex := NewExecution(cmd, child.process(), registry, testutil.DiscardLogger())
	err := NewConsumer(opts...).Consume(context.Background(), ex)
	return ex, err
}

func TestConsume_AnswersPromptWithEcho(t *testing.T) {
	t.Parallel()

	strategy := mustBuild(t, interaction.NewBuilder().
		When("Password: ").ReplyWith("secret\n"))
	child := newFakeChild(strings.NewReader("Password: Welcome\n"), true)

	ex, err := consume(t, command.Of("login"), child, strategy)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	want := []string{"Password: secret", "Welcome"}
	if got := ex.Output(); !slices.Equal(got, want) {
		t.Errorf("Output() = %q, want %q", got, want)
	}
	if got := child.stdin.String(); got != "secret\n" {
		t.Errorf("stdin = %q, want %q", got, "secret\n")
	}
	if !ex.IsFinished() {
		t.Error("IsFinished() = false after Consume")
	}
}

func TestConsume_TerminatesOnFirstRune(t *testing.T) {
	t.Parallel()

	strategy := mustBuild(t, interaction.NewBuilder().When(".").Terminates())
	child := newFakeChild(strings.NewReader("Hello\nWorld\n"), true)

	ex, err := consume(t, command.Of("greeter"), child, strategy)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got, want := ex.Output(), []string{"H"}; !slices.Equal(got, want) {
		t.Errorf("Output() = %q, want %q", got, want)
	}
	if !child.stdin.isClosed() {
		t.Error("stdin still open after Consume")
	}
}

func TestConsume_ClosesInputBeforeReading(t *testing.T) {
	t.Parallel()

	outR, outW := io.Pipe()
	child := newFakeChild(outR, true)
	done := make(chan error, 1)
	var ex *Execution
	go func() {
		var err error
		ex, err = consume(t, command.Of("cat"), child, interaction.Silent())
		done <- err
	}()

	// Nothing has been written yet, so the engine can only have closed stdin
	// before its first read.
	testutil.MustReceive(t, child.stdin.closed, 2*time.Second, "stdin close")

	if _, err := io.WriteString(outW, "line\n"); err != nil {
		t.Fatalf("write output: %v", err)
	}
	testutil.MustClose(t, outW)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Consume() did not return")
	}
	if got, want := ex.Output(), []string{"line"}; !slices.Equal(got, want) {
		t.Errorf("Output() = %q, want %q", got, want)
	}
}

func TestConsume_FlushesPartialSentence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{"trailing fragment", "one\ntwo", []string{"one", "two"}},
		{"blank lines kept", "a\n\nb\n", []string{"a", "", "b"}},
		{"no output", "", nil},
		{"trailing whitespace trimmed", "x  \t\n", []string{"x"}},
		{"crlf", "dos\r\n", []string{"dos"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ex, err := consume(t, command.Of("p"), newFakeChild(strings.NewReader(tt.output), true), interaction.Silent())
			if err != nil {
				t.Fatalf("Consume() error = %v", err)
			}
			if got := ex.Output(); !slices.Equal(got, tt.want) {
				t.Errorf("Output() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsume_RoutesThroughTransformer(t *testing.T) {
	t.Parallel()

	strategy := mustBuild(t, interaction.NewBuilder().
		Outputs("out.*").
		OutputsToErr("err.*").
		Transformer(interaction.ProgramNamePrefix{}))
	var stdout, stderr bytes.Buffer

	_, err := consume(t, command.Of("tool", "-v"),
		newFakeChild(strings.NewReader("out 1\nerr 2\nnone\n"), true),
		strategy, WithStdout(&stdout), WithStderr(&stderr))
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got, want := stdout.String(), "(tool) out 1\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got, want := stderr.String(), "(tool) err 2\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestConsume_CustomBoundary(t *testing.T) {
	t.Parallel()

	semicolon := func(s *interaction.Sentence) bool { return s.EndsWith(";") }
	ex, err := consume(t, command.Of("p"), newFakeChild(strings.NewReader("a;b;c"), true),
		interaction.Silent(), WithBoundary(semicolon))
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got, want := ex.Output(), []string{"a;", "b;", "c"}; !slices.Equal(got, want) {
		t.Errorf("Output() = %q, want %q", got, want)
	}
}

func TestConsume_WriteErrorsDoNotStopDraining(t *testing.T) {
	t.Parallel()

	// The strategy answers but claims it needs no input, so stdin is
	// already closed when the answer is written.
	strategy := &funcStrategy{
		replies: func(s *interaction.Sentence) (interaction.Answer, error) {
			if s.String() == "? " {
				return interaction.Answer{Text: "y\n"}, nil
			}
			return interaction.NoAnswer, nil
		},
	}
	child := newFakeChild(strings.NewReader("? done\n"), true)

	ex, err := consume(t, command.Of("p"), child, strategy)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got, want := ex.Output(), []string{"? y", "done"}; !slices.Equal(got, want) {
		t.Errorf("Output() = %q, want %q", got, want)
	}
	if got := child.stdin.String(); got != "" {
		t.Errorf("stdin = %q, want nothing written", got)
	}
}

func TestConsume_StrategyFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name       string
		strategy   *funcStrategy
		wantOp     string
		wantOutput []string
	}{
		{
			name: "reply error",
			strategy: &funcStrategy{replies: func(s *interaction.Sentence) (interaction.Answer, error) {
				if s.String() == "ab" {
					return interaction.NoAnswer, boom
				}
				return interaction.NoAnswer, nil
			}},
			wantOp:     "reply",
			wantOutput: []string{"first", "ab"},
		},
		{
			name: "reply panic",
			strategy: &funcStrategy{replies: func(s *interaction.Sentence) (interaction.Answer, error) {
				if s.String() == "ab" {
					panic("bad pattern")
				}
				return interaction.NoAnswer, nil
			}},
			wantOp:     "reply",
			wantOutput: []string{"first", "ab"},
		},
		{
			name: "output predicate panic",
			strategy: &funcStrategy{output: func(s *interaction.Sentence) bool {
				if s.String() == "first" {
					panic("bad predicate")
				}
				return false
			}},
			wantOp:     "route output",
			wantOutput: []string{"first"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			child := newFakeChild(strings.NewReader("first\nabc\n"), false)
			ex, err := consume(t, command.Of("p"), child, tt.strategy)

			var strategyErr *StrategyError
			if !errors.As(err, &strategyErr) {
				t.Fatalf("Consume() error = %v, want *StrategyError", err)
			}
			if !errors.Is(err, ErrStrategy) {
				t.Error("errors.Is(err, ErrStrategy) = false")
			}
			if strategyErr.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", strategyErr.Op, tt.wantOp)
			}
			if got := ex.Output(); !slices.Equal(got, tt.wantOutput) {
				t.Errorf("Output() = %q, want %q", got, tt.wantOutput)
			}
			if !errors.Is(ex.Err(), ErrStrategy) {
				t.Errorf("Err() = %v, want strategy error", ex.Err())
			}
			if child.killCount() == 0 {
				t.Error("child was not terminated after strategy failure")
			}
		})
	}
}

func TestConsume_DaemonRegistersHookOnce(t *testing.T) {
	t.Parallel()

	strategy := mustBuild(t, interaction.NewBuilder().When(`ready\s*`).Terminates())
	child := newFakeChild(strings.NewReader("starting\nready\nserving\n"), false)
	registry := NewShutdownRegistry()
	ex := NewExecution(command.Of("server").AsDaemon(true), child.process(), registry, testutil.DiscardLogger())

	err := NewConsumer(WithStrategy(strategy), WithLogger(testutil.DiscardLogger()), WithStdout(io.Discard)).
		Consume(context.Background(), ex)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	if got, want := ex.Output(), []string{"starting", "ready"}; !slices.Equal(got, want) {
		t.Errorf("Output() = %q, want %q", got, want)
	}
	if !ex.ShutdownHookRegistered() || !registry.Registered(ex.ID()) {
		t.Fatal("daemon shutdown hook not registered")
	}
	if !ex.RegisterShutdownHook() {
		t.Error("second RegisterShutdownHook() = false, want true")
	}
	if registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1", registry.Len())
	}

	res, err := ex.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if !res.Daemon || !res.Success() {
		t.Errorf("Await() = %+v, want running daemon", res)
	}

	if err := registry.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if child.killCount() != 1 {
		t.Errorf("kill count = %d, want 1", child.killCount())
	}
	testutil.MustReceive(t, ex.Exited(), 2*time.Second, "daemon exit")
	if err := registry.Shutdown(); err != nil || child.killCount() != 1 {
		t.Errorf("second Shutdown() ran hooks again (kills=%d, err=%v)", child.killCount(), err)
	}
}

func TestConsume_NonDaemonHasNoHook(t *testing.T) {
	t.Parallel()

	child := newFakeChild(strings.NewReader("x\n"), true)
	child.exitCode = 4
	ex, err := consume(t, command.Of("p"), child, interaction.Silent())
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if ex.ShutdownHookRegistered() {
		t.Error("non-daemon registered a shutdown hook")
	}

	res, err := ex.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if res.ExitCode != 4 || res.Success() {
		t.Errorf("Await() = %+v, want exit code 4", res)
	}
	if got, want := res.Output, []string{"x"}; !slices.Equal(got, want) {
		t.Errorf("Output = %q, want %q", got, want)
	}
}

func TestAwait_ContextCanceled(t *testing.T) {
	t.Parallel()

	outR, outW := io.Pipe()
	t.Cleanup(func() { _ = outW.Close() })
	ex := NewExecution(command.Of("p"), newFakeChild(outR, true).process(), NewShutdownRegistry(), testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ex.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Await() error = %v, want context.Canceled", err)
	}
}

func TestExecution_WriteInputAfterClose(t *testing.T) {
	t.Parallel()

	child := newFakeChild(strings.NewReader(""), true)
	ex := NewExecution(command.Of("p"), child.process(), NewShutdownRegistry(), testutil.DiscardLogger())

	if err := ex.WriteInput("a"); err != nil {
		t.Fatalf("WriteInput() error = %v", err)
	}
	if err := ex.closeInput(); err != nil {
		t.Fatalf("closeInput() error = %v", err)
	}
	if err := ex.WriteInput("b"); !errors.Is(err, ErrInputClosed) {
		t.Errorf("WriteInput() after close error = %v, want ErrInputClosed", err)
	}
	if got := child.stdin.String(); got != "a" {
		t.Errorf("stdin = %q, want %q", got, "a")
	}
}

func TestAwaitTimeout_OutputHeldOpenByDescendant(t *testing.T) {
	t.Parallel()

	// Nothing ever writes or closes the write end, like a grandchild that
	// inherited the pipe and outlives the killed child.
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	child := newFakeChild(nil, false)
	child.output = pr

	ex := NewExecution(command.Of("wrapper"), child.process(), NewShutdownRegistry(), testutil.DiscardLogger())
	go func() {
		_ = NewConsumer(WithStrategy(interaction.Silent()), WithLogger(testutil.DiscardLogger())).
			Consume(context.Background(), ex)
	}()

	start := time.Now()
	_, err := AwaitTimeout(context.Background(), ex, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("AwaitTimeout() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed >= terminateGrace {
		t.Errorf("AwaitTimeout() took %s", elapsed)
	}
	testutil.MustReceive(t, ex.Done(), time.Second, "consumer to finish")
	testutil.MustReceive(t, ex.Exited(), time.Second, "child to be reaped")
	if child.killCount() != 1 {
		t.Errorf("kill count = %d, want 1", child.killCount())
	}
}

func TestRegisterShutdownHook_RacesWithExit(t *testing.T) {
	t.Parallel()

	for range 50 {
		child := newFakeChild(strings.NewReader(""), true)
		registry := NewShutdownRegistry()
		ex := NewExecution(command.Of("d").AsDaemon(true), child.process(), registry, testutil.DiscardLogger())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			ex.reap()
		}()
		go func() {
			defer wg.Done()
			ex.RegisterShutdownHook()
		}()
		wg.Wait()

		if registry.Registered(ex.ID()) {
			t.Fatal("hook left registered for a reaped child")
		}
	}
}
