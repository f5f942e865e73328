// SPDX-License-Identifier: MPL-2.0

package process

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/procdrive/procdrive/pkg/command"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Execution is the caller's handle on a running child. Its state moves from
// running to finished exactly once: the Consumer finishes it when the output
// stream ends, or a terminating answer finishes it early.
type Execution struct {
	id       string
	cmd      command.Command
	proc     *Process
	registry *ShutdownRegistry
	logger   *log.Logger

	finished atomic.Bool

	outputMu sync.Mutex
	output   []string

	inputMu     sync.Mutex
	inputClosed bool

	// Written before done or exited is closed.
	err      error
	exitCode ExitCode
	waitErr  error

	done     chan struct{}
	doneOnce sync.Once
	exited   chan struct{}

	hookOnce       sync.Once
	hookMu         sync.Mutex
	hookRegistered atomic.Bool
}

// NewExecution wraps a launched process. Executor.Execute calls it; use it
// directly only when driving a Consumer by hand. A nil registry selects
// DefaultShutdownRegistry.
func NewExecution(cmd command.Command, proc *Process, registry *ShutdownRegistry, logger *log.Logger) *Execution {
	if registry == nil {
		registry = DefaultShutdownRegistry
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Execution{
		id:       uuid.NewString(),
		cmd:      cmd,
		proc:     proc,
		registry: registry,
		logger:   logger,
		exitCode: ExitCodeUnknown,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// ID uniquely identifies the execution. It keys the shutdown hook.
func (e *Execution) ID() string { return e.id }

// Command returns the command being executed.
func (e *Execution) Command() command.Command { return e.cmd }

// ProgramName returns the name of the executing program.
func (e *Execution) ProgramName() string { return e.cmd.ProgramName() }

// IsDaemon reports whether the command was launched as a daemon.
func (e *Execution) IsDaemon() bool { return e.cmd.IsDaemon() }

// PID returns the child's process id, or 0 for in-process children.
func (e *Execution) PID() int { return e.proc.PID() }

// IsFinished reports whether the interaction is over.
func (e *Execution) IsFinished() bool { return e.finished.Load() }

// MarkFinished ends the interaction. The Consumer stops reading at the next
// rune boundary. Calling it more than once has no further effect.
func (e *Execution) MarkFinished() { e.finished.Store(true) }

// WriteInput writes text to the child's standard input. It returns
// ErrInputClosed once input has been closed.
func (e *Execution) WriteInput(text string) error {
	e.inputMu.Lock()
	defer e.inputMu.Unlock()
	if e.inputClosed {
		return ErrInputClosed
	}
	_, err := io.WriteString(e.proc.stdin, text)
	return err
}

// closeInput closes the child's standard input once.
func (e *Execution) closeInput() error {
	e.inputMu.Lock()
	defer e.inputMu.Unlock()
	if e.inputClosed {
		return nil
	}
	e.inputClosed = true
	return e.proc.stdin.Close()
}

func (e *Execution) appendOutput(sentence string) {
	e.outputMu.Lock()
	defer e.outputMu.Unlock()
	e.output = append(e.output, sentence)
}

// Output returns a copy of the sentences captured so far.
func (e *Execution) Output() []string {
	e.outputMu.Lock()
	defer e.outputMu.Unlock()
	return slices.Clone(e.output)
}

// Done is closed when the Consumer has finished with the execution.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Exited is closed when the child has been reaped.
func (e *Execution) Exited() <-chan struct{} { return e.exited }

// Err returns the error that ended the interaction, if any. It is only
// meaningful after Done is closed.
func (e *Execution) Err() error {
	select {
	case <-e.done:
		return e.err
	default:
		return nil
	}
}

// ExitCode returns the child's exit status, or ExitCodeUnknown while it runs.
func (e *Execution) ExitCode() ExitCode {
	select {
	case <-e.exited:
		return e.exitCode
	default:
		return ExitCodeUnknown
	}
}

// Await blocks until the interaction is complete and returns its result.
// Non-daemon executions are also waited on until the child exits; daemons
// return as soon as the interaction is finished.
func (e *Execution) Await(ctx context.Context) (*Result, error) {
	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return e.Result(), e.err
	}
	if !e.IsDaemon() {
		select {
		case <-e.exited:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.waitErr != nil {
			return e.Result(), e.waitErr
		}
	}
	return e.Result(), nil
}

// Result returns a snapshot of the execution's current state.
func (e *Execution) Result() *Result {
	return &Result{
		ProgramName: e.ProgramName(),
		ExitCode:    e.ExitCode(),
		Output:      e.Output(),
		Daemon:      e.IsDaemon(),
	}
}

// Terminate kills the child immediately, together with its process group
// where the launcher provides one, and closes the output stream so the
// Consumer sees its end even if a descendant still holds the pipe.
func (e *Execution) Terminate() error {
	e.MarkFinished()
	err := e.proc.kill()
	if cerr := e.proc.closeOutput(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		e.logger.Debug("closing output", "program", e.ProgramName(), "error", cerr)
	}
	return err
}

// RegisterShutdownHook registers Terminate in the shutdown registry. Only
// the first call registers, and only while the child runs; it reports
// whether the hook is registered.
func (e *Execution) RegisterShutdownHook() bool {
	e.hookOnce.Do(func() {
		e.hookMu.Lock()
		defer e.hookMu.Unlock()
		select {
		case <-e.exited:
			return
		default:
		}
		if e.registry.Register(e.id, e.Terminate) {
			e.hookRegistered.Store(true)
			e.logger.Debug("registered shutdown hook", "program", e.ProgramName(), "id", e.id)
		}
	})
	return e.hookRegistered.Load()
}

// ShutdownHookRegistered reports whether RegisterShutdownHook succeeded.
func (e *Execution) ShutdownHookRegistered() bool { return e.hookRegistered.Load() }

// complete records the interaction's outcome and closes Done.
func (e *Execution) complete(err error) {
	e.doneOnce.Do(func() {
		e.err = err
		e.MarkFinished()
		close(e.done)
	})
}

// reap drains whatever output is left so the child never blocks on a full
// pipe, then waits for it to exit.
func (e *Execution) reap() {
	if _, err := io.Copy(io.Discard, e.proc.output); err != nil && !errors.Is(err, os.ErrClosed) {
		e.logger.Debug("draining output", "program", e.ProgramName(), "error", err)
	}
	if err := e.proc.closeOutput(); err != nil && !errors.Is(err, os.ErrClosed) {
		e.logger.Debug("closing output", "program", e.ProgramName(), "error", err)
	}
	exitCode, waitErr := e.proc.wait()

	// Registration and exit are ordered under hookMu: a hook is either
	// registered before exited closes and removed here, or never registered.
	e.hookMu.Lock()
	e.exitCode, e.waitErr = exitCode, waitErr
	close(e.exited)
	registered := e.hookRegistered.Load()
	e.hookMu.Unlock()
	e.logger.Debug("process exited", "program", e.ProgramName(), "exit_code", exitCode)

	// A daemon that already exited needs no hook; its pid may be reused.
	if registered {
		e.registry.Unregister(e.id)
	}
}
