// SPDX-License-Identifier: MPL-2.0

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/procdrive/procdrive/pkg/interaction"

	"github.com/charmbracelet/log"
)

// Consumer reads a child's merged output, answers its prompts through an
// interaction.Strategy, and records completed sentences on the Execution.
type Consumer struct {
	strategy interaction.Strategy
	stdout   io.Writer
	stderr   io.Writer
	boundary interaction.Boundary
	logger   *log.Logger
}

// NewConsumer creates a consumer from the same options as NewExecutor.
// WithLauncher, WithLaunchOptions and WithRegistry are ignored.
func NewConsumer(opts ...Option) *Consumer {
	cfg := newConfig(opts...)
	return &Consumer{
		strategy: cfg.strategy,
		stdout:   cfg.stdout,
		stderr:   cfg.stderr,
		boundary: cfg.boundary,
		logger:   cfg.logger,
	}
}

// Consume drives ex until its output ends or the interaction is finished,
// then closes the child's input and completes ex. Daemons get their shutdown
// hook registered. The child is reaped on a separate goroutine afterwards.
//
// A failure inside the strategy or its transformer is returned as a
// *StrategyError, also recorded on ex, and the child is terminated. Output
// captured up to that point is kept.
func (c *Consumer) Consume(ctx context.Context, ex *Execution) (err error) {
	logger := c.logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	logger = logger.With("program", ex.ProgramName())

	sentence := interaction.NewSentence(c.boundary)
	defer func() {
		if err != nil {
			if kerr := ex.Terminate(); kerr != nil {
				logger.Debug("terminating after strategy failure", "error", kerr)
			}
		}
		if cerr := ex.closeInput(); cerr != nil {
			logger.Debug("closing input", "error", cerr)
		}
		ex.complete(err)
		if ex.IsDaemon() && err == nil {
			ex.RegisterShutdownHook()
		}
		go ex.reap()
	}()

	var requiresInput bool
	var transformer interaction.OutputTransformer
	if err = c.guard(ex, "prepare", func() error {
		requiresInput = c.strategy.RequiresInput()
		transformer = interaction.BindProgram(c.strategy.OutputTransformer(), ex.ProgramName())
		return nil
	}); err != nil {
		return err
	}
	if !requiresInput {
		if cerr := ex.closeInput(); cerr != nil {
			logger.Debug("closing input", "error", cerr)
		}
	}

	reader := bufio.NewReader(ex.proc.output)
	for !ex.IsFinished() {
		r, _, rerr := reader.ReadRune()
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				logger.Debug("output stream ended", "error", rerr)
			}
			break
		}
		sentence.AppendRune(r)

		var answer interaction.Answer
		if err = c.guard(ex, "reply", func() (aerr error) {
			answer, aerr = c.strategy.RepliesTo(sentence)
			return aerr
		}); err != nil {
			sentence.Trim()
			ex.appendOutput(sentence.String())
			return err
		}
		sentence.AppendAnswer(answer)
		if werr := interaction.Reply(ex, answer); werr != nil {
			logger.Warn("failed to write answer", "error", werr)
		}

		if sentence.IsFinished() {
			if err = c.dispatch(ex, sentence, transformer, logger); err != nil {
				return err
			}
			sentence.Reset()
		}
	}

	if !sentence.IsEmpty() {
		if err = c.dispatch(ex, sentence, transformer, logger); err != nil {
			return err
		}
		sentence.Reset()
	}
	return nil
}

// dispatch records a completed sentence and routes it to the driving
// process's output streams.
func (c *Consumer) dispatch(ex *Execution, s *interaction.Sentence, t interaction.OutputTransformer, logger *log.Logger) error {
	s.Trim()
	text := s.String()
	logger.Debug("sentence", "text", text)
	ex.appendOutput(text)

	return c.guard(ex, "route output", func() error {
		if c.strategy.ShouldOutput(s) {
			fmt.Fprintln(c.stdout, t.Transform(s))
		}
		if c.strategy.ShouldOutputToErr(s) {
			fmt.Fprintln(c.stderr, t.Transform(s))
		}
		return nil
	})
}

// guard runs a strategy call, turning errors and panics into StrategyError.
func (c *Consumer) guard(ex *Execution, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StrategyError{Program: ex.ProgramName(), Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if ferr := fn(); ferr != nil {
		return &StrategyError{Program: ex.ProgramName(), Op: op, Err: ferr}
	}
	return nil
}
