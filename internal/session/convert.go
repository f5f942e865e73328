// SPDX-License-Identifier: MPL-2.0

package session

import (
	"maps"

	"github.com/procdrive/procdrive/internal/process"
	"github.com/procdrive/procdrive/pkg/command"
	"github.com/procdrive/procdrive/pkg/interaction"
)

// BuildCommand returns the command the session starts.
func (s *Session) BuildCommand() command.Command {
	b := command.NewBuilder()
	if len(s.Command) > 0 {
		b.AddAll(s.Command)
	} else {
		b.AddTokenized(s.Line)
	}
	return b.Daemon(s.Daemon).Build()
}

// Strategy builds the rule strategy for the session's answers and output
// patterns. style decorates the program-name prefix and may be nil.
func (s *Session) Strategy(style func(string) string) (*interaction.RuleStrategy, error) {
	b := interaction.NewBuilder()
	for _, a := range s.Answers {
		text := a.Reply
		if a.Newline && (a.Reply != "" || !a.Terminate) {
			text += "\n"
		}
		b.When(a.When).Answer(interaction.Answer{Text: text, Terminates: a.Terminate})
	}

	switch {
	case s.Quiet:
	case len(s.Outputs) == 0 && len(s.ErrorOutputs) == 0:
		b.Outputs(".*")
	default:
		for _, p := range s.Outputs {
			b.Outputs(p)
		}
		for _, p := range s.ErrorOutputs {
			b.OutputsToErr(p)
		}
	}

	if s.Prefix {
		b.Transformer(interaction.ProgramNamePrefix{Style: style})
	}
	if s.RequireInput {
		b.RequireInput()
	}
	return b.Build()
}

// LaunchOptions overlays the session's environment settings on base.
// Session variables win over base variables of the same name.
func (s *Session) LaunchOptions(base process.LaunchOptions) process.LaunchOptions {
	opts := base
	if dir := s.WorkDir(); dir != "" {
		opts.Dir = dir
	}
	if s.InheritEnv != nil {
		opts.InheritEnv = *s.InheritEnv
	}
	if s.DisableColors != nil {
		opts.DisableColors = *s.DisableColors
	}
	if len(s.Env) > 0 {
		env := make(map[string]string, len(base.Env)+len(s.Env))
		maps.Copy(env, base.Env)
		maps.Copy(env, s.Env)
		opts.Env = env
	}
	return opts
}

// NewLauncher returns the session's launcher, or the fallback kind when the
// session does not name one.
func (s *Session) NewLauncher(fallback process.LauncherKind) (process.Launcher, error) {
	kind := fallback
	if s.Launcher != "" {
		kind = process.LauncherKind(s.Launcher)
	}
	if kind != process.LauncherPTY || s.PTY == nil {
		return process.NewLauncher(kind)
	}

	l := process.NewPTYLauncher()
	if s.PTY.Rows > 0 {
		l.Rows = s.PTY.Rows
	}
	if s.PTY.Cols > 0 {
		l.Cols = s.PTY.Cols
	}
	if s.PTY.Echo != nil {
		l.Echo = *s.PTY.Echo
	}
	return l, nil
}
