// SPDX-License-Identifier: MPL-2.0

package command

import (
	"slices"

	"github.com/kballard/go-shellquote"
)

// Command is an immutable program invocation: the program name followed by
// its arguments. The zero value is an empty command.
type Command struct {
	tokens []string
	daemon bool
}

// Of creates a Command from the given tokens. The slice is copied.
func Of(tokens ...string) Command {
	return Command{tokens: slices.Clone(tokens)}
}

// Size returns the number of tokens, program name included.
func (c Command) Size() int {
	return len(c.tokens)
}

// IsEmpty reports whether the command has no tokens.
func (c Command) IsEmpty() bool {
	return len(c.tokens) == 0
}

// Get returns the token at index i. The second result is false when i is out
// of range, in which case the returned token is empty.
func (c Command) Get(i int) (string, bool) {
	if i < 0 || i >= len(c.tokens) {
		return "", false
	}
	return c.tokens[i], true
}

// First returns the first token. Callers must check Size first; an empty
// command yields "".
func (c Command) First() string {
	tok, _ := c.Get(0)
	return tok
}

// Last returns the last token. Callers must check Size first; an empty
// command yields "".
func (c Command) Last() string {
	tok, _ := c.Get(len(c.tokens) - 1)
	return tok
}

// ProgramName returns the program to execute (the first token).
func (c Command) ProgramName() string {
	return c.First()
}

// Args returns a copy of the arguments, excluding the program name.
func (c Command) Args() []string {
	if len(c.tokens) < 2 {
		return []string{}
	}
	return slices.Clone(c.tokens[1:])
}

// Tokens returns a copy of all tokens, program name included.
func (c Command) Tokens() []string {
	if c.tokens == nil {
		return []string{}
	}
	return slices.Clone(c.tokens)
}

// IsDaemon reports whether the command runs as a daemon. Daemons are not
// awaited to natural completion; they are killed at shutdown instead.
func (c Command) IsDaemon() bool {
	return c.daemon
}

// AsDaemon returns a copy of the command with the daemon flag set to daemon.
func (c Command) AsDaemon(daemon bool) Command {
	return Command{tokens: slices.Clone(c.tokens), daemon: daemon}
}

// String renders the command as a shell-quoted line, suitable for logs.
func (c Command) String() string {
	return shellquote.Join(c.tokens...)
}
