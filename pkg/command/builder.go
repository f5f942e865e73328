// SPDX-License-Identifier: MPL-2.0

package command

import "slices"

// Builder stages command tokens. Its methods return the builder so calls can
// be chained. A Builder is not safe for concurrent use.
type Builder struct {
	tokens []string
	daemon bool
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends tokens in order. Calling Add without tokens is a no-op.
func (b *Builder) Add(tokens ...string) *Builder {
	b.tokens = append(b.tokens, tokens...)
	return b
}

// AddAll appends every token of the slice in order.
func (b *Builder) AddAll(tokens []string) *Builder {
	return b.Add(tokens...)
}

// AddTokenized splits raw with Tokenize and appends the resulting tokens.
func (b *Builder) AddTokenized(raw string) *Builder {
	return b.Add(Tokenize(raw)...)
}

// Remove deletes every staged token equal to token.
func (b *Builder) Remove(token string) *Builder {
	b.tokens = slices.DeleteFunc(b.tokens, func(t string) bool { return t == token })
	return b
}

// Clear removes all staged tokens. The daemon flag is kept.
func (b *Builder) Clear() *Builder {
	b.tokens = nil
	return b
}

// Daemon marks the command being built as a daemon process.
func (b *Builder) Daemon(daemon bool) *Builder {
	b.daemon = daemon
	return b
}

// Build returns a snapshot of the staged tokens. Every call allocates a new
// backing slice, so the result is unaffected by later builder mutations.
func (b *Builder) Build() Command {
	tokens := make([]string, len(b.tokens))
	copy(tokens, b.tokens)
	return Command{tokens: tokens, daemon: b.daemon}
}
