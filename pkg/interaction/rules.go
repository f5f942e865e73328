// SPDX-License-Identifier: MPL-2.0

package interaction

import (
	"errors"
	"fmt"
	"regexp"
)

// DefaultMaxPromptLength is the longest sentence, in runes, that answer
// rules are matched against while it accumulates.
const DefaultMaxPromptLength = 4096

// ErrInvalidPattern is the sentinel wrapped by InvalidPatternError.
var ErrInvalidPattern = errors.New("invalid interaction pattern")

type (
	// InvalidPatternError is returned by Builder.Build for patterns that do
	// not compile.
	InvalidPatternError struct {
		Pattern string
		Err     error
	}

	// rule pairs a full-match pattern with the answer it triggers.
	rule struct {
		pattern *regexp.Regexp
		answer  Answer
	}

	// RuleStrategy answers sentences that fully match a pattern and routes
	// output by pattern. Rules are tried in declaration order; the first match
	// wins. It is safe for concurrent use once built.
	RuleStrategy struct {
		rules         []rule
		outputs       []*regexp.Regexp
		errOutputs    []*regexp.Regexp
		transformer   OutputTransformer
		requiresInput bool
		maxPrompt     int
	}

	// Builder assembles a RuleStrategy. Pattern errors are collected and
	// reported by Build.
	Builder struct {
		rules         []rule
		outputs       []*regexp.Regexp
		errOutputs    []*regexp.Regexp
		transformer   OutputTransformer
		requiresInput bool
		maxPrompt     int
		errs          []error
	}

	// Reaction is the pending half of a When clause.
	Reaction struct {
		builder *Builder
		pattern *regexp.Regexp
	}
)

// Error implements the error interface.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid interaction pattern %q: %v", e.Pattern, e.Err)
}

// Unwrap returns ErrInvalidPattern for errors.Is() compatibility.
func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }

// NewBuilder creates an empty Builder. Without further configuration the
// strategy never answers and prints nothing.
func NewBuilder() *Builder {
	return &Builder{transformer: Identity, maxPrompt: DefaultMaxPromptLength}
}

// Default returns a strategy that prints every sentence to stdout and needs
// no input.
func Default() *RuleStrategy {
	s, _ := NewBuilder().Outputs(".*").Build()
	return s
}

// Silent returns a strategy that only records output.
func Silent() *RuleStrategy {
	s, _ := NewBuilder().Build()
	return s
}

// When starts a rule triggered by sentences fully matching pattern.
func (b *Builder) When(pattern string) *Reaction {
	return &Reaction{builder: b, pattern: b.compile(pattern)}
}

// Outputs prints finished sentences fully matching pattern to stdout.
func (b *Builder) Outputs(pattern string) *Builder {
	if re := b.compile(pattern); re != nil {
		b.outputs = append(b.outputs, re)
	}
	return b
}

// OutputsToErr prints finished sentences fully matching pattern to stderr.
func (b *Builder) OutputsToErr(pattern string) *Builder {
	if re := b.compile(pattern); re != nil {
		b.errOutputs = append(b.errOutputs, re)
	}
	return b
}

// Transformer sets the transformer applied to printed sentences.
func (b *Builder) Transformer(t OutputTransformer) *Builder {
	if t == nil {
		t = Identity
	}
	b.transformer = t
	return b
}

// RequireInput keeps the child's input open even when no rule sends text,
// for strategies that write to the child through other means.
func (b *Builder) RequireInput() *Builder {
	b.requiresInput = true
	return b
}

// MaxPromptLength stops answer rules from being tried once a sentence grows
// past n runes, so a long line without a terminator costs linear time.
// n <= 0 removes the limit. Output routing is unaffected.
func (b *Builder) MaxPromptLength(n int) *Builder {
	b.maxPrompt = n
	return b
}

// Build returns the strategy, or the joined pattern errors.
func (b *Builder) Build() (*RuleStrategy, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return &RuleStrategy{
		rules:         append([]rule(nil), b.rules...),
		outputs:       append([]*regexp.Regexp(nil), b.outputs...),
		errOutputs:    append([]*regexp.Regexp(nil), b.errOutputs...),
		transformer:   b.transformer,
		requiresInput: b.requiresInput,
		maxPrompt:     b.maxPrompt,
	}, nil
}

// compile anchors pattern so that it must match the whole sentence.
func (b *Builder) compile(pattern string) *regexp.Regexp {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		b.errs = append(b.errs, &InvalidPatternError{Pattern: pattern, Err: err})
		return nil
	}
	return re
}

// ReplyWith answers matching sentences with text.
func (r *Reaction) ReplyWith(text string) *Builder {
	return r.then(Answer{Text: text})
}

// Terminates ends the interaction on matching sentences.
func (r *Reaction) Terminates() *Builder {
	return r.then(EOF)
}

// ReplyAndTerminate answers with text and ends the interaction.
func (r *Reaction) ReplyAndTerminate(text string) *Builder {
	return r.then(Answer{Text: text, Terminates: true})
}

// Answer registers an arbitrary answer for matching sentences.
func (r *Reaction) Answer(a Answer) *Builder {
	return r.then(a)
}

func (r *Reaction) then(a Answer) *Builder {
	if r.pattern != nil {
		r.builder.rules = append(r.builder.rules, rule{pattern: r.pattern, answer: a})
	}
	return r.builder
}

// RequiresInput reports whether any rule writes to the child.
func (s *RuleStrategy) RequiresInput() bool {
	if s.requiresInput {
		return true
	}
	for _, r := range s.rules {
		if r.answer.Text != "" {
			return true
		}
	}
	return false
}

// RepliesTo returns the answer of the first rule matching the sentence.
// Sentences longer than the prompt length limit get NoAnswer.
func (s *RuleStrategy) RepliesTo(sentence *Sentence) (Answer, error) {
	if len(s.rules) == 0 || (s.maxPrompt > 0 && sentence.Len() > s.maxPrompt) {
		return NoAnswer, nil
	}
	text := sentence.raw()
	for _, r := range s.rules {
		if r.pattern.Match(text) {
			return r.answer, nil
		}
	}
	return NoAnswer, nil
}

// ShouldOutput reports whether sentence matches an Outputs pattern.
func (s *RuleStrategy) ShouldOutput(sentence *Sentence) bool {
	return matchAny(s.outputs, sentence)
}

// ShouldOutputToErr reports whether sentence matches an OutputsToErr pattern.
func (s *RuleStrategy) ShouldOutputToErr(sentence *Sentence) bool {
	return matchAny(s.errOutputs, sentence)
}

// OutputTransformer returns the configured transformer.
func (s *RuleStrategy) OutputTransformer() OutputTransformer {
	return s.transformer
}

func matchAny(patterns []*regexp.Regexp, sentence *Sentence) bool {
	if len(patterns) == 0 {
		return false
	}
	text := sentence.raw()
	for _, re := range patterns {
		if re.Match(text) {
			return true
		}
	}
	return false
}
