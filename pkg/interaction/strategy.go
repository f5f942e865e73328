// SPDX-License-Identifier: MPL-2.0

package interaction

type (
	// Strategy decides how an execution reacts to the child's output.
	Strategy interface {
		// RequiresInput reports whether the child's input must stay open. When
		// false the engine closes it before reading any output.
		RequiresInput() bool
		// RepliesTo returns the answer to the sentence accumulated so far. It is
		// called after every rune. An error aborts the execution.
		RepliesTo(s *Sentence) (Answer, error)
		// ShouldOutput reports whether a finished sentence goes to stdout.
		ShouldOutput(s *Sentence) bool
		// ShouldOutputToErr reports whether a finished sentence goes to stderr.
		ShouldOutputToErr(s *Sentence) bool
		// OutputTransformer formats sentences before they are printed.
		OutputTransformer() OutputTransformer
	}

	// OutputTransformer rewrites a sentence for display. Implementations must
	// not modify their argument.
	OutputTransformer interface {
		Transform(s *Sentence) *Sentence
	}

	// ProgramNameAware is implemented by transformers that need the name of
	// the program whose output they format.
	ProgramNameAware interface {
		ForProgram(name string) OutputTransformer
	}

	// TransformerFunc adapts a function to OutputTransformer.
	TransformerFunc func(s *Sentence) *Sentence
)

// Transform calls f(s).
func (f TransformerFunc) Transform(s *Sentence) *Sentence {
	return f(s)
}
