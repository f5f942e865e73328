// SPDX-License-Identifier: MPL-2.0

package interaction

var (
	// NoAnswer is the answer of a strategy with nothing to say yet.
	NoAnswer = Answer{}

	// EOF ends the interaction without sending anything.
	EOF = Answer{Terminates: true}
)

type (
	// Answer is a scripted reply to a sentence. Text is written to the child's
	// input when non-empty. Terminates tells the engine to stop reading and to
	// mark the execution finished.
	Answer struct {
		Text       string
		Terminates bool
	}

	// Replier receives answers. The execution handle implements it.
	Replier interface {
		// WriteInput writes text to the child's standard input.
		WriteInput(text string) error
		// MarkFinished flags the execution as finished.
		MarkFinished()
	}
)

// Reply delivers a to r: the text is written when non-empty, then r is marked
// finished if the answer terminates the interaction. The finished mark is
// applied even when the write fails.
func Reply(r Replier, a Answer) error {
	if a.Terminates {
		defer r.MarkFinished()
	}
	if a.Text == "" {
		return nil
	}
	return r.WriteInput(a.Text)
}

// IsEmpty reports whether the answer neither sends text nor terminates.
func (a Answer) IsEmpty() bool {
	return a.Text == "" && !a.Terminates
}
