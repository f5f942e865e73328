// SPDX-License-Identifier: MPL-2.0

// Package interaction defines the sentence/answer protocol used to drive an
// interactive child process.
//
// Output of the child is accumulated rune by rune into a Sentence. After each
// rune a Strategy is asked whether the sentence so far deserves an Answer.
// Answers are echoed back into the sentence, so the local transcript shows
// what was actually sent, and written to the child's input through a Replier.
// A Sentence is finished when its Boundary says so (by default: it ends with a
// newline); prompts such as "Password:" can be answered long before that.
//
// Strategies are pluggable. RuleStrategy, assembled with NewBuilder, covers the
// common case of answering prompts matched by regular expressions:
//
//	strategy, err := interaction.NewBuilder().
//		When(`(?s).*[Pp]assword: ?`).ReplyWith("s3cret\n").
//		When(`.*Installation complete.*`).Terminates().
//		Outputs(`.*`).
//		Build()
package interaction
