// SPDX-License-Identifier: MPL-2.0

package interaction

import (
	"bytes"
	"slices"
	"unicode"
	"unicode/utf8"
)

// Boundary decides whether a sentence is complete.
type Boundary func(s *Sentence) bool

// Sentence accumulates child output until a boundary is reached. It owns its
// buffer; String and Clone return copies.
type Sentence struct {
	// buf holds the UTF-8 encoding; n counts its runes.
	buf      []byte
	n        int
	boundary Boundary
}

// NewlineBoundary finishes a sentence once it ends with a line feed.
func NewlineBoundary(s *Sentence) bool {
	return s.EndsWith("\n")
}

// NewSentence creates an empty sentence. A nil boundary selects NewlineBoundary.
func NewSentence(boundary Boundary) *Sentence {
	if boundary == nil {
		boundary = NewlineBoundary
	}
	return &Sentence{boundary: boundary}
}

// SentenceOf creates a sentence holding text, using NewlineBoundary.
func SentenceOf(text string) *Sentence {
	s := &Sentence{boundary: NewlineBoundary}
	s.appendString(text)
	return s
}

// AppendRune adds a single rune read from the child.
func (s *Sentence) AppendRune(r rune) *Sentence {
	s.buf = utf8.AppendRune(s.buf, r)
	s.n++
	return s
}

// AppendAnswer adds the echo of an answer. Empty answers leave the sentence
// untouched.
func (s *Sentence) AppendAnswer(a Answer) *Sentence {
	s.appendString(a.Text)
	return s
}

// appendString adds text rune by rune, so invalid UTF-8 is stored the same
// way AppendRune would store it.
func (s *Sentence) appendString(text string) {
	for _, r := range text {
		s.AppendRune(r)
	}
}

// IsFinished reports whether the sentence reached its boundary.
func (s *Sentence) IsFinished() bool {
	return s.n > 0 && s.boundary(s)
}

// IsEmpty reports whether the sentence holds no runes.
func (s *Sentence) IsEmpty() bool {
	return s.n == 0
}

// Len returns the number of runes in the sentence.
func (s *Sentence) Len() int {
	return s.n
}

// EndsWith reports whether the sentence ends with suffix.
func (s *Sentence) EndsWith(suffix string) bool {
	return bytes.HasSuffix(s.buf, []byte(suffix))
}

// Trim drops trailing whitespace, including the line terminator that usually
// finishes a sentence.
func (s *Sentence) Trim() *Sentence {
	trimmed := bytes.TrimRightFunc(s.buf, unicode.IsSpace)
	s.n -= utf8.RuneCount(s.buf[len(trimmed):])
	s.buf = trimmed
	return s
}

// Reset empties the sentence so the next one can be accumulated. The buffer
// is released rather than reused so earlier String results stay valid.
func (s *Sentence) Reset() *Sentence {
	s.buf = nil
	s.n = 0
	return s
}

// Clone returns an independent copy sharing the same boundary.
func (s *Sentence) Clone() *Sentence {
	return &Sentence{buf: slices.Clone(s.buf), n: s.n, boundary: s.boundary}
}

// String returns the accumulated text.
func (s *Sentence) String() string {
	return string(s.buf)
}

// raw exposes the buffer to matchers in this package without a copy.
// Callers must not retain or modify it.
func (s *Sentence) raw() []byte {
	return s.buf
}
