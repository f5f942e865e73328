// SPDX-License-Identifier: MPL-2.0

package command

import (
	"strings"
	"unicode"
)

// Tokenize splits raw into tokens the way a minimal shell would:
//   - whitespace outside quotes separates tokens and is dropped
//   - a double-quoted span is one token with the quotes stripped and its
//     interior kept verbatim, whitespace included
//   - an unmatched quote extends the token to the end of raw
//
// Nothing is expanded or unescaped. Adjacent quoted and unquoted text is not
// joined: `a"b"` yields "a" and "b".
func Tokenize(raw string) []string {
	var (
		tokens  []string
		current strings.Builder
		inWord  bool
	)

	flush := func() {
		if inWord {
			tokens = append(tokens, current.String())
			current.Reset()
			inWord = false
		}
	}

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			flush()
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			tokens = append(tokens, string(runes[i+1:end]))
			i = end
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	flush()

	if tokens == nil {
		return []string{}
	}
	return tokens
}
