// SPDX-License-Identifier: MPL-2.0

package command

import (
	"slices"
	"testing"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "quoted spans keep interior whitespace",
			raw:  " abcd   \"  a   \"  \"    c    d\" \"${HOME}\"",
			want: []string{"abcd", "  a   ", "    c    d", "${HOME}"},
		},
		{name: "empty input", raw: "", want: []string{}},
		{name: "whitespace only", raw: " \t\n ", want: []string{}},
		{name: "plain words", raw: "ls -la /tmp", want: []string{"ls", "-la", "/tmp"}},
		{name: "tabs separate", raw: "a\tb", want: []string{"a", "b"}},
		{name: "whitespace-only quoted token", raw: `x "   " y`, want: []string{"x", "   ", "y"}},
		{name: "empty quoted token", raw: `x "" y`, want: []string{"x", "", "y"}},
		{name: "unmatched quote runs to end", raw: `echo "unterminated  tail `, want: []string{"echo", "unterminated  tail "}},
		{name: "lone quote", raw: `"`, want: []string{""}},
		{name: "adjacent text is not joined", raw: `a"b"c`, want: []string{"a", "b", "c"}},
		{name: "unicode", raw: `héllo "wörld ✓"`, want: []string{"héllo", "wörld ✓"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Tokenize(tt.raw)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBuilder_AddTokenized(t *testing.T) {
	t.Parallel()

	cmd := NewBuilder().
		AddTokenized(" abcd   \"  a   \"  \"    c    d\" \"${HOME}\"").
		Build()

	want := []string{"abcd", "  a   ", "    c    d", "${HOME}"}
	if got := cmd.Tokens(); !slices.Equal(got, want) {
		t.Errorf("Tokens() = %q, want %q", got, want)
	}
}
