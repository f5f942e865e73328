// SPDX-License-Identifier: MPL-2.0

package interaction

// Identity returns sentences unchanged.
var Identity OutputTransformer = TransformerFunc(func(s *Sentence) *Sentence { return s })

// ProgramNamePrefix prefixes every sentence with the program name, which keeps
// the output of concurrently running programs apart.
type ProgramNamePrefix struct {
	// Name is the program name. It is filled in by ForProgram.
	Name string
	// Style optionally decorates the "(name)" prefix, e.g. with colors.
	Style func(string) string
}

// ForProgram returns a copy bound to name.
func (p ProgramNamePrefix) ForProgram(name string) OutputTransformer {
	p.Name = name
	return p
}

// Transform returns "(name) text". Without a name the sentence is returned as is.
func (p ProgramNamePrefix) Transform(s *Sentence) *Sentence {
	if p.Name == "" {
		return s
	}
	prefix := "(" + p.Name + ")"
	if p.Style != nil {
		prefix = p.Style(prefix)
	}
	out := SentenceOf(prefix + " ")
	out.buf = append(out.buf, s.buf...)
	out.n += s.n
	out.boundary = s.boundary
	return out
}

// BindProgram returns t bound to the program name when t is ProgramNameAware.
func BindProgram(t OutputTransformer, name string) OutputTransformer {
	if t == nil {
		return Identity
	}
	if aware, ok := t.(ProgramNameAware); ok {
		return aware.ForProgram(name)
	}
	return t
}
