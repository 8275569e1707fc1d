// Package sect collects kernel text by section so the author stages can
// run in any order and still join into one well-ordered file.
package sect

import "igemm/internal/compile/author/asm"

type Section int

const (
	First Section = iota
	Banner
	Symbols
	Header
	Prologue
	Window
	Body
	Finishing
	Epilogue
	Footer
	Last
	sectionCount
)

type Sections struct {
	a [sectionCount][]byte
}

func (s *Sections) Append(to Section, from ...asm.Gen) {
	for _, gen := range from {
		if gen != nil {
			s.a[to] = gen.Append(s.a[to])
		}
	}
}

// Len is the byte count already in one section.
func (s *Sections) Len(of Section) int { return len(s.a[of]) }

// Bytes is the text of one section.
func (s *Sections) Bytes(of Section) []byte { return s.a[of] }

func (s *Sections) Join() (to []byte) {
	for _, from := range s.a[First : Last+1] {
		to = append(to, from...)
	}
	return
}
