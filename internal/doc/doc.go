// Package doc renders the tuning language guide as plain text.
package doc

import (
	"sort"
	"strings"
	"unicode"

	"igemm/internal/raw"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	space   = " "
	newline = "\n"
	indent  = space + space + space + space
	width   = 80
)

const intro = "Each line of tuning text is a head word followed by Label" + raw.Binder + "value " +
	"segments in the order shown. Blank lines are ignored. Segments marked optional may be " +
	"left off the end of their line. Every Conv line is swept by every Tuning line, and " +
	"each sweep grades the cross product of the Tuning lists against the Target."

func line(to []byte, dent, text string) []byte {
	to = append(to, dent...)
	to = append(to, text...)
	to = append(to, newline...)
	return to
}

// para wraps text to width, each line prefixed by dent.
func para(to []byte, dent, text string) []byte {
	to = append(to, newline...)
	fit := width - len(dent)
	var cur []string
	n := 0
	for _, word := range strings.FieldsFunc(text, unicode.IsSpace) {
		if n != 0 && n+1+len(word) > fit {
			to = line(to, dent, strings.Join(cur, space))
			cur, n = cur[:0], 0
		}
		if n != 0 {
			n++
		}
		cur = append(cur, word)
		n += len(word)
	}
	if n != 0 {
		to = line(to, dent, strings.Join(cur, space))
	}
	return to
}

func heading(to []byte, text string) []byte {
	text = cases.Title(language.English).String(text)
	to = line(to, "", text)
	return line(to, "", strings.Repeat("-", len(text)))
}

func segment(seg *raw.Seg) string {
	text := seg.Label + raw.Binder + space + seg.Doc
	if len(seg.Choices) != 0 {
		text += " One of: " + strings.Join(seg.Choices, ", ") + "."
	}
	if seg.Optional {
		text += " Optional, default " + seg.Default + "."
	}
	return text
}

func Bytes() (to []byte) {
	to = heading(to, "the tuning language")
	to = para(to, "", intro)
	heads := make([]string, 0, len(raw.Guide))
	for head := range raw.Guide {
		heads = append(heads, head)
	}
	sort.Strings(heads)
	for _, head := range heads {
		tail := raw.Guide[head]
		to = append(to, newline...)
		to = heading(to, head+" lines")
		to = append(to, newline...)
		to = append(to, raw.Line(head)...)
		to = para(to, "", tail.Doc)
		for _, seg := range tail.Segs {
			to = para(to, indent, segment(seg))
		}
	}
	return
}
