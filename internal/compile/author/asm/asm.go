// Package asm renders GCN assembly text. Everything is a Gen that
// appends its own bytes.
package asm

import "strconv"

const (
	colon          = ":"
	comma          = ","
	dot            = "."
	newline        = "\n"
	plus           = "+"
	semicolon      = ";"
	space          = " "
	squareBracket1 = "["
	squareBracket2 = "]"
	tab            = "\t"
)

type Gen interface {
	Append(to []byte) []byte
}

type Gens []Gen

func (gs Gens) Append(to []byte) []byte {
	for _, gen := range gs {
		if gen != nil {
			to = gen.Append(to)
		}
	}
	return to
}

// Vb is verbatim text.
type Vb string

func (v Vb) Append(to []byte) []byte {
	return append(to, v...)
}

var (
	Vcc  Gen = Vb("vcc")
	Exec Gen = Vb("exec")
	Off  Gen = Vb("off")
)

type IntLit int

func (i IntLit) Append(to []byte) []byte {
	return strconv.AppendInt(to, int64(i), 10)
}

type HexLit uint32

func (h HexLit) Append(to []byte) []byte {
	to = append(to, "0x"...)
	return strconv.AppendUint(to, uint64(h), 16)
}

func appendSym(to []byte, base string, off int) []byte {
	to = append(to, base...)
	to = append(to, plus...)
	return strconv.AppendInt(to, int64(off), 10)
}

func appendReg(to []byte, file, base string, off, n int) []byte {
	to = append(to, file...)
	to = append(to, squareBracket1...)
	to = appendSym(to, base, off)
	if n > 1 {
		to = append(to, colon...)
		to = appendSym(to, base, off+n-1)
	}
	return append(to, squareBracket2...)
}

// V is a vector register named by symbol and offset, as v[v_c+3].
// N > 1 makes it a range.
type V struct {
	Sym string
	Off int
	N   int
}

func (v V) Append(to []byte) []byte { return appendReg(to, "v", v.Sym, v.Off, v.N) }

// At is the register Off past v, always single.
func (v V) At(off int) V { return V{Sym: v.Sym, Off: v.Off + off} }

// Span is n registers starting Off past v.
func (v V) Span(off, n int) V { return V{Sym: v.Sym, Off: v.Off + off, N: n} }

// S is the scalar counterpart of V.
type S struct {
	Sym string
	Off int
	N   int
}

func (s S) Append(to []byte) []byte { return appendReg(to, "s", s.Sym, s.Off, s.N) }

func (s S) At(off int) S      { return S{Sym: s.Sym, Off: s.Off + off} }
func (s S) Span(off, n int) S { return S{Sym: s.Sym, Off: s.Off + off, N: n} }
func (s S) Pair() S           { return S{Sym: s.Sym, Off: s.Off, N: 2} }
func (s S) Quad() S           { return S{Sym: s.Sym, Off: s.Off, N: 4} }

// Mod is an instruction modifier, rendered after the operands and
// separated from them by spaces.
type Mod struct {
	Key string
	Val int
	Set bool
}

func (m Mod) Append(to []byte) []byte {
	to = append(to, m.Key...)
	if m.Set {
		to = append(to, colon...)
		to = strconv.AppendInt(to, int64(m.Val), 10)
	}
	return to
}

func Offset(n int) Mod  { return Mod{Key: "offset", Val: n, Set: true} }
func Offset0(n int) Mod { return Mod{Key: "offset0", Val: n, Set: true} }
func Offset1(n int) Mod { return Mod{Key: "offset1", Val: n, Set: true} }

var (
	Offen = Mod{Key: "offen"}
	Glc   = Mod{Key: "glc"}
)

// Inst is one instruction line.
type Inst struct {
	Op   string
	Args []Gen
	Mods []Mod
}

func (i Inst) Append(to []byte) []byte {
	to = append(to, tab...)
	to = append(to, i.Op...)
	for j, arg := range i.Args {
		if j == 0 {
			to = append(to, space...)
		} else {
			to = append(to, comma+space...)
		}
		to = arg.Append(to)
	}
	for _, mod := range i.Mods {
		if mod.Key != "" {
			to = append(to, space...)
			to = mod.Append(to)
		}
	}
	return append(to, newline...)
}

type Label string

func (l Label) Append(to []byte) []byte {
	to = append(to, l...)
	return append(to, colon+newline...)
}

type Comment []string

func (c Comment) Append(to []byte) []byte {
	for _, line := range c {
		if line == "" {
			to = append(to, semicolon+newline...)
			continue
		}
		to = append(to, semicolon+space...)
		to = append(to, line...)
		to = append(to, newline...)
	}
	return to
}

// Set binds a symbol, as .set v_c, 0.
type Set struct {
	Sym string
	Val int
}

func (s Set) Append(to []byte) []byte {
	to = append(to, dot+"set"+space...)
	to = append(to, s.Sym...)
	to = append(to, comma+space...)
	to = strconv.AppendInt(to, int64(s.Val), 10)
	return append(to, newline...)
}

// Directive is a dotted line with verbatim arguments.
type Directive struct {
	Name string
	Args []string
}

func (d Directive) Append(to []byte) []byte {
	to = append(to, dot...)
	to = append(to, d.Name...)
	for i, arg := range d.Args {
		if i == 0 {
			to = append(to, space...)
		} else {
			to = append(to, comma+space...)
		}
		to = append(to, arg...)
	}
	return append(to, newline...)
}

// Blank is an empty line.
type Blank struct{}

func (Blank) Append(to []byte) []byte { return append(to, newline...) }
