// Package gpr lays out named register ranges and renders them as .set
// symbols the instruction text refers to.
package gpr

import (
	"fmt"

	"igemm/internal/compile/author/asm"
)

type File int

const (
	Vector File = iota
	Scalar
)

var filePrefix = [...]string{Vector: "v_", Scalar: "s_"}

type Range struct {
	Sym  string
	Base int
	N    int
}

// Arena hands out registers in allocation order.
type Arena struct {
	file   File
	next   int
	ranges []Range
	index  map[string]int
}

func New(file File) *Arena {
	return &Arena{file: file, index: make(map[string]int)}
}

func (a *Arena) sym(name string) string { return filePrefix[a.file] + name }

func (a *Arena) add(r Range) {
	if _, dup := a.index[r.Sym]; dup {
		panic("bug: register " + r.Sym + " allocated twice")
	}
	a.index[r.Sym] = len(a.ranges)
	a.ranges = append(a.ranges, r)
}

// Alloc reserves n registers aligned to align and returns the symbol.
func (a *Arena) Alloc(name string, n, align int) string {
	if n < 1 || align < 1 {
		panic("bug")
	}
	if rem := a.next % align; rem != 0 {
		a.next += align - rem
	}
	sym := a.sym(name)
	a.add(Range{Sym: sym, Base: a.next, N: n})
	a.next += n
	return sym
}

// Alias names an existing range a second way.
func (a *Arena) Alias(name, of string) string {
	r := a.Lookup(a.sym(of))
	sym := a.sym(name)
	a.add(Range{Sym: sym, Base: r.Base, N: r.N})
	return sym
}

func (a *Arena) Lookup(sym string) Range {
	i, ok := a.index[sym]
	if !ok {
		panic("bug: no register " + sym)
	}
	return a.ranges[i]
}

func (a *Arena) Has(name string) bool {
	_, ok := a.index[a.sym(name)]
	return ok
}

// Count is the number of registers the arena spans.
func (a *Arena) Count() int { return a.next }

func (a *Arena) Ranges() []Range { return a.ranges }

// Sets renders one .set per symbol plus the total.
func (a *Arena) Sets() asm.Gens {
	gs := make(asm.Gens, 0, len(a.ranges)+1)
	for _, r := range a.ranges {
		gs = append(gs, asm.Set{Sym: r.Sym, Val: r.Base})
	}
	gs = append(gs, asm.Set{Sym: a.sym("end"), Val: a.next})
	return gs
}

// Cursor places short-lived ranges inside a host range, from the top
// down, so they share registers the host does not need yet.
type Cursor struct {
	a    *Arena
	host Range
	top  int
}

// Lend returns a cursor over the host range when it can hold need
// registers, or nil.
func (a *Arena) Lend(host string, need int) *Cursor {
	r := a.Lookup(a.sym(host))
	if r.N < need {
		return nil
	}
	return &Cursor{a: a, host: r, top: r.Base + r.N}
}

// Take places n registers, aligned to align, below the previous take.
func (c *Cursor) Take(name string, n, align int) string {
	base := c.top - n
	base -= base % align
	if base < c.host.Base {
		panic(fmt.Sprintf("bug: %s overflows %s", name, c.host.Sym))
	}
	sym := c.a.sym(name)
	c.a.add(Range{Sym: sym, Base: base, N: n})
	c.top = base
	return sym
}

// Place is Take through c when c is not nil and a fresh allocation
// otherwise.
func Place(a *Arena, c *Cursor, name string, n, align int) string {
	if c != nil {
		return c.Take(name, n, align)
	}
	return a.Alloc(name, n, align)
}

// V and S render a register of a vector or scalar arena.
func (a *Arena) V(name string) asm.V {
	a.mustBe(Vector)
	return asm.V{Sym: a.Lookup(a.sym(name)).Sym}
}

func (a *Arena) S(name string) asm.S {
	a.mustBe(Scalar)
	return asm.S{Sym: a.Lookup(a.sym(name)).Sym}
}

func (a *Arena) mustBe(f File) {
	if a.file != f {
		panic("bug: wrong register file")
	}
}
