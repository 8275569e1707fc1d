// Package sst picks the scratch store sequence for one thread's share
// of a copied tile.
package sst

import (
	"fmt"

	"igemm/internal/compile/author/asm"
	"igemm/internal/compile/author/gcn"
)

type Kind int

const (
	Write2B32 Kind = iota
	Write2st64B32
	Write2B64
	Write2st64B64
	Single
)

var KindStrings = []string{
	Write2B32:     "ds_write2_b32",
	Write2st64B32: "ds_write2st64_b32",
	Write2B64:     "ds_write2_b64",
	Write2st64B64: "ds_write2st64_b64",
	Single:        "ds_write",
}

func (k Kind) String() string { return KindStrings[k] }

func (k Kind) Paired() bool { return k != Single }

// Store describes NVec vectors of Width words each, vector n going to
// byte Base+n*Stride. Transposed means the registers hold the vectors
// interleaved, word j of vector n at j*NVec+n.
type Store struct {
	NVec       int
	Width      int
	Stride     int
	Base       int
	Transposed bool
	Kind       Kind
}

// encodable reports whether unit-scaled offsets for n vectors fit the
// 8-bit immediate fields.
func encodable(n, base, stride, unit int) bool {
	if base%unit != 0 || stride%unit != 0 {
		return false
	}
	return base/unit+stride/unit*(n-1) < 256
}

// Select chooses the store form. Widths 1 and 2 try a paired form
// first, then its 64-element-stride variant; everything else stores
// one vector per instruction.
func Select(nVec, width, stride, base int, transposed bool) Store {
	s := Store{
		NVec:       nVec,
		Width:      width,
		Stride:     stride,
		Base:       base,
		Transposed: transposed,
		Kind:       Single,
	}
	if nVec%2 != 0 {
		return s
	}
	switch width {
	case 1:
		switch {
		case encodable(nVec, base, stride, 4):
			s.Kind = Write2B32
		case encodable(nVec, base, stride, 4*64):
			s.Kind = Write2st64B32
		}
	case 2:
		switch {
		case encodable(nVec, base, stride, 8):
			s.Kind = Write2B64
		case encodable(nVec, base, stride, 8*64):
			s.Kind = Write2st64B64
		}
	}
	return s
}

// Issues is the number of scratch store instructions Emit produces.
func (s Store) Issues() int {
	if s.Kind.Paired() {
		return s.NVec / 2
	}
	return s.NVec
}

func (s Store) unit() int {
	switch s.Kind {
	case Write2B32:
		return 4
	case Write2st64B32:
		return 4 * 64
	case Write2B64:
		return 8
	case Write2st64B64:
		return 8 * 64
	}
	panic("bug")
}

type Swap struct {
	A, B int
}

// Swaps lists, per vector, the register exchanges that bring its words
// into place before it is stored. Registers of earlier vectors are
// final by then and never touched again.
func Swaps(nVec, width int) [][]Swap {
	words := nVec * width
	cur := make([]int, words)
	where := make([]int, words)
	for i := range cur {
		cur[i], where[i] = i, i
	}
	out := make([][]Swap, nVec)
	for n := 0; n < nVec; n++ {
		for j := 0; j < width; j++ {
			p, want := n*width+j, j*nVec+n
			if cur[p] == want {
				continue
			}
			r := where[want]
			out[n] = append(out[n], Swap{A: p, B: r})
			cur[p], cur[r] = cur[r], cur[p]
			where[cur[p]], where[cur[r]] = p, r
		}
	}
	return out
}

func (s Store) swaps() [][]Swap {
	if !s.Transposed || s.Width == 1 || s.NVec == 1 {
		return make([][]Swap, s.NVec)
	}
	return Swaps(s.NVec, s.Width)
}

func single(width int, addr, data asm.Gen, off int) asm.Gen {
	args := []asm.Gen{addr, data, asm.Offset(off)}
	switch width {
	case 1:
		return gcn.DsWriteB32(args)
	case 2:
		return gcn.DsWriteB64(args)
	case 4:
		return gcn.DsWriteB128(args)
	}
	panic(fmt.Sprintf("bug: store width %d", width))
}

// Emit stores src through addr.
func (s Store) Emit(addr, src asm.V) asm.Gens {
	var gs asm.Gens
	sw := s.swaps()
	vec := func(n int) asm.V { return src.Span(n*s.Width, s.Width) }
	swap := func(n int) {
		for _, x := range sw[n] {
			gs = append(gs, gcn.VSwapB32{src.At(x.A), src.At(x.B)})
		}
	}
	if !s.Kind.Paired() {
		for n := 0; n < s.NVec; n++ {
			swap(n)
			gs = append(gs, single(s.Width, addr, vec(n), s.Base+n*s.Stride))
		}
		return gs
	}
	u := s.unit()
	for n := 0; n < s.NVec; n += 2 {
		swap(n)
		swap(n + 1)
		args := []asm.Gen{
			addr, vec(n), vec(n + 1),
			asm.Offset0(s.Base/u + n*(s.Stride/u)),
			asm.Offset1(s.Base/u + (n+1)*(s.Stride/u)),
		}
		switch s.Kind {
		case Write2B32:
			gs = append(gs, gcn.DsWrite2B32(args))
		case Write2st64B32:
			gs = append(gs, gcn.DsWrite2st64B32(args))
		case Write2B64:
			gs = append(gs, gcn.DsWrite2B64(args))
		case Write2st64B64:
			gs = append(gs, gcn.DsWrite2st64B64(args))
		}
	}
	return gs
}
