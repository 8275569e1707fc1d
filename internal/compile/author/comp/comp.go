// Package comp holds the instruction-emitting components a kernel is
// assembled from. The set is closed: every component is declared here.
package comp

import (
	"fmt"
	"strings"

	"igemm/internal/compile/author/asm"
	"igemm/internal/compile/author/gcn"
	"igemm/internal/compile/author/sst"
)

// Component is one emitter. Issues is how many asynchronous memory
// operations Append leaves outstanding on its counter, which a later
// wait must account for.
type Component interface {
	asm.Gen
	Name() string
	Params() string
	Issues() int
	component()
}

func params(kv ...interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
	}
	return b.String()
}

// Annotated prefixes a component with a comment naming it.
func Annotated(c Component) asm.Gen {
	line := c.Name()
	if p := c.Params(); p != "" {
		line += " " + p
	}
	return asm.Gens{asm.Comment{line}, c}
}

// InLoad fetches one thread's input elements, N1 groups of N2 along the
// batch, under an exec mask taken from the validity flag. Masked lanes
// read nothing and keep the zero the destination is cleared to.
type InLoad struct {
	Dst      asm.V
	Os       asm.V
	Flag     asm.V
	Rsrc     asm.S
	Tmp      asm.S
	StrideN1 asm.S
	StrideN2 asm.S
	N1       int
	N2       int
}

func (*InLoad) component()     {}
func (*InLoad) Name() string     { return "in_load" }
func (c *InLoad) Params() string { return params("n1", c.N1, "n2", c.N2) }
func (c *InLoad) Issues() int    { return c.N1 * c.N2 }

func (c *InLoad) Append(to []byte) []byte {
	gs := asm.Gens{}
	for i := 0; i < c.N1*c.N2; i++ {
		gs = append(gs, gcn.VMovB32{c.Dst.At(i), asm.IntLit(0)})
	}
	save := c.Tmp.Span(2, 2)
	gs = append(gs,
		gcn.VCmpEqU32{asm.Vcc, asm.IntLit(1), c.Flag},
		gcn.SAndSaveexecB64{save, asm.Vcc},
		gcn.SMovB32{c.Tmp.At(1), asm.IntLit(0)},
	)
	for i1 := 0; i1 < c.N1; i1++ {
		if i1 > 0 {
			gs = append(gs, gcn.SAddU32{c.Tmp.At(1), c.Tmp.At(1), c.StrideN1})
		}
		gs = append(gs, gcn.SMovB32{c.Tmp.At(0), c.Tmp.At(1)})
		for i2 := 0; i2 < c.N2; i2++ {
			if i2 > 0 {
				gs = append(gs, gcn.SAddU32{c.Tmp.At(0), c.Tmp.At(0), c.StrideN2})
			}
			gs = append(gs, gcn.BufferLoadDword{
				c.Dst.At(i1*c.N2 + i2), c.Os, c.Rsrc.Quad(), c.Tmp.At(0),
				asm.Offen, asm.Offset(0),
			})
		}
	}
	gs = append(gs, gcn.SOrB64{asm.Exec, asm.Exec, save})
	return gs.Append(to)
}

// WeiLoad fetches TK rows of TE contiguous filter elements each.
type WeiLoad struct {
	Dst     asm.V
	Os      asm.V
	Rsrc    asm.S
	Tmp     asm.S
	StrideK asm.S
	TK      int
	TE      int
}

func (*WeiLoad) component()     {}
func (*WeiLoad) Name() string     { return "wei_load" }
func (c *WeiLoad) Params() string { return params("k", c.TK, "e", c.TE) }
func (c *WeiLoad) Issues() int    { return c.TK }

func (c *WeiLoad) Append(to []byte) []byte {
	var gs asm.Gens
	for k := 0; k < c.TK; k++ {
		var soff asm.Gen = asm.IntLit(0)
		switch {
		case k == 1:
			gs = append(gs, gcn.SMovB32{c.Tmp.At(0), c.StrideK})
			soff = c.Tmp.At(0)
		case k > 1:
			gs = append(gs, gcn.SAddU32{c.Tmp.At(0), c.Tmp.At(0), c.StrideK})
			soff = c.Tmp.At(0)
		}
		args := []asm.Gen{c.Dst.Span(k*c.TE, c.TE), c.Os, c.Rsrc.Quad(), soff, asm.Offen, asm.Offset(0)}
		switch c.TE {
		case 1:
			gs = append(gs, gcn.BufferLoadDword(args))
		case 2:
			gs = append(gs, gcn.BufferLoadDwordx2(args))
		case 4:
			gs = append(gs, gcn.BufferLoadDwordx4(args))
		default:
			panic("bug")
		}
	}
	return gs.Append(to)
}

// Store moves fetched registers into scratch.
type Store struct {
	Operand string
	Addr    asm.V
	Src     asm.V
	Seq     sst.Store
}

func (*Store) component()   {}
func (c *Store) Name() string { return c.Operand + "_sst" }
func (c *Store) Params() string {
	return params("kind", c.Seq.Kind, "vec", c.Seq.NVec, "width", c.Seq.Width, "stride", c.Seq.Stride)
}
func (c *Store) Issues() int             { return c.Seq.Issues() }
func (c *Store) Append(to []byte) []byte { return c.Seq.Emit(c.Addr, c.Src).Append(to) }

// Read loads Width contiguous words from scratch.
type Read struct {
	Dst    asm.V
	Addr   asm.V
	Width  int
	Offset int
}

func (*Read) component()     {}
func (*Read) Name() string     { return "sld" }
func (c *Read) Params() string { return params("width", c.Width, "offset", c.Offset) }
func (*Read) Issues() int      { return 1 }

func (c *Read) Append(to []byte) []byte {
	args := []asm.Gen{c.Dst.Span(0, c.Width), c.Addr, asm.Offset(c.Offset)}
	switch c.Width {
	case 1:
		return gcn.DsReadB32(args).Append(to)
	case 2:
		return gcn.DsReadB64(args).Append(to)
	case 4:
		return gcn.DsReadB128(args).Append(to)
	}
	panic("bug")
}

// Fma accumulates one M-by-N outer product into the accumulator
// starting at Base, rows Stride apart.
type Fma struct {
	C      asm.V
	A      asm.V
	B      asm.V
	M      int
	N      int
	Base   int
	Stride int
}

func (*Fma) component()     {}
func (*Fma) Name() string     { return "fma" }
func (c *Fma) Params() string { return params("m", c.M, "n", c.N, "base", c.Base) }
func (*Fma) Issues() int      { return 0 }

func (c *Fma) Append(to []byte) []byte {
	var gs asm.Gens
	for i := 0; i < c.M; i++ {
		for j := 0; j < c.N; j++ {
			gs = append(gs, gcn.VMacF32{c.C.At(c.Base + i*c.Stride + j), c.A.At(i), c.B.At(j)})
		}
	}
	return gs.Append(to)
}

// Flip toggles scratch offsets between the two buffers.
type Flip struct {
	Regs []asm.V
	Size int
}

func (*Flip) component()     {}
func (*Flip) Name() string     { return "flip" }
func (c *Flip) Params() string { return params("size", c.Size) }
func (*Flip) Issues() int      { return 0 }

func (c *Flip) Append(to []byte) []byte {
	for _, r := range c.Regs {
		to = gcn.VXorB32{r, asm.IntLit(c.Size), r}.Append(to)
	}
	return to
}

// Flag sets Dst to 1 when row and column both fall inside the input.
// Negative coordinates compare as large unsigned values.
type Flag struct {
	Dst asm.V
	Row asm.V
	Col asm.V
	H   asm.S
	W   asm.S
}

func (*Flag) component()   {}
func (*Flag) Name() string { return "flag" }
func (*Flag) Params() string {
	return ""
}
func (*Flag) Issues() int { return 0 }

func (c *Flag) Append(to []byte) []byte {
	return asm.Gens{
		gcn.VCmpGtU32{asm.Vcc, c.H, c.Row},
		gcn.VCndmaskB32{c.Dst, asm.IntLit(0), asm.IntLit(1), asm.Vcc},
		gcn.VCmpGtU32{asm.Vcc, c.W, c.Col},
		gcn.VCndmaskB32{c.Dst, asm.IntLit(0), c.Dst, asm.Vcc},
	}.Append(to)
}

// Clear zeroes N registers.
type Clear struct {
	Dst asm.V
	N   int
}

func (*Clear) component()     {}
func (*Clear) Name() string     { return "clear" }
func (c *Clear) Params() string { return params("n", c.N) }
func (*Clear) Issues() int      { return 0 }

func (c *Clear) Append(to []byte) []byte {
	for i := 0; i < c.N; i++ {
		to = gcn.VMovB32{c.Dst.At(i), asm.IntLit(0)}.Append(to)
	}
	return to
}
