package comp

import (
	"igemm/internal/compile/author/asm"
	"igemm/internal/compile/author/gcn"
	"igemm/internal/compile/author/xform"
	"igemm/internal/compile/plan"
)

// Div is unsigned 32-bit division, Quo = Num / Den, by a float
// reciprocal estimate corrected in integer arithmetic. A denominator
// of zero yields all ones. Num and Den may be vector or scalar
// registers or literals; non-vector operands are first copied into
// Tmp, which needs six registers in the worst case. Rem, when set,
// receives the remainder.
type Div struct {
	Quo  asm.V
	Rem  asm.Gen
	Num  asm.Gen
	Den  asm.Gen
	Tmp  asm.V
	STmp asm.S
}

func (*Div) component()     {}
func (*Div) Name() string   { return "div_u32" }
func (*Div) Params() string { return "" }
func (*Div) Issues() int    { return 0 }

func (c *Div) Append(to []byte) []byte {
	var gs asm.Gens
	num, den, t := c.Num, c.Den, c.Tmp
	if _, ok := num.(asm.V); !ok {
		gs = append(gs, gcn.VMovB32{t.At(0), num})
		num, t = t.At(0), t.Span(1, 5)
	}
	if _, ok := den.(asm.V); !ok {
		gs = append(gs, gcn.VMovB32{t.At(0), den})
		den, t = t.At(0), t.Span(1, 4)
	}
	m0, m1 := c.STmp.Pair(), c.STmp.Span(2, 2)
	t0, t1, t2, t3 := t.At(0), t.At(1), t.At(2), t.At(3)
	gs = append(gs,
		gcn.VCvtF32U32{t0, den},
		gcn.VRcpF32{t0, t0},
		gcn.VMulF32{t0, asm.HexLit(0x4f800000), t0},
		gcn.VCvtU32F32{t0, t0},
		gcn.VMulLoU32{t1, den, t0},
		gcn.VMulHiU32{t2, den, t0},
		gcn.VSubCoU32{t3, asm.Vcc, asm.IntLit(0), t1},
		gcn.VCmpNeI32{m0, asm.IntLit(0), t2},
		gcn.VCndmaskB32{t1, t3, t1, m0},
		gcn.VMulHiU32{t1, t1, t0},
		gcn.VSubCoU32{t2, asm.Vcc, t0, t1},
		gcn.VAddCoU32{t0, asm.Vcc, t0, t1},
		gcn.VCndmaskB32{t0, t0, t2, m0},
		gcn.VMulHiU32{t0, t0, num},
		gcn.VMulLoU32{t1, t0, den},
		gcn.VSubCoU32{t2, asm.Vcc, num, t1},
		gcn.VCmpGeU32{m0, num, t1},
		gcn.VCmpGeU32{m1, t2, den},
		gcn.VAddCoU32{t2, asm.Vcc, asm.IntLit(1), t0},
		gcn.SAndB64{m1, m0, m1},
		gcn.VAddCoU32{t1, asm.Vcc, asm.IntLit(-1), t0},
		gcn.VCndmaskB32{t2, t0, t2, m1},
		gcn.VCndmaskB32{t2, t1, t2, m0},
		gcn.VCmpNeI32{asm.Vcc, asm.IntLit(0), den},
		gcn.VCndmaskB32{c.Quo, asm.IntLit(-1), t2, asm.Vcc},
	)
	if c.Rem != nil {
		gs = append(gs,
			gcn.VMulLoU32{t0, c.Quo, den},
			gcn.VSubU32{c.Rem, num, t0},
		)
	}
	return gs.Append(to)
}

// Peel splits a flat id into per-axis element positions by mask and
// shift, one xform.Step at a time. Work is clobbered.
type Peel struct {
	Src   asm.V
	Work  asm.V
	Steps []xform.Step
	Dst   []asm.V
}

func (*Peel) component()     {}
func (*Peel) Name() string     { return "peel" }
func (c *Peel) Params() string { return params("axes", len(c.Steps)) }
func (*Peel) Issues() int      { return 0 }

func (c *Peel) Append(to []byte) []byte {
	gs := asm.Gens{gcn.VMovB32{c.Work, c.Src}}
	for i, s := range c.Steps {
		dst := c.Dst[s.Axis]
		gs = append(gs, gcn.VAndB32{dst, asm.IntLit(s.Mask), c.Work})
		if s.SubShift > 0 {
			gs = append(gs, gcn.VLshlrevB32{dst, asm.IntLit(s.SubShift), dst})
		}
		if s.Shift > 0 && i+1 < len(c.Steps) {
			gs = append(gs, gcn.VLshrrevB32{c.Work, asm.IntLit(s.Shift), c.Work})
		}
	}
	return gs.Append(to)
}

// GemmPeel splits a flat id into the GEMM M and N thread positions of
// a two-level cluster.
type GemmPeel struct {
	Src  asm.V
	Work asm.V
	M    asm.V
	N    asm.V
	Gm   plan.Gemm
	Gn   plan.Gemm
}

func (*GemmPeel) component()   {}
func (*GemmPeel) Name() string { return "gemm_peel" }
func (c *GemmPeel) Params() string {
	return params("m0", c.Gm.Level0, "m1", c.Gm.Level1, "n0", c.Gn.Level0, "n1", c.Gn.Level1)
}
func (*GemmPeel) Issues() int { return 0 }

func (c *GemmPeel) Append(to []byte) []byte {
	m0, n0, n1 := xform.Log2(c.Gm.Level0), xform.Log2(c.Gn.Level0), xform.Log2(c.Gn.Level1)
	w0, w1 := c.Work.At(0), c.Work.At(1)
	return asm.Gens{
		gcn.VAndB32{w0, asm.IntLit(1<<(m0+n0) - 1), c.Src},
		gcn.VAndB32{c.N, asm.IntLit(1<<n0 - 1), w0},
		gcn.VLshrrevB32{c.M, asm.IntLit(n0), w0},
		gcn.VLshrrevB32{w0, asm.IntLit(m0 + n0), c.Src},
		gcn.VAndB32{w1, asm.IntLit(1<<n1 - 1), w0},
		gcn.VLshlrevB32{w1, asm.IntLit(n0), w1},
		gcn.VOrB32{c.N, c.N, w1},
		gcn.VLshrrevB32{w1, asm.IntLit(n1), w0},
		gcn.VLshlrevB32{w1, asm.IntLit(m0), w1},
		gcn.VOrB32{c.M, c.M, w1},
	}.Append(to)
}

// LoadArgs reads the kernel argument block into scalar registers.
type LoadArgs struct {
	Ka   asm.S
	Args []plan.Arg
	Dst  func(name string) asm.S
}

func (*LoadArgs) component()     {}
func (*LoadArgs) Name() string     { return "load_args" }
func (c *LoadArgs) Params() string { return params("args", len(c.Args)) }
func (c *LoadArgs) Issues() int    { return len(c.Args) }

func (c *LoadArgs) Append(to []byte) []byte {
	for _, a := range c.Args {
		dst := c.Dst(a.Name)
		if a.Pointer {
			to = gcn.SLoadDwordx2{dst.Pair(), c.Ka.Pair(), asm.IntLit(a.Offset)}.Append(to)
			continue
		}
		to = gcn.SLoadDword{dst, c.Ka.Pair(), asm.IntLit(a.Offset)}.Append(to)
	}
	return to
}

// Rsrc completes a buffer resource whose base address is already in
// the first two registers.
type Rsrc struct {
	Dst asm.S
}

func (*Rsrc) component()     {}
func (*Rsrc) Name() string   { return "rsrc" }
func (*Rsrc) Params() string { return "" }
func (*Rsrc) Issues() int    { return 0 }

func (c *Rsrc) Append(to []byte) []byte {
	return asm.Gens{
		gcn.SMovB32{c.Dst.At(2), asm.HexLit(0xffffffff)},
		gcn.SMovB32{c.Dst.At(3), asm.HexLit(0x27000)},
	}.Append(to)
}

// Writeout stores the accumulator tile. Rows run over Repeat groups of
// Sub along M; columns over Repeat groups of Sub along N.
type Writeout struct {
	C        asm.V
	Os       asm.V
	Rsrc     asm.S
	Tmp      asm.S
	StrideK  asm.S
	StrideN1 asm.S
	StrideN2 asm.S
	M        plan.Gemm
	N        plan.Gemm
}

func (*Writeout) component()   {}
func (*Writeout) Name() string { return "writeout" }
func (c *Writeout) Params() string {
	return params("m", c.M.Repeat*c.M.Sub, "n", c.N.Repeat*c.N.Sub)
}
func (c *Writeout) Issues() int { return c.M.Repeat * c.M.Sub * c.N.Repeat * c.N.Sub }

func (c *Writeout) Append(to []byte) []byte {
	var gs asm.Gens
	k1 := c.M.Sub * c.M.Level0 * c.M.Level1
	tileN := c.N.Repeat * c.N.Sub
	for k0 := 0; k0 < c.M.Repeat; k0++ {
		for k := 0; k < c.M.Sub; k++ {
			row := k0*c.M.Sub + k
			gs = append(gs, gcn.SMulI32{c.Tmp.At(0), asm.IntLit(k0*k1 + k), c.StrideK})
			for n1 := 0; n1 < c.N.Repeat; n1++ {
				if n1 > 0 {
					gs = append(gs, gcn.SMulI32{c.Tmp.At(0), asm.IntLit(k0*k1 + k), c.StrideK})
					for i := 0; i < n1; i++ {
						gs = append(gs, gcn.SAddU32{c.Tmp.At(0), c.Tmp.At(0), c.StrideN1})
					}
				}
				for n2 := 0; n2 < c.N.Sub; n2++ {
					if n2 > 0 {
						gs = append(gs, gcn.SAddU32{c.Tmp.At(0), c.Tmp.At(0), c.StrideN2})
					}
					gs = append(gs, gcn.BufferStoreDword{
						c.C.At(row*tileN + n1*c.N.Sub + n2), c.Os, c.Rsrc.Quad(), c.Tmp.At(0),
						asm.Offen, asm.Offset(0),
					})
				}
			}
		}
	}
	return gs.Append(to)
}
