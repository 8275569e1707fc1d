package comp

import (
	"igemm/internal/compile/author/asm"
	"igemm/internal/compile/author/gcn"
)

// Window names the registers a slice-window move updates.
type Window struct {
	Ic    asm.V
	Iy    asm.V
	Ix    asm.V
	Ihi   asm.V
	Iwi   asm.V
	Dc    asm.V
	Dy    asm.V
	Dx    asm.V
	InOs  asm.V
	WeiOs asm.V
	Flag  asm.V
}

// Steps names the scalar registers holding the per-tile step and the
// problem extents the move reads.
type Steps struct {
	C        asm.S
	Y        asm.S
	X        asm.S
	FilterY  asm.S
	FilterX  asm.S
	DilH     asm.S
	DilW     asm.S
	StrideC  asm.S
	StrideHi asm.S
	Hi       asm.S
	Wi       asm.S
}

// GeneralMove advances (c, y, x) by the step with carries, then moves
// the input row, column and offset by the signed differences and
// re-evaluates the validity flag. The flag register doubles as scratch
// until it is recomputed.
type GeneralMove struct {
	W       Window
	S       Steps
	WeiStep int
	LogElem int
}

func (*GeneralMove) component()     {}
func (*GeneralMove) Name() string     { return "move_slice_window" }
func (c *GeneralMove) Params() string { return params("wei_step", c.WeiStep) }
func (*GeneralMove) Issues() int      { return 0 }

func (c *GeneralMove) Append(to []byte) []byte {
	w, s := &c.W, &c.S
	carry := func(v asm.V, step, bound asm.S, next asm.V) asm.Gens {
		return asm.Gens{
			gcn.VAddU32{v, step, v},
			gcn.VCmpLeU32{asm.Vcc, bound, v},
			gcn.VSubrevU32{w.Flag, bound, v},
			gcn.VCndmaskB32{v, v, w.Flag, asm.Vcc},
			gcn.VAddcCoU32{next, asm.Vcc, asm.IntLit(0), next, asm.Vcc},
		}
	}
	gs := asm.Gens{
		gcn.VMovB32{w.Dc, w.Ic},
		gcn.VMovB32{w.Dy, w.Iy},
		gcn.VMovB32{w.Dx, w.Ix},
	}
	gs = append(gs, carry(w.Ix, s.X, s.FilterX, w.Iy)...)
	gs = append(gs, carry(w.Iy, s.Y, s.FilterY, w.Ic)...)
	gs = append(gs,
		gcn.VAddU32{w.Ic, s.C, w.Ic},
		gcn.VSubU32{w.Dc, w.Ic, w.Dc},
		gcn.VSubU32{w.Dy, w.Iy, w.Dy},
		gcn.VSubU32{w.Dx, w.Ix, w.Dx},
		gcn.VMulLoU32{w.Dy, s.DilH, w.Dy},
		gcn.VMulLoU32{w.Dx, s.DilW, w.Dx},
		gcn.VAddU32{w.Ihi, w.Ihi, w.Dy},
		gcn.VAddU32{w.Iwi, w.Iwi, w.Dx},
		gcn.VMulLoU32{w.Dc, s.StrideC, w.Dc},
		gcn.VAddU32{w.InOs, w.InOs, w.Dc},
		gcn.VMulLoU32{w.Dy, s.StrideHi, w.Dy},
		gcn.VAddU32{w.InOs, w.InOs, w.Dy},
		gcn.VLshlrevB32{w.Dx, asm.IntLit(c.LogElem), w.Dx},
		gcn.VAddU32{w.InOs, w.InOs, w.Dx},
		gcn.VAddU32{w.WeiOs, asm.IntLit(c.WeiStep), w.WeiOs},
		&Flag{Dst: w.Flag, Row: w.Ihi, Col: w.Iwi, H: s.Hi, W: s.Wi},
	)
	return gs.Append(to)
}

// UnitMove is the 1x1 step: only the channel advances, so both offsets
// move by constants and the flag stays as it is.
type UnitMove struct {
	InOs    asm.V
	WeiOs   asm.V
	InStep  asm.S
	WeiStep int
}

func (*UnitMove) component()     {}
func (*UnitMove) Name() string     { return "move_slice_window_1x1" }
func (c *UnitMove) Params() string { return params("wei_step", c.WeiStep) }
func (*UnitMove) Issues() int      { return 0 }

func (c *UnitMove) Append(to []byte) []byte {
	return asm.Gens{
		gcn.VAddU32{c.InOs, c.InStep, c.InOs},
		gcn.VAddU32{c.WeiOs, asm.IntLit(c.WeiStep), c.WeiOs},
	}.Append(to)
}
