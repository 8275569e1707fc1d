// Package variant separates the 1x1 kernel from the general one. The
// choice is made once per kernel; everything that differs between the
// two lives behind Variant.
package variant

import (
	"igemm/internal/compile/author/asm"
	"igemm/internal/compile/author/comp"
	"igemm/internal/compile/author/gcn"
	"igemm/internal/compile/author/gpr"
	"igemm/internal/compile/author/karg"
	"igemm/internal/compile/author/xform"
	"igemm/internal/compile/plan"
)

type Variant interface {
	// Tag is appended to kernel names.
	Tag() string
	Unit() bool
	Args() (args []plan.Arg, size int)

	// Scalars and Vectors reserve the registers the variant keeps live
	// through the loop. Temps names the prologue-only vector registers
	// it needs on top of the shared ones.
	Scalars(s *gpr.Arena)
	Vectors(v *gpr.Arena)
	Temps() []string

	// Setup derives the variant's scalar constants: the reduction
	// length into s_kitr and the per-tile window step.
	Setup(s, v *gpr.Arena, ePer int) asm.Gens

	// Reduce turns the thread's reduction position v_in_ie and output
	// position (v_iho, v_iwo) into the input row and column and leaves
	// the channel in the register Channel names.
	Reduce(s, v *gpr.Arena) asm.Gens
	Channel(v *gpr.Arena) asm.V

	Move(s, v *gpr.Arena, ePer, elem int) comp.Component
	Mover(d *xform.Dims, ePer int) xform.Mover
}

// Select picks the variant for a problem.
func Select(p *plan.Problem) Variant {
	if p.Unit() {
		return unit{}
	}
	return general{}
}

func divTmp(v *gpr.Arena, s *gpr.Arena) (asm.V, asm.S) {
	return v.V("tmp"), s.S("tmp")
}

type general struct{}

func (general) Tag() string     { return "" }
func (general) Unit() bool      { return false }
func (general) Temps() []string { return nil }

func (general) Args() ([]plan.Arg, int) { return karg.Layout(false) }

func (general) Scalars(s *gpr.Arena) {
	for _, name := range []string{"yx", "in_stride_hi", "move_c", "move_y", "move_x"} {
		s.Alloc(name, 1, 1)
	}
}

func (general) Vectors(v *gpr.Arena) {
	for _, name := range []string{"in_ic", "in_iy", "in_ix", "in_ihi", "in_iwi", "in_idc", "in_idy", "in_idx"} {
		v.Alloc(name, 1, 1)
	}
}

func (general) Setup(s, v *gpr.Arena, ePer int) asm.Gens {
	vt, st := divTmp(v, s)
	q := vt.At(5)
	return asm.Gens{
		gcn.SMulI32{s.S("yx"), s.S("y"), s.S("x")},
		gcn.SMulI32{s.S("kitr"), s.S("c"), s.S("yx")},
		&comp.Div{Quo: q, Num: asm.IntLit(ePer), Den: s.S("yx"), Tmp: vt, STmp: st},
		gcn.VReadfirstlaneB32{s.S("move_c"), q},
		gcn.SMulI32{s.S("move_y"), s.S("move_c"), s.S("yx")},
		gcn.SSubU32{s.S("move_y"), asm.IntLit(ePer), s.S("move_y")},
		gcn.SMovB32{s.S("move_x"), s.S("move_y")},
		&comp.Div{Quo: q, Num: s.S("move_x"), Den: s.S("x"), Tmp: vt, STmp: st},
		gcn.VReadfirstlaneB32{s.S("move_y"), q},
		gcn.SMulI32{s.S("tmp"), s.S("move_y"), s.S("x")},
		gcn.SSubU32{s.S("move_x"), s.S("move_x"), s.S("tmp")},
	}
}

func (general) Reduce(s, v *gpr.Arena) asm.Gens {
	vt, st := divTmp(v, s)
	return asm.Gens{
		&comp.Div{Quo: v.V("in_ic"), Rem: vt.At(5), Num: v.V("in_ie"), Den: s.S("yx"), Tmp: vt, STmp: st},
		&comp.Div{Quo: v.V("in_iy"), Rem: v.V("in_ix"), Num: vt.At(5), Den: s.S("x"), Tmp: vt, STmp: st},
		gcn.VMulLoU32{v.V("in_ihi"), s.S("stride_h"), v.V("iho")},
		gcn.VMulLoU32{vt.At(0), s.S("dilation_h"), v.V("in_iy")},
		gcn.VAddU32{v.V("in_ihi"), v.V("in_ihi"), vt.At(0)},
		gcn.VSubrevU32{v.V("in_ihi"), s.S("pad_h"), v.V("in_ihi")},
		gcn.VMulLoU32{v.V("in_iwi"), s.S("stride_w"), v.V("iwo")},
		gcn.VMulLoU32{vt.At(0), s.S("dilation_w"), v.V("in_ix")},
		gcn.VAddU32{v.V("in_iwi"), v.V("in_iwi"), vt.At(0)},
		gcn.VSubrevU32{v.V("in_iwi"), s.S("pad_w"), v.V("in_iwi")},
	}
}

func (general) Channel(v *gpr.Arena) asm.V { return v.V("in_ic") }

func (general) Move(s, v *gpr.Arena, ePer, elem int) comp.Component {
	return &comp.GeneralMove{
		W: comp.Window{
			Ic:   v.V("in_ic"), Iy: v.V("in_iy"), Ix: v.V("in_ix"),
			Ihi:  v.V("in_ihi"), Iwi: v.V("in_iwi"),
			Dc:   v.V("in_idc"), Dy: v.V("in_idy"), Dx: v.V("in_idx"),
			InOs: v.V("in_os"), WeiOs: v.V("wei_os"), Flag: v.V("in_flag"),
		},
		S: comp.Steps{
			C:       s.S("move_c"), Y: s.S("move_y"), X: s.S("move_x"),
			FilterY: s.S("y"), FilterX: s.S("x"),
			DilH:    s.S("dilation_h"), DilW: s.S("dilation_w"),
			StrideC: s.S("in_stride_c"), StrideHi: s.S("in_stride_hi"),
			Hi:      s.S("hi"), Wi: s.S("wi"),
		},
		WeiStep: ePer * elem,
		LogElem: xform.Log2(elem),
	}
}

func (general) Mover(d *xform.Dims, ePer int) xform.Mover { return xform.NewGeneral(d, ePer) }

type unit struct{}

func (unit) Tag() string     { return "_gemm1x1" }
func (unit) Unit() bool      { return true }
func (unit) Temps() []string { return []string{"in_ihi", "in_iwi"} }

func (unit) Args() ([]plan.Arg, int) { return karg.Layout(true) }

func (unit) Scalars(s *gpr.Arena) {
	s.Alloc("in_stride_hi", 1, 1)
	s.Alloc("move_in", 1, 1)
}

func (unit) Vectors(*gpr.Arena) {}

func (unit) Setup(s, v *gpr.Arena, ePer int) asm.Gens {
	return asm.Gens{
		gcn.SMovB32{s.S("kitr"), s.S("c")},
		gcn.SMulI32{s.S("move_in"), asm.IntLit(ePer), s.S("in_stride_c")},
	}
}

func (unit) Reduce(s, v *gpr.Arena) asm.Gens {
	return asm.Gens{
		gcn.VMulLoU32{v.V("in_ihi"), s.S("stride_h"), v.V("iho")},
		gcn.VSubrevU32{v.V("in_ihi"), s.S("pad_h"), v.V("in_ihi")},
		gcn.VMulLoU32{v.V("in_iwi"), s.S("stride_w"), v.V("iwo")},
		gcn.VSubrevU32{v.V("in_iwi"), s.S("pad_w"), v.V("in_iwi")},
	}
}

func (unit) Channel(v *gpr.Arena) asm.V { return v.V("in_ie") }

func (unit) Move(s, v *gpr.Arena, ePer, elem int) comp.Component {
	return &comp.UnitMove{
		InOs:    v.V("in_os"),
		WeiOs:   v.V("wei_os"),
		InStep:  s.S("move_in"),
		WeiStep: ePer * elem,
	}
}

func (unit) Mover(d *xform.Dims, ePer int) xform.Mover { return xform.NewUnit(d, ePer) }
