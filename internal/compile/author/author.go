// Package author writes the instruction text of one convolution kernel
// and the descriptor a loader needs to launch it.
package author

import (
	"fmt"

	"igemm/internal/compile/author/asm"
	"igemm/internal/compile/author/comp"
	"igemm/internal/compile/author/gcn"
	"igemm/internal/compile/author/gpr"
	"igemm/internal/compile/author/pipe"
	"igemm/internal/compile/author/sect"
	"igemm/internal/compile/author/sst"
	"igemm/internal/compile/author/variant"
	"igemm/internal/compile/author/xform"
	"igemm/internal/compile/plan"
	"igemm/internal/nmsrc"
)

// Reserved covers VCC, FLAT_SCRATCH and XNACK_MASK, which the
// hardware takes from the scalar file on top of what the kernel names.
const Reserved = 6

// scheduleCheck is the tile count every emitted plan is run over
// before it is written out. Three tiles take every branch of the loop.
const scheduleCheck = 3

// Prologue-only vector registers. They are placed in the top of the
// accumulator when it is large enough, since the accumulator is
// cleared only after the index setup is done.
var prologueTemps = []string{
	"tid", "in0", "iho", "iwo",
	"in_ie", "in_in1", "in_ib", "in_in2",
	"wei_ie", "wei_ik", "gemm_in", "gemm_im",
}

const vtmpLen = 6

// Vector registers live through the loop, besides the accumulator,
// the read registers and the fetch registers.
var live = []string{
	"in_os", "wei_os", "sst_a", "sst_b", "sld_a", "sld_b", "out_os", "in_flag",
}

var strides = []string{
	"in_stride_c", "in_stride_n2", "in_stride_n1", "wei_stride_k",
	"out_stride_k1", "out_stride_n2", "out_stride_n1", "out_stride_n0",
}

// Name is the kernel symbol for a tiling. It encodes the macro tile,
// the unroll, the thread tile, the cluster levels and the copy tiling,
// and marks 1x1 kernels.
func Name(t *plan.Tiling, p *plan.Problem) string {
	return "igemm_fwd_" + t.String() + variant.Select(p).Tag()
}

// Implement authors the kernel k describes. The tiling must already be
// a valid candidate with its copy decomposition attached.
func Implement(k *plan.Kernel) (text []byte, desc *plan.Descriptor, err error) {
	st := state{
		k:   k,
		t:   k.Tiling,
		p:   k.Problem,
		nms: nmsrc.New(),
	}
	if err = st.stages(); err != nil {
		return nil, nil, err
	}
	return st.sect.Join(), st.desc, nil
}

type state struct {
	k       *plan.Kernel
	t       *plan.Tiling
	p       *plan.Problem
	d       xform.Dims
	nms     nmsrc.Src
	sect    sect.Sections
	vr      variant.Variant
	args    []plan.Arg
	size    int
	elem    int
	logElem int
	s       *gpr.Arena
	v       *gpr.Arena
	seq     [pipe.Operands]sst.Store
	sched   *pipe.Plan
	desc    *plan.Descriptor
}

func (st *state) stages() error {
	if err := st.stage1(); err != nil {
		return err
	}
	st.stage2()
	st.stage3()
	if err := st.stage4(); err != nil {
		return err
	}
	st.stage5()
	st.stage6()
	st.stage7()
	st.stage8()
	return nil
}

func lit(n int) asm.IntLit { return asm.IntLit(n) }

func (st *state) stage1() error {
	if err := pipe.Admit(st.t, st.p); err != nil {
		return err
	}
	st.vr = variant.Select(st.p)
	st.d = xform.DimsOf(st.p)
	st.elem = st.p.Precision.Bytes()
	st.logElem = xform.Log2(st.elem)
	st.args, st.size = st.vr.Args()
	return nil
}

func (st *state) stage2() {
	t, name := st.t, st.k.Name
	st.sect.Append(sect.Banner, asm.Comment{
		name,
		fmt.Sprintf("block %dx%dx%d, thread %dx%d, %d threads",
			t.BlockM, t.BlockN, t.UnrollK, t.ThreadM, t.ThreadN, t.Threads()),
		fmt.Sprintf("gemm m %d/%dx%d, n %d/%dx%d",
			t.M.Sub, t.M.Level0, t.M.Level1, t.N.Sub, t.N.Level0, t.N.Level1),
		fmt.Sprintf("lds %d bytes, kernarg %d bytes", t.Usage.LdsTotal, st.size),
		"",
	})
	st.sect.Append(sect.Header,
		asm.Blank{},
		asm.Directive{Name: "text"},
		asm.Directive{Name: "globl", Args: []string{name}},
		asm.Directive{Name: "p2align", Args: []string{"8"}},
		asm.Directive{Name: "type", Args: []string{name, "@function"}},
		asm.Label(name),
	)
	st.sect.Append(sect.Footer,
		asm.Directive{Name: "size", Args: []string{name, ".-" + name}},
	)
}

func (st *state) stage3() {
	s := gpr.New(gpr.Scalar)
	s.Alloc("ka", 2, 1)
	s.Alloc("bx", 1, 1)
	for _, a := range st.args {
		if a.Pointer {
			s.Alloc(a.Name, 4, 4)
		}
	}
	for _, a := range st.args {
		if !a.Pointer {
			s.Alloc(a.Name, 1, 1)
		}
	}
	for _, name := range []string{"kitr", "block_ik", "block_ib", "howo", "bwork"} {
		s.Alloc(name, 1, 1)
	}
	for _, name := range strides {
		s.Alloc(name, 1, 1)
	}
	st.vr.Scalars(s)
	s.Alloc("tmp", 4, 4)
	st.s = s
}

func (st *state) stage4() error {
	t := st.t
	v := gpr.New(gpr.Vector)
	v.Alloc("c", t.ThreadM*t.ThreadN, 1)
	v.Alloc("a", t.ThreadM, 1)
	v.Alloc("b", t.ThreadN, 1)
	v.Alloc("gld_a", t.Usage.FetchA, 1)
	v.Alloc("gld_b", t.Usage.FetchB, 1)
	for _, name := range live {
		v.Alloc(name, 1, 1)
	}
	st.vr.Vectors(v)
	temps := append(prologueTemps[:len(prologueTemps):len(prologueTemps)], st.vr.Temps()...)
	cur := v.Lend("c", len(temps)+vtmpLen)
	gpr.Place(v, cur, "tmp", vtmpLen, 1)
	for _, name := range temps {
		gpr.Place(v, cur, name, 1, 1)
	}
	st.v = v
	tgt := st.k.Target
	if n := v.Count(); n > tgt.Vgprs {
		return plan.Reject(plan.RegisterOverflow, "kernel names %d vgprs, target has %d", n, tgt.Vgprs)
	}
	if n := st.s.Count() + Reserved; n > tgt.Sgprs {
		return plan.Reject(plan.RegisterOverflow, "kernel names %d sgprs, target has %d", n, tgt.Sgprs)
	}
	return nil
}

func (st *state) stage5() {
	st.sect.Append(sect.Symbols, st.s.Sets(), st.v.Sets(), asm.Blank{})
}

// stage6 is the index setup: arguments, scalar strides, the block and
// thread split, and every offset the loop starts from.
func (st *state) stage6() {
	st.sect.Append(sect.Prologue, st.setup(), st.threadIndex(), st.offsets(), st.outIndex())
}

func (st *state) setup() asm.Gens {
	t, s, v := st.t, st.s.S, st.v.V
	vt, stmp := v("tmp"), s("tmp")
	n1, n2 := t.N.Repeat, t.N.Sub
	gs := asm.Gens{
		comp.Annotated(&comp.LoadArgs{Ka: s("ka"), Args: st.args, Dst: s}),
		gcn.VMovB32{v("tid"), asm.Vb("v0")},
		gcn.Lgkmcnt(0),
	}
	for _, a := range st.args {
		if a.Pointer {
			gs = append(gs, &comp.Rsrc{Dst: s(a.Name)})
		}
	}
	gs = append(gs,
		gcn.SMulI32{s("howo"), s("ho"), s("wo")},
		gcn.SMulI32{stmp, s("hi"), s("wi")},
		gcn.SLshlB32{s("in_stride_c"), stmp, lit(st.logElem)},
		gcn.SMulI32{s("in_stride_n2"), s("c"), s("in_stride_c")},
		gcn.SLshlB32{s("in_stride_n1"), s("in_stride_n2"), lit(xform.Log2(n2))},
		gcn.SLshlB32{s("in_stride_hi"), s("wi"), lit(st.logElem)},
	)
	gs = append(gs, st.vr.Setup(st.s, st.v, t.EPerBlock)...)
	gs = append(gs,
		gcn.SLshlB32{s("wei_stride_k"), s("kitr"), lit(st.logElem)},
		gcn.SLshlB32{s("out_stride_k1"), s("howo"), lit(st.logElem)},
		gcn.SMulI32{s("out_stride_n2"), s("k"), s("out_stride_k1")},
		gcn.SLshlB32{s("out_stride_n1"), s("out_stride_n2"), lit(xform.Log2(n2))},
		gcn.SLshlB32{s("out_stride_n0"), s("out_stride_n1"), lit(xform.Log2(n1))},
		gcn.SLshrB32{stmp, s("n"), lit(xform.Log2(n1 * n2))},
		gcn.SMulI32{stmp, stmp, s("howo")},
		gcn.SLshrB32{s("bwork"), stmp, lit(xform.Log2(t.BPerBlock))},
		gcn.SMaxU32{s("bwork"), s("bwork"), lit(1)},
		&comp.Div{Quo: vt.At(5), Num: s("bx"), Den: s("bwork"), Tmp: vt, STmp: stmp},
		gcn.VReadfirstlaneB32{s("block_ik"), vt.At(5)},
		gcn.SMulI32{stmp, s("block_ik"), s("bwork")},
		gcn.SSubU32{s("block_ib"), s("bx"), stmp},
		gcn.SLshlB32{s("block_ib"), s("block_ib"), lit(xform.Log2(t.BPerBlock))},
		gcn.SLshlB32{s("block_ik"), s("block_ik"), lit(xform.Log2(t.KPerBlock))},
	)
	return gs
}

func (st *state) threadIndex() asm.Gens {
	t, s, v := st.t, st.s.S, st.v.V
	vt, stmp := v("tmp"), s("tmp")
	in := []asm.V{
		plan.InE:  v("in_ie"),
		plan.InN1: v("in_in1"),
		plan.InB:  v("in_ib"),
		plan.InN2: v("in_in2"),
	}
	wei := []asm.V{
		plan.WeiE: v("wei_ie"),
		plan.WeiK: v("wei_ik"),
	}
	gs := asm.Gens{
		comp.Annotated(&comp.Peel{Src: v("tid"), Work: vt.At(0), Steps: xform.InSteps(t), Dst: in}),
		comp.Annotated(&comp.Peel{Src: v("tid"), Work: vt.At(0), Steps: xform.WeiSteps(t), Dst: wei}),
		comp.Annotated(&comp.GemmPeel{
			Src: v("tid"), Work: vt.Span(0, 2),
			M:   v("gemm_im"), N: v("gemm_in"),
			Gm:  t.M, Gn: t.N,
		}),
		gcn.VAddU32{v("iho"), s("block_ib"), v("in_ib")},
		&comp.Div{Quo: v("in0"), Rem: v("iwo"), Num: v("iho"), Den: s("howo"), Tmp: vt, STmp: stmp},
		&comp.Div{Quo: v("iho"), Rem: v("iwo"), Num: v("iwo"), Den: s("wo"), Tmp: vt, STmp: stmp},
	}
	gs = append(gs, st.vr.Reduce(st.s, st.v)...)
	gs = append(gs, comp.Annotated(&comp.Flag{
		Dst: v("in_flag"), Row: v("in_ihi"), Col: v("in_iwi"),
		H:   s("hi"), W: s("wi"),
	}))
	return gs
}

func (st *state) offsets() asm.Gens {
	t, s, v := st.t, st.s.S, st.v.V
	vt := v("tmp")
	t0, t1 := vt.At(0), vt.At(1)
	n1, n2, bPer := t.N.Repeat, t.N.Sub, t.BPerBlock
	ldsB := lit(t.Usage.LdsB)
	return asm.Gens{
		asm.Comment{"in_os"},
		gcn.VLshlrevB32{t0, lit(xform.Log2(n1 * n2)), v("in0")},
		gcn.VLshlrevB32{t1, lit(xform.Log2(n2)), v("in_in1")},
		gcn.VAddU32{t0, t0, t1},
		gcn.VAddU32{t0, t0, v("in_in2")},
		gcn.VMulLoU32{v("in_os"), s("in_stride_n2"), t0},
		gcn.VMulLoU32{t1, s("in_stride_c"), st.vr.Channel(st.v)},
		gcn.VAddU32{v("in_os"), v("in_os"), t1},
		gcn.VMulLoU32{t1, s("in_stride_hi"), v("in_ihi")},
		gcn.VAddU32{v("in_os"), v("in_os"), t1},
		gcn.VLshlrevB32{t1, lit(st.logElem), v("in_iwi")},
		gcn.VAddU32{v("in_os"), v("in_os"), t1},

		asm.Comment{"wei_os"},
		gcn.VAddU32{t0, s("block_ik"), v("wei_ik")},
		gcn.VMulLoU32{v("wei_os"), s("wei_stride_k"), t0},
		gcn.VLshlrevB32{t0, lit(st.logElem), v("wei_ie")},
		gcn.VAddU32{v("wei_os"), v("wei_os"), t0},

		asm.Comment{"lds store and read offsets"},
		gcn.VLshlrevB32{t0, lit(xform.Log2(n1 * bPer * n2)), v("in_ie")},
		gcn.VLshlrevB32{t1, lit(xform.Log2(bPer * n2)), v("in_in1")},
		gcn.VAddU32{t0, t0, t1},
		gcn.VLshlrevB32{t1, lit(xform.Log2(n2)), v("in_ib")},
		gcn.VAddU32{t0, t0, t1},
		gcn.VAddU32{t0, t0, v("in_in2")},
		gcn.VLshlrevB32{v("sst_b"), lit(st.logElem), t0},
		gcn.VLshlrevB32{t0, lit(xform.Log2(t.KPerBlock)), v("wei_ie")},
		gcn.VAddU32{t0, t0, v("wei_ik")},
		gcn.VLshlrevB32{t0, lit(st.logElem), t0},
		gcn.VAddU32{v("sst_a"), ldsB, t0},
		gcn.VLshlrevB32{v("sld_b"), lit(xform.Log2(n2 * st.elem)), v("gemm_in")},
		gcn.VLshlrevB32{t0, lit(xform.Log2(t.M.Sub * st.elem)), v("gemm_im")},
		gcn.VAddU32{v("sld_a"), ldsB, t0},
	}
}

func (st *state) outIndex() asm.Gens {
	t, s, v := st.t, st.s.S, st.v.V
	vt := v("tmp")
	return asm.Gens{
		asm.Comment{"out_os"},
		gcn.VLshlrevB32{v("in0"), lit(xform.Log2(t.M.Sub)), v("gemm_im")},
		gcn.VAddU32{v("in0"), s("block_ik"), v("in0")},
		gcn.VAddU32{v("iho"), s("block_ib"), v("gemm_in")},
		&comp.Div{Quo: v("iwo"), Rem: v("iho"), Num: v("iho"), Den: s("howo"), Tmp: vt, STmp: s("tmp")},
		gcn.VMulLoU32{v("out_os"), s("out_stride_n0"), v("iwo")},
		gcn.VMulLoU32{vt.At(0), s("out_stride_k1"), v("in0")},
		gcn.VAddU32{v("out_os"), v("out_os"), vt.At(0)},
		gcn.VLshlrevB32{vt.At(0), lit(st.logElem), v("iho")},
		gcn.VAddU32{v("out_os"), v("out_os"), vt.At(0)},
	}
}

// stage7 schedules the loop, checks the schedule, and lowers each step
// to components.
func (st *state) stage7() {
	t := st.t
	bPer, n2 := t.BPerBlock, t.N.Sub
	st.seq[pipe.B] = sst.Select(t.In[plan.InN1].Sub, t.In[plan.InN2].Sub, bPer*n2*st.elem, 0, false)
	st.seq[pipe.A] = sst.Select(t.Wei[plan.WeiE].Sub, t.Wei[plan.WeiK].Sub, t.KPerBlock*st.elem, 0, true)
	var is pipe.Issues
	is.Load[pipe.A] = st.weiLoad().Issues()
	is.Load[pipe.B] = st.inLoad().Issues()
	for op := range st.seq {
		is.Store[op] = st.seq[op].Issues()
	}
	name := st.k.Name
	lb := pipe.Labels{
		Body:      st.nms.Label(name + "_body"),
		Finishing: st.nms.Label(name + "_finishing"),
		End:       st.nms.Label(name + "_end"),
	}
	pl := pipe.Schedule(t.EPerBlock, is, lb)
	if err := pipe.Check(pl, scheduleCheck); err != nil {
		panic("bug: " + err.Error())
	}
	st.sched = pl
	st.emit(sect.Window, pl.Prologue)
	st.emit(sect.Body, pl.Body)
	st.emit(sect.Finishing, pl.Finishing)
	st.emit(sect.Epilogue, pl.Epilogue)
}

func (st *state) emit(to sect.Section, ops []pipe.Op) {
	for _, op := range ops {
		st.sect.Append(to, st.lower(op))
	}
}

func (st *state) inLoad() *comp.InLoad {
	s, v := st.s.S, st.v.V
	return &comp.InLoad{
		Dst:      v("gld_b"), Os: v("in_os"), Flag: v("in_flag"),
		Rsrc:     s("p_in"), Tmp: s("tmp"),
		StrideN1: s("in_stride_n1"), StrideN2: s("in_stride_n2"),
		N1:       st.t.In[plan.InN1].Sub, N2: st.t.In[plan.InN2].Sub,
	}
}

func (st *state) weiLoad() *comp.WeiLoad {
	s, v := st.s.S, st.v.V
	return &comp.WeiLoad{
		Dst:  v("gld_a"), Os: v("wei_os"),
		Rsrc: s("p_wei"), Tmp: s("tmp"), StrideK: s("wei_stride_k"),
		TK:   st.t.Wei[plan.WeiK].Sub, TE: st.t.Wei[plan.WeiE].Sub,
	}
}

func (st *state) lower(op pipe.Op) asm.Gen {
	t, s, v := st.t, st.s.S, st.v.V
	mSub, nSub := t.M.Sub, t.N.Sub
	switch op := op.(type) {
	case pipe.Load:
		if op.Operand == pipe.A {
			return comp.Annotated(st.weiLoad())
		}
		return comp.Annotated(st.inLoad())
	case pipe.Store:
		if op.Operand == pipe.A {
			return comp.Annotated(&comp.Store{Operand: "wei", Addr: v("sst_a"), Src: v("gld_a"), Seq: st.seq[pipe.A]})
		}
		return comp.Annotated(&comp.Store{Operand: "in", Addr: v("sst_b"), Src: v("gld_b"), Seq: st.seq[pipe.B]})
	case pipe.Read:
		row, sub, addr, dst := t.KPerBlock, mSub, v("sld_a"), v("a")
		if op.Operand == pipe.B {
			row, sub, addr, dst = t.N.Extent(), nSub, v("sld_b"), v("b")
		}
		return &comp.Read{
			Dst:    dst.At(op.Half * sub),
			Addr:   addr,
			Width:  sub,
			Offset: (op.K*row + op.Half*row/2) * st.elem,
		}
	case pipe.Compute:
		return &comp.Fma{
			C:      v("c"), A: v("a").At(op.M * mSub), B: v("b").At(op.N * nSub),
			M:      mSub, N: nSub,
			Base:   op.M*mSub*t.ThreadN + op.N*nSub,
			Stride: t.ThreadN,
		}
	case pipe.Move:
		return comp.Annotated(st.vr.Move(st.s, st.v, t.EPerBlock, st.elem))
	case pipe.FlipStore:
		return &comp.Flip{Regs: []asm.V{v("sst_a"), v("sst_b")}, Size: t.Usage.LdsTotal / 2}
	case pipe.FlipRead:
		return &comp.Flip{Regs: []asm.V{v("sld_a"), v("sld_b")}, Size: t.Usage.LdsTotal / 2}
	case pipe.Wait:
		return gcn.SWaitcnt{Vm: op.Vm, Lgkm: op.Lgkm}
	case pipe.Barrier:
		return gcn.SBarrier{}
	case pipe.Clear:
		return comp.Annotated(&comp.Clear{Dst: v("c"), N: t.ThreadM * t.ThreadN})
	case pipe.LoopInit, pipe.LoopStep:
		return gcn.SSubI32{s("kitr"), s("kitr"), lit(t.EPerBlock)}
	case pipe.Label:
		return asm.Label(op.Name)
	case pipe.BranchDone:
		return asm.Gens{
			gcn.SCmpLeI32{s("kitr"), lit(0)},
			gcn.SCbranchScc1{asm.Vb(op.Target)},
		}
	case pipe.Branch:
		return gcn.SBranch{asm.Vb(op.Target)}
	case pipe.Writeout:
		return comp.Annotated(&comp.Writeout{
			C:       v("c"), Os: v("out_os"), Rsrc: s("p_out"), Tmp: s("tmp"),
			StrideK: s("out_stride_k1"), StrideN1: s("out_stride_n1"), StrideN2: s("out_stride_n2"),
			M:       t.M, N: t.N,
		})
	case pipe.End:
		return gcn.SEndpgm{}
	default:
		panic("bug")
	}
}

func (st *state) stage8() {
	t := st.t
	st.desc = &plan.Descriptor{
		Name:      st.k.Name,
		Args:      st.args,
		ArgBytes:  st.size,
		BlockSize: t.Threads(),
		LdsBytes:  t.Usage.LdsTotal,
		Vgprs:     st.v.Count(),
		Sgprs:     st.s.Count() + Reserved,
	}
	st.desc.Grid, st.desc.Why = Applicable(t, st.p)
	st.desc.Applicable = st.desc.Why == ""
}

// Applicable checks whether the kernel computes p exactly and returns
// its launch grid in blocks. A non-empty reason means it does not;
// the kernel is still emitted, since it takes the shape at run time.
func Applicable(t *plan.Tiling, p *plan.Problem) (grid int, why string) {
	n12 := t.N.Repeat * t.N.Sub
	e := p.Reduction()
	switch {
	case p.Groups != 1:
		return 0, fmt.Sprintf("groups %d", p.Groups)
	case p.Direction != plan.Forward:
		return 0, fmt.Sprintf("direction %v", p.Direction)
	case p.Batch%n12 != 0:
		return 0, fmt.Sprintf("batch %d not divisible by %d", p.Batch, n12)
	case p.Filters%t.KPerBlock != 0:
		return 0, fmt.Sprintf("filters %d not divisible by %d", p.Filters, t.KPerBlock)
	case e%t.EPerBlock != 0:
		return 0, fmt.Sprintf("reduction %d not divisible by %d", e, t.EPerBlock)
	}
	b := p.Batch / n12 * p.OutH() * p.OutW()
	if b%t.BPerBlock != 0 {
		return 0, fmt.Sprintf("gemm n %d not divisible by %d", b, t.BPerBlock)
	}
	return p.Filters / t.KPerBlock * (b / t.BPerBlock), ""
}
