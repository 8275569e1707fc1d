package comp

import (
	"strings"
	"testing"

	"igemm/internal/compile/author/asm"
	"igemm/internal/compile/author/emu"
	"igemm/internal/compile/author/gcn"
	"igemm/internal/compile/author/sst"
	"igemm/internal/compile/author/xform"
	"igemm/internal/compile/enum"
	"igemm/internal/compile/plan"
	"igemm/internal/compile/split"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func count(text []byte, prefix string) int {
	n := 0
	for _, op := range gcn.Mnemonics(text) {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

func TestIssues(t *testing.T) {
	tmp := asm.S{Sym: "s_tmp"}
	for _, tc := range []struct {
		c      Component
		prefix string
	}{
		{&InLoad{Dst: asm.V{Sym: "v_gld_b"}, N1: 2, N2: 4}, "buffer_load"},
		{&WeiLoad{Dst: asm.V{Sym: "v_gld_a"}, TK: 4, TE: 2, Tmp: tmp}, "buffer_load"},
		{&WeiLoad{Dst: asm.V{Sym: "v_gld_a"}, TK: 1, TE: 4, Tmp: tmp}, "buffer_load"},
		{&Store{Operand: "wei", Seq: sst.Select(4, 2, 512, 0, true)}, "ds_write"},
		{&Store{Operand: "in", Seq: sst.Select(2, 4, 512, 0, false)}, "ds_write"},
		{&Read{Width: 4}, "ds_read"},
		{&LoadArgs{Args: []plan.Arg{{Name: "p", Pointer: true}, {Name: "c", Offset: 8}}, Dst: func(n string) asm.S { return asm.S{Sym: "s_" + n} }}, "s_load"},
		{&Writeout{
			M: plan.Gemm{Repeat: 2, Sub: 4, Level0: 4, Level1: 4},
			N: plan.Gemm{Repeat: 2, Sub: 2, Level0: 4, Level1: 4},
		}, "buffer_store"},
	} {
		text := tc.c.Append(nil)
		assert.Equal(t, tc.c.Issues(), count(text, tc.prefix), tc.c.Name())
		assert.NotEmpty(t, tc.c.Name())
	}
	for _, c := range []Component{&Fma{}, &Flip{}, &Flag{}, &Clear{}, &Div{}, &Peel{}, &GemmPeel{}, &Rsrc{}, &GeneralMove{}, &UnitMove{}} {
		assert.Zero(t, c.Issues(), c.Name())
	}
}

func TestMaskedLoad(t *testing.T) {
	c := &InLoad{
		Dst:      asm.V{Sym: "v_gld_b"}, Os: asm.V{Sym: "v_in_os"}, Flag: asm.V{Sym: "v_flag"},
		Rsrc:     asm.S{Sym: "s_p_buf_in"}, Tmp: asm.S{Sym: "s_tmp"},
		StrideN1: asm.S{Sym: "s_in_stride_n1"}, StrideN2: asm.S{Sym: "s_in_stride_n2"},
		N1:       2, N2: 2,
	}
	ops := gcn.Mnemonics(c.Append(nil))
	// Every load sits between the exec save and restore, whatever the flag.
	save := indexOf(ops, "s_and_saveexec_b64")
	restore := indexOf(ops, "s_or_b64")
	require.Greater(t, restore, save)
	loads := 0
	for i, op := range ops {
		if op == "buffer_load_dword" {
			assert.Greater(t, i, save)
			assert.Less(t, i, restore)
			loads++
		}
	}
	assert.Equal(t, 4, loads)
	assert.Equal(t, 4, count(c.Append(nil), "v_mov_b32"))
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func TestFma(t *testing.T) {
	c := &Fma{C: asm.V{Sym: "v_c"}, A: asm.V{Sym: "v_a", Off: 4}, B: asm.V{Sym: "v_b"}, M: 4, N: 4, Base: 32, Stride: 8}
	text := string(c.Append(nil))
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 16)
	assert.Equal(t, "v_mac_f32 v[v_c+32], v[v_a+4], v[v_b+0]", strings.TrimSpace(lines[0]))
	assert.Equal(t, "v_mac_f32 v[v_c+59], v[v_a+7], v[v_b+3]", strings.TrimSpace(lines[15]))
}

func TestDiv(t *testing.T) {
	q, r := asm.V{Sym: "v_q"}, asm.V{Sym: "v_r"}
	num, den := asm.V{Sym: "v_num"}, asm.S{Sym: "s_den"}
	c := &Div{Quo: q, Rem: r, Num: num, Den: den, Tmp: asm.V{Sym: "v_tmp"}, STmp: asm.S{Sym: "s_tmp"}}
	text := c.Append(nil)
	for _, n := range []int{0, 1, 5, 35, 36, 100, 783, 784, 12544, 65535, 1<<20 + 7, 1<<31 + 3} {
		for _, d := range []int{1, 2, 3, 7, 9, 14, 28, 196, 784, 1 << 16} {
			l := emu.New()
			l.Set("v_num+0", n)
			l.Set("s_den+0", d)
			require.NoError(t, l.Run(text))
			assert.Equal(t, uint32(n)/uint32(d), l.Regs["v_q+0"], "%d/%d", n, d)
			assert.Equal(t, uint32(n)%uint32(d), l.Regs["v_r+0"], "%d%%%d", n, d)
		}
	}

	l := emu.New()
	l.Set("v_num+0", 9)
	l.Set("s_den+0", 0)
	require.NoError(t, l.Run(text))
	assert.Equal(t, uint32(0xffffffff), l.Regs["v_q+0"])

	// Both operands scalar or literal.
	c = &Div{Quo: q, Num: asm.IntLit(16), Den: den, Tmp: asm.V{Sym: "v_tmp"}, STmp: asm.S{Sym: "s_tmp"}}
	l = emu.New()
	l.Set("s_den+0", 9)
	require.NoError(t, l.Run(c.Append(nil)))
	assert.Equal(t, 1, l.Int("v_q+0"))
}

func tilings(t *testing.T) []*plan.Tiling {
	t.Helper()
	c := enum.One(8, 8, 128, 128, 8, 2, []int{256}, 4, plan.DefaultTarget())
	require.True(t, c.Valid())
	ts, err := split.Decompose(c, 0, 0)
	require.NoError(t, err)
	return ts
}

func TestPeel(t *testing.T) {
	ts := tilings(t)
	tid, work := asm.V{Sym: "v_tid"}, asm.V{Sym: "v_work"}
	in := make([]asm.V, plan.InAxes)
	for ax := range in {
		in[ax] = asm.V{Sym: "v_in", Off: ax}
	}
	wei := []asm.V{{Sym: "v_wei", Off: 0}, {Sym: "v_wei", Off: 1}}
	for _, tl := range []*plan.Tiling{ts[0], ts[37], ts[len(ts)-1]} {
		text := asm.Gens{
			&Peel{Src: tid, Work: work, Steps: xform.InSteps(tl), Dst: in},
			&Peel{Src: tid, Work: work, Steps: xform.WeiSteps(tl), Dst: wei},
			&GemmPeel{Src: tid, Work: work, M: asm.V{Sym: "v_gemm_im"}, N: asm.V{Sym: "v_gemm_in"}, Gm: tl.M, Gn: tl.N},
		}.Append(nil)
		for id := 0; id < tl.Threads(); id++ {
			l := emu.New()
			l.Set("v_tid+0", id)
			require.NoError(t, l.Run(text))
			want := xform.Thread(tl, id)
			for ax := 0; ax < plan.InAxes; ax++ {
				require.Equal(t, want.In[ax], l.Int(in[ax].Sym+"+"+itoa(ax)), "%v tid %d in axis %d", tl, id, ax)
			}
			require.Equal(t, want.Wei[plan.WeiE], l.Int("v_wei+0"))
			require.Equal(t, want.Wei[plan.WeiK], l.Int("v_wei+1"))
			require.Equal(t, want.GemmM, l.Int("v_gemm_im+0"))
			require.Equal(t, want.GemmN, l.Int("v_gemm_in+0"))
		}
	}
}

func itoa(n int) string {
	return string(asm.IntLit(n).Append(nil))
}

var window = Window{
	Ic:   asm.V{Sym: "v_ic"}, Iy: asm.V{Sym: "v_iy"}, Ix: asm.V{Sym: "v_ix"},
	Ihi:  asm.V{Sym: "v_ihi"}, Iwi: asm.V{Sym: "v_iwi"},
	Dc:   asm.V{Sym: "v_idc"}, Dy: asm.V{Sym: "v_idy"}, Dx: asm.V{Sym: "v_idx"},
	InOs: asm.V{Sym: "v_in_os"}, WeiOs: asm.V{Sym: "v_wei_os"}, Flag: asm.V{Sym: "v_flag"},
}

func load(l *emu.Lane, d *xform.Dims, s xform.Slice, w *xform.Window) {
	for k, v := range map[string]int{
		"v_ic+0":          w.Ic, "v_iy+0": w.Iy, "v_ix+0": w.Ix, "v_ihi+0": w.Ihi, "v_iwi+0": w.Iwi,
		"v_in_os+0":       w.InOs, "v_wei_os+0": w.WeiOs,
		"s_move_c+0":      s.Dc, "s_move_y+0": s.Dy, "s_move_x+0": s.Dx,
		"s_y+0":           d.Y, "s_x+0": d.X, "s_dilation_h+0": d.DilH, "s_dilation_w+0": d.DilW,
		"s_in_stride_c+0": d.H * d.W * d.Elem, "s_in_stride_hi+0": d.W * d.Elem,
		"s_hi+0":          d.H, "s_wi+0": d.W,
	} {
		l.Set(k, v)
	}
}

func TestGeneralMove(t *testing.T) {
	d := &xform.Dims{
		N:       2, C: 5, H: 9, W: 11, K: 8, Y: 3, X: 3, Ho: 5, Wo: 6,
		StrideH: 2, StrideW: 2, DilH: 2, DilW: 1, PadH: 1, PadW: 2, Elem: 4,
	}
	for _, ePer := range []int{1, 2, 4, 7, 8, 16} {
		s := xform.SliceOf(d, ePer)
		c := &GeneralMove{
			W: window,
			S: Steps{
				C:       asm.S{Sym: "s_move_c"}, Y: asm.S{Sym: "s_move_y"}, X: asm.S{Sym: "s_move_x"},
				FilterY: asm.S{Sym: "s_y"}, FilterX: asm.S{Sym: "s_x"},
				DilH:    asm.S{Sym: "s_dilation_h"}, DilW: asm.S{Sym: "s_dilation_w"},
				StrideC: asm.S{Sym: "s_in_stride_c"}, StrideHi: asm.S{Sym: "s_in_stride_hi"},
				Hi:      asm.S{Sym: "s_hi"}, Wi: asm.S{Sym: "s_wi"},
			},
			WeiStep: ePer * d.Elem,
			LogElem: 2,
		}
		text := c.Append(nil)
		for _, ho := range []int{0, 2, 4} {
			w := xform.Window{
				Ihi:  ho*d.StrideH - d.PadH, Iwi: 3*d.StrideW - d.PadW,
				InOs: 1000, WeiOs: 64,
			}
			l := emu.New()
			load(l, d, s, &w)
			mv := xform.NewGeneral(d, ePer)
			for step := 0; step < 12; step++ {
				mv.Move(&w)
				require.NoError(t, l.Run(text))
				got := xform.Window{
					Ic:    l.Int("v_ic+0"), Iy: l.Int("v_iy+0"), Ix: l.Int("v_ix+0"),
					Ihi:   l.Int("v_ihi+0"), Iwi: l.Int("v_iwi+0"),
					Valid: l.Int("v_flag+0") == 1,
					InOs:  l.Int("v_in_os+0"), WeiOs: l.Int("v_wei_os+0"),
				}
				require.Equal(t, w, got, "ePer %d ho %d step %d", ePer, ho, step)
			}
		}
	}
}

func TestUnitMove(t *testing.T) {
	d := &xform.Dims{N: 2, C: 64, H: 7, W: 7, K: 8, Y: 1, X: 1, Ho: 7, Wo: 7, StrideH: 1, StrideW: 1, DilH: 1, DilW: 1, Elem: 4}
	c := &UnitMove{InOs: asm.V{Sym: "v_in_os"}, WeiOs: asm.V{Sym: "v_wei_os"}, InStep: asm.S{Sym: "s_move_in"}, WeiStep: 8 * 4}
	w := xform.Window{Valid: true, InOs: 40, WeiOs: 12}
	l := emu.New()
	l.Set("v_in_os+0", w.InOs)
	l.Set("v_wei_os+0", w.WeiOs)
	l.Set("s_move_in+0", 8*7*7*4)
	mv := xform.NewUnit(d, 8)
	for step := 0; step < 4; step++ {
		mv.Move(&w)
		require.NoError(t, l.Run(c.Append(nil)))
		assert.Equal(t, w.InOs, l.Int("v_in_os+0"))
		assert.Equal(t, w.WeiOs, l.Int("v_wei_os+0"))
	}
	assert.Equal(t, 2, len(gcn.Mnemonics(c.Append(nil))))
}

func TestFlip(t *testing.T) {
	c := &Flip{Regs: []asm.V{{Sym: "v_sst_a"}, {Sym: "v_sst_b"}}, Size: 16384}
	l := emu.New()
	l.Set("v_sst_a+0", 8192+64)
	l.Set("v_sst_b+0", 4)
	text := c.Append(nil)
	require.NoError(t, l.Run(text))
	assert.Equal(t, 16384+8192+64, l.Int("v_sst_a+0"))
	assert.Equal(t, 16384+4, l.Int("v_sst_b+0"))
	require.NoError(t, l.Run(text))
	assert.Equal(t, 8192+64, l.Int("v_sst_a+0"))
}

func TestAnnotated(t *testing.T) {
	text := string(Annotated(&Clear{Dst: asm.V{Sym: "v_c"}, N: 2}).Append(nil))
	assert.Equal(t, "; clear n=2\n\tv_mov_b32 v[v_c+0], 0\n\tv_mov_b32 v[v_c+1], 0\n", text)
}
