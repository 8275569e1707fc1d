package variant

import (
	"testing"

	"igemm/internal/compile/author/comp"
	"igemm/internal/compile/author/emu"
	"igemm/internal/compile/author/gpr"
	"igemm/internal/compile/author/xform"
	"igemm/internal/compile/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func problem(t *testing.T, y, x int) *plan.Problem {
	t.Helper()
	p, err := plan.NewProblem(plan.Problem{
		Batch:   4, Groups: 1, Channels: 6, Height: 13, Width: 10, Filters: 8,
		FilterH: y, FilterW: x, PadH: 1, PadW: 2,
		StrideH: 2, StrideW: 1, DilationH: 1, DilationW: 2,
	})
	require.NoError(t, err)
	return p
}

func arenas(vr Variant) (s, v *gpr.Arena) {
	s, v = gpr.New(gpr.Scalar), gpr.New(gpr.Vector)
	args, _ := vr.Args()
	for _, a := range args {
		if !a.Pointer {
			s.Alloc(a.Name, 1, 1)
		}
	}
	s.Alloc("kitr", 1, 1)
	s.Alloc("in_stride_c", 1, 1)
	s.Alloc("tmp", 4, 4)
	vr.Scalars(s)
	v.Alloc("tmp", 6, 1)
	for _, name := range append([]string{"in_ie", "iho", "iwo", "in_os", "wei_os", "in_flag"}, vr.Temps()...) {
		v.Alloc(name, 1, 1)
	}
	vr.Vectors(v)
	return
}

func lane(p *plan.Problem) *emu.Lane {
	l := emu.New()
	d := xform.DimsOf(p)
	for k, val := range map[string]int{
		"s_c+0":           d.C, "s_y+0": d.Y, "s_x+0": d.X, "s_hi+0": d.H, "s_wi+0": d.W,
		"s_stride_h+0":    d.StrideH, "s_stride_w+0": d.StrideW,
		"s_dilation_h+0":  d.DilH, "s_dilation_w+0": d.DilW,
		"s_pad_h+0":       d.PadH, "s_pad_w+0": d.PadW,
		"s_in_stride_c+0": d.H * d.W * d.Elem, "s_yx+0": d.Y * d.X,
	} {
		l.Set(k, val)
	}
	return l
}

func TestSelect(t *testing.T) {
	g, u := Select(problem(t, 3, 3)), Select(problem(t, 1, 1))
	assert.False(t, g.Unit())
	assert.True(t, u.Unit())
	assert.Equal(t, "_gemm1x1", u.Tag())
	assert.Empty(t, g.Tag())
	_, gs := g.Args()
	_, us := u.Args()
	assert.Equal(t, 88, gs)
	assert.Equal(t, 80, us)
	// A 3x1 filter is not a unit kernel.
	assert.False(t, Select(problem(t, 3, 1)).Unit())

	d := xform.DimsOf(problem(t, 1, 1))
	assert.IsType(t, &xform.Unit{}, u.Mover(&d, 8))
	s, v := arenas(u)
	assert.IsType(t, &comp.UnitMove{}, u.Move(s, v, 8, 4))
	d = xform.DimsOf(problem(t, 3, 3))
	assert.IsType(t, &xform.General{}, g.Mover(&d, 8))
	s, v = arenas(g)
	assert.IsType(t, &comp.GeneralMove{}, g.Move(s, v, 8, 4))
}

func TestGeneralSetup(t *testing.T) {
	for _, yx := range [][2]int{{3, 3}, {5, 5}, {3, 1}, {1, 7}, {2, 3}} {
		p := problem(t, yx[0], yx[1])
		vr := Select(p)
		s, v := arenas(vr)
		d := xform.DimsOf(p)
		for _, ePer := range []int{1, 4, 8, 16, 32} {
			l := lane(p)
			require.NoError(t, l.Run(vr.Setup(s, v, ePer).Append(nil)))
			want := xform.SliceOf(&d, ePer)
			assert.Equal(t, want.Dc, l.Int("s_move_c+0"), "%v e%d", yx, ePer)
			assert.Equal(t, want.Dy, l.Int("s_move_y+0"), "%v e%d", yx, ePer)
			assert.Equal(t, want.Dx, l.Int("s_move_x+0"), "%v e%d", yx, ePer)
			assert.Equal(t, p.Reduction(), l.Int("s_kitr+0"))
		}
	}
}

func TestReduce(t *testing.T) {
	for _, yx := range [][2]int{{3, 3}, {1, 1}, {3, 5}} {
		p := problem(t, yx[0], yx[1])
		vr := Select(p)
		s, v := arenas(vr)
		d := xform.DimsOf(p)
		text := vr.Reduce(s, v).Append(nil)
		for e := 0; e < p.Reduction(); e += 5 {
			for _, hw := range [][2]int{{0, 0}, {d.Ho - 1, d.Wo - 1}, {2, 3}} {
				l := lane(p)
				l.Set("v_in_ie+0", e)
				l.Set("v_iho+0", hw[0])
				l.Set("v_iwo+0", hw[1])
				require.NoError(t, l.Run(text))
				yxn := d.Y * d.X
				iy, ix := e%yxn/d.X, e%d.X
				assert.Equal(t, e/yxn, l.Int(vr.Channel(v).Sym+"+0"))
				assert.Equal(t, hw[0]*d.StrideH+iy*d.DilH-d.PadH, l.Int("v_in_ihi+0"))
				assert.Equal(t, hw[1]*d.StrideW+ix*d.DilW-d.PadW, l.Int("v_in_iwi+0"))
			}
		}
	}
}

func TestUnitSetup(t *testing.T) {
	p := problem(t, 1, 1)
	vr := Select(p)
	s, v := arenas(vr)
	l := lane(p)
	require.NoError(t, l.Run(vr.Setup(s, v, 8).Append(nil)))
	assert.Equal(t, 8*13*10*4, l.Int("s_move_in+0"))
	assert.Equal(t, 6, l.Int("s_kitr+0"))
}
