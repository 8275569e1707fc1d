package xform

import (
	"testing"

	"igemm/internal/compile/enum"
	"igemm/internal/compile/plan"
	"igemm/internal/compile/split"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tilings(t *testing.T) []*plan.Tiling {
	t.Helper()
	c := enum.One(8, 8, 128, 128, 8, 2, []int{256}, 4, plan.DefaultTarget())
	require.True(t, c.Valid(), c.Detail)
	ts, err := split.Decompose(c, 0, 0)
	require.NoError(t, err)
	return ts
}

func TestPeelAgrees(t *testing.T) {
	for _, tl := range tilings(t) {
		for tid := 0; tid < tl.Threads(); tid++ {
			a, b := Thread(tl, tid), ThreadBits(tl, tid)
			if diff := cmp.Diff(a, b); diff != "" {
				t.Fatalf("%v tid %d (-div +bits):\n%s", tl, tid, diff)
			}
			require.Equal(t, tid, Flat(tl.In[:], plan.InOrder[:], a.In[:]))
			require.Equal(t, tid, Flat(tl.Wei[:], plan.WeiOrder[:], a.Wei[:]))
			require.Equal(t, tid, FlatGemm(tl, a))
		}
	}
}

func TestLog2(t *testing.T) {
	assert.Equal(t, 0, Log2(1))
	assert.Equal(t, 7, Log2(128))
	assert.Panics(t, func() { Log2(6) })
	assert.Panics(t, func() { Log2(0) })
}

// slim is a hand tiling whose reduction tile is six wide.
func slim() *plan.Tiling {
	return &plan.Tiling{
		Candidate: &plan.Candidate{},
		M:         plan.Gemm{Repeat: 2, Sub: 1, Level0: 1, Level1: 1},
		N:         plan.Gemm{Repeat: 2, Sub: 1, Level0: 1, Level1: 1},
		KPerBlock: 2,
		BPerBlock: 4,
		EPerBlock: 6,
		In: [plan.InAxes]plan.Axis{
			plan.InE:  {Cluster: 6, Sub: 1},
			plan.InN1: {Cluster: 1, Sub: 2},
			plan.InB:  {Cluster: 4, Sub: 1},
			plan.InN2: {Cluster: 1, Sub: 1},
		},
		Wei: [plan.WeiAxes]plan.Axis{
			plan.WeiE: {Cluster: 6, Sub: 1},
			plan.WeiK: {Cluster: 4, Sub: 1},
		},
	}
}

func dims(t *testing.T, y, x int) *Dims {
	t.Helper()
	p, err := plan.NewProblem(plan.Problem{
		Batch:   2, Groups: 1, Channels: 4, Height: 5, Width: 5,
		Filters: 2, FilterH: y, FilterW: x,
		PadH:    y / 2, PadW: x / 2,
		StrideH: 1, StrideW: 1, DilationH: 1, DilationW: 1,
	})
	require.NoError(t, err)
	d := DimsOf(p)
	return &d
}

func TestSliceWindow(t *testing.T) {
	tl, d := slim(), dims(t, 3, 3)
	assert.Equal(t, Slice{Dc: 0, Dy: 2, Dx: 0}, SliceOf(d, 6))
	mv := NewGeneral(d, tl.EPerBlock)
	for bid := 0; bid < BlockWork(tl, d); bid++ {
		for tid := 0; tid < 24; tid++ {
			w := Direct(tl, d, tid, bid).Window
			for step := 1; step <= 6; step++ {
				mv.Move(&w)
				want := DirectAt(tl, d, tid, bid, step*tl.EPerBlock).Window
				if diff := cmp.Diff(want, w); diff != "" {
					t.Fatalf("bid %d tid %d step %d (-direct +moved):\n%s", bid, tid, step, diff)
				}
			}
		}
	}
}

func TestSliceCarries(t *testing.T) {
	d := dims(t, 3, 3)
	mv := NewGeneral(d, 5)
	w := Window{Ic: 0, Iy: 2, Ix: 2, Ihi: 2, Iwi: 2}
	mv.Move(&w)
	// 8 + 5 = 13 = 1*9 + 1*3 + 1
	assert.Equal(t, 1, w.Ic)
	assert.Equal(t, 1, w.Iy)
	assert.Equal(t, 1, w.Ix)
	assert.Equal(t, 1, w.Ihi)
	assert.Equal(t, 1, w.Iwi)
	assert.Equal(t, (25-1*5-1)*4, w.InOs)
	assert.Equal(t, 20, w.WeiOs)
	assert.True(t, w.Valid)
}

func TestMasking(t *testing.T) {
	tl, d := slim(), dims(t, 3, 3)
	ix := Direct(tl, d, 0, 0)
	assert.Equal(t, -1, ix.Ihi)
	assert.Equal(t, -1, ix.Iwi)
	assert.False(t, ix.Valid)
	// Thread 5 sits at output column 1 with e = 1, so only the row is out.
	ix = Direct(tl, d, 5, 0)
	assert.Equal(t, 1, ix.InWo)
	assert.Equal(t, 1, ix.Ix)
	assert.Equal(t, -1, ix.Ihi)
	assert.Equal(t, 1, ix.Iwi)
	assert.False(t, ix.Valid)
}

func TestUnitAgrees(t *testing.T) {
	tl, d := slim(), dims(t, 1, 1)
	g, u := NewGeneral(d, tl.EPerBlock), NewUnit(d, tl.EPerBlock)
	for tid := 0; tid < 24; tid++ {
		wg := Direct(tl, d, tid, 1).Window
		wu := wg
		for step := 0; step < 3; step++ {
			g.Move(&wg)
			u.Move(&wu)
			if diff := cmp.Diff(wg, wu); diff != "" {
				t.Fatalf("tid %d step %d (-general +unit):\n%s", tid, step, diff)
			}
		}
	}
	assert.Panics(t, func() { NewUnit(dims(t, 3, 3), 6) })
}

func TestDirectOrigin(t *testing.T) {
	tl := tilings(t)[0]
	p, err := plan.NewProblem(plan.Problem{
		Batch:   16, Groups: 1, Channels: 64, Height: 14, Width: 14,
		Filters: 256, FilterH: 1, FilterW: 1,
		StrideH: 1, StrideW: 1, DilationH: 1, DilationW: 1,
	})
	require.NoError(t, err)
	d := DimsOf(p)
	ix := Direct(tl, &d, 0, 0)
	assert.True(t, ix.Valid)
	assert.Zero(t, ix.InOs)
	assert.Zero(t, ix.WeiOs)
	assert.Zero(t, ix.OutOs)
	assert.Zero(t, ix.SstB)
	assert.Zero(t, ix.SldB)
	assert.Equal(t, tl.Usage.LdsB, ix.SstA)
	assert.Equal(t, tl.Usage.LdsB, ix.SldA)

	// The second block along N starts one block of B further in.
	ix = Direct(tl, &d, 0, 1)
	assert.Equal(t, tl.BPerBlock, ix.BlockB)
	assert.Zero(t, ix.BlockK)
	assert.Equal(t, tl.BPerBlock*d.Elem, ix.OutOs)

	// Past the last N block the K block advances.
	ix = Direct(tl, &d, 0, BlockWork(tl, &d))
	assert.Zero(t, ix.BlockB)
	assert.Equal(t, tl.KPerBlock, ix.BlockK)
	assert.Equal(t, tl.KPerBlock*d.C*d.Elem, ix.WeiOs)
}
