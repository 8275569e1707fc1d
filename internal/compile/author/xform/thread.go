// Package xform maps block and thread ids to tensor coordinates and
// byte offsets, and steps those coordinates along the reduction.
package xform

import (
	"math/bits"

	"igemm/internal/compile/plan"
)

// ThreadIndex is a flat thread id peeled into per-axis indices. In and
// Wei hold element positions (cluster id times sub length).
type ThreadIndex struct {
	In    [plan.InAxes]int
	Wei   [plan.WeiAxes]int
	L0M   int
	L0N   int
	L1M   int
	L1N   int
	GemmM int
	GemmN int
}

// Thread peels tid with division and modulo.
func Thread(t *plan.Tiling, tid int) (ti ThreadIndex) {
	rest := tid
	for _, ax := range plan.InOrder {
		a := t.In[ax]
		ti.In[ax] = rest % a.Cluster * a.Sub
		rest /= a.Cluster
	}
	rest = tid
	for _, ax := range plan.WeiOrder {
		a := t.Wei[ax]
		ti.Wei[ax] = rest % a.Cluster * a.Sub
		rest /= a.Cluster
	}
	l0 := t.M.Level0 * t.N.Level0
	ti.L0M = tid % l0 / t.N.Level0
	ti.L0N = tid % l0 % t.N.Level0
	ti.L1M = tid / l0 / t.N.Level1
	ti.L1N = tid / l0 % t.N.Level1
	ti.GemmM = ti.L1M*t.M.Level0 + ti.L0M
	ti.GemmN = ti.L1N*t.N.Level0 + ti.L0N
	return
}

// Log2 of a power of two.
func Log2(n int) int {
	if n <= 0 || n&(n-1) != 0 {
		panic("bug: not a power of two")
	}
	return bits.TrailingZeros(uint(n))
}

// Step is one mask-and-shift peel of a flat id: the axis index is
// (id & Mask) << SubShift, then id >>= Shift.
type Step struct {
	Axis     int
	Mask     int
	Shift    int
	SubShift int
}

func peel(axes []plan.Axis, order []int) []Step {
	steps := make([]Step, len(order))
	for i, ax := range order {
		a := axes[ax]
		steps[i] = Step{
			Axis:     ax,
			Mask:     a.Cluster - 1,
			Shift:    Log2(a.Cluster),
			SubShift: Log2(a.Sub),
		}
	}
	return steps
}

// InSteps and WeiSteps are the peels the kernel prologue performs.
func InSteps(t *plan.Tiling) []Step  { return peel(t.In[:], plan.InOrder[:]) }
func WeiSteps(t *plan.Tiling) []Step { return peel(t.Wei[:], plan.WeiOrder[:]) }

func applySteps(steps []Step, tid int, to []int) {
	for _, s := range steps {
		to[s.Axis] = (tid & s.Mask) << s.SubShift
		tid >>= s.Shift
	}
}

// ThreadBits peels tid with the masks and shifts the kernel uses. It
// must agree with Thread for every tid below the block size.
func ThreadBits(t *plan.Tiling, tid int) (ti ThreadIndex) {
	applySteps(InSteps(t), tid, ti.In[:])
	applySteps(WeiSteps(t), tid, ti.Wei[:])
	m0, n0, n1 := Log2(t.M.Level0), Log2(t.N.Level0), Log2(t.N.Level1)
	l0 := tid & (1<<(m0+n0) - 1)
	ti.L0N = l0 & (1<<n0 - 1)
	ti.L0M = l0 >> n0
	l1 := tid >> (m0 + n0)
	ti.L1N = l1 & (1<<n1 - 1)
	ti.L1M = l1 >> n1
	ti.GemmN = ti.L1N<<n0 | ti.L0N
	ti.GemmM = ti.L1M<<m0 | ti.L0M
	return
}

// Flat recombines per-axis element positions into the thread id under
// the given axis order, fastest first.
func Flat(axes []plan.Axis, order []int, pos []int) int {
	tid, mul := 0, 1
	for _, ax := range order {
		a := axes[ax]
		tid += pos[ax] / a.Sub * mul
		mul *= a.Cluster
	}
	return tid
}

// FlatGemm recombines the GEMM cluster ids into the thread id.
func FlatGemm(t *plan.Tiling, ti ThreadIndex) int {
	l0 := ti.L0M*t.N.Level0 + ti.L0N
	l1 := ti.L1M*t.N.Level1 + ti.L1N
	return l1*t.M.Level0*t.N.Level0 + l0
}
