// Package split factors each operand's block copy into cooperating
// threads and per-thread elements, and derives the GEMM thread cluster.
package split

import (
	"igemm/internal/compile/plan"

	"github.com/samber/lo"
)

// Repeat is the sub-tile count along each GEMM dimension of a thread
// tile (2x2 sub-tiling).
const Repeat = 2

func isPow2(n int) bool { return n > 0 && n&(n-1) == 0 }

func pow2s(upTo int) []int {
	var a []int
	for p := 1; p <= upTo; p <<= 1 {
		a = append(a, p)
	}
	return a
}

func vecOK(n int) bool { return n == 1 || n == 2 || n == 4 }

func product(axes []plan.Axis, f func(plan.Axis) int) int {
	return lo.Reduce(axes, func(acc int, a plan.Axis, _ int) int {
		return acc * f(a)
	}, 1)
}

func clusters(a plan.Axis) int { return a.Cluster }
func lens(a plan.Axis) int     { return a.Len() }

type mapping struct {
	m, n plan.Gemm
}

func mappings(c *plan.Candidate) []mapping {
	mSub, nSub := c.ThreadM/Repeat, c.ThreadN/Repeat
	mClusters, nClusters := c.BlockM/c.ThreadM, c.BlockN/c.ThreadN
	var ms []mapping
	for _, m0 := range pow2s(mClusters) {
		for _, n0 := range pow2s(nClusters) {
			ms = append(ms, mapping{
				m: plan.Gemm{Repeat: Repeat, Sub: mSub, Level0: m0, Level1: mClusters / m0},
				n: plan.Gemm{Repeat: Repeat, Sub: nSub, Level0: n0, Level1: nClusters / n0},
			})
		}
	}
	return ms
}

// inputs splits the activation copy {e, n1, b, n2}. The e and b axes
// keep one element per thread.
func inputs(c *plan.Candidate) [][plan.InAxes]plan.Axis {
	bs := c.BlockSize
	e, b := c.UnrollK, c.BlockN/c.ThreadN
	nSub := c.ThreadN / Repeat
	if e*b > bs || bs%(e*b) != 0 {
		return nil
	}
	n1n2 := bs / (e * b)
	var out [][plan.InAxes]plan.Axis
	for _, n1 := range pow2s(n1n2) {
		if n1n2%n1 != 0 {
			continue
		}
		n2 := n1n2 / n1
		if Repeat%n1 != 0 || nSub%n2 != 0 {
			continue
		}
		var in [plan.InAxes]plan.Axis
		in[plan.InE] = plan.Axis{Cluster: e, Sub: 1}
		in[plan.InN1] = plan.Axis{Cluster: n1, Sub: Repeat / n1}
		in[plan.InB] = plan.Axis{Cluster: b, Sub: 1}
		in[plan.InN2] = plan.Axis{Cluster: n2, Sub: nSub / n2}
		if in[plan.InN1].Sub*in[plan.InN2].Sub != c.Usage.FetchB {
			panic("bug: input sub lengths do not match fetch b")
		}
		out = append(out, in)
	}
	return out
}

// weights splits the filter copy {e, k}.
func weights(c *plan.Candidate) [][plan.WeiAxes]plan.Axis {
	bs := c.BlockSize
	var out [][plan.WeiAxes]plan.Axis
	for _, be := range pow2s(bs) {
		if bs%be != 0 {
			continue
		}
		bk := bs / be
		if c.UnrollK%be != 0 || c.BlockM%bk != 0 {
			continue
		}
		var wei [plan.WeiAxes]plan.Axis
		wei[plan.WeiE] = plan.Axis{Cluster: be, Sub: c.UnrollK / be}
		wei[plan.WeiK] = plan.Axis{Cluster: bk, Sub: c.BlockM / bk}
		if wei[plan.WeiE].Sub*wei[plan.WeiK].Sub != c.Usage.FetchA {
			panic("bug: weight sub lengths do not match fetch a")
		}
		out = append(out, wei)
	}
	return out
}

func verify(t *plan.Tiling) {
	in, wei := t.In[:], t.Wei[:]
	switch {
	case product(in, clusters) != t.BlockSize:
		panic("bug: input clusters do not cover the block")
	case product(wei, clusters) != t.BlockSize:
		panic("bug: weight clusters do not cover the block")
	case product(in, lens) != t.UnrollK*t.BlockN:
		panic("bug: input copy does not cover the tile")
	case product(wei, lens) != t.UnrollK*t.BlockM:
		panic("bug: weight copy does not cover the tile")
	case t.Threads() != t.BlockSize:
		panic("bug: gemm clusters do not cover the block")
	}
}

// Decompose lists every tiling of a valid candidate, thread mapping
// outermost, then input split, then weight split. vecA and vecB pin the
// weight read width and the input store width when nonzero. An empty
// result is a TilingDecompositionFailed rejection.
func Decompose(c *plan.Candidate, vecA, vecB int) ([]*plan.Tiling, error) {
	if !c.Valid() {
		panic("bug")
	}
	if c.ThreadM%Repeat != 0 || c.ThreadN%Repeat != 0 {
		panic("bug: thread tile admitted without 2x2 sub-tiles")
	}
	mClusters, nClusters := c.BlockM/c.ThreadM, c.BlockN/c.ThreadN
	if !isPow2(mClusters) || !isPow2(nClusters) {
		return nil, plan.Reject(plan.TilingDecompositionFailed,
			"clusters %dx%d are not powers of two", mClusters, nClusters)
	}
	ins := inputs(c)
	if len(ins) == 0 {
		return nil, plan.Reject(plan.TilingDecompositionFailed,
			"input copy e%d b%d can not be spread over block %d", c.UnrollK, c.BlockN/c.ThreadN, c.BlockSize)
	}
	weis := weights(c)
	if len(weis) == 0 {
		return nil, plan.Reject(plan.TilingDecompositionFailed,
			"weight copy e%d k%d can not be spread over block %d", c.UnrollK, c.BlockM, c.BlockSize)
	}
	var out []*plan.Tiling
	for _, mp := range mappings(c) {
		for _, in := range ins {
			for _, wei := range weis {
				te, tk, tn2 := wei[plan.WeiE].Sub, wei[plan.WeiK].Sub, in[plan.InN2].Sub
				if !vecOK(te) || !vecOK(tk) || !vecOK(tn2) {
					continue
				}
				if (vecA != 0 && vecA != te) || (vecB != 0 && vecB != tn2) {
					continue
				}
				t := &plan.Tiling{
					Candidate:   c,
					M:           mp.m,
					N:           mp.n,
					KPerBlock:   c.BlockM,
					BPerBlock:   c.BlockN / c.ThreadN,
					EPerBlock:   c.UnrollK,
					In:          in,
					Wei:         wei,
					WeiReadVec:  te,
					WeiWriteVec: tk,
					InWriteVec:  tn2,
				}
				verify(t)
				out = append(out, t)
			}
		}
	}
	if len(out) == 0 {
		return nil, plan.Reject(plan.TilingDecompositionFailed,
			"no split meets vector widths a%d b%d", vecA, vecB)
	}
	return out, nil
}
