// Package enum walks the tuning cross product and grades every point.
package enum

import (
	"igemm/internal/compile/occu"
	"igemm/internal/compile/plan"

	"github.com/samber/lo"
)

// One grades a single geometry. The returned candidate is never
// mutated afterwards.
func One(tm, tn, bm, bn, uk, lb int, allowed []int, elem int, tgt *plan.Target) *plan.Candidate {
	c := &plan.Candidate{
		ThreadM: tm, ThreadN: tn,
		BlockM:  bm, BlockN: bn,
		UnrollK: uk, Buffers: lb,
	}
	if bm%tm != 0 || bn%tn != 0 {
		c.Reason = plan.NotDivisible
		c.Detail = "block m,n can not evenly divide thread m,n"
		return c
	}
	c.BlockSize = (bm / tm) * (bn / tn)
	if !lo.Contains(allowed, c.BlockSize) {
		c.Reason = plan.BlockSizeDisallowed
		c.Detail = "block size not in desired list"
		return c
	}
	u, err := occu.Eval(c, elem, tgt)
	c.Usage = u
	if rej, ok := err.(*plan.Rejection); ok {
		c.Reason, c.Detail = rej.Reason, rej.Detail
	} else if err != nil {
		panic("bug")
	}
	return c
}

// Walk grades every combination of tu's lists, micro tile m outermost
// and buffer count innermost. Invalid candidates are kept.
func Walk(tu *plan.Tuning, elem int, tgt *plan.Target) []*plan.Candidate {
	var all []*plan.Candidate
	for _, tm := range tu.MicroTileM {
		for _, tn := range tu.MicroTileN {
			for _, bm := range tu.MacroTileM {
				for _, bn := range tu.MacroTileN {
					for _, uk := range tu.UnrollK {
						for _, lb := range tu.Buffers {
							all = append(all, One(tm, tn, bm, bn, uk, lb, tu.BlockSizes, elem, tgt))
						}
					}
				}
			}
		}
	}
	return all
}

// Split partitions cs, preserving order within each side.
func Split(cs []*plan.Candidate) (valid, invalid []*plan.Candidate) {
	valid = lo.Filter(cs, func(c *plan.Candidate, _ int) bool { return c.Valid() })
	invalid = lo.Filter(cs, func(c *plan.Candidate, _ int) bool { return !c.Valid() })
	return
}
