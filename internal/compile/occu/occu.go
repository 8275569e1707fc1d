// Package occu is the hardware resource model: register, scratchpad and
// occupancy accounting for one candidate geometry.
package occu

import "igemm/internal/compile/plan"

func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// fetch is the per-thread share of one operand tile. An uneven share is
// a rejection, never a truncation.
func fetch(extent, unroll, threads int, r plan.Reason) (int, error) {
	n := extent * unroll
	if n < threads || n%threads != 0 {
		return 0, plan.Reject(r, "fetch %d can not be evenly distributed among block %d", n, threads)
	}
	return n / threads, nil
}

// Eval computes the usage of c on tgt for elem-byte elements. It reads
// c and nothing else, so equal inputs give equal results. c.BlockSize
// must already be set.
func Eval(c *plan.Candidate, elem int, tgt *plan.Target) (u plan.Usage, err error) {
	bs := c.BlockSize
	u.VgprC = c.ThreadM * c.ThreadN
	u.VgprA = c.ThreadM
	u.VgprB = c.ThreadN
	if u.FetchA, err = fetch(c.BlockM, c.UnrollK, bs, plan.UnevenFetchA); err != nil {
		return
	}
	if u.FetchB, err = fetch(c.BlockN, c.UnrollK, bs, plan.UnevenFetchB); err != nil {
		return
	}
	u.VgprOther = tgt.OverheadVgprs
	u.Vgprs = u.VgprC + u.VgprA + u.VgprB + u.FetchA + u.FetchB + u.VgprOther
	if u.Vgprs > tgt.Vgprs {
		err = plan.Reject(plan.RegisterOverflow, "require vgpr %d larger than hw %d", u.Vgprs, tgt.Vgprs)
		return
	}

	u.LdsA = NextPow2(c.BlockM * c.UnrollK * elem)
	u.LdsB = NextPow2(c.BlockN * c.UnrollK * elem)
	u.LdsSingle = u.LdsA + u.LdsB
	if u.LdsSingle > tgt.LdsBytes {
		err = plan.Reject(plan.ScratchOverflow, "require lds %d(single) larger than hw %d", u.LdsSingle, tgt.LdsBytes)
		return
	}
	u.LdsTotal = u.LdsSingle
	if c.Buffers > 1 {
		u.LdsTotal = c.Buffers * NextPow2(u.LdsSingle)
	}
	if u.LdsTotal > tgt.LdsBytes {
		err = plan.Reject(plan.ScratchOverflow, "require lds %d(%d buffers) larger than hw %d", u.LdsTotal, c.Buffers, tgt.LdsBytes)
		return
	}

	u.WavesPerBlock = ceilDiv(bs, tgt.WaveSize)
	granted := ceilDiv(u.Vgprs, tgt.VgprGranule) * tgt.VgprGranule
	perSimd := min(tgt.Vgprs/granted, tgt.MaxWavesPerCU/tgt.SimdsPerCU)
	u.BlocksByVgpr = perSimd * tgt.SimdsPerCU / u.WavesPerBlock
	u.BlocksByLds = tgt.LdsBytes / u.LdsTotal
	u.Blocks = min(min(u.BlocksByVgpr, u.BlocksByLds), tgt.MaxWavesPerCU/u.WavesPerBlock)
	u.Waves = u.Blocks * u.WavesPerBlock
	floor := tgt.MinWaves
	if floor < u.WavesPerBlock {
		floor = u.WavesPerBlock
	}
	if u.Waves < floor {
		err = plan.Reject(plan.LowOccupancy, "%d waves per cu below minimum %d", u.Waves, floor)
	}
	return
}
