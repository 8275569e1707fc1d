package xform

import "igemm/internal/compile/plan"

// Window is the part of the index state the reduction loop advances.
type Window struct {
	Ic    int
	Iy    int
	Ix    int
	Ihi   int
	Iwi   int
	Valid bool
	InOs  int
	WeiOs int
}

// Index is the full closed-form state of one thread at loop entry.
type Index struct {
	Thread ThreadIndex
	BlockK int
	BlockB int
	InN0   int
	InHo   int
	InWo   int
	Window
	OutK0 int
	OutK1 int
	OutB  int
	OutN0 int
	OutHo int
	OutWo int
	OutOs int
	SstA  int
	SstB  int
	SldA  int
	SldB  int
}

// Dims are the problem extents the index model reads.
type Dims struct {
	N, C, H, W, K, Y, X int
	Ho, Wo              int
	StrideH, StrideW    int
	DilH, DilW          int
	PadH, PadW          int
	Elem                int
}

func DimsOf(p *plan.Problem) Dims {
	return Dims{
		N:       p.Batch, C: p.Channels, H: p.Height, W: p.Width,
		K:       p.Filters, Y: p.FilterH, X: p.FilterW,
		Ho:      p.OutH(), Wo: p.OutW(),
		StrideH: p.StrideH, StrideW: p.StrideW,
		DilH:    p.DilationH, DilW: p.DilationW,
		PadH:    p.PadH, PadW: p.PadW,
		Elem:    p.Precision.Bytes(),
	}
}

func (d *Dims) inside(ihi, iwi int) bool {
	return ihi >= 0 && ihi < d.H && iwi >= 0 && iwi < d.W
}

// BlockWork is the number of blocks along GEMM N.
func BlockWork(t *plan.Tiling, d *Dims) int {
	n0 := d.N / (t.N.Repeat * t.N.Sub)
	if w := n0 * d.Ho * d.Wo / t.BPerBlock; w > 0 {
		return w
	}
	return 1
}

// Direct evaluates the index of thread tid in block bid at loop entry.
func Direct(t *plan.Tiling, d *Dims, tid, bid int) Index {
	return DirectAt(t, d, tid, bid, 0)
}

// DirectAt is Direct advanced by e0 along the reduction, in closed
// form. The channel may run past C; nothing bounds it.
func DirectAt(t *plan.Tiling, d *Dims, tid, bid, e0 int) (ix Index) {
	ix.Thread = Thread(t, tid)
	th := &ix.Thread
	n1, n2 := t.N.Repeat, t.N.Sub
	hoWo := d.Ho * d.Wo
	yx := d.Y * d.X
	bWork := BlockWork(t, d)
	ix.BlockB = bid % bWork * t.BPerBlock
	ix.BlockK = bid / bWork * t.KPerBlock

	gb := ix.BlockB + th.In[plan.InB]
	ix.InN0 = gb / hoWo
	ix.InHo = gb % hoWo / d.Wo
	ix.InWo = gb % d.Wo

	ie := th.In[plan.InE] + e0
	ix.Ic = ie / yx
	ix.Iy = ie % yx / d.X
	ix.Ix = ie % d.X
	ix.Ihi = d.StrideH*ix.InHo + d.DilH*ix.Iy - d.PadH
	ix.Iwi = d.StrideW*ix.InWo + d.DilW*ix.Ix - d.PadW
	ix.Valid = d.inside(ix.Ihi, ix.Iwi)
	n := ix.InN0*n1*n2 + th.In[plan.InN1]*n2 + th.In[plan.InN2]
	ix.InOs = (n*d.C*d.H*d.W + ix.Ic*d.H*d.W + ix.Ihi*d.W + ix.Iwi) * d.Elem

	we := th.Wei[plan.WeiE] + e0
	ix.WeiOs = ((ix.BlockK+th.Wei[plan.WeiK])*d.C*yx + we) * d.Elem

	k1 := t.M.Sub * t.M.Level0 * t.M.Level1
	kg := ix.BlockK + th.GemmM*t.M.Sub
	ix.OutK0 = kg / k1
	ix.OutK1 = kg % k1
	ix.OutB = ix.BlockB + th.GemmN
	ix.OutN0 = ix.OutB / hoWo
	ix.OutHo = ix.OutB % hoWo / d.Wo
	ix.OutWo = ix.OutB % d.Wo
	ix.OutOs = (ix.OutN0*n1*n2*d.K*hoWo +
		ix.OutK0*k1*hoWo +
		ix.OutK1*hoWo +
		ix.OutHo*d.Wo +
		ix.OutWo) * d.Elem

	ldsB := t.Usage.LdsB
	ix.SstB = (th.In[plan.InE]*n1*t.BPerBlock*n2 +
		th.In[plan.InN1]*t.BPerBlock*n2 +
		th.In[plan.InB]*n2 +
		th.In[plan.InN2]) * d.Elem
	ix.SldB = th.GemmN * n2 * d.Elem
	ix.SstA = (th.Wei[plan.WeiE]*t.KPerBlock+th.Wei[plan.WeiK])*d.Elem + ldsB
	ix.SldA = th.GemmM*t.M.Sub*d.Elem + ldsB
	return
}
