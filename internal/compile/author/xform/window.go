package xform

// Mover advances a window by one reduction tile.
type Mover interface {
	Move(w *Window)
}

// Slice is the per-tile step split against (Y*X, X).
type Slice struct {
	Dc, Dy, Dx int
}

func SliceOf(d *Dims, ePer int) Slice {
	yx := d.Y * d.X
	return Slice{
		Dc: ePer / yx,
		Dy: ePer % yx / d.X,
		Dx: ePer % d.X,
	}
}

// General steps (c, y, x) with carries and moves the input offset by
// the signed deltas. The channel never wraps.
type General struct {
	d    Dims
	s    Slice
	ePer int
}

func NewGeneral(d *Dims, ePer int) *General {
	return &General{d: *d, s: SliceOf(d, ePer), ePer: ePer}
}

func (g *General) Move(w *Window) {
	d := &g.d
	oc, oy, ox := w.Ic, w.Iy, w.Ix
	w.Ix += g.s.Dx
	if w.Ix >= d.X {
		w.Ix -= d.X
		w.Iy++
	}
	w.Iy += g.s.Dy
	if w.Iy >= d.Y {
		w.Iy -= d.Y
		w.Ic++
	}
	w.Ic += g.s.Dc
	idc, idy, idx := w.Ic-oc, w.Iy-oy, w.Ix-ox
	w.Ihi += idy * d.DilH
	w.Iwi += idx * d.DilW
	w.InOs += (idc*d.H*d.W + idy*d.DilH*d.W + idx*d.DilW) * d.Elem
	w.WeiOs += g.ePer * d.Elem
	w.Valid = d.inside(w.Ihi, w.Iwi)
}

// Unit is the 1x1 filter step: only the channel moves, so the input
// row and column, and with them the validity flag, stay put.
type Unit struct {
	d    Dims
	ePer int
}

func NewUnit(d *Dims, ePer int) *Unit {
	if d.Y != 1 || d.X != 1 {
		panic("bug: unit window on a wide filter")
	}
	return &Unit{d: *d, ePer: ePer}
}

func (u *Unit) Move(w *Window) {
	w.Ic += u.ePer
	w.InOs += u.ePer * u.d.H * u.d.W * u.d.Elem
	w.WeiOs += u.ePer * u.d.Elem
}
