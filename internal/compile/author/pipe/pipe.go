// Package pipe schedules the double-buffered accumulate loop as an
// abstract plan and checks plans against the hardware's ordering rules.
package pipe

import (
	"fmt"

	"igemm/internal/compile/author/gcn"
	"igemm/internal/compile/plan"
)

type Operand int

const (
	A Operand = iota
	B
	Operands
)

var OperandStrings = [Operands]string{A: "wei", B: "in"}

func (o Operand) String() string { return OperandStrings[o] }

// Op is one step of a plan. The set is closed.
type Op interface {
	fmt.Stringer
	op()
}

type (
	// Load issues the global fetch of one operand's next tile.
	Load struct{ Operand Operand }
	// Store writes the fetched tile into the store-side buffer.
	Store struct{ Operand Operand }
	// Read loads half of step K of the read-side buffer.
	Read struct {
		Operand Operand
		K       int
		Half    int
	}
	// Compute is one quadrant of the 2x2 sub-tiling at step K.
	Compute struct{ K, M, N int }
	// Move advances the slice window to the next tile.
	Move      struct{}
	FlipStore struct{}
	FlipRead  struct{}
	// Wait holds until at most Vm global and Lgkm scratch operations
	// are outstanding. Negative means no limit.
	Wait     struct{ Vm, Lgkm int }
	Barrier  struct{}
	Clear    struct{}
	LoopInit struct{}
	LoopStep struct{}
	Label    struct{ Name string }
	// BranchDone jumps when no tiles remain.
	BranchDone struct{ Target string }
	Branch     struct{ Target string }
	Writeout   struct{}
	End        struct{}
)

func (Load) op()       {}
func (Store) op()      {}
func (Read) op()       {}
func (Compute) op()    {}
func (Move) op()       {}
func (FlipStore) op()  {}
func (FlipRead) op()   {}
func (Wait) op()       {}
func (Barrier) op()    {}
func (Clear) op()      {}
func (LoopInit) op()   {}
func (LoopStep) op()   {}
func (Label) op()      {}
func (BranchDone) op() {}
func (Branch) op()     {}
func (Writeout) op()   {}
func (End) op()        {}

func (o Load) String() string       { return "load " + o.Operand.String() }
func (o Store) String() string      { return "store " + o.Operand.String() }
func (o Read) String() string       { return fmt.Sprintf("read %v k%d h%d", o.Operand, o.K, o.Half) }
func (o Compute) String() string    { return fmt.Sprintf("compute k%d %d%d", o.K, o.M, o.N) }
func (Move) String() string         { return "move" }
func (FlipStore) String() string    { return "flip store" }
func (FlipRead) String() string     { return "flip read" }
func (o Wait) String() string       { return fmt.Sprintf("wait vm%d lgkm%d", o.Vm, o.Lgkm) }
func (Barrier) String() string      { return "barrier" }
func (Clear) String() string        { return "clear" }
func (LoopInit) String() string     { return "loop init" }
func (LoopStep) String() string     { return "loop step" }
func (o Label) String() string      { return o.Name + ":" }
func (o BranchDone) String() string { return "branch done " + o.Target }
func (o Branch) String() string     { return "branch " + o.Target }
func (Writeout) String() string     { return "writeout" }
func (End) String() string          { return "end" }

// Issues are the outstanding-operation counts the loads and stores of
// each operand leave behind.
type Issues struct {
	Load  [Operands]int
	Store [Operands]int
}

type Labels struct {
	Body      string
	Finishing string
	End       string
}

// Plan is the loop in four straight-line parts joined by labels and
// branches.
type Plan struct {
	Unroll    int
	Issues    Issues
	Labels    Labels
	Prologue  []Op
	Body      []Op
	Finishing []Op
	Epilogue  []Op
}

// Ops is the whole plan in program order.
func (p *Plan) Ops() []Op {
	ops := make([]Op, 0, len(p.Prologue)+len(p.Body)+len(p.Finishing)+len(p.Epilogue))
	ops = append(ops, p.Prologue...)
	ops = append(ops, p.Body...)
	ops = append(ops, p.Finishing...)
	return append(ops, p.Epilogue...)
}

func vm(n int) Wait   { return Wait{Vm: min(n, gcn.MaxVmcnt), Lgkm: -1} }
func lgkm(n int) Wait { return Wait{Vm: -1, Lgkm: min(n, gcn.MaxLgkmcnt)} }

func reads(k int) []Op {
	return []Op{
		Read{Operand: A, K: k, Half: 0},
		Read{Operand: B, K: k, Half: 0},
		Read{Operand: B, K: k, Half: 1},
		Read{Operand: A, K: k, Half: 1},
	}
}

// steady is steps 0 through u-2 of one tile: each quadrant waits for
// the read it consumes while the next step's reads stream in behind.
func steady(u int) []Op {
	var ops []Op
	for k := 0; k+1 < u; k++ {
		ops = append(ops,
			lgkm(2), Compute{K: k, M: 0, N: 0},
			lgkm(1), Compute{K: k, M: 0, N: 1},
			Read{Operand: A, K: k + 1, Half: 0},
			lgkm(1), Compute{K: k, M: 1, N: 0},
			Read{Operand: B, K: k + 1, Half: 0},
			Compute{K: k, M: 1, N: 1},
			Read{Operand: B, K: k + 1, Half: 1},
			Read{Operand: A, K: k + 1, Half: 1},
		)
	}
	return ops
}

func loads() []Op { return []Op{Load{Operand: B}, Load{Operand: A}} }
func stores(is Issues) []Op {
	return []Op{
		vm(is.Load[A]), Store{Operand: B},
		vm(0), Store{Operand: A},
	}
}

// Schedule lays out the loop for an unroll of u reduction steps per
// tile.
func Schedule(u int, is Issues, lb Labels) *Plan {
	if u < 1 {
		panic("bug")
	}
	sst := is.Store[A] + is.Store[B]
	p := &Plan{Unroll: u, Issues: is, Labels: lb}
	last := u - 1

	p.Prologue = append(p.Prologue, loads()...)
	p.Prologue = append(p.Prologue, Clear{})
	p.Prologue = append(p.Prologue, stores(is)...)
	p.Prologue = append(p.Prologue,
		LoopInit{}, BranchDone{Target: lb.End},
		Move{}, FlipStore{}, lgkm(0), Barrier{},
	)
	p.Prologue = append(p.Prologue, loads()...)

	p.Body = append(p.Body, Label{Name: lb.Body})
	p.Body = append(p.Body, reads(0)...)
	p.Body = append(p.Body, steady(u)...)
	p.Body = append(p.Body,
		FlipRead{},
		lgkm(2), Compute{K: last, M: 0, N: 0},
		lgkm(1), Compute{K: last, M: 0, N: 1},
	)
	p.Body = append(p.Body, stores(is)...)
	p.Body = append(p.Body,
		LoopStep{}, BranchDone{Target: lb.Finishing},
		Move{},
		lgkm(sst), Compute{K: last, M: 1, N: 0},
		FlipStore{}, lgkm(0), Barrier{},
	)
	p.Body = append(p.Body, loads()...)
	p.Body = append(p.Body, Compute{K: last, M: 1, N: 1}, Branch{Target: lb.Body})

	p.Finishing = []Op{
		Label{Name: lb.Finishing},
		lgkm(sst), Compute{K: last, M: 1, N: 0},
		Compute{K: last, M: 1, N: 1},
	}

	p.Epilogue = append(p.Epilogue, Label{Name: lb.End}, lgkm(0), Barrier{})
	p.Epilogue = append(p.Epilogue, reads(0)...)
	p.Epilogue = append(p.Epilogue, steady(u)...)
	p.Epilogue = append(p.Epilogue,
		lgkm(2), Compute{K: last, M: 0, N: 0},
		lgkm(1), Compute{K: last, M: 0, N: 1},
		lgkm(0), Compute{K: last, M: 1, N: 0},
		Compute{K: last, M: 1, N: 1},
		Writeout{}, End{},
	)
	return p
}

func shapeErr(t *plan.Tiling, format string, args ...interface{}) error {
	return &plan.ShapeError{Where: t.String(), Msg: fmt.Sprintf(format, args...)}
}

func pow2(n int) bool     { return n > 0 && n&(n-1) == 0 }
func readable(n int) bool { return n <= 4 && pow2(n) }

// Fits rejects candidates the loop can never run, before any copy
// decomposition is tried. A sub-tile with no single scratch read (widths
// 1, 2 and 4) is a *plan.Rejection; every other error is a
// *plan.ShapeError.
func Fits(c *plan.Candidate, p *plan.Problem) error {
	bad := func(format string, args ...interface{}) error {
		return &plan.ShapeError{Where: c.String(), Msg: fmt.Sprintf(format, args...)}
	}
	mSub, nSub := c.ThreadM/2, c.ThreadN/2
	switch {
	case c.ThreadM%2 != 0 || c.ThreadN%2 != 0:
		return bad("thread tile %dx%d does not split into 2x2 sub-tiles", c.ThreadM, c.ThreadN)
	case !readable(mSub) || !readable(nSub):
		return plan.Reject(plan.SubTileUnreadable, "sub-tile %dx%d has no single scratch read", mSub, nSub)
	case c.Buffers != 2:
		return bad("%d scratch buffers, the loop needs two", c.Buffers)
	case p.Precision != plan.FP32:
		return bad("precision %v", p.Precision)
	case p.Direction != plan.Forward:
		return bad("direction %v", p.Direction)
	}
	return nil
}

// Admit rejects tilings the loop cannot run. Beyond what Fits rejects, an
// unreadable sub-tile or a copy decomposition it cannot emit is a
// *plan.Rejection, and a block that is not a power of two is a
// *plan.ShapeError.
func Admit(t *plan.Tiling, p *plan.Problem) error {
	if err := Fits(t.Candidate, p); err != nil {
		return err
	}
	if !readable(t.M.Sub) || !readable(t.N.Sub) {
		return plan.Reject(plan.SubTileUnreadable, "sub-tile %dx%d has no single scratch read", t.M.Sub, t.N.Sub)
	}
	axes := append(t.In[:len(t.In):len(t.In)], t.Wei[:]...)
	for _, ax := range axes {
		if !pow2(ax.Sub) || !pow2(ax.Cluster) {
			return plan.Reject(plan.TilingDecompositionFailed, "copy %d/%d is not a power of two", ax.Cluster, ax.Sub)
		}
	}
	if t.In[plan.InN2].Sub > 4 || t.Wei[plan.WeiE].Sub > 4 || t.Wei[plan.WeiK].Sub > 4 {
		return plan.Reject(plan.TilingDecompositionFailed, "copy vector wider than one load or store")
	}
	if !pow2(t.KPerBlock) || !pow2(t.BPerBlock) {
		return shapeErr(t, "block %dx%d is not a power of two", t.KPerBlock, t.BPerBlock)
	}
	return nil
}
