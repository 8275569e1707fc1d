package pipe

import (
	"testing"

	"igemm/internal/compile/enum"
	"igemm/internal/compile/plan"
	"igemm/internal/compile/split"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labels = Labels{Body: "body", Finishing: "finishing", End: "end"}

func schedule(u int) *Plan {
	is := Issues{Load: [Operands]int{A: 4, B: 4}, Store: [Operands]int{A: 2, B: 4}}
	return Schedule(u, is, labels)
}

func TestScheduleRuns(t *testing.T) {
	for _, u := range []int{1, 2, 4, 8, 16} {
		for tiles := 1; tiles <= 5; tiles++ {
			assert.NoError(t, Check(schedule(u), tiles), "unroll %d tiles %d", u, tiles)
		}
	}
}

func TestScheduleWideIssues(t *testing.T) {
	is := Issues{Load: [Operands]int{A: 80, B: 16}, Store: [Operands]int{A: 12, B: 8}}
	p := Schedule(4, is, labels)
	for _, op := range p.Ops() {
		if w, ok := op.(Wait); ok {
			assert.LessOrEqual(t, w.Vm, 63)
			assert.LessOrEqual(t, w.Lgkm, 15)
		}
	}
	for tiles := 1; tiles <= 4; tiles++ {
		assert.NoError(t, Check(p, tiles))
	}
}

func TestScheduleShape(t *testing.T) {
	p := schedule(2)
	assert.Equal(t, Label{Name: "body"}, p.Body[0])
	assert.Equal(t, Label{Name: "finishing"}, p.Finishing[0])
	assert.Equal(t, Label{Name: "end"}, p.Epilogue[0])
	assert.Equal(t, End{}, p.Epilogue[len(p.Epilogue)-1])
	assert.Equal(t, Branch{Target: "body"}, p.Body[len(p.Body)-1])

	count := func(ops []Op, want Op) (n int) {
		for _, op := range ops {
			if op == want {
				n++
			}
		}
		return
	}
	assert.Equal(t, 1, count(p.Body, Barrier{}))
	assert.Equal(t, 1, count(p.Body, FlipRead{}))
	assert.Equal(t, 1, count(p.Body, FlipStore{}))
	assert.Equal(t, 1, count(p.Body, Move{}))
	assert.Equal(t, 1, count(p.Prologue, Clear{}))
	assert.Equal(t, 0, count(p.Finishing, Barrier{}))
}

// corrupt returns a copy of the plan with fn applied to one part.
func corrupt(p *Plan, part func(*Plan) *[]Op, fn func([]Op) []Op) *Plan {
	q := *p
	ops := part(&q)
	*ops = fn(append([]Op(nil), *ops...))
	return &q
}

func index(ops []Op, want Op, nth int) int {
	for i, op := range ops {
		if op == want {
			if nth == 0 {
				return i
			}
			nth--
		}
	}
	panic("missing op")
}

func drop(want Op, nth int) func([]Op) []Op {
	return func(ops []Op) []Op {
		i := index(ops, want, nth)
		return append(ops[:i], ops[i+1:]...)
	}
}

func replace(want, with Op, nth int) func([]Op) []Op {
	return func(ops []Op) []Op {
		ops[index(ops, want, nth)] = with
		return ops
	}
}

func prologue(p *Plan) *[]Op  { return &p.Prologue }
func body(p *Plan) *[]Op      { return &p.Body }
func epilogue(p *Plan) *[]Op  { return &p.Epilogue }
func finishing(p *Plan) *[]Op { return &p.Finishing }

func TestCheckCatches(t *testing.T) {
	p := schedule(4)
	for _, tc := range []struct {
		name  string
		plan  *Plan
		tiles int
	}{
		{"loop barrier", corrupt(p, body, drop(Barrier{}, 0)), 3},
		{"entry barrier", corrupt(p, prologue, drop(Barrier{}, 0)), 2},
		{"tail barrier", corrupt(p, epilogue, drop(Barrier{}, 0)), 1},
		{"read flip", corrupt(p, body, drop(FlipRead{}, 0)), 2},
		{"store flip", corrupt(p, body, drop(FlipStore{}, 0)), 3},
		{"move", corrupt(p, body, drop(Move{}, 0)), 3},
		{"clear", corrupt(p, prologue, drop(Clear{}, 0)), 1},
		{"early compute", corrupt(p, body, replace(lgkm(2), lgkm(3), 0)), 2},
		{"store before fetch", corrupt(p, body, drop(vm(4), 0)), 2},
		{"store before fetch entry", corrupt(p, prologue, drop(vm(0), 0)), 1},
		{"finishing wait", corrupt(p, finishing, drop(lgkm(6), 0)), 2},
		{"vm limit", corrupt(p, prologue, replace(vm(4), Wait{Vm: 64, Lgkm: -1}, 0)), 1},
		{"lgkm limit", corrupt(p, epilogue, replace(lgkm(0), Wait{Vm: -1, Lgkm: 16}, 0)), 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, Check(p, tc.tiles))
			assert.Error(t, Check(tc.plan, tc.tiles))
		})
	}
}

func TestCheckReordered(t *testing.T) {
	p := corrupt(schedule(2), body, func(ops []Op) []Op {
		i := index(ops, Store{Operand: B}, 0)
		j := index(ops, vm(4), 0)
		ops[i], ops[j] = ops[j], ops[i]
		return ops
	})
	assert.Error(t, Check(p, 2))
}

func TestCheckTiles(t *testing.T) {
	assert.Error(t, Check(schedule(1), 0))
}

func tiling(t *testing.T, tm, tn, bm, bn int) *plan.Tiling {
	t.Helper()
	c := enum.One(tm, tn, bm, bn, 8, 2, []int{64, 128, 256}, 4, plan.DefaultTarget())
	require.True(t, c.Valid(), c.Detail)
	ts, err := split.Decompose(c, 0, 0)
	require.NoError(t, err)
	return ts[0]
}

func problem(t *testing.T, edit func(*plan.Problem)) *plan.Problem {
	t.Helper()
	p := plan.Problem{
		Batch:   32, Groups: 1, Channels: 64, Height: 28, Width: 28, Filters: 64,
		FilterH: 1, FilterW: 1, StrideH: 1, StrideW: 1, DilationH: 1, DilationW: 1,
	}
	if edit != nil {
		edit(&p)
	}
	q, err := plan.NewProblem(p)
	require.NoError(t, err)
	return q
}

func TestAdmit(t *testing.T) {
	tl := tiling(t, 8, 8, 128, 128)
	require.NoError(t, Admit(tl, problem(t, nil)))

	shape := func(err error) bool {
		var se *plan.ShapeError
		return errors.As(err, &se)
	}
	assert.True(t, shape(Admit(tl, problem(t, func(p *plan.Problem) { p.Precision = plan.FP16 }))))
	assert.True(t, shape(Admit(tl, problem(t, func(p *plan.Problem) { p.Direction = plan.BackwardData }))))

	three := *tl
	three.Candidate = new(plan.Candidate)
	*three.Candidate = *tl.Candidate
	three.Buffers = 3
	assert.True(t, shape(Admit(&three, problem(t, nil))))

	odd := *tl
	odd.Candidate = new(plan.Candidate)
	*odd.Candidate = *tl.Candidate
	odd.ThreadM = 5
	assert.True(t, shape(Admit(&odd, problem(t, nil))))

	reject := func(err error, r plan.Reason) bool {
		var rej *plan.Rejection
		return errors.As(err, &rej) && rej.Reason == r
	}
	six := *tl
	six.Candidate = new(plan.Candidate)
	*six.Candidate = *tl.Candidate
	six.ThreadM = 6
	assert.True(t, reject(Admit(&six, problem(t, nil)), plan.SubTileUnreadable))

	wide := *tl
	wide.N.Sub = 8
	assert.True(t, reject(Admit(&wide, problem(t, nil)), plan.SubTileUnreadable))

	uneven := *tl
	uneven.In[plan.InN2] = plan.Axis{Cluster: 2, Sub: 3}
	assert.True(t, reject(Admit(&uneven, problem(t, nil)), plan.TilingDecompositionFailed))

	long := *tl
	long.Wei[plan.WeiK] = plan.Axis{Cluster: 16, Sub: 8}
	assert.True(t, reject(Admit(&long, problem(t, nil)), plan.TilingDecompositionFailed))
}

func TestFits(t *testing.T) {
	p := problem(t, nil)
	for _, tc := range []struct {
		tm, tn, lb int
		shape      bool
		reason     plan.Reason
	}{
		{4, 4, 2, false, plan.Accepted},
		{8, 4, 2, false, plan.Accepted},
		{4, 3, 2, true, plan.Accepted},
		{4, 4, 3, true, plan.Accepted},
		{6, 4, 2, false, plan.SubTileUnreadable},
		{6, 6, 2, false, plan.SubTileUnreadable},
		{16, 4, 2, false, plan.SubTileUnreadable},
	} {
		c := &plan.Candidate{ThreadM: tc.tm, ThreadN: tc.tn, BlockM: 64, BlockN: 64, UnrollK: 8, Buffers: tc.lb}
		err := Fits(c, p)
		var se *plan.ShapeError
		var rej *plan.Rejection
		switch {
		case tc.shape:
			assert.True(t, errors.As(err, &se), c.String())
		case tc.reason != plan.Accepted:
			require.True(t, errors.As(err, &rej), c.String())
			assert.Equal(t, tc.reason, rej.Reason, c.String())
			assert.False(t, errors.As(err, &se), c.String())
		default:
			assert.NoError(t, err, c.String())
		}
	}
	c := &plan.Candidate{ThreadM: 4, ThreadN: 4, BlockM: 64, BlockN: 64, UnrollK: 8, Buffers: 2}
	var se *plan.ShapeError
	assert.True(t, errors.As(Fits(c, problem(t, func(p *plan.Problem) { p.Precision = plan.BF16 })), &se))
	c.ThreadM = 6
	assert.EqualError(t, Fits(c, p), "sub-tile-unreadable: sub-tile 3x2 has no single scratch read")
}
