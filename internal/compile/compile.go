// Package compile turns tuning text into authored kernels and reports.
package compile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"igemm/internal/compile/author"
	"igemm/internal/compile/author/pipe"
	"igemm/internal/compile/enum"
	"igemm/internal/compile/plan"
	"igemm/internal/compile/split"
	"igemm/internal/raw"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Jobs bounds the kernels authored at once. Below one means one.
	Jobs int
	// Logger receives one debug record per rejection and one info
	// record per sweep. Nil discards.
	Logger *slog.Logger
	// Enumerate stops after the copy decomposition.
	Enumerate bool
}

// Use is one problem a kernel was authored for.
type Use struct {
	Problem *plan.Problem
	Grid    int
	Why     string
}

// Kernel is one authored kernel. Kernels are shape-dynamic, so one
// kernel serves every problem whose tiling produced the same name.
type Kernel struct {
	Tiling *plan.Tiling
	Text   []byte
	Desc   *plan.Descriptor
	Uses   []Use
}

// Sweep counts what one Tuning did to one Conv.
type Sweep struct {
	Problem      *plan.Problem
	Tuning       *plan.Tuning
	Candidates   []*plan.Candidate
	Valid        int
	Rejected     map[plan.Reason]int
	Undecomposed int
	Shapes       int
	Tilings      int
	Duplicates   int
	Kernels      int
}

type Result struct {
	Target  *plan.Target
	Sweeps  []*Sweep
	Kernels []*Kernel
}

// ShapeErrors lists every candidate the loop could not run. Batch
// returns it alongside a complete Result.
type ShapeErrors []*plan.ShapeError

func (s ShapeErrors) Error() string {
	msgs := lo.Map(s, func(e *plan.ShapeError, _ int) string { return e.Error() })
	return fmt.Sprintf("%d unsupported shapes:\n%s", len(s), strings.Join(msgs, "\n"))
}

func Compile(text string) (*Result, error) {
	return Batch(context.Background(), text, Options{})
}

// Batch parses text and authors a kernel for every tiling of every
// Conv and Tuning pair. Rejections are counted in the sweeps. Shape
// errors do not stop the batch; they come back as ShapeErrors with the
// result.
func Batch(ctx context.Context, text string, opts Options) (*Result, error) {
	nodes, err := raw.Parse(text)
	if err != nil {
		return nil, err
	}
	st := &state{
		ctx:   ctx,
		opts:  opts,
		log:   opts.Logger,
		nodes: nodes,
	}
	if st.log == nil {
		st.log = slog.New(slog.DiscardHandler)
	}
	if st.opts.Jobs < 1 {
		st.opts.Jobs = 1
	}
	if err := st.stages(); err != nil {
		return nil, errors.Wrap(err, "compile failed")
	}
	st.summarize()
	res := &Result{
		Target:  st.target,
		Sweeps:  st.sweeps,
		Kernels: st.kernels,
	}
	if len(st.shapes) != 0 {
		return res, st.shapes
	}
	return res, nil
}

func anError(msg string, lines ...int) error {
	switch len(lines) {
	case 0:
		return errors.New(msg)
	case 1:
		return errors.Errorf("line %d: %s", lines[0], msg)
	case 2:
		l0, l1 := lines[0], lines[1]
		if l0 > l1 {
			l0, l1 = l1, l0
		}
		return errors.Errorf("lines %d and %d: %s", l0, l1, msg)
	default:
		panic("bug")
	}
}

// job is one tiling to author.
type job struct {
	name  string
	sweep *Sweep
	t     *plan.Tiling
}

type state struct {
	ctx      context.Context
	opts     Options
	log      *slog.Logger
	nodes    []raw.Node
	rawTgt   *raw.Target
	convs    []*raw.Conv
	tunings  []*raw.Tuning
	target   *plan.Target
	problems []*plan.Problem
	tuned    []*plan.Tuning
	sweeps   []*Sweep
	shapes   ShapeErrors
	jobs     []job
	serves   map[string][]*plan.Problem
	authored []*Kernel
	kernels  []*Kernel
}

var stages = [...]func(*state) error{
	(*state).stage1,
	(*state).stage2,
	(*state).stage3,
	(*state).stage4,
	(*state).stage5,
	(*state).stage6,
}

func (st *state) stages() error {
	for i, stage := range &stages {
		if st.opts.Enumerate && i == 4 {
			break
		}
		if err := stage(st); err != nil {
			return err
		}
	}
	return nil
}

// stage1 sorts the nodes by head.
func (st *state) stage1() error {
	for _, node := range st.nodes {
		switch at := node.(type) {
		case *raw.Target:
			if st.rawTgt != nil {
				return anError("second Target", st.rawTgt.LineNum, at.LineNum)
			}
			st.rawTgt = at
		case *raw.Conv:
			st.convs = append(st.convs, at)
		case *raw.Tuning:
			st.tunings = append(st.tunings, at)
		default:
			panic("bug")
		}
	}
	if len(st.convs) == 0 {
		return anError("no Conv")
	}
	if len(st.tunings) == 0 {
		return anError("no Tuning")
	}
	return nil
}

// stage2 builds the records the planner works on.
func (st *state) stage2() error {
	st.target = plan.DefaultTarget()
	if at := st.rawTgt; at != nil {
		st.target = &plan.Target{
			Name:          at.Name,
			Vgprs:         at.Vgprs,
			Sgprs:         at.Sgprs,
			LdsBytes:      at.LdsBytes,
			WaveSize:      at.WaveSize,
			SimdsPerCU:    at.SimdsPerCU,
			MaxWavesPerCU: at.MaxWavesPerCU,
			VgprGranule:   at.VgprGranule,
			MinWaves:      at.MinWaves,
			OverheadVgprs: at.OverheadVgprs,
		}
	}
	seen := make(map[string]int)
	for _, at := range st.convs {
		if l, ok := seen[at.Name]; ok {
			return anError("second Conv named "+at.Name, l, at.LineNum)
		}
		seen[at.Name] = at.LineNum
		p, err := plan.NewProblem(plan.Problem{
			Name:      at.Name,
			Batch:     at.Batch,
			Groups:    at.Groups,
			Channels:  at.Channels,
			Height:    at.Height,
			Width:     at.Width,
			Filters:   at.Filters,
			FilterH:   at.FilterH,
			FilterW:   at.FilterW,
			PadH:      at.PaddingH,
			PadW:      at.PaddingW,
			StrideH:   at.StrideH,
			StrideW:   at.StrideW,
			DilationH: at.DilationH,
			DilationW: at.DilationW,
			Direction: plan.Direction(at.Direction),
			Precision: plan.Precision(at.Precision),
			OutHeight: at.OutHeight,
			OutWidth:  at.OutWidth,
		})
		if err != nil {
			return anError(err.Error(), at.LineNum)
		}
		st.problems = append(st.problems, p)
	}
	seen = make(map[string]int)
	for _, at := range st.tunings {
		if l, ok := seen[at.Name]; ok {
			return anError("second Tuning named "+at.Name, l, at.LineNum)
		}
		seen[at.Name] = at.LineNum
		st.tuned = append(st.tuned, &plan.Tuning{
			Name:       at.Name,
			MicroTileM: at.MicroTileM,
			MicroTileN: at.MicroTileN,
			MacroTileM: at.MacroTileM,
			MacroTileN: at.MacroTileN,
			UnrollK:    at.UnrollK,
			Buffers:    at.Buffers,
			BlockSizes: at.BlockSizes,
			VectorA:    at.VectorA,
			VectorB:    at.VectorB,
		})
	}
	return nil
}

func (st *state) reject(sw *Sweep, what string, err error) {
	var rej *plan.Rejection
	if !errors.As(err, &rej) {
		panic("bug: " + err.Error())
	}
	sw.Rejected[rej.Reason]++
	st.log.Debug("rejected",
		"problem", sw.Problem.Name,
		"tuning", sw.Tuning.Name,
		"what", what,
		"reason", rej.Reason.String(),
		"detail", rej.Detail)
}

// stage3 grades and decomposes every candidate of every sweep.
func (st *state) stage3() error {
	for _, p := range st.problems {
		for _, tu := range st.tuned {
			sw := &Sweep{
				Problem:  p,
				Tuning:   tu,
				Rejected: make(map[plan.Reason]int),
			}
			st.sweeps = append(st.sweeps, sw)
			sw.Candidates = enum.Walk(tu, p.Precision.Bytes(), st.target)
			valid, invalid := enum.Split(sw.Candidates)
			sw.Valid = len(valid)
			for _, c := range invalid {
				st.reject(sw, c.String(), c.Err())
			}
			for _, c := range valid {
				var se *plan.ShapeError
				switch err := pipe.Fits(c, p); {
				case errors.As(err, &se):
					st.shape(sw, err)
					continue
				case err != nil:
					st.reject(sw, c.String(), err)
					continue
				}
				ts, err := split.Decompose(c, tu.VectorA, tu.VectorB)
				if err != nil {
					sw.Undecomposed++
					st.reject(sw, c.String(), err)
					continue
				}
				sw.Tilings += len(ts)
				for _, t := range ts {
					st.jobs = append(st.jobs, job{name: author.Name(t, p), sweep: sw, t: t})
				}
			}
		}
	}
	return nil
}

func (st *state) shape(sw *Sweep, err error) {
	var se *plan.ShapeError
	if !errors.As(err, &se) {
		panic("bug: " + err.Error())
	}
	sw.Shapes++
	st.shapes = append(st.shapes, se)
	st.log.Debug("unsupported shape",
		"problem", sw.Problem.Name,
		"tuning", sw.Tuning.Name,
		"where", se.Where,
		"msg", se.Msg)
}

// stage4 drops repeated kernel names, first wins, and notes every
// problem each name serves.
func (st *state) stage4() error {
	st.serves = make(map[string][]*plan.Problem)
	seen := make(map[string]bool)
	for _, j := range st.jobs {
		if seen[j.name] {
			j.sweep.Duplicates++
		}
		seen[j.name] = true
		if p := j.sweep.Problem; !lo.Contains(st.serves[j.name], p) {
			st.serves[j.name] = append(st.serves[j.name], p)
		}
	}
	firsts := lo.UniqBy(st.jobs, func(j job) string { return j.name })
	if n := len(st.jobs) - len(firsts); n != 0 {
		st.log.Debug("duplicate kernel names dropped", "count", n)
	}
	st.jobs = firsts
	return nil
}

// stage5 authors the kernels concurrently. Results keep job order.
func (st *state) stage5() error {
	out := make([]*Kernel, len(st.jobs))
	errs := make([]error, len(st.jobs))
	g, ctx := errgroup.WithContext(st.ctx)
	g.SetLimit(st.opts.Jobs)
	for i, j := range st.jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := &plan.Kernel{
				Name:    j.name,
				Problem: j.sweep.Problem,
				Target:  st.target,
				Tiling:  j.t,
			}
			text, desc, err := author.Implement(k)
			if err != nil {
				errs[i] = err
				return nil
			}
			out[i] = &Kernel{Tiling: j.t, Text: text, Desc: desc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, j := range st.jobs {
		var se *plan.ShapeError
		switch err := errs[i]; {
		case err == nil:
			j.sweep.Kernels++
			st.authored = append(st.authored, out[i])
		case errors.As(err, &se):
			st.shape(j.sweep, err)
		default:
			st.reject(j.sweep, j.name, err)
		}
	}
	return nil
}

// stage6 records which problems each kernel serves.
func (st *state) stage6() error {
	for _, k := range st.authored {
		for _, p := range st.serves[k.Desc.Name] {
			grid, why := author.Applicable(k.Tiling, p)
			k.Uses = append(k.Uses, Use{Problem: p, Grid: grid, Why: why})
		}
	}
	st.kernels = st.authored
	return nil
}

func (st *state) summarize() {
	for _, sw := range st.sweeps {
		st.log.Info("sweep",
			"problem", sw.Problem.Name,
			"tuning", sw.Tuning.Name,
			"candidates", len(sw.Candidates),
			"valid", sw.Valid,
			"tilings", sw.Tilings,
			"kernels", sw.Kernels)
	}
}
