package pipe

import (
	"fmt"

	"github.com/pkg/errors"

	"igemm/internal/compile/author/gcn"
)

const stepLimit = 1 << 20

// fetch is one operand's global load destination.
type fetch struct {
	tile    int
	pending int
	stored  bool
	loaded  bool
}

// reg is one read half-register.
type reg struct {
	tile    int
	k       int
	seq     int
	pending bool
	valid   bool
}

type buffer struct {
	tile  [Operands]int
	dirty bool
	read  bool
}

type event struct {
	fetch *fetch
	reg   *reg
	seq   int
}

type sim struct {
	p       *Plan
	tiles   int
	ops     []Op
	labels  map[string]int
	vm      []event
	lgkm    []event
	fetch   [Operands]fetch
	regs    [Operands][2]reg
	bufs    [2]buffer
	sst     int
	sld     int
	moves   int
	left    int
	seq     int
	cleared bool
	done    map[Compute]map[int]int
}

func (s *sim) fail(pc int, format string, args ...interface{}) error {
	return errors.Errorf("op %d (%v): %s", pc, s.ops[pc], fmt.Sprintf(format, args...))
}

func (s *sim) retire(q []event, n int) []event {
	for len(q) > n {
		e := q[0]
		q = q[1:]
		if e.fetch != nil {
			e.fetch.pending--
		}
		if e.reg != nil && e.reg.seq == e.seq {
			e.reg.pending = false
		}
	}
	return q
}

// Check runs a plan over the given number of tiles and reports the
// first ordering violation: data consumed before its wait, a barrier
// with scratch operations in flight, a buffer overwritten while
// another step may still read it, or a reduction step computed zero
// or several times.
func Check(p *Plan, tiles int) error {
	if tiles < 1 {
		return errors.Errorf("%d tiles", tiles)
	}
	s := &sim{
		p:      p,
		tiles:  tiles,
		ops:    p.Ops(),
		labels: make(map[string]int),
		done:   make(map[Compute]map[int]int),
	}
	for i, op := range s.ops {
		if l, ok := op.(Label); ok {
			if _, dup := s.labels[l.Name]; dup {
				return errors.Errorf("label %s defined twice", l.Name)
			}
			s.labels[l.Name] = i
		}
	}
	for i := range s.bufs {
		s.bufs[i].tile = [Operands]int{-1, -1}
	}
	return s.run()
}

func (s *sim) jump(pc int, target string) (int, error) {
	to, ok := s.labels[target]
	if !ok {
		return 0, s.fail(pc, "no label %s", target)
	}
	return to, nil
}

func (s *sim) run() error {
	pc := 0
	for steps := 0; ; steps++ {
		if steps > stepLimit {
			return errors.New("plan does not terminate")
		}
		if pc >= len(s.ops) {
			return errors.New("plan runs off its end")
		}
		next := pc + 1
		var err error
		switch op := s.ops[pc].(type) {
		case Load:
			err = s.load(pc, op)
		case Store:
			err = s.store(pc, op)
		case Read:
			err = s.read(pc, op)
		case Compute:
			err = s.compute(pc, op)
		case Wait:
			if op.Vm > gcn.MaxVmcnt || op.Lgkm > gcn.MaxLgkmcnt {
				return s.fail(pc, "count beyond the encodable limit")
			}
			if op.Vm >= 0 {
				s.vm = s.retire(s.vm, op.Vm)
			}
			if op.Lgkm >= 0 {
				s.lgkm = s.retire(s.lgkm, op.Lgkm)
			}
		case Barrier:
			if len(s.lgkm) != 0 {
				return s.fail(pc, "%d scratch operations in flight", len(s.lgkm))
			}
			for i := range s.bufs {
				s.bufs[i].dirty = false
				s.bufs[i].read = false
			}
		case Move:
			s.moves++
		case FlipStore:
			s.sst ^= 1
		case FlipRead:
			s.sld ^= 1
		case Clear:
			s.cleared = true
		case LoopInit:
			s.left = s.tiles - 1
		case LoopStep:
			s.left--
		case Label:
		case BranchDone:
			if s.left <= 0 {
				next, err = s.jump(pc, op.Target)
			}
		case Branch:
			next, err = s.jump(pc, op.Target)
		case Writeout:
			err = s.writeout(pc)
		case End:
			return nil
		default:
			panic("bug")
		}
		if err != nil {
			return err
		}
		pc = next
	}
}

func (s *sim) load(pc int, op Load) error {
	f := &s.fetch[op.Operand]
	if f.loaded && !f.stored {
		return s.fail(pc, "overwrites tile %d before it is stored", f.tile)
	}
	if s.moves >= s.tiles {
		return s.fail(pc, "window is past the last tile")
	}
	n := s.p.Issues.Load[op.Operand]
	*f = fetch{tile: s.moves, pending: n, loaded: true}
	for i := 0; i < n; i++ {
		s.vm = append(s.vm, event{fetch: f})
	}
	return nil
}

func (s *sim) store(pc int, op Store) error {
	f := &s.fetch[op.Operand]
	switch {
	case !f.loaded || f.stored:
		return s.fail(pc, "nothing loaded")
	case f.pending > 0:
		return s.fail(pc, "tile %d is still in flight", f.tile)
	}
	b := &s.bufs[s.sst]
	if b.read {
		return s.fail(pc, "buffer %d has unfenced reads", s.sst)
	}
	f.stored = true
	b.tile[op.Operand] = f.tile
	b.dirty = true
	for i := 0; i < s.p.Issues.Store[op.Operand]; i++ {
		s.lgkm = append(s.lgkm, event{})
	}
	return nil
}

func (s *sim) read(pc int, op Read) error {
	b := &s.bufs[s.sld]
	switch {
	case b.dirty:
		return s.fail(pc, "buffer %d has unfenced stores", s.sld)
	case b.tile[op.Operand] < 0:
		return s.fail(pc, "buffer %d is empty", s.sld)
	}
	b.read = true
	s.seq++
	r := &s.regs[op.Operand][op.Half]
	*r = reg{tile: b.tile[op.Operand], k: op.K, seq: s.seq, pending: true, valid: true}
	s.lgkm = append(s.lgkm, event{reg: r, seq: s.seq})
	return nil
}

func (s *sim) compute(pc int, op Compute) error {
	if !s.cleared {
		return s.fail(pc, "accumulators not cleared")
	}
	a, b := &s.regs[A][op.M], &s.regs[B][op.N]
	for _, r := range []*reg{a, b} {
		switch {
		case !r.valid:
			return s.fail(pc, "operand never read")
		case r.pending:
			return s.fail(pc, "operand read still in flight")
		case r.k != op.K:
			return s.fail(pc, "operand holds step %d", r.k)
		}
	}
	if a.tile != b.tile {
		return s.fail(pc, "operands from tiles %d and %d", a.tile, b.tile)
	}
	m := s.done[op]
	if m == nil {
		m = make(map[int]int)
		s.done[op] = m
	}
	m[a.tile]++
	return nil
}

func (s *sim) writeout(pc int) error {
	for k := 0; k < s.p.Unroll; k++ {
		for q := 0; q < 4; q++ {
			c := Compute{K: k, M: q >> 1, N: q & 1}
			for t := 0; t < s.tiles; t++ {
				if n := s.done[c][t]; n != 1 {
					return s.fail(pc, "tile %d %v ran %d times", t, c, n)
				}
			}
			if len(s.done[c]) != s.tiles {
				return s.fail(pc, "%v ran on a tile that does not exist", c)
			}
		}
	}
	return nil
}
