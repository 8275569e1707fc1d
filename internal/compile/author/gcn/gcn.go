// Package gcn names the GCN instructions the kernels are built from.
// Each type is the operand list of one instruction; asm.Mod operands
// render as trailing modifiers.
package gcn

import (
	"strconv"
	"strings"

	"igemm/internal/compile/author/asm"
)

func inst(to []byte, op string, args []asm.Gen) []byte {
	in := asm.Inst{Op: op}
	for _, arg := range args {
		switch x := arg.(type) {
		case asm.Mod:
			in.Mods = append(in.Mods, x)
		default:
			in.Args = append(in.Args, arg)
		}
	}
	return in.Append(to)
}

// SWaitcnt waits until at most Vm global and Lgkm scratch or scalar
// memory operations are outstanding. A negative count is left out.
type SWaitcnt struct {
	Vm   int
	Lgkm int
}

func (s SWaitcnt) Append(to []byte) []byte {
	var cnts []string
	if s.Vm >= 0 {
		cnts = append(cnts, "vmcnt("+strconv.Itoa(s.Vm)+")")
	}
	if s.Lgkm >= 0 {
		cnts = append(cnts, "lgkmcnt("+strconv.Itoa(s.Lgkm)+")")
	}
	if cnts == nil {
		return to
	}
	return asm.Inst{
		Op:   "s_waitcnt",
		Args: []asm.Gen{asm.Vb(strings.Join(cnts, " "))},
	}.Append(to)
}

func Vmcnt(n int) SWaitcnt   { return SWaitcnt{Vm: n, Lgkm: -1} }
func Lgkmcnt(n int) SWaitcnt { return SWaitcnt{Vm: -1, Lgkm: n} }

// Hardware counter limits on gfx9.
const (
	MaxVmcnt   = 63
	MaxLgkmcnt = 15
)

type Class int

const (
	Scalar Class = iota
	Vector
	Global
	Scratch
	ScalarLoad
	Control
)

// Classify names the counter an instruction retires through.
func Classify(op string) Class {
	switch {
	case strings.HasPrefix(op, "buffer_"), strings.HasPrefix(op, "global_"):
		return Global
	case strings.HasPrefix(op, "ds_"):
		return Scratch
	case strings.HasPrefix(op, "s_load_"):
		return ScalarLoad
	case strings.HasPrefix(op, "s_cbranch"), strings.HasPrefix(op, "s_branch"),
		op == "s_waitcnt", op == "s_barrier", op == "s_endpgm":
		return Control
	case strings.HasPrefix(op, "v_"):
		return Vector
	}
	return Scalar
}

// Mnemonics returns the instruction mnemonic of every instruction line
// in text, skipping labels, comments and directives.
func Mnemonics(text []byte) []string {
	var ops []string
	for _, line := range strings.Split(string(text), "\n") {
		if !strings.HasPrefix(line, "\t") {
			continue
		}
		if f := strings.Fields(line); len(f) > 0 {
			ops = append(ops, f[0])
		}
	}
	return ops
}

// Count tallies Mnemonics by class.
func Count(text []byte) map[Class]int {
	n := make(map[Class]int)
	for _, op := range Mnemonics(text) {
		n[Classify(op)]++
	}
	return n
}
