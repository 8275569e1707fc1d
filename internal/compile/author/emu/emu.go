// Package emu runs the integer and conversion subset of kernel text for
// a single lane, so index arithmetic can be checked against the host
// model. Memory and synchronization instructions are skipped.
package emu

import (
	"math"
	"strconv"
	"strings"

	"igemm/internal/compile/author/gcn"

	"github.com/pkg/errors"
)

// Lane is the register state of one lane. Registers are keyed by
// symbol and offset as written in the text, for example "v_ic+0".
// Masks (vcc and scalar pairs used as conditions) hold one bit.
type Lane struct {
	Regs    map[string]uint32
	Masks   map[string]bool
	Kernarg map[int]uint32
}

func New() *Lane {
	return &Lane{
		Regs:    make(map[string]uint32),
		Masks:   make(map[string]bool),
		Kernarg: make(map[int]uint32),
	}
}

// Set stores an integer, wrapping negatives.
func (l *Lane) Set(key string, v int) { l.Regs[key] = uint32(int32(v)) }

// Int reads a register as a signed value.
func (l *Lane) Int(key string) int { return int(int32(l.Regs[key])) }

// regKey returns the register key of a bracketed symbol, or of a
// plain hardware register such as v0.
func regKey(tok string) (string, bool) {
	if len(tok) >= 2 && (tok[0] == 'v' || tok[0] == 's') {
		if _, err := strconv.Atoi(tok[1:]); err == nil {
			return tok, true
		}
	}
	if len(tok) < 3 || (tok[0] != 'v' && tok[0] != 's') || tok[1] != '[' || !strings.HasSuffix(tok, "]") {
		return "", false
	}
	return tok[2 : len(tok)-1], true
}

// split turns "s_p+0:s_p+1" into its single-register keys.
func split(key string) ([]string, error) {
	lo, hi, ok := strings.Cut(key, ":")
	if !ok {
		return []string{key}, nil
	}
	sym, a, ok1 := strings.Cut(lo, "+")
	_, b, ok2 := strings.Cut(hi, "+")
	i, err1 := strconv.Atoi(a)
	j, err2 := strconv.Atoi(b)
	if !ok1 || !ok2 || err1 != nil || err2 != nil {
		return nil, errors.Errorf("bad range %q", key)
	}
	var keys []string
	for n := i; n <= j; n++ {
		keys = append(keys, sym+"+"+strconv.Itoa(n))
	}
	return keys, nil
}

func (l *Lane) read(tok string) (uint32, error) {
	if key, ok := regKey(tok); ok {
		v, ok := l.Regs[key]
		if !ok {
			return 0, errors.Errorf("read of unset register %s", tok)
		}
		return v, nil
	}
	n, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "operand %q", tok)
	}
	return uint32(n), nil
}

func (l *Lane) write(tok string, v uint32) error {
	key, ok := regKey(tok)
	if !ok {
		return errors.Errorf("write to non-register %q", tok)
	}
	l.Regs[key] = v
	return nil
}

func maskKey(tok string) string {
	if key, ok := regKey(tok); ok {
		return key
	}
	return tok
}

func (l *Lane) mask(tok string) (bool, error) {
	m, ok := l.Masks[maskKey(tok)]
	if !ok {
		return false, errors.Errorf("read of unset mask %s", tok)
	}
	return m, nil
}

func f32(u uint32) float32  { return math.Float32frombits(u) }
func bits(f float32) uint32 { return math.Float32bits(f) }

func cvtU32(f float32) uint32 {
	switch {
	case math.IsNaN(float64(f)), f <= 0:
		return 0
	case f >= 4294967296:
		return math.MaxUint32
	}
	return uint32(f)
}

func compare(op string, a, b uint32) (bool, error) {
	signed := strings.HasSuffix(op, "_i32")
	sa, sb := int32(a), int32(b)
	switch strings.TrimSuffix(strings.TrimSuffix(strings.TrimPrefix(op, "v_cmp_"), "_u32"), "_i32") {
	case "eq":
		return a == b, nil
	case "ne":
		return a != b, nil
	case "gt":
		if signed {
			return sa > sb, nil
		}
		return a > b, nil
	case "ge":
		if signed {
			return sa >= sb, nil
		}
		return a >= b, nil
	case "lt":
		if signed {
			return sa < sb, nil
		}
		return a < b, nil
	case "le":
		if signed {
			return sa <= sb, nil
		}
		return a <= b, nil
	}
	return false, errors.Errorf("unknown compare %s", op)
}

// Run executes text from top to bottom. Labels and branches are not
// followed.
func (l *Lane) Run(text []byte) error {
	for n, line := range strings.Split(string(text), "\n") {
		if !strings.HasPrefix(line, "\t") {
			continue
		}
		if err := l.step(strings.TrimSpace(line)); err != nil {
			return errors.Wrapf(err, "line %d: %s", n+1, line)
		}
	}
	return nil
}

func (l *Lane) step(line string) error {
	op, rest, _ := strings.Cut(line, " ")
	var args []string
	if rest != "" {
		args = strings.Split(rest, ", ")
	}
	switch gcn.Classify(op) {
	case gcn.Global, gcn.Scratch, gcn.Control:
		return nil
	case gcn.ScalarLoad:
		return l.load(op, args)
	}
	if strings.HasSuffix(op, "exec_b64") || (len(args) > 0 && args[0] == "exec") {
		return nil
	}
	if strings.HasPrefix(op, "v_cmp_") {
		a, b, err := l.two(args[1], args[2])
		if err != nil {
			return err
		}
		c, err := compare(op, a, b)
		l.Masks[maskKey(args[0])] = c
		return err
	}
	switch op {
	case "s_and_b64":
		a, err1 := l.mask(args[1])
		b, err2 := l.mask(args[2])
		if err := firstErr(err1, err2); err != nil {
			return err
		}
		l.Masks[maskKey(args[0])] = a && b
		return nil
	case "v_cndmask_b32":
		m, err := l.mask(args[3])
		if err != nil {
			return err
		}
		src := args[1]
		if m {
			src = args[2]
		}
		v, err := l.read(src)
		if err != nil {
			return err
		}
		return l.write(args[0], v)
	case "v_add_co_u32", "v_sub_co_u32":
		a, b, err := l.two(args[2], args[3])
		if err != nil {
			return err
		}
		if op == "v_add_co_u32" {
			l.Masks[maskKey(args[1])] = uint64(a)+uint64(b) > math.MaxUint32
			return l.write(args[0], a+b)
		}
		l.Masks[maskKey(args[1])] = b > a
		return l.write(args[0], a-b)
	case "v_addc_co_u32":
		a, b, err := l.two(args[2], args[3])
		if err != nil {
			return err
		}
		cin, err := l.mask(args[4])
		if err != nil {
			return err
		}
		sum := uint64(a) + uint64(b)
		if cin {
			sum++
		}
		l.Masks[maskKey(args[1])] = sum > math.MaxUint32
		return l.write(args[0], uint32(sum))
	}
	if len(args) == 2 {
		a, err := l.read(args[1])
		if err != nil {
			return err
		}
		var v uint32
		switch op {
		case "v_mov_b32", "s_mov_b32", "v_readfirstlane_b32":
			v = a
		case "v_cvt_f32_u32":
			v = bits(float32(a))
		case "v_cvt_u32_f32":
			v = cvtU32(f32(a))
		case "v_rcp_f32":
			v = bits(1 / f32(a))
		default:
			return errors.Errorf("unsupported %s", op)
		}
		return l.write(args[0], v)
	}
	if len(args) != 3 {
		return errors.Errorf("unsupported %s", op)
	}
	a, b, err := l.two(args[1], args[2])
	if err != nil {
		return err
	}
	var v uint32
	switch op {
	case "v_add_u32", "s_add_u32", "s_add_i32":
		v = a + b
	case "v_sub_u32", "s_sub_u32", "s_sub_i32":
		v = a - b
	case "v_subrev_u32":
		v = b - a
	case "v_mul_lo_u32", "s_mul_i32":
		v = a * b
	case "v_mul_hi_u32":
		v = uint32(uint64(a) * uint64(b) >> 32)
	case "v_and_b32", "s_and_b32":
		v = a & b
	case "v_or_b32", "s_or_b32":
		v = a | b
	case "v_xor_b32", "s_xor_b32":
		v = a ^ b
	case "s_max_u32":
		v = max(a, b)
	case "v_lshlrev_b32":
		v = b << (a & 31)
	case "v_lshrrev_b32":
		v = b >> (a & 31)
	case "s_lshl_b32":
		v = a << (b & 31)
	case "s_lshr_b32":
		v = a >> (b & 31)
	case "v_mul_f32":
		v = bits(f32(a) * f32(b))
	default:
		return errors.Errorf("unsupported %s", op)
	}
	return l.write(args[0], v)
}

func (l *Lane) two(x, y string) (uint32, uint32, error) {
	a, err1 := l.read(x)
	b, err2 := l.read(y)
	return a, b, firstErr(err1, err2)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Lane) load(op string, args []string) error {
	key, ok := regKey(args[0])
	if !ok {
		return errors.Errorf("bad load target %q", args[0])
	}
	keys, err := split(key)
	if err != nil {
		return err
	}
	off, err := strconv.Atoi(args[2])
	if err != nil {
		return errors.Wrapf(err, "load offset")
	}
	for i, k := range keys {
		v, ok := l.Kernarg[off+4*i]
		if !ok {
			return errors.Errorf("%s reads unset kernarg %d", op, off+4*i)
		}
		l.Regs[k] = v
	}
	return nil
}
