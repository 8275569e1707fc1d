package sst

import (
	"strings"
	"testing"

	"igemm/internal/compile/author/asm"
	"igemm/internal/compile/author/gcn"

	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	for _, tc := range []struct {
		nVec, width, stride int
		kind                Kind
		issues              int
	}{
		{8, 1, 4, Write2B32, 4},
		{8, 4, 16, Single, 8},
		{3, 1, 4, Single, 3},
		{2, 1, 1024, Write2st64B32, 1},
		{2, 1, 1028, Single, 2},
		{4, 2, 16, Write2B64, 2},
		{2, 2, 4096, Write2st64B64, 1},
		{2, 2, 12, Single, 2},
		{1, 4, 16, Single, 1},
	} {
		s := Select(tc.nVec, tc.width, tc.stride, 0, true)
		assert.Equal(t, tc.kind, s.Kind, "%+v", tc)
		assert.Equal(t, tc.issues, s.Issues(), "%+v", tc)
	}
	// A base past the 8-bit range forces the wide variant.
	assert.Equal(t, Write2st64B32, Select(2, 1, 256, 1024, false).Kind)
}

func apply(nVec, width int, sw [][]Swap) []int {
	regs := make([]int, nVec*width)
	for i := range regs {
		regs[i] = i
	}
	for _, vec := range sw {
		for _, x := range vec {
			regs[x.A], regs[x.B] = regs[x.B], regs[x.A]
		}
	}
	return regs
}

func TestSwaps(t *testing.T) {
	assert.Equal(t, [][]Swap{{{A: 1, B: 2}}, nil}, Swaps(2, 2))
	for _, nVec := range []int{1, 2, 4, 8} {
		for _, width := range []int{1, 2, 4} {
			sw := Swaps(nVec, width)
			regs := apply(nVec, width, sw)
			for n := 0; n < nVec; n++ {
				for j := 0; j < width; j++ {
					assert.Equal(t, j*nVec+n, regs[n*width+j], "nVec %d width %d", nVec, width)
				}
				for _, x := range sw[n] {
					assert.GreaterOrEqual(t, x.A, n*width)
					assert.Greater(t, x.B, x.A)
				}
			}
		}
	}
}

func TestEmit(t *testing.T) {
	addr, src := asm.V{Sym: "v_sst_a"}, asm.V{Sym: "v_gld_a"}
	got := string(Select(2, 1, 4, 0, false).Emit(addr, src).Append(nil))
	assert.Equal(t, "\tds_write2_b32 v[v_sst_a+0], v[v_gld_a+0], v[v_gld_a+1] offset0:0 offset1:1\n", got)

	for _, s := range []Store{
		Select(4, 2, 16, 0, true),
		Select(4, 4, 16, 0, true),
		Select(2, 4, 48, 0, true),
		Select(8, 1, 4, 0, true),
	} {
		text := s.Emit(addr, src).Append(nil)
		var stores, swaps int
		for _, op := range gcn.Mnemonics(text) {
			switch {
			case strings.HasPrefix(op, "ds_write"):
				stores++
			case op == "v_swap_b32":
				swaps++
			}
		}
		want := 0
		for _, vec := range s.swaps() {
			want += len(vec)
		}
		assert.Equal(t, s.Issues(), stores)
		assert.Equal(t, want, swaps)
		assert.Equal(t, s.Issues(), gcn.Count(text)[gcn.Scratch])
	}
}

func TestEmitFallbackOffsets(t *testing.T) {
	s := Select(2, 4, 48, 16, false)
	got := string(s.Emit(asm.V{Sym: "a"}, asm.V{Sym: "d"}).Append(nil))
	assert.Equal(t,
		"\tds_write_b128 v[a+0], v[d+0:d+3] offset:16\n"+
			"\tds_write_b128 v[a+0], v[d+4:d+7] offset:64\n", got)
}
