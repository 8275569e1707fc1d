package occu

import (
	"testing"

	"igemm/internal/compile/plan"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(tm, tn, bm, bn, uk, lb int) *plan.Candidate {
	return &plan.Candidate{
		ThreadM:   tm, ThreadN: tn,
		BlockM:    bm, BlockN: bn,
		UnrollK:   uk, Buffers: lb,
		BlockSize: (bm / tm) * (bn / tn),
	}
}

func reason(t *testing.T, err error) plan.Reason {
	t.Helper()
	var rej *plan.Rejection
	require.True(t, errors.As(err, &rej), "want a rejection, got %v", err)
	return rej.Reason
}

func TestNextPow2(t *testing.T) {
	for _, tc := range []struct{ in, want int }{
		{1, 1}, {2, 2}, {3, 4}, {4096, 4096}, {4097, 8192},
	} {
		assert.Equal(t, tc.want, NextPow2(tc.in), "NextPow2(%d)", tc.in)
	}
}

func TestSmallTile(t *testing.T) {
	c := cand(4, 4, 64, 64, 8, 2)
	require.Equal(t, 256, c.BlockSize)
	u, err := Eval(c, 4, plan.DefaultTarget())
	require.NoError(t, err)
	assert.Equal(t, 2, u.FetchA)
	assert.Equal(t, 2, u.FetchB)
	assert.Equal(t, 16+4+4+2+2+19, u.Vgprs)
	assert.Equal(t, 2*NextPow2(8*(64+64)*4), u.LdsTotal)
	assert.Equal(t, 8192, u.LdsTotal)
	assert.Equal(t, 4, u.WavesPerBlock)
	assert.Equal(t, 20, u.Waves)
}

func TestPure(t *testing.T) {
	tgt := plan.DefaultTarget()
	c := cand(8, 8, 128, 128, 16, 2)
	u1, err1 := Eval(c, 4, tgt)
	u2, err2 := Eval(c, 4, tgt)
	assert.Equal(t, u1, u2)
	assert.Equal(t, err1, err2)
}

func TestSingleBuffer(t *testing.T) {
	u, err := Eval(cand(4, 4, 64, 32, 8, 1), 4, plan.DefaultTarget())
	require.NoError(t, err)
	assert.Equal(t, 2048+1024, u.LdsSingle)
	assert.Equal(t, u.LdsSingle, u.LdsTotal)
}

func TestRejections(t *testing.T) {
	tgt := plan.DefaultTarget()
	for _, tc := range []struct {
		name string
		c    *plan.Candidate
		want plan.Reason
	}{
		{"fetch a below block", cand(4, 4, 64, 64, 2, 2), plan.UnevenFetchA},
		{"fetch b remainder", cand(4, 6, 64, 48, 4, 2), plan.UnevenFetchB},
		{"lds", cand(8, 8, 256, 256, 32, 2), plan.ScratchOverflow},
		{"vgpr", cand(16, 16, 256, 256, 16, 1), plan.RegisterOverflow},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Eval(tc.c, 4, tgt)
			assert.Equal(t, tc.want, reason(t, err))
		})
	}
}

func TestLowOccupancy(t *testing.T) {
	tgt := plan.DefaultTarget()
	tgt.MinWaves = 32
	_, err := Eval(cand(8, 8, 128, 128, 8, 2), 4, tgt)
	assert.Equal(t, plan.LowOccupancy, reason(t, err))
}
