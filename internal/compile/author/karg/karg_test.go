package karg

import (
	"testing"

	"igemm/internal/compile/plan"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestLayout(t *testing.T) {
	args, size := Layout(false)
	assert.Equal(t, 88, size)
	assert.Len(t, args, 18)
	assert.Equal(t, plan.Arg{Name: "p_out", Offset: 16, Size: 8, Pointer: true}, Find(args, "p_out"))
	assert.Equal(t, 24, Find(args, "hi").Offset)
	assert.Equal(t, 72, Find(args, "pad_w").Offset)
	assert.Equal(t, 76, Find(args, "y").Offset)
	assert.Equal(t, 80, Find(args, "x").Offset)

	args, size = Layout(true)
	assert.Equal(t, 80, size)
	assert.Len(t, args, 16)
	assert.False(t, lo.ContainsBy(args, func(a plan.Arg) bool { return a.Name == "y" }))
	assert.Panics(t, func() { Find(args, "x") })
}

func TestLayoutNoAlias(t *testing.T) {
	Layout(false)
	args, _ := Layout(true)
	// Building the general layout must not grow the shared name list.
	assert.Len(t, args, 16)
	assert.Len(t, scalars, 13)
}

func TestValues(t *testing.T) {
	p, err := plan.NewProblem(plan.Problem{
		Batch:   2, Groups: 1, Channels: 3, Height: 7, Width: 9, Filters: 4,
		FilterH: 3, FilterW: 1, PadH: 1, StrideH: 2, StrideW: 1, DilationH: 1, DilationW: 1,
	})
	assert.NoError(t, err)
	v := Values(p)
	args, _ := Layout(false)
	for _, a := range args {
		if !a.Pointer {
			_, ok := v[a.Name]
			assert.True(t, ok, a.Name)
		}
	}
	assert.Equal(t, 4, v["ho"])
	assert.Equal(t, 9, v["wo"])
}
