package gpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlloc(t *testing.T) {
	s := New(Scalar)
	assert.Equal(t, "s_ka", s.Alloc("ka", 2, 1))
	s.Alloc("bx", 1, 1)
	s.Alloc("p_out", 2, 4)
	s.Alias("p_buf_out", "p_out")
	assert.Equal(t, Range{Sym: "s_p_out", Base: 4, N: 2}, s.Lookup("s_p_out"))
	assert.Equal(t, Range{Sym: "s_p_buf_out", Base: 4, N: 2}, s.Lookup("s_p_buf_out"))
	assert.Equal(t, 6, s.Count())
	assert.True(t, s.Has("bx"))
	assert.False(t, s.Has("tmp"))
	assert.Panics(t, func() { s.Alloc("bx", 1, 1) })

	text := string(s.Sets().Append(nil))
	assert.Equal(t, ".set s_ka, 0\n.set s_bx, 2\n.set s_p_out, 4\n.set s_p_buf_out, 4\n.set s_end, 6\n", text)
}

func TestLend(t *testing.T) {
	v := New(Vector)
	v.Alloc("c", 32, 1)
	v.Alloc("a", 8, 1)
	require.Nil(t, v.Lend("c", 33))
	c := v.Lend("c", 20)
	require.NotNil(t, c)
	Place(v, c, "in0", 1, 1)
	Place(v, c, "tmp", 6, 2)
	assert.Equal(t, 31, v.Lookup("v_in0").Base)
	assert.Equal(t, 24, v.Lookup("v_tmp").Base)
	assert.Equal(t, 40, v.Count())

	Place(v, nil, "fresh", 1, 1)
	assert.Equal(t, 40, v.Lookup("v_fresh").Base)
	assert.Equal(t, 41, v.Count())
	assert.Panics(t, func() { v.S("c") })
	assert.Equal(t, "v[v_a+0]", string(v.V("a").Append(nil)))
}
