package vgg

import (
	"strconv"

	"igemm/internal/nmsrc"
	"igemm/internal/raw"
)

type state struct {
	text []byte
	nms  nmsrc.Src
	seen map[[3]int]bool
}

func (st *state) line(a string) {
	st.text = append(st.text, a...)
	st.text = append(st.text, '\n')
}

// three emits the padded 3x3 convolution once per shape.
func (st *state) three(c, h, k int) {
	key := [3]int{c, h, k}
	if st.seen[key] {
		return
	}
	st.seen[key] = true
	st.line("Conv Name=" + st.nms.Name("three") + " Batch=64 Groups=1" +
		" Channels=" + strconv.Itoa(c) +
		" Height=" + strconv.Itoa(h) + " Width=" + strconv.Itoa(h) +
		" Filters=" + strconv.Itoa(k) +
		" FilterH=3 FilterW=3 PaddingH=1 PaddingW=1 StrideH=1 StrideW=1" +
		" DilationH=1 DilationW=1 Direction=Forward Precision=FP32")
}

// VGG16 sweeps the distinct convolutions of VGG-16. Pooling halves the
// extent between stages.
func VGG16() []byte {
	st := &state{
		nms:  nmsrc.New(),
		seen: make(map[[3]int]bool),
	}
	st.text = append(st.text, raw.Line("Target")...)
	c, h := 3, 224
	for _, stage := range [...]struct{ k, n int }{{64, 2}, {128, 2}, {256, 3}, {512, 3}, {512, 3}} {
		for i := 0; i < stage.n; i++ {
			st.three(c, h, stage.k)
			c = stage.k
		}
		h /= 2
	}
	st.line("Tuning Name=sweep MicroTileM=4,8 MicroTileN=4,8 MacroTileM=64,128 MacroTileN=64,128 " +
		"UnrollK=8,16 Buffers=2 BlockSizes=64,128,256 VectorA=0 VectorB=0")
	return st.text
}
