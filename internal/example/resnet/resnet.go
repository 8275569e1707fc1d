package resnet

import (
	"strconv"

	"igemm/internal/nmsrc"
	"igemm/internal/raw"
)

type state struct {
	text  []byte
	nms   nmsrc.Src
	batch int
	seen  map[string]bool
}

func (st *state) line(a string) {
	st.text = append(st.text, a...)
	st.text = append(st.text, '\n')
}

// conv emits one Conv line per distinct shape.
func (st *state) conv(kind string, c, h, k, f, s int) {
	pad := strconv.Itoa(f / 2)
	shape := "Batch=" + strconv.Itoa(st.batch) + " Groups=1" +
		" Channels=" + strconv.Itoa(c) +
		" Height=" + strconv.Itoa(h) + " Width=" + strconv.Itoa(h) +
		" Filters=" + strconv.Itoa(k) +
		" FilterH=" + strconv.Itoa(f) + " FilterW=" + strconv.Itoa(f) +
		" PaddingH=" + pad + " PaddingW=" + pad +
		" StrideH=" + strconv.Itoa(s) + " StrideW=" + strconv.Itoa(s) +
		" DilationH=1 DilationW=1 Direction=Forward Precision=FP32"
	if st.seen[shape] {
		return
	}
	st.seen[shape] = true
	st.line("Conv Name=" + st.nms.Name(kind) + " " + shape)
}

// block is one bottleneck. The first 1x1 carries the stride, as does
// the projection of the first block in a stage.
func (st *state) block(c, mid, out, h, s int, project bool) {
	kind := "one"
	if s != 1 {
		kind = "oneDS"
	}
	st.conv(kind, c, h, mid, 1, s)
	h /= s
	st.conv("three", mid, h, mid, 3, 1)
	st.conv("one", mid, h, out, 1, 1)
	if project {
		st.conv("proj", c, h*s, out, 1, s)
	}
}

func (st *state) stage(c, mid, h, s, blocks int) (int, int) {
	out := mid * 4
	st.block(c, mid, out, h, s, true)
	h /= s
	for i := 1; i < blocks; i++ {
		st.block(out, mid, out, h, 1, false)
	}
	return out, h
}

func (st *state) net(blocks [4]int) {
	st.text = append(st.text, raw.Line("Target")...)
	st.conv("seven", 3, 224, 64, 7, 2)
	c, h := 64, 56
	c, h = st.stage(c, 64, h, 1, blocks[0])
	c, h = st.stage(c, 128, h, 2, blocks[1])
	c, h = st.stage(c, 256, h, 2, blocks[2])
	st.stage(c, 512, h, 2, blocks[3])
	st.line("Tuning Name=sweep MicroTileM=4,8 MicroTileN=4,8 MacroTileM=64,128 MacroTileN=64,128 " +
		"UnrollK=8,16 Buffers=2 BlockSizes=64,128,256 VectorA=0 VectorB=0")
}

func gen(blocks [4]int, batch int) []byte {
	st := &state{
		nms:   nmsrc.New(),
		batch: batch,
		seen:  make(map[string]bool),
	}
	st.net(blocks)
	return st.text
}

// ResNet50 sweeps the distinct convolutions of ResNet-50 at batch 32.
// Deeper ResNets add blocks but no new shapes.
func ResNet50() []byte {
	return gen([4]int{3, 4, 6, 3}, 32)
}

// ResNet50Batch1 is ResNet50 for single-image inference.
func ResNet50Batch1() []byte {
	return gen([4]int{3, 4, 6, 3}, 1)
}
