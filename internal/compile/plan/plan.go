package plan

import (
	"fmt"

	"github.com/pkg/errors"
)

type Direction int

const (
	Forward Direction = iota
	BackwardData
	BackwardWeight
)

var DirectionStrings = []string{
	Forward:        "Forward",
	BackwardData:   "BackwardData",
	BackwardWeight: "BackwardWeight",
}

func (d Direction) String() string { return DirectionStrings[d] }

type Precision int

const (
	FP32 Precision = iota
	FP16
	BF16
)

var PrecisionStrings = []string{
	FP32: "FP32",
	FP16: "FP16",
	BF16: "BF16",
}

func (p Precision) String() string { return PrecisionStrings[p] }

// Bytes is the element size.
func (p Precision) Bytes() int {
	switch p {
	case FP32:
		return 4
	case FP16, BF16:
		return 2
	default:
		panic("bug")
	}
}

// Problem is one convolution. The output extents are derived by
// NewProblem and never change afterwards. A positive OutHeight or
// OutWidth overrides the derived extent.
type Problem struct {
	Name      string
	Batch     int
	Groups    int
	Channels  int
	Height    int
	Width     int
	Filters   int
	FilterH   int
	FilterW   int
	PadH      int
	PadW      int
	StrideH   int
	StrideW   int
	DilationH int
	DilationW int
	Direction Direction
	Precision Precision
	OutHeight int
	OutWidth  int
	outH      int
	outW      int
}

func outSize(in, pad, dil, filter, stride int) int {
	span := in + 2*pad - dil*(filter-1) - 1
	if span < 0 {
		return 0
	}
	return span/stride + 1
}

func NewProblem(p Problem) (*Problem, error) {
	if p.Batch < 1 || p.Groups < 1 || p.Channels < 1 || p.Filters < 1 {
		return nil, errors.Errorf("%s: batch, groups, channels and filters must be positive", p.Name)
	}
	if p.StrideH < 1 || p.StrideW < 1 || p.DilationH < 1 || p.DilationW < 1 {
		return nil, errors.Errorf("%s: strides and dilations must be positive", p.Name)
	}
	if p.Channels%p.Groups != 0 || p.Filters%p.Groups != 0 {
		return nil, errors.Errorf("%s: groups must divide channels and filters", p.Name)
	}
	p.outH = outSize(p.Height, p.PadH, p.DilationH, p.FilterH, p.StrideH)
	p.outW = outSize(p.Width, p.PadW, p.DilationW, p.FilterW, p.StrideW)
	if p.OutHeight > 0 {
		p.outH = p.OutHeight
	}
	if p.OutWidth > 0 {
		p.outW = p.OutWidth
	}
	if p.outH < 1 || p.outW < 1 {
		return nil, errors.Errorf("%s: filter does not fit the padded input", p.Name)
	}
	return &p, nil
}

func (p *Problem) OutH() int { return p.outH }
func (p *Problem) OutW() int { return p.outW }

// Unit reports a 1x1 filter.
func (p *Problem) Unit() bool { return p.FilterH == 1 && p.FilterW == 1 }

// Reduction is the GEMM contraction length C*Y*X.
func (p *Problem) Reduction() int { return p.Channels * p.FilterH * p.FilterW }

func (p *Problem) String() string {
	return fmt.Sprintf("n%dc%dh%dw%d_k%dy%dx%d_p%dx%d_s%dx%d_d%dx%d_g%d",
		p.Batch, p.Channels, p.Height, p.Width,
		p.Filters, p.FilterH, p.FilterW,
		p.PadH, p.PadW, p.StrideH, p.StrideW,
		p.DilationH, p.DilationW, p.Groups)
}

// Target describes the accelerator a kernel must fit on.
type Target struct {
	Name          string
	Vgprs         int
	Sgprs         int
	LdsBytes      int
	WaveSize      int
	SimdsPerCU    int
	MaxWavesPerCU int
	VgprGranule   int
	MinWaves      int
	OverheadVgprs int
}

func DefaultTarget() *Target {
	return &Target{
		Name:          "gfx906",
		Vgprs:         256,
		Sgprs:         102,
		LdsBytes:      64 << 10,
		WaveSize:      64,
		SimdsPerCU:    4,
		MaxWavesPerCU: 40,
		VgprGranule:   4,
		MinWaves:      4,
		OverheadVgprs: 19,
	}
}

// Tuning lists the values each configuration axis may take. The
// enumeration visits them in list order.
type Tuning struct {
	Name       string
	MicroTileM []int
	MicroTileN []int
	MacroTileM []int
	MacroTileN []int
	UnrollK    []int
	Buffers    []int
	BlockSizes []int
	VectorA    int
	VectorB    int
}
