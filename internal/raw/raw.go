package raw

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

type Node interface {
	LineNumber() int
}

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

type Target struct {
	LineNum       int
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

func (t *Target) LineNumber() int { return t.LineNum }

type Conv struct {
	LineNum   int
	Name      string
	Batch     int
	Groups    int
	Channels  int
	Height    int
	Width     int
	Filters   int
	FilterH   int
	FilterW   int
	PaddingH  int
	PaddingW  int
	StrideH   int
	StrideW   int
	DilationH int
	DilationW int
	Direction Direction
	Precision Precision
	OutHeight int
	OutWidth  int
}

func (c *Conv) LineNumber() int { return c.LineNum }

type Tuning struct {
	LineNum    int
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

func (t *Tuning) LineNumber() int { return t.LineNum }

// Seg is one Label=value segment. An Optional segment may be left off
// the end of its line, in which case Default is parsed in its place.
type Seg struct {
	Doc      string
	Label    string
	Default  string
	Choices  []string
	Optional bool
	Parse    func(string) (interface{}, error)
}

type Tail struct {
	Doc   string
	Segs  []*Seg
	Parse func(int, []interface{}) Node
}

var Guide = make(map[string]*Tail)

const Binder = "="

const (
	pre = "parse failed: "
	wln = pre + "line %d: "
	eg  = wln + "expected %s" + Binder + "%s (for example)"
)

// fill completes vals from the defaults of the remaining segments, which
// must all be optional.
func fill(tail *Tail, vals []interface{}, line int) ([]interface{}, error) {
	for _, seg := range tail.Segs[len(vals):] {
		if !seg.Optional {
			return nil, errors.Errorf(eg, line, seg.Label, seg.Default)
		}
		val, err := seg.Parse(seg.Default)
		if err != nil {
			panic("bug: default " + seg.Label + Binder + seg.Default)
		}
		vals = append(vals, val)
	}
	return vals, nil
}

func Parse(text string) ([]Node, error) {
	if n := len(text); n == 0 {
		return nil, nil
	} else if text[n-1] != '\n' {
		return nil, errors.New(pre + "expected final newline")
	}
	var nodes []Node
	const (
		headSpace int = iota
		headToken
		tailSpace
		tailToken
	)
	phase := headSpace
	i, lineHead, line := 0, 0, 1
	var tail *Tail
	var vals []interface{}
	finish := func() {
		nodes = append(nodes, tail.Parse(lineHead, vals))
		phase, vals = headSpace, nil
	}
	for j, jj := range text {
		if !unicode.IsSpace(jj) {
			if phase == headSpace {
				phase, i, lineHead = headToken, j, line
			} else if phase == tailSpace {
				phase, i = tailToken, j
			}
			continue
		}
		if phase == headToken {
			phase = tailSpace
			if tail = Guide[text[i:j]]; tail == nil {
				heads := make([]string, 0, len(Guide))
				for head := range Guide {
					heads = append(heads, head)
				}
				sort.Strings(heads)
				return nil, errors.Errorf(wln+"%s", line, errExpected(heads).Error())
			}
		} else if phase == tailToken {
			if len(vals) == len(tail.Segs) {
				return nil, errors.Errorf(wln+"unexpected %q after %s", line, text[i:j], tail.Segs[len(vals)-1].Label)
			}
			seg := tail.Segs[len(vals)]
			parts := strings.Split(text[i:j], Binder)
			if len(parts) != 2 || parts[0] != seg.Label {
				return nil, errors.Errorf(eg, line, seg.Label, seg.Default)
			}
			val, err := seg.Parse(parts[1])
			if err != nil {
				return nil, errors.Errorf(wln+"%s: %s", line, seg.Label, err.Error())
			}
			vals = append(vals, val)
			phase = tailSpace
		}
		if jj == '\n' {
			if phase == tailSpace {
				var err error
				if vals, err = fill(tail, vals, line); err != nil {
					return nil, err
				}
				finish()
			}
			line += 1
		}
	}
	return nodes, nil
}

const (
	identStr   = `^[a-zA-Z][a-zA-Z0-9]*$`
	nonNegStr  = `^(0|[1-9][0-9]*)$`
	posIntStr  = `^[1-9][0-9]*$`
	posListStr = `^[1-9][0-9]*(,[1-9][0-9]*)*$`
	memSizeStr = `^([1-9][0-9]*)([km](i?b)?)?$`
)

var (
	identRE   = regexp.MustCompile(identStr)
	nonNegRE  = regexp.MustCompile(nonNegStr)
	posIntRE  = regexp.MustCompile(posIntStr)
	posListRE = regexp.MustCompile(posListStr)
	memSizeRE = regexp.MustCompile(memSizeStr)
)

const (
	identDoc   = "Must be a letter followed by zero or more letters/digits: " + identStr
	nonNegDoc  = "Must be a non-negative integer: " + nonNegStr
	posIntDoc  = "Must be a positive integer: " + posIntStr
	posListDoc = "A comma separated list of positive integers, tried in the order given: " + posListStr
	memSizeDoc = "A positive integer with an optional suffix like k, K, KB, KiB, m, M, MB, MiB. " +
		"The K suffixes multiply by 1024. The M suffixes multiply by the square of 1024. " +
		"After conversion to lowercase: " + memSizeStr
)

var (
	errGap      = errors.New("unexpected gap after " + Binder)
	errRejected = errors.New("rejected")
)

func errMatch(a, b string) error {
	return errors.New(a + "does not match " + b)
}

func errExpected(a []string) error {
	return errors.New("expected " + strings.Join(a, " or "))
}

func ident(a string) (interface{}, error) {
	if !identRE.MatchString(a) {
		if a == "" {
			return nil, errGap
		}
		return nil, errMatch("", identStr)
	}
	return a, nil
}

func nonNeg(a string, r int) (interface{}, error) {
	if !nonNegRE.MatchString(a) {
		if a == "" {
			return nil, errGap
		}
		return nil, errMatch("", nonNegStr)
	}
	n, err := strconv.Atoi(a)
	if err != nil {
		return nil, err
	}
	if n >= r {
		return nil, errRejected
	}
	return n, nil
}

func posInt(a string, r int) (interface{}, error) {
	if !posIntRE.MatchString(a) {
		if a == "" {
			return nil, errGap
		}
		return nil, errMatch("", posIntStr)
	}
	n, err := strconv.Atoi(a)
	if err != nil {
		return nil, err
	}
	if n >= r {
		return nil, errRejected
	}
	return n, nil
}

func posList(a string, r int) (interface{}, error) {
	if !posListRE.MatchString(a) {
		if a == "" {
			return nil, errGap
		}
		return nil, errMatch("", posListStr)
	}
	var ns []int
	for _, s := range strings.Split(a, ",") {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		if n >= r {
			return nil, errRejected
		}
		ns = append(ns, n)
	}
	return ns, nil
}

func memSize(a string, r int) (interface{}, error) {
	aa := memSizeRE.FindStringSubmatch(strings.ToLower(a))
	if aa == nil {
		if a == "" {
			return nil, errGap
		}
		return nil, errMatch("as lowercase, ", memSizeStr)
	}
	n, err := strconv.Atoi(aa[1])
	if err != nil {
		return nil, err
	}
	if n >= r {
		return nil, errRejected
	}
	if aa[2] != "" {
		n <<= 10
		if aa[2][0] == 'm' {
			n <<= 10
		}
		if n >= r {
			return nil, errRejected
		}
	}
	return n, nil
}

func choice(a string, choices []string) (interface{}, error) {
	for i, s := range choices {
		if a == s {
			return i, nil
		}
	}
	if a == "" {
		return nil, errGap
	}
	return nil, errExpected(choices)
}

func name(x, d string) *Seg {
	return &Seg{
		Doc:     "A name for this " + x + ", used in kernel names and reports. " + identDoc,
		Label:   "Name",
		Default: d,
		Parse:   ident,
	}
}

func count(label, doc, d string, r int) *Seg {
	return &Seg{
		Doc:     doc + " " + posIntDoc,
		Label:   label,
		Default: d,
		Parse: func(a string) (interface{}, error) {
			return posInt(a, r)
		},
	}
}

func list(label, doc, d string) *Seg {
	return &Seg{
		Doc:     doc + " " + posListDoc,
		Label:   label,
		Default: d,
		Parse: func(a string) (interface{}, error) {
			return posList(a, 1<<16)
		},
	}
}

func initTarget() {
	Guide["Target"] = &Tail{
		Doc: "The accelerator every kernel must fit on. At most one Target may appear. " +
			"Without one, the defaults below describe a 64-lane GCN part.",
		Segs: []*Seg{
			name("target", "gfx906"),
			count("Vgprs", "Vector registers available to one thread.", "256", 1<<12),
			count("Sgprs", "Scalar registers available to one wave, "+
				"including the six reserved for VCC, FLAT and XNACK.", "102", 1<<12),
			{
				Doc:     "Scratchpad (LDS) bytes available to one block. " + memSizeDoc,
				Label:   "LdsBytes",
				Default: "64KiB",
				Parse: func(a string) (interface{}, error) {
					return memSize(a, 1<<24)
				},
			},
			count("WaveSize", "Threads per wave.", "64", 1<<10),
			count("SimdsPerCU", "SIMD units per compute unit.", "4", 1<<8),
			count("MaxWavesPerCU", "Waves a compute unit can hold at once.", "40", 1<<12),
			count("VgprGranule", "Vector register allocation granularity.", "4", 1<<8),
			count("MinWaves", "Fewest resident waves per compute unit a candidate may leave.", "4", 1<<12),
			{
				Doc: "Vector registers every kernel spends beyond its tiles, " +
					"added by the resource model before it rounds to the granule. " +
					"This is a calibration constant and may be left off. " + nonNegDoc,
				Label:    "OverheadVgprs",
				Default:  "19",
				Optional: true,
				Parse: func(a string) (interface{}, error) {
					return nonNeg(a, 1<<12)
				},
			},
		},
		Parse: func(l int, a []interface{}) Node {
			return &Target{
				LineNum:       l,
				Name:          a[0].(string),
				Vgprs:         a[1].(int),
				Sgprs:         a[2].(int),
				LdsBytes:      a[3].(int),
				WaveSize:      a[4].(int),
				SimdsPerCU:    a[5].(int),
				MaxWavesPerCU: a[6].(int),
				VgprGranule:   a[7].(int),
				MinWaves:      a[8].(int),
				OverheadVgprs: a[9].(int),
			}
		},
	}
}

func initConvPadding(x, y, z string) *Seg {
	return &Seg{
		Doc: "Implicit " + x + " padding of the input. This is the number of all-zero " + y +
			" to implicitly add on each side of every feature map. " + nonNegDoc,
		Label:   "Padding" + z,
		Default: "0",
		Parse: func(a string) (interface{}, error) {
			return nonNeg(a, 1<<16)
		},
	}
}

func initConvOut(x, z string) *Seg {
	return &Seg{
		Doc: "The output " + x + ". Zero derives it from the input, padding, filter, " +
			"stride and dilation. A positive value overrides the derived " + x + ". " +
			"This segment may be left off. " + nonNegDoc,
		Label:    "Out" + z,
		Default:  "0",
		Optional: true,
		Parse: func(a string) (interface{}, error) {
			return nonNeg(a, 1<<16)
		},
	}
}

func initConv() {
	Guide["Conv"] = &Tail{
		Doc: "A convolution problem to generate kernels for. The input is NCHW with C channels, " +
			"height H and width W. There are K filters (Filters) of C/Groups channels, height FilterH " +
			"and width FilterW, in KCYX order. The output height is " +
			"(H+2*PaddingH-DilationH*(FilterH-1)-1)/StrideH+1 in which the division truncates " +
			"toward zero. The output width is calculated analogously. Every Tuning line is applied " +
			"to every Conv line.",
		Segs: []*Seg{
			name("problem", "conv"),
			count("Batch", "Images per batch (N).", "32", 1<<24),
			count("Groups", "Filter groups. Only 1 yields applicable kernels.", "1", 1<<16),
			count("Channels", "Input channels (C).", "64", 1<<20),
			count("Height", "Input height (H).", "28", 1<<16),
			count("Width", "Input width (W).", "28", 1<<16),
			count("Filters", "Output channels (K).", "64", 1<<20),
			count("FilterH", "Filter height (Y).", "1", 1<<8),
			count("FilterW", "Filter width (X).", "1", 1<<8),
			initConvPadding("heightwise", "rows", "H"),
			initConvPadding("widthwise", "columns", "W"),
			count("StrideH", "Heightwise stride.", "1", 1<<8),
			count("StrideW", "Widthwise stride.", "1", 1<<8),
			count("DilationH", "Heightwise dilation.", "1", 1<<8),
			count("DilationW", "Widthwise dilation.", "1", 1<<8),
			{
				Doc:     "The pass to generate. Only " + DirectionStrings[Forward] + " is authored.",
				Label:   "Direction",
				Default: DirectionStrings[Forward],
				Choices: DirectionStrings,
				Parse: func(a string) (interface{}, error) {
					return choice(a, DirectionStrings)
				},
			},
			{
				Doc:     "The element type. Only " + PrecisionStrings[FP32] + " is authored.",
				Label:   "Precision",
				Default: PrecisionStrings[FP32],
				Choices: PrecisionStrings,
				Parse: func(a string) (interface{}, error) {
					return choice(a, PrecisionStrings)
				},
			},
			initConvOut("height", "Height"),
			initConvOut("width", "Width"),
		},
		Parse: func(l int, a []interface{}) Node {
			return &Conv{
				LineNum:   l,
				Name:      a[0].(string),
				Batch:     a[1].(int),
				Groups:    a[2].(int),
				Channels:  a[3].(int),
				Height:    a[4].(int),
				Width:     a[5].(int),
				Filters:   a[6].(int),
				FilterH:   a[7].(int),
				FilterW:   a[8].(int),
				PaddingH:  a[9].(int),
				PaddingW:  a[10].(int),
				StrideH:   a[11].(int),
				StrideW:   a[12].(int),
				DilationH: a[13].(int),
				DilationW: a[14].(int),
				Direction: Direction(a[15].(int)),
				Precision: Precision(a[16].(int)),
				OutHeight: a[17].(int),
				OutWidth:  a[18].(int),
			}
		},
	}
}

var vectorChoices = []string{"0", "1", "2", "4"}

func initTuningVector(x, y string) *Seg {
	return &Seg{
		Doc: "Pins the " + x + " vector width of every tiling to this many lanes. " +
			"Zero lets the decomposer try every width.",
		Label:   "Vector" + y,
		Default: "0",
		Choices: vectorChoices,
		Parse: func(a string) (interface{}, error) {
			i, err := choice(a, vectorChoices)
			if err != nil {
				return nil, err
			}
			return strconv.Atoi(vectorChoices[i.(int)])
		},
	}
}

func initTuning() {
	Guide["Tuning"] = &Tail{
		Doc: "A cross product of tiling choices. Every combination of the lists is graded " +
			"against the Target, micro tile m outermost and buffer count innermost, and every " +
			"valid combination is decomposed into copy tilings and authored.",
		Segs: []*Seg{
			name("tuning", "sweep"),
			list("MicroTileM", "Thread tile rows (filters per thread). Must be even.", "4,8"),
			list("MicroTileN", "Thread tile columns (output pixels per thread). Must be even.", "4,8"),
			list("MacroTileM", "Block tile rows (filters per block).", "64,128"),
			list("MacroTileN", "Block tile columns (output pixels per block).", "64,128"),
			list("UnrollK", "Reduction elements per loop iteration.", "8,16"),
			list("Buffers", "Scratchpad buffers. Only 2 can be scheduled.", "2"),
			list("BlockSizes", "Threads per block a candidate may use.", "64,128,256"),
			initTuningVector("filter read", "A"),
			initTuningVector("input store", "B"),
		},
		Parse: func(l int, a []interface{}) Node {
			return &Tuning{
				LineNum:    l,
				Name:       a[0].(string),
				MicroTileM: a[1].([]int),
				MicroTileN: a[2].([]int),
				MacroTileM: a[3].([]int),
				MacroTileN: a[4].([]int),
				UnrollK:    a[5].([]int),
				Buffers:    a[6].([]int),
				BlockSizes: a[7].([]int),
				VectorA:    a[8].(int),
				VectorB:    a[9].(int),
			}
		},
	}
}

// Line renders a node's head and default segments as one line of the
// tuning language.
func Line(head string) string {
	tail := Guide[head]
	if tail == nil {
		panic("bug: no head " + head)
	}
	var sb strings.Builder
	sb.WriteString(head)
	for _, seg := range tail.Segs {
		if seg.Optional {
			continue
		}
		fmt.Fprintf(&sb, " %s%s%s", seg.Label, Binder, seg.Default)
	}
	sb.WriteByte('\n')
	return sb.String()
}

func init() {
	initTarget()
	initConv()
	initTuning()
}
