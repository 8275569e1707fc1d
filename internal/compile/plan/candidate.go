package plan

import "fmt"

// Usage is the resource model's verdict for one geometry. Fields past
// the point of rejection are left zero.
type Usage struct {
	VgprC         int
	VgprA         int
	VgprB         int
	FetchA        int
	FetchB        int
	VgprOther     int
	Vgprs         int
	LdsA          int
	LdsB          int
	LdsSingle     int
	LdsTotal      int
	WavesPerBlock int
	BlocksByVgpr  int
	BlocksByLds   int
	Blocks        int
	Waves         int
}

// Candidate is one point of the tuning cross product.
type Candidate struct {
	ThreadM   int
	ThreadN   int
	BlockM    int
	BlockN    int
	UnrollK   int
	Buffers   int
	BlockSize int
	Usage     Usage
	Reason    Reason
	Detail    string
}

func (c *Candidate) Valid() bool { return c.Reason == Accepted }

func (c *Candidate) Err() error {
	if c.Valid() {
		return nil
	}
	return &Rejection{Reason: c.Reason, Detail: c.Detail}
}

func (c *Candidate) String() string {
	return fmt.Sprintf("%dx%dx%d_%dx%d_lb%d",
		c.BlockM, c.BlockN, c.UnrollK, c.ThreadM, c.ThreadN, c.Buffers)
}

// Axis is one moved tensor axis split into cooperating threads
// (Cluster) and elements per thread (Sub).
type Axis struct {
	Cluster int
	Sub     int
}

func (a Axis) Len() int { return a.Cluster * a.Sub }

const (
	InE = iota
	InN1
	InB
	InN2
	InAxes
)

const (
	WeiE = iota
	WeiK
	WeiAxes
)

// InOrder and WeiOrder list axes fastest first when a flat thread id
// is peeled into cluster indices.
var (
	InOrder  = [InAxes]int{InB, InN2, InN1, InE}
	WeiOrder = [WeiAxes]int{WeiE, WeiK}
)

var (
	InAxisNames  = [InAxes]string{"e", "n1", "b", "n2"}
	WeiAxisNames = [WeiAxes]string{"e", "k"}
)

// Gemm is the two-level thread cluster along one GEMM dimension.
type Gemm struct {
	Repeat int
	Sub    int
	Level0 int
	Level1 int
}

// Clusters is the thread count along the dimension.
func (g Gemm) Clusters() int { return g.Level0 * g.Level1 }

// Extent is Repeat*Sub*Level0*Level1, the block extent.
func (g Gemm) Extent() int { return g.Repeat * g.Sub * g.Clusters() }

// Tiling is a valid candidate with its copy decomposition attached.
type Tiling struct {
	*Candidate
	M           Gemm
	N           Gemm
	KPerBlock   int
	BPerBlock   int
	EPerBlock   int
	In          [InAxes]Axis
	Wei         [WeiAxes]Axis
	WeiReadVec  int
	WeiWriteVec int
	InWriteVec  int
}

// Threads is the launch block size, the product of the four cluster
// levels.
func (t *Tiling) Threads() int { return t.M.Clusters() * t.N.Clusters() }

func (t *Tiling) String() string {
	return fmt.Sprintf("%s_m%dx%dx%d_n%dx%dx%d_in%dx%dx%dx%d_wei%dx%d",
		t.Candidate,
		t.M.Sub, t.M.Level0, t.M.Level1,
		t.N.Sub, t.N.Level0, t.N.Level1,
		t.In[InE].Cluster, t.In[InN1].Cluster, t.In[InB].Cluster, t.In[InN2].Cluster,
		t.Wei[WeiE].Cluster, t.Wei[WeiK].Cluster)
}

// Kernel is everything needed to author one kernel.
type Kernel struct {
	Name    string
	Problem *Problem
	Target  *Target
	Tiling  *Tiling
}

type Arg struct {
	Name    string
	Offset  int
	Size    int
	Pointer bool
}

// Descriptor is what a loader needs besides the instruction text.
type Descriptor struct {
	Name       string
	Args       []Arg
	ArgBytes   int
	BlockSize  int
	LdsBytes   int
	Vgprs      int
	Sgprs      int
	Grid       int
	Applicable bool
	Why        string
}
