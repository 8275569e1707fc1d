package compile

import (
	"fmt"
	"strings"

	"igemm/internal/compile/plan"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func heading(to []byte, text string) []byte {
	text = cases.Title(language.English).String(text)
	to = append(to, text...)
	to = append(to, '\n')
	to = append(to, strings.Repeat("=", len(text))...)
	return append(to, '\n')
}

func row(to []byte, label string, n int) []byte {
	return fmt.Appendf(to, "    %-30s %d\n", label, n)
}

func (sw *Sweep) head() string {
	return "sweep " + sw.Problem.Name + " by " + sw.Tuning.Name
}

// Report renders the counts of every sweep and the resource usage of
// every kernel.
func (r *Result) Report() []byte {
	var to []byte
	to = heading(to, "target "+r.Target.Name)
	to = fmt.Appendf(to, "    %d vgprs, %d sgprs, %d lds bytes, wave %d, %d waves per cu\n\n",
		r.Target.Vgprs, r.Target.Sgprs, r.Target.LdsBytes, r.Target.WaveSize, r.Target.MaxWavesPerCU)
	for _, sw := range r.Sweeps {
		to = heading(to, sw.head())
		to = fmt.Appendf(to, "    problem %s, output %dx%d\n", sw.Problem, sw.Problem.OutH(), sw.Problem.OutW())
		to = row(to, "gemm candidates", len(sw.Candidates))
		to = row(to, "valid", sw.Valid)
		for _, reason := range plan.Reasons() {
			if n := sw.Rejected[reason]; n != 0 {
				to = row(to, "rejected "+reason.String(), n)
			}
		}
		to = row(to, "decomposition failures", sw.Undecomposed)
		to = row(to, "unsupported shapes", sw.Shapes)
		to = row(to, "populated tilings", sw.Tilings)
		to = row(to, "duplicate names", sw.Duplicates)
		to = row(to, "kernels", sw.Kernels)
		to = append(to, '\n')
	}
	if len(r.Kernels) == 0 {
		return to
	}
	to = heading(to, "kernels")
	for _, k := range r.Kernels {
		d := k.Desc
		to = fmt.Appendf(to, "%s\n", d.Name)
		to = fmt.Appendf(to, "    block %d, lds %d, vgprs %d, sgprs %d, kernarg %d\n",
			d.BlockSize, d.LdsBytes, d.Vgprs, d.Sgprs, d.ArgBytes)
		for _, u := range k.Uses {
			if u.Why != "" {
				to = fmt.Appendf(to, "    %s: not applicable, %s\n", u.Problem.Name, u.Why)
				continue
			}
			to = fmt.Appendf(to, "    %s: grid %d\n", u.Problem.Name, u.Grid)
		}
	}
	return to
}

// Listing renders every graded candidate with its verdict and usage.
func (r *Result) Listing() []byte {
	var to []byte
	for _, sw := range r.Sweeps {
		to = heading(to, sw.head())
		for _, c := range sw.Candidates {
			if !c.Valid() {
				to = fmt.Appendf(to, "    %-24s %s\n", c, c.Err())
				continue
			}
			u := &c.Usage
			to = fmt.Appendf(to, "    %-24s block %d, vgprs %d, lds %d, waves %d\n",
				c, c.BlockSize, u.Vgprs, u.LdsTotal, u.Waves)
		}
		to = append(to, '\n')
	}
	return to
}
