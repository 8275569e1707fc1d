// Package karg lays out the kernel argument block.
package karg

import "igemm/internal/compile/plan"

var scalars = []string{
	"hi", "wi", "n", "k", "c", "ho", "wo",
	"stride_h", "stride_w", "dilation_h", "dilation_w", "pad_h", "pad_w",
}

var filter = []string{"y", "x"}

// Layout returns the arguments and the padded block size. Unit
// kernels omit the filter extents.
func Layout(unit bool) (args []plan.Arg, size int) {
	off := 0
	for _, name := range []string{"p_in", "p_wei", "p_out"} {
		args = append(args, plan.Arg{Name: name, Offset: off, Size: 8, Pointer: true})
		off += 8
	}
	names := scalars
	if !unit {
		names = append(names[:len(names):len(names)], filter...)
	}
	for _, name := range names {
		args = append(args, plan.Arg{Name: name, Offset: off, Size: 4})
		off += 4
	}
	size = (off + 7) &^ 7
	return
}

// Find returns the named argument.
func Find(args []plan.Arg, name string) plan.Arg {
	for _, a := range args {
		if a.Name == name {
			return a
		}
	}
	panic("bug: no argument " + name)
}

// Values fills the argument block for p in layout order, pointers
// excluded.
func Values(p *plan.Problem) map[string]int {
	return map[string]int{
		"hi":         p.Height, "wi": p.Width, "n": p.Batch, "k": p.Filters, "c": p.Channels,
		"ho":         p.OutH(), "wo": p.OutW(),
		"stride_h":   p.StrideH, "stride_w": p.StrideW,
		"dilation_h": p.DilationH, "dilation_w": p.DilationW,
		"pad_h":      p.PadH, "pad_w": p.PadW,
		"y":          p.FilterH, "x": p.FilterW,
	}
}
