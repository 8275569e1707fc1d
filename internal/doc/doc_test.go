package doc

import (
	"strings"
	"testing"

	"igemm/internal/raw"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	text := string(Bytes())
	assert.True(t, strings.HasPrefix(text, "The Tuning Language\n"))
	for head, tail := range raw.Guide {
		assert.Contains(t, text, strings.TrimSuffix(raw.Line(head), "\n"))
		assert.Contains(t, text, head+" Lines\n")
		for _, seg := range tail.Segs {
			assert.Contains(t, text, indent+seg.Label+raw.Binder+" ")
		}
	}
	flat := strings.Join(strings.Fields(text), " ")
	assert.Contains(t, flat, "One of: Forward, BackwardData, BackwardWeight.")
	assert.Contains(t, flat, "Optional, default 19.")
	for _, ln := range strings.Split(text, "\n") {
		if strings.Contains(ln, "=") && !strings.HasPrefix(ln, indent) {
			continue
		}
		assert.LessOrEqual(t, len(ln), width, ln)
	}
}
