package plan

import "fmt"

type Reason int

const (
	Accepted Reason = iota
	NotDivisible
	BlockSizeDisallowed
	UnevenFetchA
	UnevenFetchB
	ScratchOverflow
	RegisterOverflow
	LowOccupancy
	TilingDecompositionFailed
	SubTileUnreadable
	reasonCount
)

var ReasonStrings = [reasonCount]string{
	Accepted:                  "accepted",
	NotDivisible:              "block-not-divisible",
	BlockSizeDisallowed:       "block-size-disallowed",
	UnevenFetchA:              "uneven-fetch-a",
	UnevenFetchB:              "uneven-fetch-b",
	ScratchOverflow:           "scratch-overflow",
	RegisterOverflow:          "register-overflow",
	LowOccupancy:              "insufficient-occupancy",
	TilingDecompositionFailed: "tiling-decomposition-failed",
	SubTileUnreadable:         "sub-tile-unreadable",
}

func (r Reason) String() string { return ReasonStrings[r] }

// Reasons lists every rejection reason in report order.
func Reasons() []Reason {
	rs := make([]Reason, 0, reasonCount-1)
	for r := Accepted + 1; r < reasonCount; r++ {
		rs = append(rs, r)
	}
	return rs
}

// Rejection is a non-fatal verdict against one candidate.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason.String()
	}
	return r.Reason.String() + ": " + r.Detail
}

func Reject(r Reason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// ShapeError is a configuration the scheduler cannot run at all. It is
// reported to the caller rather than absorbed.
type ShapeError struct {
	Where string
	Msg   string
}

func (s *ShapeError) Error() string {
	return "unsupported shape: " + s.Where + ": " + s.Msg
}
