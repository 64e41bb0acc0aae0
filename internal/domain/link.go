package domain

import "time"

// Anchor/context length caps enforced at persistence.
const (
	MaxAnchorLen  = 255
	MaxContextLen = 500
)

// LinkEdge is one internal link parsed from rendered HTML. A source may link
// to the same target more than once with different anchors; uniqueness is
// (source, target, anchor).
type LinkEdge struct {
	SourceID   int64
	TargetID   int64
	AnchorText string
	Context    string
	DetectedAt time.Time
}

// Truncated returns a copy with anchor and context capped at the storage limits.
func (e LinkEdge) Truncated() LinkEdge {
	e.AnchorText = truncateRunes(e.AnchorText, MaxAnchorLen)
	e.Context = truncateRunes(e.Context, MaxContextLen)
	return e
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
