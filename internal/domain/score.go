package domain

import (
	"math"
	"time"
)

// ScoreRow is one cached (source, target) similarity score. The cache is
// derived state, fully reconstructible from embeddings, the link graph and
// settings; truncating it is always safe.
type ScoreRow struct {
	SourceID        int64
	TargetID        int64
	Score           float64 // raw cosine, 0..1
	BonusScore      float64 // additive heuristic
	FinalScore      float64 // min(1, Score+BonusScore)
	SuggestedAnchor string
	LinkExists      bool // snapshot at compute time
	ComputedAt      time.Time
}

// ClampFinal computes the authoritative ranking value: cosine cannot exceed 1
// but bonuses can push the sum over, so clamp rather than renormalize.
func ClampFinal(raw, bonus float64) float64 {
	f := raw + bonus
	if f > 1.0 {
		return 1.0
	}
	return f
}

// Round6 rounds to 6 decimal places, the stored score precision.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Recommendation is a cache row enriched with live target metadata.
type Recommendation struct {
	TargetID        int64   `json:"target_id"`
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	EditURL         string  `json:"edit_url"`
	ContentType     string  `json:"content_type"`
	Score           float64 `json:"score"`
	BonusScore      float64 `json:"bonus_score"`
	FinalScore      float64 `json:"final_score"`
	SuggestedAnchor string  `json:"suggested_anchor"`
	LinkExists      bool    `json:"link_exists"`
	IsOrphan        bool    `json:"is_orphan"`
}

// Opportunity is a site-wide linking opportunity (no existing link), ranked
// by final score independent of source.
type Opportunity struct {
	SourceID        int64   `json:"source_id"`
	SourceTitle     string  `json:"source_title"`
	SourceURL       string  `json:"source_url"`
	TargetID        int64   `json:"target_id"`
	TargetTitle     string  `json:"target_title"`
	TargetURL       string  `json:"target_url"`
	FinalScore      float64 `json:"final_score"`
	SuggestedAnchor string  `json:"suggested_anchor"`
}
