package simcache

import (
	"time"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// rowDTO is the stored form of one cached score row. Source and target ids
// are carried by the key and hash field, not the value.
type rowDTO struct {
	Score           float64 `json:"score"`
	BonusScore      float64 `json:"bonus_score"`
	FinalScore      float64 `json:"final_score"`
	SuggestedAnchor string  `json:"suggested_anchor,omitempty"`
	LinkExists      bool    `json:"link_exists"`
	ComputedAt      int64   `json:"computed_at"`
}

func toDTO(row domain.ScoreRow) rowDTO {
	return rowDTO{
		Score:           domain.Round6(row.Score),
		BonusScore:      domain.Round6(row.BonusScore),
		FinalScore:      domain.Round6(row.FinalScore),
		SuggestedAnchor: row.SuggestedAnchor,
		LinkExists:      row.LinkExists,
		ComputedAt:      row.ComputedAt.Unix(),
	}
}

func fromDTO(sourceID, targetID int64, d rowDTO) domain.ScoreRow {
	var at time.Time
	if d.ComputedAt > 0 {
		at = time.Unix(d.ComputedAt, 0).UTC()
	}
	return domain.ScoreRow{
		SourceID:        sourceID,
		TargetID:        targetID,
		Score:           d.Score,
		BonusScore:      d.BonusScore,
		FinalScore:      d.FinalScore,
		SuggestedAnchor: d.SuggestedAnchor,
		LinkExists:      d.LinkExists,
		ComputedAt:      at,
	}
}
