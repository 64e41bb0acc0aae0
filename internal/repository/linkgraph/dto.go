package linkgraph

import (
	"time"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// edgeDTO is the stored form of one outbound edge.
type edgeDTO struct {
	TargetID   int64  `json:"target_id"`
	AnchorText string `json:"anchor_text"`
	Context    string `json:"context,omitempty"`
	DetectedAt int64  `json:"detected_at"`
}

func toDTO(e domain.LinkEdge) edgeDTO {
	e = e.Truncated()
	return edgeDTO{
		TargetID:   e.TargetID,
		AnchorText: e.AnchorText,
		Context:    e.Context,
		DetectedAt: e.DetectedAt.Unix(),
	}
}

func fromDTO(sourceID int64, d edgeDTO) domain.LinkEdge {
	var at time.Time
	if d.DetectedAt > 0 {
		at = time.Unix(d.DetectedAt, 0).UTC()
	}
	return domain.LinkEdge{
		SourceID:   sourceID,
		TargetID:   d.TargetID,
		AnchorText: d.AnchorText,
		Context:    d.Context,
		DetectedAt: at,
	}
}
