package similarity

import (
	"context"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// EmbeddingStore reads stored vectors and streams the corpus in chunks.
type EmbeddingStore interface {
	Get(ctx context.Context, contentID int64) (domain.EmbeddingRecord, error)
	// Chunk returns rows with content id > afterID, ascending; a zero next
	// cursor means the corpus is exhausted.
	Chunk(ctx context.Context, afterID int64, limit int) ([]domain.VectorRow, int64, error)
}

// LinkGraph answers orphan and existing-link questions.
type LinkGraph interface {
	InboundCount(ctx context.Context, targetID int64) (int64, error)
	LinkExists(ctx context.Context, sourceID, targetID int64) (bool, error)
}

// ContentReader loads content items for bonus scoring and anchors.
type ContentReader interface {
	Get(ctx context.Context, id int64) (domain.ContentItem, error)
}

// Cache persists computed score rows.
type Cache interface {
	SaveScores(ctx context.Context, sourceID int64, rows []domain.ScoreRow) error
}
