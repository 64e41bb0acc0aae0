package recommend

import (
	"context"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// Cache reads and invalidates persisted score rows.
type Cache interface {
	Has(ctx context.Context, sourceID int64) (bool, error)
	TopN(ctx context.Context, sourceID int64, n int) ([]domain.ScoreRow, error)
	TopGlobal(ctx context.Context, n int) ([]domain.ScoreRow, error)
	InvalidateForContent(ctx context.Context, contentID int64) error
	Truncate(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// Computer recomputes score rows for one source.
type Computer interface {
	ComputeForSource(ctx context.Context, sourceID int64, limit int) ([]domain.ScoreRow, error)
}

// ContentStore reads live content metadata.
type ContentStore interface {
	Get(ctx context.Context, id int64) (domain.ContentItem, error)
	FindIDs(ctx context.Context, types []string, status string, minLength int) ([]int64, error)
}

// LinkGraph answers inbound-link questions.
type LinkGraph interface {
	InboundCount(ctx context.Context, targetID int64) (int64, error)
	PairCount(ctx context.Context) (int64, error)
}

// EmbeddingIndex walks and counts the stored corpus.
type EmbeddingIndex interface {
	// Chunk returns rows with content id > afterID, ascending; a zero next
	// cursor means the corpus is exhausted.
	Chunk(ctx context.Context, afterID int64, limit int) ([]domain.VectorRow, int64, error)
	Count(ctx context.Context) (int64, error)
}
