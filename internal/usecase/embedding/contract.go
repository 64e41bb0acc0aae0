package embedding

import (
	"context"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

// ContentReader loads content items from the host CMS.
type ContentReader interface {
	Get(ctx context.Context, id int64) (domain.ContentItem, error)
}

// Store persists embedding records.
type Store interface {
	Save(ctx context.Context, rec *domain.EmbeddingRecord) error
	Get(ctx context.Context, contentID int64) (domain.EmbeddingRecord, error)
	Delete(ctx context.Context, contentID int64) error
	Count(ctx context.Context) (int64, error)
}

// Registry builds embedding providers by name.
type Registry interface {
	Build(name string, s domain.Settings) (domain.Provider, error)
}
