// Package recommend serves ranked link recommendations from the similarity
// cache, recomputing on demand when the cache has nothing for a source.
package recommend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/metrics"
)

const (
	// fetchDepth is how many cached rows are read before filtering; filters
	// can drop rows (existing links, vanished targets), so read well past
	// the requested limit.
	fetchDepth = 50

	// recomputeChunkSize bounds one corpus page during a full recompute.
	recomputeChunkSize = 500
)

// OrphanPage is a published page no other content links to.
type OrphanPage struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Stats is the dashboard snapshot.
type Stats struct {
	ContentTotal int64 `json:"content_total"`
	Embedded     int64 `json:"embedded"`
	LinkPairs    int64 `json:"link_pairs"`
	CachedRows   int64 `json:"cached_rows"`
	Orphans      int64 `json:"orphans"`
}

// Service answers recommendation queries.
type Service struct {
	cache      Cache
	computer   Computer
	contents   ContentStore
	graph      LinkGraph
	embeddings EmbeddingIndex
	settings   domain.SettingsSource
	logger     *zap.Logger
}

// New creates a recommendation service.
func New(
	cache Cache, computer Computer, contents ContentStore, graph LinkGraph,
	embeddings EmbeddingIndex, settings domain.SettingsSource, logger *zap.Logger,
) *Service {
	return &Service{
		cache:      cache,
		computer:   computer,
		contents:   contents,
		graph:      graph,
		embeddings: embeddings,
		settings:   settings,
		logger:     logger,
	}
}

// Get returns up to limit recommendations for a source, best final score
// first. A cache miss triggers a synchronous compute rather than returning
// empty. Rows pointing at vanished or unpublished targets are dropped.
func (s *Service) Get(ctx context.Context, sourceID int64, limit int, excludeLinked bool) ([]domain.Recommendation, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if limit <= 0 {
		limit = cfg.MaxRecommendations
	}
	if limit > 20 {
		limit = 20
	}

	cached, err := s.cache.Has(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("check cache for %d: %w", sourceID, err)
	}
	if cached {
		metrics.SimilarityCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.SimilarityCacheTotal.WithLabelValues("miss").Inc()
		if _, err := s.computer.ComputeForSource(ctx, sourceID, 0); err != nil {
			return nil, fmt.Errorf("compute on cache miss for %d: %w", sourceID, err)
		}
	}

	rows, err := s.cache.TopN(ctx, sourceID, fetchDepth)
	if err != nil {
		return nil, fmt.Errorf("read cache for %d: %w", sourceID, err)
	}

	out := make([]domain.Recommendation, 0, limit)
	for _, row := range rows {
		if excludeLinked && row.LinkExists {
			continue
		}
		rec, ok, err := s.enrich(ctx, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Refresh invalidates and recomputes one source.
func (s *Service) Refresh(ctx context.Context, sourceID int64) ([]domain.ScoreRow, error) {
	if err := s.cache.InvalidateForContent(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("invalidate %d: %w", sourceID, err)
	}
	rows, err := s.computer.ComputeForSource(ctx, sourceID, 0)
	if err != nil {
		return nil, fmt.Errorf("recompute %d: %w", sourceID, err)
	}
	return rows, nil
}

// RecomputeAll truncates the cache and recomputes every embedded source,
// returning how many sources were processed.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	if err := s.cache.Truncate(ctx); err != nil {
		return 0, fmt.Errorf("truncate cache: %w", err)
	}

	count := 0
	cursor := int64(0)
	for {
		rows, next, err := s.embeddings.Chunk(ctx, cursor, recomputeChunkSize)
		if err != nil {
			return count, fmt.Errorf("page corpus after %d: %w", cursor, err)
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			if _, err := s.computer.ComputeForSource(ctx, row.ContentID, 0); err != nil {
				s.logger.Warn("Recompute failed for source",
					zap.Int64("content_id", row.ContentID), zap.Error(err))
				continue
			}
			count++
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	s.logger.Info("Similarity recompute finished", zap.Int("sources", count))
	return count, nil
}

// Opportunities returns the site-wide top rows without an existing link.
func (s *Service) Opportunities(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.cache.TopGlobal(ctx, limit*2)
	if err != nil {
		return nil, fmt.Errorf("read global cache: %w", err)
	}

	out := make([]domain.Opportunity, 0, limit)
	for _, row := range rows {
		source, err := s.liveItem(ctx, row.SourceID)
		if err != nil {
			return nil, err
		}
		target, err := s.liveItem(ctx, row.TargetID)
		if err != nil {
			return nil, err
		}
		if source == nil || target == nil {
			continue
		}
		out = append(out, domain.Opportunity{
			SourceID:        row.SourceID,
			SourceTitle:     source.Title,
			SourceURL:       source.URL,
			TargetID:        row.TargetID,
			TargetTitle:     target.Title,
			TargetURL:       target.URL,
			FinalScore:      row.FinalScore,
			SuggestedAnchor: row.SuggestedAnchor,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Orphans lists published pages with zero inbound internal links.
func (s *Service) Orphans(ctx context.Context) ([]OrphanPage, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	ids, err := s.contents.FindIDs(ctx, cfg.ContentTypes, domain.StatusPublished, 0)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	var orphans []OrphanPage
	for _, id := range ids {
		inbound, err := s.graph.InboundCount(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("inbound count %d: %w", id, err)
		}
		if inbound > 0 {
			continue
		}
		item, err := s.liveItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		orphans = append(orphans, OrphanPage{ID: id, Title: item.Title, URL: item.URL})
	}
	return orphans, nil
}

// DashboardStats assembles the dashboard counters.
func (s *Service) DashboardStats(ctx context.Context) (Stats, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load settings: %w", err)
	}

	ids, err := s.contents.FindIDs(ctx, cfg.ContentTypes, domain.StatusPublished, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("list content: %w", err)
	}
	embedded, err := s.embeddings.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count embeddings: %w", err)
	}
	pairs, err := s.graph.PairCount(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count link pairs: %w", err)
	}
	cachedRows, err := s.cache.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count cache rows: %w", err)
	}

	var orphans int64
	for _, id := range ids {
		inbound, err := s.graph.InboundCount(ctx, id)
		if err != nil {
			return Stats{}, fmt.Errorf("inbound count %d: %w", id, err)
		}
		if inbound == 0 {
			orphans++
		}
	}

	return Stats{
		ContentTotal: int64(len(ids)),
		Embedded:     embedded,
		LinkPairs:    pairs,
		CachedRows:   cachedRows,
		Orphans:      orphans,
	}, nil
}

// enrich joins a cached row with live target metadata. ok is false when the
// target no longer exists or is unpublished.
func (s *Service) enrich(ctx context.Context, row domain.ScoreRow) (domain.Recommendation, bool, error) {
	target, err := s.liveItem(ctx, row.TargetID)
	if err != nil {
		return domain.Recommendation{}, false, err
	}
	if target == nil {
		return domain.Recommendation{}, false, nil
	}

	inbound, err := s.graph.InboundCount(ctx, row.TargetID)
	if err != nil {
		return domain.Recommendation{}, false, fmt.Errorf("inbound count %d: %w", row.TargetID, err)
	}

	return domain.Recommendation{
		TargetID:        row.TargetID,
		Title:           target.Title,
		URL:             target.URL,
		EditURL:         target.EditURL,
		ContentType:     target.Type,
		Score:           row.Score,
		BonusScore:      row.BonusScore,
		FinalScore:      row.FinalScore,
		SuggestedAnchor: row.SuggestedAnchor,
		LinkExists:      row.LinkExists,
		IsOrphan:        inbound == 0,
	}, true, nil
}

// liveItem returns a published item, or nil when missing or unpublished.
func (s *Service) liveItem(ctx context.Context, id int64) (*domain.ContentItem, error) {
	item, err := s.contents.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load content %d: %w", id, err)
	}
	if !item.Published() {
		return nil, nil
	}
	return &item, nil
}
