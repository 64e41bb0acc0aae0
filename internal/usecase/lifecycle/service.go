// Package lifecycle reacts to content changes in the host CMS: saves rescan
// outbound links and queue re-embedding when the prepared text changed,
// deletes purge every trace of the content from the derived stores.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/textprep"
)

// Detector extracts internal link edges from a content item's rendered HTML.
type Detector interface {
	Detect(ctx context.Context, source domain.ContentItem) ([]domain.LinkEdge, error)
}

// LinkGraph persists detected edges.
type LinkGraph interface {
	ReplaceForSource(ctx context.Context, sourceID int64, edges []domain.LinkEdge) error
	DeleteForContent(ctx context.Context, contentID int64) error
}

// Embeddings answers freshness questions and manages stored vectors.
type Embeddings interface {
	Record(ctx context.Context, contentID int64) (domain.EmbeddingRecord, error)
	NeedsRefresh(ctx context.Context, item domain.ContentItem) (bool, error)
	Delete(ctx context.Context, contentID int64) error
}

// Cache invalidates derived similarity rows.
type Cache interface {
	InvalidateForContent(ctx context.Context, contentID int64) error
}

// Queue schedules, cancels and inspects embedding work.
type Queue interface {
	Enqueue(ctx context.Context, contentID int64, priority int) error
	Remove(ctx context.Context, contentID int64) error
	Get(ctx context.Context, contentID int64) (domain.QueueItem, error)
}

// ContentStore reads live content.
type ContentStore interface {
	Get(ctx context.Context, id int64) (domain.ContentItem, error)
	FindIDs(ctx context.Context, types []string, status string, minLength int) ([]int64, error)
}

// SaveOutcome reports what a save hook did.
type SaveOutcome struct {
	Eligible      bool `json:"eligible"`
	LinksDetected int  `json:"links_detected"`
	Queued        bool `json:"queued"`
}

// BulkReport counts a bulk operation's work.
type BulkReport struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Service wires the content-change hooks.
type Service struct {
	contents   ContentStore
	detector   Detector
	graph      LinkGraph
	embeddings Embeddings
	cache      Cache
	queue      Queue
	settings   domain.SettingsSource
	logger     *zap.Logger
}

// New creates a lifecycle service.
func New(
	contents ContentStore, detector Detector, graph LinkGraph, embeddings Embeddings,
	cache Cache, queue Queue, settings domain.SettingsSource, logger *zap.Logger,
) *Service {
	return &Service{
		contents:   contents,
		detector:   detector,
		graph:      graph,
		embeddings: embeddings,
		cache:      cache,
		queue:      queue,
		settings:   settings,
		logger:     logger,
	}
}

// OnSaved handles a content save. Ineligible content (wrong type,
// unpublished, too short) has its cached rows dropped and any queued work
// cancelled; eligible content gets its outbound links rescanned and, when
// the prepared text changed, a high-priority re-embedding.
func (s *Service) OnSaved(ctx context.Context, contentID int64) (SaveOutcome, error) {
	item, err := s.contents.Get(ctx, contentID)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return SaveOutcome{}, s.OnDeleted(ctx, contentID)
		}
		return SaveOutcome{}, fmt.Errorf("load content %d: %w", contentID, err)
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return SaveOutcome{}, fmt.Errorf("load settings: %w", err)
	}

	if !eligible(item, cfg) {
		if err := s.cache.InvalidateForContent(ctx, contentID); err != nil {
			return SaveOutcome{}, fmt.Errorf("invalidate cache for %d: %w", contentID, err)
		}
		if err := s.queue.Remove(ctx, contentID); err != nil {
			return SaveOutcome{}, fmt.Errorf("dequeue %d: %w", contentID, err)
		}
		return SaveOutcome{}, nil
	}

	outcome := SaveOutcome{Eligible: true}

	edges, err := s.detector.Detect(ctx, item)
	if err != nil {
		return outcome, fmt.Errorf("detect links in %d: %w", contentID, err)
	}
	if err := s.graph.ReplaceForSource(ctx, contentID, edges); err != nil {
		return outcome, fmt.Errorf("store edges for %d: %w", contentID, err)
	}
	outcome.LinksDetected = len(edges)

	stale, err := s.embeddings.NeedsRefresh(ctx, item)
	if err != nil {
		return outcome, fmt.Errorf("check embedding freshness for %d: %w", contentID, err)
	}
	if stale {
		if err := s.queue.Enqueue(ctx, contentID, domain.PriorityHigh); err != nil {
			return outcome, fmt.Errorf("enqueue %d: %w", contentID, err)
		}
		if err := s.cache.InvalidateForContent(ctx, contentID); err != nil {
			return outcome, fmt.Errorf("invalidate cache for %d: %w", contentID, err)
		}
		outcome.Queued = true
	}

	s.logger.Debug("Content save handled",
		zap.Int64("content_id", contentID),
		zap.Int("links", outcome.LinksDetected),
		zap.Bool("queued", outcome.Queued))
	return outcome, nil
}

// OnDeleted purges everything derived from a content item: its vector, its
// place in the link graph on both sides, its cached score rows and any
// queued work.
func (s *Service) OnDeleted(ctx context.Context, contentID int64) error {
	if err := s.embeddings.Delete(ctx, contentID); err != nil {
		return fmt.Errorf("delete embedding for %d: %w", contentID, err)
	}
	if err := s.graph.DeleteForContent(ctx, contentID); err != nil {
		return fmt.Errorf("delete edges for %d: %w", contentID, err)
	}
	if err := s.cache.InvalidateForContent(ctx, contentID); err != nil {
		return fmt.Errorf("invalidate cache for %d: %w", contentID, err)
	}
	if err := s.queue.Remove(ctx, contentID); err != nil {
		return fmt.Errorf("dequeue %d: %w", contentID, err)
	}
	s.logger.Info("Content purged", zap.Int64("content_id", contentID))
	return nil
}

// BulkVectorize queues every eligible content item for embedding at default
// priority. Items whose vector is already current are skipped.
func (s *Service) BulkVectorize(ctx context.Context) (BulkReport, error) {
	ids, err := s.eligibleIDs(ctx)
	if err != nil {
		return BulkReport{}, err
	}

	var report BulkReport
	for _, id := range ids {
		item, err := s.contents.Get(ctx, id)
		if err != nil {
			report.Failed++
			continue
		}
		stale, err := s.embeddings.NeedsRefresh(ctx, item)
		if err != nil {
			report.Failed++
			continue
		}
		if !stale {
			continue
		}
		if err := s.queue.Enqueue(ctx, id, domain.PriorityDefault); err != nil {
			report.Failed++
			continue
		}
		report.Processed++
	}

	s.logger.Info("Bulk vectorization queued",
		zap.Int("queued", report.Processed), zap.Int("failed", report.Failed))
	return report, nil
}

// BulkScanLinks rescans outbound links for every eligible content item.
func (s *Service) BulkScanLinks(ctx context.Context) (BulkReport, error) {
	ids, err := s.eligibleIDs(ctx)
	if err != nil {
		return BulkReport{}, err
	}

	var report BulkReport
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item, err := s.contents.Get(ctx, id)
		if err != nil {
			report.Failed++
			continue
		}
		edges, err := s.detector.Detect(ctx, item)
		if err != nil {
			s.logger.Warn("Link scan failed", zap.Int64("content_id", id), zap.Error(err))
			report.Failed++
			continue
		}
		if err := s.graph.ReplaceForSource(ctx, id, edges); err != nil {
			report.Failed++
			continue
		}
		report.Processed++
	}

	s.logger.Info("Bulk link scan finished",
		zap.Int("scanned", report.Processed), zap.Int("failed", report.Failed))
	return report, nil
}

// ContentStatus is the per-content embedding state exposed to editors.
type ContentStatus struct {
	ContentID    int64  `json:"content_id"`
	HasEmbedding bool   `json:"has_embedding"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	Dimensions   int    `json:"dimensions,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
	NeedsRefresh bool   `json:"needs_refresh"`
	QueueStatus  string `json:"queue_status,omitempty"`
	Attempts     int    `json:"attempts,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Status reports a content item's embedding and queue state.
func (s *Service) Status(ctx context.Context, contentID int64) (ContentStatus, error) {
	item, err := s.contents.Get(ctx, contentID)
	if err != nil {
		return ContentStatus{}, fmt.Errorf("load content %d: %w", contentID, err)
	}

	status := ContentStatus{ContentID: contentID}

	rec, err := s.embeddings.Record(ctx, contentID)
	switch {
	case err == nil:
		status.HasEmbedding = true
		status.Provider = rec.Provider
		status.Model = rec.Model
		status.Dimensions = rec.Dimensions
		if !rec.UpdatedAt.IsZero() {
			status.UpdatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339)
		}
	case errors.Is(err, domain.ErrEmbeddingNotFound):
		// no vector yet
	default:
		return ContentStatus{}, fmt.Errorf("load embedding for %d: %w", contentID, err)
	}

	stale, err := s.embeddings.NeedsRefresh(ctx, item)
	if err != nil {
		return ContentStatus{}, fmt.Errorf("check embedding freshness for %d: %w", contentID, err)
	}
	status.NeedsRefresh = stale

	qi, err := s.queue.Get(ctx, contentID)
	if err == nil {
		status.QueueStatus = string(qi.Status)
		status.Attempts = qi.Attempts
		status.ErrorMessage = qi.ErrorMessage
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return ContentStatus{}, fmt.Errorf("load queue item for %d: %w", contentID, err)
	}

	return status, nil
}

// ForceRefresh drops a content item's vector and cached rows, then queues a
// high-priority recompute.
func (s *Service) ForceRefresh(ctx context.Context, contentID int64) error {
	if _, err := s.contents.Get(ctx, contentID); err != nil {
		return fmt.Errorf("load content %d: %w", contentID, err)
	}
	if err := s.embeddings.Delete(ctx, contentID); err != nil {
		return fmt.Errorf("delete embedding for %d: %w", contentID, err)
	}
	if err := s.cache.InvalidateForContent(ctx, contentID); err != nil {
		return fmt.Errorf("invalidate cache for %d: %w", contentID, err)
	}
	if err := s.queue.Enqueue(ctx, contentID, domain.PriorityHigh); err != nil {
		return fmt.Errorf("enqueue %d: %w", contentID, err)
	}
	return nil
}

func (s *Service) eligibleIDs(ctx context.Context) ([]int64, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	ids, err := s.contents.FindIDs(ctx, cfg.ContentTypes, domain.StatusPublished, cfg.MinContentLength)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	return ids, nil
}

// eligible reports whether a content item participates in linking at all.
func eligible(item domain.ContentItem, cfg domain.Settings) bool {
	if !item.Published() {
		return false
	}
	typeOK := false
	for _, t := range cfg.ContentTypes {
		if t == item.Type {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}
	return len([]rune(textprep.PlainText(item.Body))) >= cfg.MinContentLength
}
