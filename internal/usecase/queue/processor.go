// Package queue drains the embedding work queue in batches and reports
// whether pending work remains, so the runner can chain another drain pass
// instead of polling on a fixed interval.
package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/metrics"
	"github.com/kailas-cloud/linkmesh/internal/usecase/embedding"
)

// Store is the persistent queue the processor drains.
type Store interface {
	ClaimBatch(ctx context.Context, limit int) ([]domain.QueueItem, error)
	MarkCompleted(ctx context.Context, contentID int64) error
	MarkFailed(ctx context.Context, contentID int64, message string, retryCap int) error
	ReclaimStale(ctx context.Context, maxAge time.Duration) (int, error)
	Counts(ctx context.Context) (domain.QueueCounts, error)
}

// Embedder computes vectors for a batch of content ids.
type Embedder interface {
	ComputeBatch(ctx context.Context, ids []int64) ([]embedding.Result, error)
}

// Report is the outcome of one drain pass.
type Report struct {
	Claimed   int  `json:"claimed"`
	Completed int  `json:"completed"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
	Reclaimed int  `json:"reclaimed"`
	MoreWork  bool `json:"more_work"`
}

// Processor runs one drain pass at a time.
type Processor struct {
	store      Store
	embedder   Embedder
	settings   domain.SettingsSource
	logger     *zap.Logger
	retryCap   int
	staleAfter time.Duration
}

// New creates a processor. retryCap and staleAfter of zero fall back to the
// documented defaults.
func New(store Store, embedder Embedder, settings domain.SettingsSource, logger *zap.Logger, retryCap int, staleAfter time.Duration) *Processor {
	if retryCap <= 0 {
		retryCap = domain.DefaultRetryCap
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &Processor{
		store:      store,
		embedder:   embedder,
		settings:   settings,
		logger:     logger,
		retryCap:   retryCap,
		staleAfter: staleAfter,
	}
}

// Run claims one batch, computes embeddings for it, records per-item
// outcomes and reports whether pending work remains. Items stuck in
// processing longer than the stale window are returned to pending first, so
// a crashed pass never strands work.
func (p *Processor) Run(ctx context.Context) (Report, error) {
	var report Report

	reclaimed, err := p.store.ReclaimStale(ctx, p.staleAfter)
	if err != nil {
		metrics.QueueBatchesTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("reclaim stale items: %w", err)
	}
	report.Reclaimed = reclaimed
	if reclaimed > 0 {
		p.logger.Warn("Reclaimed stale processing items", zap.Int("count", reclaimed))
	}

	cfg, err := p.settings.Load(ctx)
	if err != nil {
		metrics.QueueBatchesTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("load settings: %w", err)
	}

	items, err := p.store.ClaimBatch(ctx, cfg.APIBatchSize)
	if err != nil {
		metrics.QueueBatchesTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("claim batch: %w", err)
	}
	report.Claimed = len(items)

	if len(items) > 0 {
		ids := make([]int64, len(items))
		for i, item := range items {
			ids[i] = item.ContentID
		}

		// Per-item outcomes live in the results; the batch-level error only
		// distinguishes "nothing was attempted" cases like a missing provider.
		results, batchErr := p.embedder.ComputeBatch(ctx, ids)
		if batchErr != nil {
			p.logger.Warn("Embedding batch failed", zap.Error(batchErr))
		}

		for _, res := range results {
			if res.Err != nil {
				report.Failed++
				if err := p.store.MarkFailed(ctx, res.ContentID, res.Err.Error(), p.retryCap); err != nil {
					return report, fmt.Errorf("mark %d failed: %w", res.ContentID, err)
				}
				continue
			}
			if res.Skipped {
				report.Skipped++
			} else {
				report.Completed++
			}
			if err := p.store.MarkCompleted(ctx, res.ContentID); err != nil {
				return report, fmt.Errorf("mark %d completed: %w", res.ContentID, err)
			}
		}
	}

	counts, err := p.store.Counts(ctx)
	if err != nil {
		return report, fmt.Errorf("read queue counts: %w", err)
	}
	report.MoreWork = counts.Pending > 0
	p.observe(counts, report)

	p.logger.Debug("Drain pass finished",
		zap.Int("claimed", report.Claimed),
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
		zap.Bool("more_work", report.MoreWork))
	return report, nil
}

// Status returns the per-status queue counters.
func (p *Processor) Status(ctx context.Context) (domain.QueueCounts, error) {
	return p.store.Counts(ctx)
}

func (p *Processor) observe(counts domain.QueueCounts, report Report) {
	metrics.QueueDepth.WithLabelValues("pending").Set(float64(counts.Pending))
	metrics.QueueDepth.WithLabelValues("processing").Set(float64(counts.Processing))
	metrics.QueueDepth.WithLabelValues("completed").Set(float64(counts.Completed))
	metrics.QueueDepth.WithLabelValues("failed").Set(float64(counts.Failed))
	if report.MoreWork {
		metrics.QueueBatchesTotal.WithLabelValues("more_work").Inc()
	} else {
		metrics.QueueBatchesTotal.WithLabelValues("drained").Inc()
	}
}
