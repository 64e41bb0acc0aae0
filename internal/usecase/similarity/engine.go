// Package similarity scores a source item against the embedding corpus and
// persists the ranked rows. The corpus is streamed in fixed-size chunks, so
// memory stays bounded no matter how many vectors are stored.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/metrics"
	"github.com/kailas-cloud/linkmesh/internal/usecase/anchor"
)

const (
	// DefaultLimit caps how many raw candidates survive thresholding.
	DefaultLimit = 50
	// chunkSize bounds how many vectors one corpus page holds.
	chunkSize = 500
	// maxSharedTagBonus caps how many shared secondary terms pay out.
	maxSharedTagBonus = 3
)

// Engine computes similarity scores.
type Engine struct {
	embeddings EmbeddingStore
	graph      LinkGraph
	contents   ContentReader
	cache      Cache
	settings   domain.SettingsSource
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine creates a similarity engine.
func NewEngine(
	embeddings EmbeddingStore, graph LinkGraph, contents ContentReader,
	cache Cache, settings domain.SettingsSource, logger *zap.Logger,
) *Engine {
	return &Engine{
		embeddings: embeddings,
		graph:      graph,
		contents:   contents,
		cache:      cache,
		settings:   settings,
		logger:     logger,
		now:        time.Now,
	}
}

type candidate struct {
	targetID int64
	raw      float64
}

// ComputeForSource scores the source against every other stored vector,
// applies contextual bonuses to the top candidates, persists the rows and
// returns them ranked by final score. A source without a stored vector
// yields an empty result, not an error.
func (e *Engine) ComputeForSource(ctx context.Context, sourceID int64, limit int) ([]domain.ScoreRow, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := e.now()
	defer func() {
		metrics.SimilarityComputeDuration.Observe(time.Since(start).Seconds())
	}()

	cfg, err := e.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	src, err := e.embeddings.Get(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load source vector %d: %w", sourceID, err)
	}

	source, err := e.contents.Get(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load source content %d: %w", sourceID, err)
	}

	candidates, err := e.scanCorpus(ctx, sourceID, src.Vector, cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	// Raw-score cut before the bonus pass bounds per-candidate work.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].raw != candidates[j].raw {
			return candidates[i].raw > candidates[j].raw
		}
		return candidates[i].targetID < candidates[j].targetID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	rows, err := e.scoreCandidates(ctx, cfg, source, candidates)
	if err != nil {
		return nil, err
	}

	// Bonuses can reorder relative to raw order; final score is the
	// authoritative ranking.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FinalScore != rows[j].FinalScore {
			return rows[i].FinalScore > rows[j].FinalScore
		}
		return rows[i].TargetID < rows[j].TargetID
	})

	if err := e.cache.SaveScores(ctx, sourceID, rows); err != nil {
		return nil, fmt.Errorf("cache scores for %d: %w", sourceID, err)
	}

	e.logger.Debug("Similarity computed",
		zap.Int64("source_id", sourceID),
		zap.Int("candidates", len(rows)),
	)
	return rows, nil
}

func (e *Engine) scanCorpus(ctx context.Context, sourceID int64, sourceVec []float32, threshold float64) ([]candidate, error) {
	var candidates []candidate
	var cursor int64
	for {
		rows, next, err := e.embeddings.Chunk(ctx, cursor, chunkSize)
		if err != nil {
			return nil, fmt.Errorf("scan corpus after %d: %w", cursor, err)
		}
		for _, row := range rows {
			if row.ContentID == sourceID {
				continue
			}
			raw := Cosine(sourceVec, row.Vector)
			if raw < threshold {
				continue
			}
			candidates = append(candidates, candidate{targetID: row.ContentID, raw: raw})
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return candidates, nil
}

func (e *Engine) scoreCandidates(
	ctx context.Context, cfg domain.Settings, source domain.ContentItem, candidates []candidate,
) ([]domain.ScoreRow, error) {
	now := e.now().UTC()
	rows := make([]domain.ScoreRow, 0, len(candidates))

	for _, c := range candidates {
		target, err := e.contents.Get(ctx, c.targetID)
		if err != nil {
			if errors.Is(err, domain.ErrContentNotFound) {
				// Vector outlived its content; not this pipeline's problem.
				continue
			}
			return nil, fmt.Errorf("load target %d: %w", c.targetID, err)
		}
		if !target.Published() {
			continue
		}

		bonus, err := e.bonus(ctx, cfg, source, target, now)
		if err != nil {
			return nil, err
		}

		linkExists, err := e.graph.LinkExists(ctx, source.ID, target.ID)
		if err != nil {
			return nil, fmt.Errorf("link exists %d->%d: %w", source.ID, target.ID, err)
		}

		rows = append(rows, domain.ScoreRow{
			SourceID:        source.ID,
			TargetID:        target.ID,
			Score:           domain.Round6(c.raw),
			BonusScore:      domain.Round6(bonus),
			FinalScore:      domain.Round6(domain.ClampFinal(c.raw, bonus)),
			SuggestedAnchor: anchor.Suggest(target),
			LinkExists:      linkExists,
			ComputedAt:      now,
		})
	}
	return rows, nil
}

// bonus sums the contextual heuristics. A weight of zero or less disables
// its bonus entirely.
func (e *Engine) bonus(
	ctx context.Context, cfg domain.Settings, source, target domain.ContentItem, now time.Time,
) (float64, error) {
	var bonus float64

	if cfg.BonusSameCategory > 0 && domain.SharedTerms(source.Categories, target.Categories) > 0 {
		bonus += cfg.BonusSameCategory
	}

	if cfg.BonusSharedTag > 0 {
		shared := domain.SharedTerms(source.Tags, target.Tags)
		if shared > maxSharedTagBonus {
			shared = maxSharedTagBonus
		}
		bonus += cfg.BonusSharedTag * float64(shared)
	}

	if cfg.BonusOrphanTarget > 0 {
		inbound, err := e.graph.InboundCount(ctx, target.ID)
		if err != nil {
			return 0, fmt.Errorf("inbound count %d: %w", target.ID, err)
		}
		if inbound == 0 {
			bonus += cfg.BonusOrphanTarget
		}
	}

	if cfg.BonusFreshContent > 0 && cfg.FreshnessDays > 0 && !target.PublishedAt.IsZero() {
		age := now.Sub(target.PublishedAt)
		if age <= time.Duration(cfg.FreshnessDays)*24*time.Hour {
			bonus += cfg.BonusFreshContent
		}
	}

	return bonus, nil
}
