// Package embedding turns content items into stored vectors. Each operation
// loads a fresh settings snapshot and builds its provider from the registry,
// so a settings change takes effect on the next call without any
// process-wide state to invalidate.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/textprep"
)

// Result is the per-item outcome of a batch computation.
type Result struct {
	ContentID int64
	Skipped   bool // vector already current, nothing recomputed
	Err       error
}

// ProviderInfo describes the outcome of a connectivity self-test.
type ProviderInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// Service computes and stores embeddings.
type Service struct {
	contents ContentReader
	store    Store
	registry Registry
	settings domain.SettingsSource
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an embedding service.
func New(
	contents ContentReader, store Store, registry Registry,
	settings domain.SettingsSource, logger *zap.Logger,
) *Service {
	return &Service{
		contents: contents,
		store:    store,
		registry: registry,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// Compute embeds one content item and stores the vector. Returns Skipped
// when the stored vector already matches the current text, provider and
// model.
func (s *Service) Compute(ctx context.Context, contentID int64) (Result, error) {
	results, err := s.ComputeBatch(ctx, []int64{contentID})
	if err != nil {
		return Result{ContentID: contentID, Err: err}, err
	}
	r := results[0]
	return r, r.Err
}

// ComputeBatch embeds several items in one provider call. The returned slice
// is positional with ids. A provider-level failure fails every non-skipped
// item; per-item content errors only fail their own entry.
func (s *Service) ComputeBatch(ctx context.Context, ids []int64) ([]Result, error) {
	results := make([]Result, len(ids))
	for i, id := range ids {
		results[i] = Result{ContentID: id}
	}

	cfg, provider, err := s.provider(ctx)
	if err != nil {
		for i := range results {
			results[i].Err = err
		}
		return results, err
	}

	// Load and prepare; decide per item whether work is needed.
	type pending struct {
		idx  int
		text string
		hash string
	}
	var work []pending
	for i, id := range ids {
		item, err := s.contents.Get(ctx, id)
		if err != nil {
			results[i].Err = fmt.Errorf("load content %d: %w", id, err)
			continue
		}
		text := textprep.Prepare(item)
		if text == "" {
			results[i].Err = fmt.Errorf("content %d has no text: %w", id, domain.ErrInvalidInput)
			continue
		}
		hash := textprep.Hash(text)
		if s.current(ctx, id, hash, provider) {
			results[i].Skipped = true
			continue
		}
		work = append(work, pending{idx: i, text: text, hash: hash})
	}
	if len(work) == 0 {
		return results, nil
	}

	// Respect the provider batch cap from settings.
	for start := 0; start < len(work); start += cfg.APIBatchSize {
		end := start + cfg.APIBatchSize
		if end > len(work) {
			end = len(work)
		}
		chunk := work[start:end]

		texts := make([]string, len(chunk))
		for i, p := range chunk {
			texts[i] = p.text
		}

		vectors, err := provider.BatchEmbed(ctx, texts)
		if err != nil {
			for _, p := range chunk {
				results[p.idx].Err = err
			}
			if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrNotConfigured) {
				// Pointless to keep hammering the provider; fail the rest too.
				for _, p := range work[end:] {
					results[p.idx].Err = err
				}
				return results, err
			}
			continue
		}

		now := s.now().UTC()
		for i, p := range chunk {
			rec := domain.EmbeddingRecord{
				ContentID:   ids[p.idx],
				Provider:    provider.Name(),
				Model:       provider.Model(),
				Dimensions:  len(vectors[i]),
				Vector:      vectors[i],
				ContentHash: p.hash,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.store.Save(ctx, &rec); err != nil {
				results[p.idx].Err = fmt.Errorf("save embedding %d: %w", ids[p.idx], err)
				continue
			}
			s.logger.Debug("Embedding stored",
				zap.Int64("content_id", ids[p.idx]),
				zap.String("provider", provider.Name()),
				zap.Int("dimensions", rec.Dimensions),
			)
		}
	}
	return results, nil
}

// NeedsRefresh reports whether the stored vector for the item is missing or
// stale relative to the current text, provider and model.
func (s *Service) NeedsRefresh(ctx context.Context, item domain.ContentItem) (bool, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	provider, err := s.registry.Build(cfg.Provider, cfg)
	if err != nil {
		return false, err
	}

	rec, err := s.store.Get(ctx, item.ID)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingNotFound) {
			return true, nil
		}
		return false, err
	}
	if rec.Provider != provider.Name() || rec.Model != provider.Model() {
		return true, nil
	}
	return rec.ContentHash != textprep.Hash(textprep.Prepare(item)), nil
}

// TestProvider runs a connectivity self-test against the configured provider
// and reports its identity and vector width.
func (s *Service) TestProvider(ctx context.Context) (ProviderInfo, error) {
	_, provider, err := s.provider(ctx)
	if err != nil {
		return ProviderInfo{}, err
	}

	vec, err := provider.Embed(ctx, "connectivity check")
	if err != nil {
		return ProviderInfo{}, fmt.Errorf("provider %s self-test: %w", provider.Name(), err)
	}

	return ProviderInfo{
		Provider:   provider.Name(),
		Model:      provider.Model(),
		Dimensions: len(vec),
	}, nil
}

// Delete removes the stored vector for a content id.
func (s *Service) Delete(ctx context.Context, contentID int64) error {
	return s.store.Delete(ctx, contentID)
}

// Record returns the stored embedding row, or ErrEmbeddingNotFound.
func (s *Service) Record(ctx context.Context, contentID int64) (domain.EmbeddingRecord, error) {
	return s.store.Get(ctx, contentID)
}

// Count returns how many embeddings are stored.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

func (s *Service) provider(ctx context.Context) (domain.Settings, domain.Provider, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return domain.Settings{}, nil, fmt.Errorf("load settings: %w", err)
	}
	if !cfg.Configured() {
		return cfg, nil, domain.ErrNotConfigured
	}
	provider, err := s.registry.Build(cfg.Provider, cfg)
	if err != nil {
		return cfg, nil, err
	}
	if !provider.Available() {
		return cfg, nil, domain.ErrNotConfigured
	}
	return cfg, provider, nil
}

func (s *Service) current(ctx context.Context, id int64, hash string, provider domain.Provider) bool {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return false
	}
	return rec.ContentHash == hash &&
		rec.Provider == provider.Name() &&
		rec.Model == provider.Model()
}
