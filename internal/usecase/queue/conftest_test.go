package queue

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/usecase/embedding"
)

type mockStore struct {
	claimable []domain.QueueItem
	counts    domain.QueueCounts
	reclaimed int

	completedIDs []int64
	failedIDs    []int64
	failedMsgs   map[int64]string
	failedCaps   map[int64]int
	claimLimits  []int
	reclaimAges  []time.Duration
}

func (m *mockStore) ClaimBatch(_ context.Context, limit int) ([]domain.QueueItem, error) {
	m.claimLimits = append(m.claimLimits, limit)
	items := m.claimable
	if len(items) > limit {
		items = items[:limit]
	}
	m.claimable = m.claimable[len(items):]
	return items, nil
}

func (m *mockStore) MarkCompleted(_ context.Context, contentID int64) error {
	m.completedIDs = append(m.completedIDs, contentID)
	return nil
}

func (m *mockStore) MarkFailed(_ context.Context, contentID int64, message string, retryCap int) error {
	m.failedIDs = append(m.failedIDs, contentID)
	m.failedMsgs[contentID] = message
	m.failedCaps[contentID] = retryCap
	return nil
}

func (m *mockStore) ReclaimStale(_ context.Context, maxAge time.Duration) (int, error) {
	m.reclaimAges = append(m.reclaimAges, maxAge)
	return m.reclaimed, nil
}

func (m *mockStore) Counts(_ context.Context) (domain.QueueCounts, error) {
	return m.counts, nil
}

type mockEmbedder struct {
	batches [][]int64
	err     error
	// outcome overrides the default all-completed result per content id.
	outcome map[int64]embedding.Result
}

func (m *mockEmbedder) ComputeBatch(_ context.Context, ids []int64) ([]embedding.Result, error) {
	m.batches = append(m.batches, ids)
	results := make([]embedding.Result, len(ids))
	for i, id := range ids {
		if res, ok := m.outcome[id]; ok {
			results[i] = res
			continue
		}
		results[i] = embedding.Result{ContentID: id}
	}
	return results, m.err
}

type mockSettings struct {
	settings domain.Settings
}

func (m *mockSettings) Load(_ context.Context) (domain.Settings, error) {
	return m.settings, nil
}

type fixture struct {
	store    *mockStore
	embedder *mockEmbedder
	proc     *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := &mockStore{
		failedMsgs: map[int64]string{},
		failedCaps: map[int64]int{},
	}
	embedder := &mockEmbedder{outcome: map[int64]embedding.Result{}}
	settings := &mockSettings{settings: domain.DefaultSettings()}

	return &fixture{
		store:    store,
		embedder: embedder,
		proc:     New(store, embedder, settings, zap.NewNop(), 0, 0),
	}
}

func (f *fixture) pend(ids ...int64) {
	for _, id := range ids {
		f.store.claimable = append(f.store.claimable, domain.QueueItem{
			ContentID: id,
			Priority:  domain.PriorityDefault,
			Status:    domain.QueuePending,
		})
	}
}
