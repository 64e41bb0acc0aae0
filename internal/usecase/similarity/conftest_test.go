package similarity

import (
	"context"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

type mockEmbeddings struct {
	records map[int64]domain.EmbeddingRecord
}

func (m *mockEmbeddings) Get(_ context.Context, id int64) (domain.EmbeddingRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return domain.EmbeddingRecord{}, domain.ErrEmbeddingNotFound
	}
	return rec, nil
}

func (m *mockEmbeddings) Chunk(_ context.Context, afterID int64, limit int) ([]domain.VectorRow, int64, error) {
	ids := make([]int64, 0, len(m.records))
	for id := range m.records {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	rows := make([]domain.VectorRow, len(ids))
	for i, id := range ids {
		rows[i] = domain.VectorRow{ContentID: id, Vector: m.records[id].Vector}
	}
	var next int64
	if len(ids) == limit {
		next = ids[len(ids)-1]
	}
	return rows, next, nil
}

type mockGraph struct {
	inbound map[int64]int64
	links   map[[2]int64]bool
}

func (m *mockGraph) InboundCount(_ context.Context, targetID int64) (int64, error) {
	return m.inbound[targetID], nil
}

func (m *mockGraph) LinkExists(_ context.Context, sourceID, targetID int64) (bool, error) {
	return m.links[[2]int64{sourceID, targetID}], nil
}

type mockContents struct {
	items map[int64]domain.ContentItem
}

func (m *mockContents) Get(_ context.Context, id int64) (domain.ContentItem, error) {
	item, ok := m.items[id]
	if !ok {
		return domain.ContentItem{}, domain.ErrContentNotFound
	}
	return item, nil
}

type mockCache struct {
	saved map[int64][]domain.ScoreRow
}

func (m *mockCache) SaveScores(_ context.Context, sourceID int64, rows []domain.ScoreRow) error {
	if m.saved == nil {
		m.saved = make(map[int64][]domain.ScoreRow)
	}
	m.saved[sourceID] = rows
	return nil
}

type stubSettings struct{ s domain.Settings }

func (s *stubSettings) Load(_ context.Context) (domain.Settings, error) { return s.s, nil }

type fixture struct {
	engine     *Engine
	embeddings *mockEmbeddings
	graph      *mockGraph
	contents   *mockContents
	cache      *mockCache
	settings   *stubSettings
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		embeddings: &mockEmbeddings{records: make(map[int64]domain.EmbeddingRecord)},
		graph:      &mockGraph{inbound: make(map[int64]int64), links: make(map[[2]int64]bool)},
		contents:   &mockContents{items: make(map[int64]domain.ContentItem)},
		cache:      &mockCache{},
		settings:   &stubSettings{s: domain.DefaultSettings()},
		now:        time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(f.embeddings, f.graph, f.contents, f.cache, f.settings, zap.NewNop())
	f.engine.now = func() time.Time { return f.now }
	return f
}

// addContent registers a published item with a stored vector.
func (f *fixture) addContent(id int64, vec []float32, mutate ...func(*domain.ContentItem)) {
	item := domain.ContentItem{
		ID:          id,
		Title:       "Contenu",
		Status:      domain.StatusPublished,
		Type:        "post",
		PublishedAt: f.now.AddDate(-1, 0, 0),
	}
	for _, m := range mutate {
		m(&item)
	}
	f.contents.items[id] = item
	if vec != nil {
		f.embeddings.records[id] = domain.EmbeddingRecord{ContentID: id, Vector: vec}
	}
	// Non-orphan unless the test says otherwise.
	if _, ok := f.graph.inbound[id]; !ok {
		f.graph.inbound[id] = 1
	}
}
