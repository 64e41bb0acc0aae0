package recommend

import (
	"context"
	"sort"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

type mockCache struct {
	has         map[int64]bool
	rows        map[int64][]domain.ScoreRow
	global      []domain.ScoreRow
	truncated   bool
	invalidated []int64
	count       int64
}

func (m *mockCache) Has(_ context.Context, sourceID int64) (bool, error) {
	return m.has[sourceID], nil
}

func (m *mockCache) TopN(_ context.Context, sourceID int64, n int) ([]domain.ScoreRow, error) {
	rows := m.rows[sourceID]
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func (m *mockCache) TopGlobal(_ context.Context, n int) ([]domain.ScoreRow, error) {
	rows := m.global
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func (m *mockCache) InvalidateForContent(_ context.Context, contentID int64) error {
	m.invalidated = append(m.invalidated, contentID)
	delete(m.has, contentID)
	delete(m.rows, contentID)
	return nil
}

func (m *mockCache) Truncate(_ context.Context) error {
	m.truncated = true
	m.has = map[int64]bool{}
	m.rows = map[int64][]domain.ScoreRow{}
	m.global = nil
	return nil
}

func (m *mockCache) Count(_ context.Context) (int64, error) {
	return m.count, nil
}

type mockComputer struct {
	computed []int64
	rows     map[int64][]domain.ScoreRow
	err      error
	// cache lets a compute call populate the paired mockCache, mimicking the
	// engine writing rows before the service re-reads them.
	cache *mockCache
}

func (m *mockComputer) ComputeForSource(_ context.Context, sourceID int64, _ int) ([]domain.ScoreRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.computed = append(m.computed, sourceID)
	rows := m.rows[sourceID]
	if m.cache != nil {
		m.cache.has[sourceID] = true
		m.cache.rows[sourceID] = rows
	}
	return rows, nil
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

func (m *mockContents) FindIDs(_ context.Context, _ []string, status string, _ int) ([]int64, error) {
	var ids []int64
	for id, item := range m.items {
		if item.Status == status {
			ids = append(ids, id)
		}
	}
	// map order is fine for the assertions below, but keep it stable anyway
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids, nil
}

type mockGraph struct {
	inbound map[int64]int64
	pairs   int64
}

func (m *mockGraph) InboundCount(_ context.Context, targetID int64) (int64, error) {
	return m.inbound[targetID], nil
}

func (m *mockGraph) PairCount(_ context.Context) (int64, error) {
	return m.pairs, nil
}

type mockIndex struct {
	ids        []int64
	pageLimits []int
}

func (m *mockIndex) Chunk(_ context.Context, afterID int64, limit int) ([]domain.VectorRow, int64, error) {
	m.pageLimits = append(m.pageLimits, limit)
	ids := append([]int64(nil), m.ids...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]domain.VectorRow, 0, limit)
	for _, id := range ids {
		if id <= afterID {
			continue
		}
		rows = append(rows, domain.VectorRow{ContentID: id})
		if len(rows) == limit {
			break
		}
	}
	var next int64
	if len(rows) == limit {
		next = rows[len(rows)-1].ContentID
	}
	return rows, next, nil
}

func (m *mockIndex) Count(_ context.Context) (int64, error) {
	return int64(len(m.ids)), nil
}

type mockSettings struct {
	settings domain.Settings
}

func (m *mockSettings) Load(_ context.Context) (domain.Settings, error) {
	return m.settings, nil
}

type fixture struct {
	cache    *mockCache
	computer *mockComputer
	contents *mockContents
	graph    *mockGraph
	index    *mockIndex
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cache := &mockCache{
		has:  map[int64]bool{},
		rows: map[int64][]domain.ScoreRow{},
	}
	computer := &mockComputer{rows: map[int64][]domain.ScoreRow{}, cache: cache}
	contents := &mockContents{items: map[int64]domain.ContentItem{}}
	graph := &mockGraph{inbound: map[int64]int64{}}
	index := &mockIndex{}
	settings := &mockSettings{settings: domain.DefaultSettings()}

	return &fixture{
		cache:    cache,
		computer: computer,
		contents: contents,
		graph:    graph,
		index:    index,
		service:  New(cache, computer, contents, graph, index, settings, zap.NewNop()),
	}
}

func (f *fixture) addPublished(id int64, title string) {
	f.contents.items[id] = domain.ContentItem{
		ID:     id,
		Title:  title,
		Status: domain.StatusPublished,
		Type:   "post",
		URL:    "https://example.com/" + title,
	}
}
