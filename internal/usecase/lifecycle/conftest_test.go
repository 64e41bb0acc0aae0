package lifecycle

import (
	"context"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
)

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

func (m *mockContents) FindIDs(_ context.Context, types []string, status string, minLength int) ([]int64, error) {
	var ids []int64
	for id, item := range m.items {
		if item.Status != status {
			continue
		}
		ok := false
		for _, t := range types {
			if t == item.Type {
				ok = true
			}
		}
		if ok && len(item.Body) >= minLength {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type mockDetector struct {
	edges map[int64][]domain.LinkEdge
	err   error
}

func (m *mockDetector) Detect(_ context.Context, source domain.ContentItem) ([]domain.LinkEdge, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.edges[source.ID], nil
}

type mockGraph struct {
	replaced map[int64][]domain.LinkEdge
	deleted  []int64
}

func (m *mockGraph) ReplaceForSource(_ context.Context, sourceID int64, edges []domain.LinkEdge) error {
	m.replaced[sourceID] = edges
	return nil
}

func (m *mockGraph) DeleteForContent(_ context.Context, contentID int64) error {
	m.deleted = append(m.deleted, contentID)
	return nil
}

type mockEmbeddings struct {
	records map[int64]domain.EmbeddingRecord
	stale   map[int64]bool
	deleted []int64
}

func (m *mockEmbeddings) Record(_ context.Context, contentID int64) (domain.EmbeddingRecord, error) {
	rec, ok := m.records[contentID]
	if !ok {
		return domain.EmbeddingRecord{}, domain.ErrEmbeddingNotFound
	}
	return rec, nil
}

func (m *mockEmbeddings) NeedsRefresh(_ context.Context, item domain.ContentItem) (bool, error) {
	return m.stale[item.ID], nil
}

func (m *mockEmbeddings) Delete(_ context.Context, contentID int64) error {
	m.deleted = append(m.deleted, contentID)
	return nil
}

type mockCache struct {
	invalidated []int64
}

func (m *mockCache) InvalidateForContent(_ context.Context, contentID int64) error {
	m.invalidated = append(m.invalidated, contentID)
	return nil
}

type mockQueue struct {
	items    map[int64]domain.QueueItem
	enqueued map[int64]int
	removed  []int64
}

func (m *mockQueue) Enqueue(_ context.Context, contentID int64, priority int) error {
	m.enqueued[contentID] = priority
	return nil
}

func (m *mockQueue) Remove(_ context.Context, contentID int64) error {
	m.removed = append(m.removed, contentID)
	return nil
}

func (m *mockQueue) Get(_ context.Context, contentID int64) (domain.QueueItem, error) {
	item, ok := m.items[contentID]
	if !ok {
		return domain.QueueItem{}, db.ErrKeyNotFound
	}
	return item, nil
}

type mockSettings struct {
	settings domain.Settings
}

func (m *mockSettings) Load(_ context.Context) (domain.Settings, error) {
	return m.settings, nil
}

type fixture struct {
	contents   *mockContents
	detector   *mockDetector
	graph      *mockGraph
	embeddings *mockEmbeddings
	cache      *mockCache
	queue      *mockQueue
	service    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	contents := &mockContents{items: map[int64]domain.ContentItem{}}
	detector := &mockDetector{edges: map[int64][]domain.LinkEdge{}}
	graph := &mockGraph{replaced: map[int64][]domain.LinkEdge{}}
	embeddings := &mockEmbeddings{
		records: map[int64]domain.EmbeddingRecord{},
		stale:   map[int64]bool{},
	}
	cache := &mockCache{}
	queue := &mockQueue{items: map[int64]domain.QueueItem{}, enqueued: map[int64]int{}}
	settings := &mockSettings{settings: domain.DefaultSettings()}

	return &fixture{
		contents:   contents,
		detector:   detector,
		graph:      graph,
		embeddings: embeddings,
		cache:      cache,
		queue:      queue,
		service:    New(contents, detector, graph, embeddings, cache, queue, settings, zap.NewNop()),
	}
}

func (f *fixture) addPublished(id int64) {
	f.contents.items[id] = domain.ContentItem{
		ID:     id,
		Title:  "Titre",
		Body:   "<p>" + strings.Repeat("contenu long ", 20) + "</p>",
		Status: domain.StatusPublished,
		Type:   "post",
	}
}
