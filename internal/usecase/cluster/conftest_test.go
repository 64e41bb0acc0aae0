package cluster

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

type mockCorpus struct {
	vectors map[int64][]float32
}

func (m *mockCorpus) Chunk(_ context.Context, afterID int64, limit int) ([]domain.VectorRow, int64, error) {
	ids := make([]int64, 0, len(m.vectors))
	for id := range m.vectors {
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
		rows[i] = domain.VectorRow{ContentID: id, Vector: m.vectors[id]}
	}
	var next int64
	if len(ids) == limit {
		next = ids[len(ids)-1]
	}
	return rows, next, nil
}

type mockContents struct {
	titles   map[int64]string
	assigned map[int64]int
}

func (m *mockContents) Get(_ context.Context, id int64) (domain.ContentItem, error) {
	title, ok := m.titles[id]
	if !ok {
		return domain.ContentItem{}, domain.ErrContentNotFound
	}
	return domain.ContentItem{ID: id, Title: title, Status: domain.StatusPublished}, nil
}

func (m *mockContents) SetClusterID(_ context.Context, id int64, clusterID int) error {
	m.assigned[id] = clusterID
	return nil
}

type fixture struct {
	corpus   *mockCorpus
	contents *mockContents
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	corpus := &mockCorpus{vectors: map[int64][]float32{}}
	contents := &mockContents{titles: map[int64]string{}, assigned: map[int64]int{}}

	svc := New(corpus, contents, zap.NewNop())
	svc.rng = rand.New(rand.NewSource(1))

	return &fixture{corpus: corpus, contents: contents, service: svc}
}

func (f *fixture) add(id int64, title string, vec []float32) {
	f.corpus.vectors[id] = vec
	f.contents.titles[id] = title
}
