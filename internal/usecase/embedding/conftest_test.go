package embedding

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

type mockContents struct {
	getFn func(ctx context.Context, id int64) (domain.ContentItem, error)
}

func (m *mockContents) Get(ctx context.Context, id int64) (domain.ContentItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.ContentItem{}, domain.ErrContentNotFound
}

type mockStore struct {
	saved   []domain.EmbeddingRecord
	getFn   func(ctx context.Context, id int64) (domain.EmbeddingRecord, error)
	saveErr error
}

func (m *mockStore) Save(_ context.Context, rec *domain.EmbeddingRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, *rec)
	return nil
}

func (m *mockStore) Get(ctx context.Context, id int64) (domain.EmbeddingRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.EmbeddingRecord{}, domain.ErrEmbeddingNotFound
}

func (m *mockStore) Delete(_ context.Context, _ int64) error { return nil }
func (m *mockStore) Count(_ context.Context) (int64, error)  { return int64(len(m.saved)), nil }

// fakeProvider returns fixed-width vectors and records its batch sizes.
type fakeProvider struct {
	name       string
	model      string
	dims       int
	available  bool
	batchSizes []int
	embedErr   error
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Model() string    { return f.model }
func (f *fakeProvider) Dimensions() int  { return f.dims }
func (f *fakeProvider) MaxTokens() int   { return 8191 }
func (f *fakeProvider) Available() bool  { return f.available }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeProvider) BatchEmbed(_ context.Context, texts []string) ([][]float32, error) {
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

type stubRegistry struct {
	provider domain.Provider
	err      error
}

func (s *stubRegistry) Build(_ string, _ domain.Settings) (domain.Provider, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.provider, nil
}

type stubSettings struct {
	s   domain.Settings
	err error
}

func (s *stubSettings) Load(_ context.Context) (domain.Settings, error) {
	return s.s, s.err
}

func testSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.VoyageAPIKey = "vk-test"
	return s
}

func newTestService(t *testing.T, provider *fakeProvider) (*Service, *mockContents, *mockStore) {
	t.Helper()
	contents := &mockContents{}
	store := &mockStore{}
	svc := New(contents, store, &stubRegistry{provider: provider}, &stubSettings{s: testSettings()}, zap.NewNop())
	return svc, contents, store
}

func publishedItem(id int64, title, body string) domain.ContentItem {
	return domain.ContentItem{
		ID:     id,
		Title:  title,
		Body:   body,
		Status: domain.StatusPublished,
		Type:   "post",
	}
}
