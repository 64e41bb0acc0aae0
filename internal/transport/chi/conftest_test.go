package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	clusteruc "github.com/kailas-cloud/linkmesh/internal/usecase/cluster"
	embeddinguc "github.com/kailas-cloud/linkmesh/internal/usecase/embedding"
	lifecycleuc "github.com/kailas-cloud/linkmesh/internal/usecase/lifecycle"
	recommenduc "github.com/kailas-cloud/linkmesh/internal/usecase/recommend"
)

type mockRecommender struct {
	recs          []domain.Recommendation
	recsErr       error
	gotSource     int64
	gotLimit      int
	gotExclude    bool
	opportunities []domain.Opportunity
	orphans       []recommenduc.OrphanPage
	stats         recommenduc.Stats
	recomputed    int
}

func (m *mockRecommender) Get(_ context.Context, sourceID int64, limit int, excludeLinked bool) ([]domain.Recommendation, error) {
	m.gotSource, m.gotLimit, m.gotExclude = sourceID, limit, excludeLinked
	return m.recs, m.recsErr
}

func (m *mockRecommender) Refresh(_ context.Context, _ int64) ([]domain.ScoreRow, error) {
	return nil, nil
}

func (m *mockRecommender) RecomputeAll(_ context.Context) (int, error) {
	return m.recomputed, nil
}

func (m *mockRecommender) Opportunities(_ context.Context, _ int) ([]domain.Opportunity, error) {
	return m.opportunities, nil
}

func (m *mockRecommender) Orphans(_ context.Context) ([]recommenduc.OrphanPage, error) {
	return m.orphans, nil
}

func (m *mockRecommender) DashboardStats(_ context.Context) (recommenduc.Stats, error) {
	return m.stats, nil
}

type mockClusterer struct {
	result clusteruc.Result
	gotK   int
}

func (m *mockClusterer) Recompute(_ context.Context, k int) (clusteruc.Result, error) {
	m.gotK = k
	return m.result, nil
}

type mockLifecycle struct {
	saved     []int64
	deleted   []int64
	refreshed []int64
	outcome   lifecycleuc.SaveOutcome
	status    lifecycleuc.ContentStatus
	statusErr error
	report    lifecycleuc.BulkReport
}

func (m *mockLifecycle) OnSaved(_ context.Context, contentID int64) (lifecycleuc.SaveOutcome, error) {
	m.saved = append(m.saved, contentID)
	return m.outcome, nil
}

func (m *mockLifecycle) OnDeleted(_ context.Context, contentID int64) error {
	m.deleted = append(m.deleted, contentID)
	return nil
}

func (m *mockLifecycle) BulkVectorize(_ context.Context) (lifecycleuc.BulkReport, error) {
	return m.report, nil
}

func (m *mockLifecycle) BulkScanLinks(_ context.Context) (lifecycleuc.BulkReport, error) {
	return m.report, nil
}

func (m *mockLifecycle) Status(_ context.Context, _ int64) (lifecycleuc.ContentStatus, error) {
	return m.status, m.statusErr
}

func (m *mockLifecycle) ForceRefresh(_ context.Context, contentID int64) error {
	m.refreshed = append(m.refreshed, contentID)
	return nil
}

type mockQueueReader struct {
	counts domain.QueueCounts
}

func (m *mockQueueReader) Status(_ context.Context) (domain.QueueCounts, error) {
	return m.counts, nil
}

type mockEmbedder struct {
	info embeddinguc.ProviderInfo
	err  error
}

func (m *mockEmbedder) TestProvider(_ context.Context) (embeddinguc.ProviderInfo, error) {
	return m.info, m.err
}

type mockSettingsStore struct {
	settings domain.Settings
}

func (m *mockSettingsStore) Load(_ context.Context) (domain.Settings, error) {
	return m.settings, nil
}

func (m *mockSettingsStore) Save(_ context.Context, s domain.Settings) error {
	s.Normalize()
	m.settings = s
	return nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

type fixture struct {
	recommender *mockRecommender
	clusterer   *mockClusterer
	lifecycle   *mockLifecycle
	queue       *mockQueueReader
	embedder    *mockEmbedder
	settings    *mockSettingsStore
	pinger      *mockPinger
	kicks       int
	server      *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		recommender: &mockRecommender{},
		clusterer:   &mockClusterer{},
		lifecycle:   &mockLifecycle{},
		queue:       &mockQueueReader{},
		embedder:    &mockEmbedder{},
		settings:    &mockSettingsStore{settings: domain.DefaultSettings()},
		pinger:      &mockPinger{},
	}
	f.server = NewServer(
		f.recommender, f.clusterer, f.lifecycle, f.queue,
		f.embedder, f.settings, f.pinger, zap.NewNop(),
	).WithKick(func() { f.kicks++ })
	return f
}

// serve runs a request through the full router as an admin.
func (f *fixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req.WithContext(withTier(req.Context(), tierAdmin)))
	return rec
}

// serveAs runs a request with an explicit tier.
func (f *fixture) serveAs(req *http.Request, t tier) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req.WithContext(withTier(req.Context(), t)))
	return rec
}
