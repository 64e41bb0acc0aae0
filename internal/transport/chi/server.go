// Package chi exposes the HTTP API: recommendations, dashboard views,
// settings, bulk actions, queue status, per-content status and the host-CMS
// change hooks.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
	clusteruc "github.com/kailas-cloud/linkmesh/internal/usecase/cluster"
	embeddinguc "github.com/kailas-cloud/linkmesh/internal/usecase/embedding"
	lifecycleuc "github.com/kailas-cloud/linkmesh/internal/usecase/lifecycle"
	recommenduc "github.com/kailas-cloud/linkmesh/internal/usecase/recommend"
	"github.com/kailas-cloud/linkmesh/internal/version"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest    = "bad_request"
	codeUnauthorized  = "unauthorized"
	codeForbidden     = "forbidden"
	codeNotFound      = "content_not_found"
	codeNoEmbedding   = "embedding_not_found"
	codeValidation    = "validation_failed"
	codeNotConfigured = "provider_not_configured"
	codeRateLimited   = "rate_limited"
	codeProviderError = "embedding_provider_error"
	codeInternalError = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Recommender serves recommendation and dashboard queries.
type Recommender interface {
	Get(ctx context.Context, sourceID int64, limit int, excludeLinked bool) ([]domain.Recommendation, error)
	Refresh(ctx context.Context, sourceID int64) ([]domain.ScoreRow, error)
	RecomputeAll(ctx context.Context) (int, error)
	Opportunities(ctx context.Context, limit int) ([]domain.Opportunity, error)
	Orphans(ctx context.Context) ([]recommenduc.OrphanPage, error)
	DashboardStats(ctx context.Context) (recommenduc.Stats, error)
}

// Clusterer recomputes topical clusters.
type Clusterer interface {
	Recompute(ctx context.Context, k int) (clusteruc.Result, error)
}

// Lifecycle handles content-change hooks, bulk actions and per-content status.
type Lifecycle interface {
	OnSaved(ctx context.Context, contentID int64) (lifecycleuc.SaveOutcome, error)
	OnDeleted(ctx context.Context, contentID int64) error
	BulkVectorize(ctx context.Context) (lifecycleuc.BulkReport, error)
	BulkScanLinks(ctx context.Context) (lifecycleuc.BulkReport, error)
	Status(ctx context.Context, contentID int64) (lifecycleuc.ContentStatus, error)
	ForceRefresh(ctx context.Context, contentID int64) error
}

// QueueReader reports queue counters.
type QueueReader interface {
	Status(ctx context.Context) (domain.QueueCounts, error)
}

// Embedder runs the provider connectivity self-test.
type Embedder interface {
	TestProvider(ctx context.Context) (embeddinguc.ProviderInfo, error)
}

// SettingsStore loads and saves the persisted settings blob.
type SettingsStore interface {
	Load(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, s domain.Settings) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	recommender Recommender
	clusterer   Clusterer
	lifecycle   Lifecycle
	queue       QueueReader
	embedder    Embedder
	settings    SettingsStore
	pinger      db.Pinger
	// kick wakes the background drain after work is queued. Optional.
	kick          func()
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	recommender Recommender, clusterer Clusterer, lifecycle Lifecycle,
	queue QueueReader, embedder Embedder, settings SettingsStore,
	pinger db.Pinger, logger *zap.Logger,
) *Server {
	s := &Server{
		recommender: recommender,
		clusterer:   clusterer,
		lifecycle:   lifecycle,
		queue:       queue,
		embedder:    embedder,
		settings:    settings,
		pinger:      pinger,
		kick:        func() {},
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrContentNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrEmbeddingNotFound, http.StatusNotFound, codeNoEmbedding),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidation),
		sentinelHandler(domain.ErrUnknownProvider, http.StatusBadRequest, codeValidation),
		sentinelHandler(domain.ErrNotConfigured, http.StatusConflict, codeNotConfigured),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// WithKick sets the callback that wakes the background queue drain.
func (s *Server) WithKick(kick func()) *Server {
	if kick != nil {
		s.kick = kick
	}
	return s
}

// Routes builds the API router. Auth and observability middleware are added
// by the caller around this.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(RequireEditor)
		r.Get("/recommendations/{id}", s.GetRecommendations)
		r.Get("/status/content/{id}", s.GetContentStatus)
		r.Post("/status/content/{id}/refresh", s.RefreshContent)
		r.Post("/hooks/content/{id}/saved", s.ContentSaved)
		r.Post("/hooks/content/{id}/deleted", s.ContentDeleted)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/dashboard/top-opportunities", s.GetTopOpportunities)
		r.Get("/dashboard/stats", s.GetDashboardStats)
		r.Get("/dashboard/orphans", s.GetOrphans)
		r.Get("/settings", s.GetSettings)
		r.Put("/settings", s.UpdateSettings)
		r.Post("/settings/test-provider", s.TestProvider)
		r.Post("/bulk/vectorize", s.BulkVectorize)
		r.Post("/bulk/scan-links", s.BulkScanLinks)
		r.Post("/bulk/recompute-similarities", s.RecomputeSimilarities)
		r.Post("/clusters/recompute", s.RecomputeClusters)
		r.Get("/status/queue", s.GetQueueStatus)
	})

	return r
}

// GetRecommendations handles GET /recommendations/{id}.
func (s *Server) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 0, 1, 20)
	if !ok {
		return
	}
	excludeLinked := r.URL.Query().Get("exclude_linked") == "true"

	recs, err := s.recommender.Get(r.Context(), id, limit, excludeLinked)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source_id":       id,
		"recommendations": recs,
	})
}

// GetTopOpportunities handles GET /dashboard/top-opportunities.
func (s *Server) GetTopOpportunities(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0, 1, 100)
	if !ok {
		return
	}

	opps, err := s.recommender.Opportunities(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps})
}

// GetDashboardStats handles GET /dashboard/stats.
func (s *Server) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.recommender.DashboardStats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	counts, err := s.queue.Status(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"queue": queuePayload(counts),
	})
}

// GetOrphans handles GET /dashboard/orphans.
func (s *Server) GetOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := s.recommender.Orphans(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orphans": orphans,
		"count":   len(orphans),
	})
}

// maskValue replaces stored API keys in settings reads. Submitting it back
// unchanged keeps the stored key.
const maskValue = "********"

// GetSettings handles GET /settings. API keys are masked.
func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.Load(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, maskKeys(cfg))
}

// UpdateSettings handles PUT /settings. The body merges over current
// settings; unknown keys are rejected and masked API keys keep their stored
// value.
func (s *Server) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Load(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	next := current
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid settings body: "+err.Error())
		return
	}
	if next.VoyageAPIKey == maskValue {
		next.VoyageAPIKey = current.VoyageAPIKey
	}
	if next.OpenAIAPIKey == maskValue {
		next.OpenAIAPIKey = current.OpenAIAPIKey
	}

	if err := s.settings.Save(r.Context(), next); err != nil {
		s.handleDomainError(w, err)
		return
	}

	saved, err := s.settings.Load(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, maskKeys(saved))
}

// TestProvider handles POST /settings/test-provider. Failures are part of
// the payload, not HTTP errors: the operator wants the message either way.
func (s *Server) TestProvider(w http.ResponseWriter, r *http.Request) {
	info, err := s.embedder.TestProvider(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": safeDomainMessage(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"provider":   info.Provider,
		"model":      info.Model,
		"dimensions": info.Dimensions,
	})
}

// BulkVectorize handles POST /bulk/vectorize.
func (s *Server) BulkVectorize(w http.ResponseWriter, r *http.Request) {
	report, err := s.lifecycle.BulkVectorize(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.kick()
	writeJSON(w, http.StatusAccepted, report)
}

// BulkScanLinks handles POST /bulk/scan-links.
func (s *Server) BulkScanLinks(w http.ResponseWriter, r *http.Request) {
	report, err := s.lifecycle.BulkScanLinks(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RecomputeSimilarities handles POST /bulk/recompute-similarities.
func (s *Server) RecomputeSimilarities(w http.ResponseWriter, r *http.Request) {
	count, err := s.recommender.RecomputeAll(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recomputed": count})
}

// RecomputeClusters handles POST /clusters/recompute. Accepts an optional
// ?k= override; without it k is derived from the corpus size.
func (s *Server) RecomputeClusters(w http.ResponseWriter, r *http.Request) {
	k, ok := queryInt(w, r, "k", 0, 2, 1000)
	if !ok {
		return
	}

	result, err := s.clusterer.Recompute(r.Context(), k)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetQueueStatus handles GET /status/queue.
func (s *Server) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queue.Status(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queuePayload(counts))
}

// GetContentStatus handles GET /status/content/{id}.
func (s *Server) GetContentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	status, err := s.lifecycle.Status(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RefreshContent handles POST /status/content/{id}/refresh.
func (s *Server) RefreshContent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := s.lifecycle.ForceRefresh(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.kick()
	writeJSON(w, http.StatusAccepted, map[string]any{"content_id": id, "queued": true})
}

// ContentSaved handles POST /hooks/content/{id}/saved.
func (s *Server) ContentSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	outcome, err := s.lifecycle.OnSaved(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if outcome.Queued {
		s.kick()
	}
	writeJSON(w, http.StatusOK, outcome)
}

// ContentDeleted handles POST /hooks/content/{id}/deleted.
func (s *Server) ContentDeleted(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := s.lifecycle.OnDeleted(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content_id": id, "purged": true})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"version": version.Version,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func queuePayload(counts domain.QueueCounts) map[string]any {
	return map[string]any{
		"pending":          counts.Pending,
		"processing":       counts.Processing,
		"completed":        counts.Completed,
		"failed":           counts.Failed,
		"total":            counts.Total,
		"percent_complete": counts.PercentComplete(),
	}
}

// maskedSettings is the settings read payload with credentials hidden.
type maskedSettings struct {
	domain.Settings
	VoyageAPIKey string `json:"voyage_api_key"`
	OpenAIAPIKey string `json:"openai_api_key"`
}

func maskKeys(cfg domain.Settings) maskedSettings {
	out := maskedSettings{Settings: cfg}
	out.Settings.VoyageAPIKey = ""
	out.Settings.OpenAIAPIKey = ""
	if cfg.VoyageAPIKey != "" {
		out.VoyageAPIKey = maskValue
	}
	if cfg.OpenAIAPIKey != "" {
		out.OpenAIAPIKey = maskValue
	}
	return out
}

func urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid content id")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter. Zero means absent;
// out-of-range values are rejected rather than clamped.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		writeError(w, http.StatusBadRequest, codeBadRequest,
			name+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrContentNotFound,
		domain.ErrEmbeddingNotFound,
		domain.ErrInvalidInput,
		domain.ErrUnknownProvider,
		domain.ErrNotConfigured,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler matching a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
