// Package voyage implements the Voyage AI embedding provider. Voyage has no
// Go SDK, so this talks to the JSON API directly.
package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/metrics"
)

const (
	defaultBaseURL = "https://api.voyageai.com/v1"
	dimensions     = 512
	maxInputTokens = 32000
	requestTimeout = 60 * time.Second
)

// Embedder is the Voyage AI embedding provider.
type Embedder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *zap.Logger
}

// Config holds the provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

var _ domain.Provider = (*Embedder)(nil)

// NewEmbedder creates a Voyage AI embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Embedder{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     cfg.Logger,
	}
}

func (e *Embedder) Name() string    { return "voyage" }
func (e *Embedder) Model() string   { return e.model }
func (e *Embedder) Dimensions() int { return dimensions }
func (e *Embedder) MaxTokens() int  { return maxInputTokens }

// Available reports whether credentials are present.
func (e *Embedder) Available() bool { return e.apiKey != "" }

// Embed vectorizes a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Detail string `json:"detail"`
}

// BatchEmbed vectorizes texts in one API call, reordered by the response
// index field. Any failure returns no vectors at all.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.Available() {
		return nil, domain.ErrNotConfigured
	}

	payload, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := e.httpClient.Do(req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.Name(), e.model, "transport").Inc()
		return nil, fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.Name(), e.model, "transport").Inc()
		return nil, fmt.Errorf("read embedding response: %v: %w", err, domain.ErrEmbeddingProviderError)
	}

	var parsed embeddingResponse
	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.Name(), e.model, "api_error").Inc()
		detail := string(body)
		if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
			detail = parsed.Detail
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("embedding API error 429: %s: %w", detail, domain.ErrRateLimited)
		}
		return nil, fmt.Errorf("embedding API error %d: %s: %w",
			resp.StatusCode, detail, domain.ErrEmbeddingProviderError)
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.Name(), e.model, "malformed").Inc()
		return nil, fmt.Errorf("parse embedding response: %v: %w", err, domain.ErrEmbeddingProviderError)
	}

	if len(parsed.Data) != len(texts) {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.Name(), e.model, "result_count").Inc()
		return nil, fmt.Errorf("embedding response has %d results for %d inputs: %w",
			len(parsed.Data), len(texts), domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.Name(), e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.Name(), e.model).Observe(duration.Seconds())

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("empty vector at index %d: %w", i, domain.ErrEmbeddingProviderError)
		}
		vectors[i] = item.Embedding
	}

	return vectors, nil
}
