// Package content implements the content store contract over the host CMS
// JSON API. The CMS owns the content; this client only reads it and writes
// back cluster assignments.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client talks to the CMS content API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Config holds the CMS connection settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://example.com/api".
	BaseURL string
	// Token is sent as a bearer credential when set.
	Token string
	// Timeout caps one request; zero means 30s.
	Timeout time.Duration
}

var _ domain.ContentStore = (*Client)(nil)

// NewClient creates a CMS content client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
	}
}

type contentDTO struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	Excerpt     string  `json:"excerpt"`
	Status      string  `json:"status"`
	Type        string  `json:"type"`
	Categories  []int64 `json:"categories"`
	Tags        []int64 `json:"tags"`
	PublishedAt string  `json:"published_at"`
	URL         string  `json:"url"`
	EditURL     string  `json:"edit_url"`
}

func (d contentDTO) toDomain() domain.ContentItem {
	item := domain.ContentItem{
		ID:         d.ID,
		Title:      d.Title,
		Body:       d.Body,
		Excerpt:    d.Excerpt,
		Status:     d.Status,
		Type:       d.Type,
		Categories: d.Categories,
		Tags:       d.Tags,
		URL:        d.URL,
		EditURL:    d.EditURL,
	}
	if t, err := time.Parse(time.RFC3339, d.PublishedAt); err == nil {
		item.PublishedAt = t
	}
	return item
}

// Get returns one content item, or ErrContentNotFound.
func (c *Client) Get(ctx context.Context, id int64) (domain.ContentItem, error) {
	var dto contentDTO
	err := c.doJSON(ctx, http.MethodGet, "/contents/"+strconv.FormatInt(id, 10), nil, &dto)
	if err != nil {
		return domain.ContentItem{}, err
	}
	return dto.toDomain(), nil
}

// FindIDs lists content ids matching the filter, newest first.
func (c *Client) FindIDs(ctx context.Context, types []string, status string, minLength int) ([]int64, error) {
	q := url.Values{}
	if len(types) > 0 {
		q.Set("types", strings.Join(types, ","))
	}
	if status != "" {
		q.Set("status", status)
	}
	if minLength > 0 {
		q.Set("min_length", strconv.Itoa(minLength))
	}

	var out struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/contents?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// ResolveURL maps a site URL to a content id, or ErrContentNotFound.
func (c *Client) ResolveURL(ctx context.Context, rawURL string) (int64, error) {
	q := url.Values{}
	q.Set("url", rawURL)

	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/resolve?"+q.Encode(), nil, &out); err != nil {
		return 0, err
	}
	if out.ID == 0 {
		return 0, domain.ErrContentNotFound
	}
	return out.ID, nil
}

// SetClusterID writes a cluster assignment back as content metadata.
func (c *Client) SetClusterID(ctx context.Context, id int64, clusterID int) error {
	body := map[string]int{"cluster_id": clusterID}
	return c.doJSON(ctx, http.MethodPut, "/contents/"+strconv.FormatInt(id, 10)+"/cluster", body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cms request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrContentNotFound
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("cms %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode cms response %s %s: %w", method, path, err)
	}
	return nil
}
