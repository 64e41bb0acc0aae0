package domain

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// KeyPrefix namespaces every key this service writes to the store.
const KeyPrefix = "linkmesh:"

// Provider vectorizes prepared text. Implementations wrap an external API or
// a local fallback; all failure modes surface as an error with no partial
// vectors, so callers treat every input of a failed batch as failed.
type Provider interface {
	Name() string
	Model() string
	Dimensions() int
	MaxTokens() int
	// Available reports whether the provider can be used (credentials present).
	Available() bool
	Embed(ctx context.Context, text string) ([]float32, error)
	// BatchEmbed preserves positional correspondence with texts even when the
	// remote API answers out of order.
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderFactory builds a provider from the current settings snapshot.
type ProviderFactory func(s Settings) Provider

// ProviderRegistry maps provider names to factories. Adding a provider is a
// Register call, not a change to dispatch logic.
type ProviderRegistry struct {
	factories map[string]ProviderFactory
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{factories: make(map[string]ProviderFactory)}
}

// Register adds a factory under a name, replacing any previous one.
func (r *ProviderRegistry) Register(name string, f ProviderFactory) {
	r.factories[name] = f
}

// Build constructs the named provider, or ErrUnknownProvider.
func (r *ProviderRegistry) Build(name string, s Settings) (Provider, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, ErrUnknownProvider)
	}
	return f(s), nil
}

// Names lists registered provider names, sorted.
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EmbeddingRecord is one stored vector row, unique per content id. Replaced
// whenever the content hash of the prepared text changes.
type EmbeddingRecord struct {
	ContentID   int64
	Provider    string
	Model       string
	Dimensions  int
	Vector      []float32
	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VectorRow is a (content id, vector) pair yielded during corpus iteration.
type VectorRow struct {
	ContentID int64
	Vector    []float32
}
