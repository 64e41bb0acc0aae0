// Package local provides a deterministic embedding provider that needs no
// external API. Vectors come from hashing token frequencies into a fixed
// number of buckets, then L2-normalizing. Quality is far below a real model,
// but the provider is always available and the same text always maps to the
// same vector, which keeps the rest of the pipeline testable offline.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

const (
	dimensions = 256
	// maxInputTokens is generous on purpose; there is no remote limit to respect.
	maxInputTokens = 100000
)

// Provider is the local frequency-hash embedding provider.
type Provider struct{}

var _ domain.Provider = (*Provider)(nil)

// NewProvider creates the local provider.
func NewProvider() *Provider { return &Provider{} }

func (p *Provider) Name() string    { return "local" }
func (p *Provider) Model() string   { return "frequency-hash-v1" }
func (p *Provider) Dimensions() int { return dimensions }
func (p *Provider) MaxTokens() int  { return maxInputTokens }

// Available always reports true; no credentials are involved.
func (p *Provider) Available() bool { return true }

// Embed builds a deterministic vector from token frequencies.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, dimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}

	return vec, nil
}

// BatchEmbed embeds each text independently; it cannot fail.
func (p *Provider) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}
