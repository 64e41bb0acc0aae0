package domain

import "context"

// Settings is the operator-editable configuration, persisted as an opaque
// key-value blob in the store. A fresh snapshot is loaded per operation;
// there is no process-wide mutable cache to invalidate.
type Settings struct {
	Provider         string `json:"provider"`
	VoyageAPIKey     string `json:"voyage_api_key"`
	OpenAIAPIKey     string `json:"openai_api_key"`
	VoyageModel      string `json:"voyage_model"`
	OpenAIModel      string `json:"openai_model"`
	OpenAIDimensions int    `json:"openai_dimensions"`

	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxRecommendations  int     `json:"max_recommendations"`
	BonusSameCategory   float64 `json:"bonus_same_category"`
	BonusSharedTag      float64 `json:"bonus_shared_tag"`
	BonusOrphanTarget   float64 `json:"bonus_orphan_target"`
	BonusFreshContent   float64 `json:"bonus_fresh_content"`
	FreshnessDays       int     `json:"freshness_days"`

	ContentTypes     []string `json:"content_types"`
	MinContentLength int      `json:"min_content_length"`

	APIBatchSize int  `json:"api_batch_size"`
	DebugLogging bool `json:"debug_logging"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Provider:            "voyage",
		VoyageModel:         "voyage-4-lite",
		OpenAIModel:         "text-embedding-3-small",
		OpenAIDimensions:    512,
		SimilarityThreshold: 0.10,
		MaxRecommendations:  5,
		BonusSameCategory:   0.05,
		BonusSharedTag:      0.02,
		BonusOrphanTarget:   0.08,
		BonusFreshContent:   0.03,
		FreshnessDays:       30,
		ContentTypes:        []string{"post", "page"},
		MinContentLength:    100,
		APIBatchSize:        10,
	}
}

// Normalize clamps out-of-range values to their documented bounds.
func (s Settings) Normalize() Settings {
	s.SimilarityThreshold = clampFloat(s.SimilarityThreshold, 0.01, 0.99)
	s.MaxRecommendations = clampInt(s.MaxRecommendations, 1, 20)
	s.MinContentLength = clampInt(s.MinContentLength, 0, 10000)
	if s.APIBatchSize < 1 {
		s.APIBatchSize = 1
	}
	if s.FreshnessDays < 0 {
		s.FreshnessDays = 0
	}
	if len(s.ContentTypes) == 0 {
		s.ContentTypes = []string{"post", "page"}
	}
	return s
}

// APIKey returns the credential for the active provider.
func (s Settings) APIKey() string {
	switch s.Provider {
	case "voyage":
		return s.VoyageAPIKey
	case "openai":
		return s.OpenAIAPIKey
	}
	return ""
}

// Configured reports whether embedding can run: the local provider needs no
// credentials, remote providers need an API key.
func (s Settings) Configured() bool {
	if s.Provider == "local" {
		return true
	}
	return s.APIKey() != ""
}

// SettingsSource loads the current settings snapshot.
type SettingsSource interface {
	Load(ctx context.Context) (Settings, error)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
