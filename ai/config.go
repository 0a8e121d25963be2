// Package ai provides the embedding and LLM services used by the review
// pipeline.
package ai

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/reviewsense/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Cache     CacheConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    int // Request timeout in seconds
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2048
	Temperature float32 // default: 0
	Timeout     int     // Request timeout in seconds (default: 120)
}

// CacheConfig represents response cache configuration.
type CacheConfig struct {
	// DistanceThreshold is the maximum cosine distance between a query
	// embedding and a cached entry's embedding for the entry to count as a
	// hit. Calibrated against the configured embedding model.
	DistanceThreshold float64

	// TTL is the time-to-live of cached responses.
	TTL time.Duration
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:   p.EmbeddingProvider,
			Model:      p.EmbeddingModel,
			APIKey:     p.EmbeddingAPIKey,
			BaseURL:    p.EmbeddingBaseURL,
			Dimensions: p.EmbeddingDimensions,
			Timeout:    p.EmbeddingTimeout,
		},
		LLM: LLMConfig{
			Provider:  p.LLMProvider,
			Model:     p.LLMModel,
			APIKey:    p.LLMAPIKey,
			BaseURL:   p.LLMBaseURL,
			MaxTokens: 2048,
			// Deterministic output keeps responses reproducible for
			// near-duplicate queries served from the response cache.
			Temperature: 0,
			Timeout:     p.LLMTimeout,
		},
		Cache: CacheConfig{
			DistanceThreshold: p.CacheDistanceThreshold,
			TTL:               time.Duration(p.CacheTTLSeconds) * time.Second,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Embedding.Model == "" {
		return errors.New("embedding model required")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.Errorf("invalid embedding dimensions: %d", c.Embedding.Dimensions)
	}
	if c.LLM.Model == "" {
		return errors.New("LLM model required")
	}
	if c.Cache.DistanceThreshold < 0 || c.Cache.DistanceThreshold > 1 {
		return errors.Errorf("cache distance threshold out of range [0,1]: %f", c.Cache.DistanceThreshold)
	}
	return nil
}
