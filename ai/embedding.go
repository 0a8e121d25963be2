package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	aicache "github.com/hrygo/reviewsense/ai/cache"
)

// EmbeddingService is the vector embedding service interface.
type EmbeddingService interface {
	// Embed generates vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

type embeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

// NewEmbeddingService creates a new EmbeddingService over any
// OpenAI-compatible provider (openai, siliconflow, ollama, etc.).
func NewEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	client := openai.NewClientWithConfig(clientConfig)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}

	return &embeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    time.Duration(timeout) * time.Second,
	}, nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(s.model),
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != s.dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: model returned %d, configured %d", len(data.Embedding), s.dimensions)
		}
		vectors[i] = data.Embedding
	}

	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}

// CachedEmbedder wraps an EmbeddingService with an exact-match cache so
// that embedding the same text twice does not re-invoke the model. Cache
// failures degrade to a direct model call; they never fail the embedding.
type CachedEmbedder struct {
	inner EmbeddingService
	cache *aicache.EmbeddingsCache
	model string
}

// NewCachedEmbedder creates a CachedEmbedder. A nil cache disables
// memoization (every call reaches the model).
func NewCachedEmbedder(inner EmbeddingService, cache *aicache.EmbeddingsCache, model string) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, model: model}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		vec, found, err := e.cache.Get(ctx, e.model, text)
		if err != nil {
			slog.Warn("embedding cache lookup failed", "error", err)
		} else if found {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, e.model, text, vec); err != nil {
			slog.Warn("embedding cache store failed", "error", err)
		}
	}
	return vec, nil
}

func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}
