package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"
)

const embeddingsNamespace = "embedcache"

// EmbeddingsCache memoizes text embeddings in Redis, keyed by the exact
// text (and the model that produced the vector). Entries have no expiry:
// an embedding for a given model+text pair never goes stale, and the
// namespace is isolated under "embedcache:" so operators can bound growth
// with a Redis-side eviction policy if needed. The cache is independent of
// the review index and survives index recreation.
type EmbeddingsCache struct {
	client goredis.UniversalClient

	hits   atomic.Int64
	misses atomic.Int64
}

// NewEmbeddingsCache creates a new EmbeddingsCache.
func NewEmbeddingsCache(client goredis.UniversalClient) *EmbeddingsCache {
	return &EmbeddingsCache{client: client}
}

// entryKey derives the storage key for a model+text pair.
func (c *EmbeddingsCache) entryKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return embeddingsNamespace + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

// Get retrieves the cached vector for the exact model+text pair.
// Returns (nil, false, nil) on a miss.
func (c *EmbeddingsCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, c.entryKey(model, text)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			c.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("embedding cache get: %w", err)
	}

	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	c.hits.Add(1)
	return vec, true, nil
}

// Set stores a vector for the exact model+text pair, with no expiry.
func (c *EmbeddingsCache) Set(ctx context.Context, model, text string, vec []float32) error {
	if err := c.client.Set(ctx, c.entryKey(model, text), encodeVector(vec), 0).Err(); err != nil {
		return fmt.Errorf("embedding cache set: %w", err)
	}
	return nil
}

// Stats returns hit/miss counts.
func (c *EmbeddingsCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
