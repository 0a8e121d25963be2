package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const semanticNamespace = "llmcache"

const (
	fieldPrompt   = "prompt"
	fieldResponse = "response"
	fieldVector   = "vector"
)

// SemanticCacheConfig configures the response cache.
type SemanticCacheConfig struct {
	// DistanceThreshold is the maximum cosine distance between the query
	// embedding and a stored entry's embedding for a hit. The boundary is
	// inclusive: distance == threshold is a hit.
	DistanceThreshold float64

	// TTL is the time-to-live for cache entries.
	TTL time.Duration
}

// DefaultSemanticCacheConfig returns the default configuration.
func DefaultSemanticCacheConfig() SemanticCacheConfig {
	return SemanticCacheConfig{
		DistanceThreshold: 0.2,
		TTL:               30 * time.Minute,
	}
}

// SemanticEntry is a cached response with the query that produced it.
type SemanticEntry struct {
	Prompt   string
	Response string
	Vector   []float32

	// Distance is the cosine distance between the lookup vector and this
	// entry's vector, filled on Check.
	Distance float64
}

// SemanticCache memoizes generated responses in Redis, keyed by the
// similarity of the query embedding rather than the exact query text.
// A lookup is a hit when some unexpired entry's cosine distance to the
// query vector is within the threshold; the nearest such entry wins, so
// near-duplicate queries converge to one stored response until it expires.
type SemanticCache struct {
	client goredis.UniversalClient
	cfg    SemanticCacheConfig

	hits   atomic.Int64
	misses atomic.Int64
}

// NewSemanticCache creates a new SemanticCache.
func NewSemanticCache(client goredis.UniversalClient, cfg SemanticCacheConfig) *SemanticCache {
	if cfg.DistanceThreshold <= 0 || cfg.DistanceThreshold > 1 {
		cfg.DistanceThreshold = 0.2
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &SemanticCache{client: client, cfg: cfg}
}

// entryKey derives the storage key for a prompt.
func entryKey(prompt string) string {
	hash := sha256.Sum256([]byte(prompt))
	return semanticNamespace + ":" + hex.EncodeToString(hash[:8])
}

// Check looks up the cached response nearest to the query vector.
// Returns (nil, nil) on a miss. Expired entries are dropped by Redis TTL
// and never considered.
func (c *SemanticCache) Check(ctx context.Context, vector []float32) (*SemanticEntry, error) {
	bestKey, bestDistance, err := c.findNearest(ctx, vector)
	if err != nil {
		return nil, err
	}
	if bestKey == "" || bestDistance > c.cfg.DistanceThreshold {
		c.misses.Add(1)
		return nil, nil
	}

	fields, err := c.client.HGetAll(ctx, bestKey).Result()
	if err != nil {
		return nil, fmt.Errorf("semantic cache read: %w", err)
	}
	if len(fields) == 0 {
		// Entry expired between the scan and the read.
		c.misses.Add(1)
		return nil, nil
	}

	vec, err := decodeVector([]byte(fields[fieldVector]))
	if err != nil {
		return nil, err
	}

	c.hits.Add(1)
	return &SemanticEntry{
		Prompt:   fields[fieldPrompt],
		Response: fields[fieldResponse],
		Vector:   vec,
		Distance: bestDistance,
	}, nil
}

// Store inserts a response keyed by the query vector. Any existing entry
// within the distance threshold is superseded rather than accumulated, so
// near-duplicate queries keep a single cached response.
func (c *SemanticCache) Store(ctx context.Context, prompt, response string, vector []float32) error {
	// Drop in-threshold near-duplicates first (overwrite semantics).
	if err := c.deleteWithin(ctx, vector); err != nil {
		slog.Warn("semantic cache overwrite scan failed", "error", err)
	}

	key := entryKey(prompt)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldPrompt:   prompt,
		fieldResponse: response,
		fieldVector:   encodeVector(vector),
	})
	pipe.Expire(ctx, key, c.cfg.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("semantic cache store: %w", err)
	}
	return nil
}

// findNearest scans the cache namespace and returns the key of the entry
// nearest to the query vector with its cosine distance. The entry count is
// bounded by the TTL, so a full scan stays cheap.
func (c *SemanticCache) findNearest(ctx context.Context, vector []float32) (string, float64, error) {
	var (
		bestKey      string
		bestDistance = 2.0 // cosine distance upper bound
	)

	iter := c.client.Scan(ctx, 0, semanticNamespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := c.client.HGet(ctx, key, fieldVector).Bytes()
		if err != nil {
			if err == goredis.Nil {
				continue
			}
			return "", 0, fmt.Errorf("semantic cache scan: %w", err)
		}
		vec, err := decodeVector(data)
		if err != nil {
			slog.Warn("semantic cache entry has corrupt vector, skipping", "key", key)
			continue
		}

		if d := cosineDistance(vector, vec); d < bestDistance {
			bestDistance = d
			bestKey = key
		}
	}
	if err := iter.Err(); err != nil {
		return "", 0, fmt.Errorf("semantic cache scan: %w", err)
	}

	return bestKey, bestDistance, nil
}

// deleteWithin removes every entry within the distance threshold of the
// given vector.
func (c *SemanticCache) deleteWithin(ctx context.Context, vector []float32) error {
	iter := c.client.Scan(ctx, 0, semanticNamespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := c.client.HGet(ctx, key, fieldVector).Bytes()
		if err != nil {
			if err == goredis.Nil {
				continue
			}
			return err
		}
		vec, err := decodeVector(data)
		if err != nil {
			continue
		}
		if cosineDistance(vector, vec) <= c.cfg.DistanceThreshold {
			if err := c.client.Del(ctx, key).Err(); err != nil {
				return err
			}
		}
	}
	return iter.Err()
}

// Stats returns hit/miss counts.
func (c *SemanticCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
