package ai

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aicache "github.com/hrygo/reviewsense/ai/cache"
)

// countingEmbedder records how many times the model is invoked.
type countingEmbedder struct {
	calls int
}

func (m *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r)
	}
	return vec, nil
}

func (m *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (m *countingEmbedder) Dimensions() int { return 4 }

func newEmbeddingsCache(t *testing.T) *aicache.EmbeddingsCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return aicache.NewEmbeddingsCache(client)
}

func TestCachedEmbedderMemoizes(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	embedder := NewCachedEmbedder(inner, newEmbeddingsCache(t), "test-model")

	first, err := embedder.Embed(ctx, "great wireless headphones")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	second, err := embedder.Embed(ctx, "great wireless headphones")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "identical text must be served from cache")
	assert.Equal(t, first, second)

	_, err = embedder.Embed(ctx, "terrible wireless headphones")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "different text must reach the model")
}

func TestCachedEmbedderNilCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	embedder := NewCachedEmbedder(inner, nil, "test-model")

	for i := 0; i < 3; i++ {
		_, err := embedder.Embed(ctx, "same text")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
}

func TestCachedEmbedderBatch(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	embedder := NewCachedEmbedder(inner, newEmbeddingsCache(t), "test-model")

	vectors, err := embedder.EmbedBatch(ctx, []string{"alpha", "beta", "alpha"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[2])
	assert.Equal(t, 2, inner.calls)

	assert.Equal(t, 4, embedder.Dimensions())
}
