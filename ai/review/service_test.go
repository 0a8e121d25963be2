package review

import (
	"context"
	"database/sql"
	"hash/fnv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/reviewsense/ai"
	aicache "github.com/hrygo/reviewsense/ai/cache"
	"github.com/hrygo/reviewsense/internal/profile"
	"github.com/hrygo/reviewsense/store"
)

// memDriver is an in-memory store.Driver for pipeline tests.
type memDriver struct {
	reviews  []*store.Review
	hasIndex bool
}

func (d *memDriver) GetDB() *sql.DB { return nil }
func (d *memDriver) Close() error   { return nil }

func (d *memDriver) CreateIndex(ctx context.Context, schema store.IndexSchema, overwrite bool) error {
	if overwrite {
		d.reviews = nil
	}
	d.hasIndex = true
	return nil
}

func (d *memDriver) IndexExists(ctx context.Context, schema store.IndexSchema) (bool, error) {
	return d.hasIndex, nil
}

func (d *memDriver) CreateReview(ctx context.Context, review *store.Review) (*store.Review, error) {
	d.reviews = append(d.reviews, review)
	return review, nil
}

func (d *memDriver) SearchReviews(ctx context.Context, opts *store.SearchReviewsOptions) ([]*store.ReviewWithScore, error) {
	var results []*store.ReviewWithScore
	for _, r := range d.reviews {
		if r.ProductName != opts.ProductName {
			continue
		}
		results = append(results, &store.ReviewWithScore{Review: r, Score: 0.9})
		if len(results) == opts.Limit {
			break
		}
	}
	return results, nil
}

// stubEmbedder produces deterministic 384-dimensional vectors so identical
// texts always embed identically.
type stubEmbedder struct {
	calls int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	vec := make([]float32, 384)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 + 0.001
	}
	return vec, nil
}

func (e *stubEmbedder) Dimensions() int { return 384 }

// stubLLM answers each generation stage with a canned section, recognized
// by markers in the user prompt, and records the prompts it saw.
type stubLLM struct {
	calls          int
	failInsights   bool
	insightsPrompt string
}

func (l *stubLLM) Chat(ctx context.Context, messages []ai.Message) (string, *ai.LLMCallStats, error) {
	l.calls++
	prompt := messages[len(messages)-1].Content
	stats := &ai.LLMCallStats{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}

	switch {
	case strings.Contains(prompt, "Please provide detailed factual information about"):
		return "FACTUAL SECTION", stats, nil
	case strings.Contains(prompt, "USER REVIEWS:"):
		if l.failInsights {
			return "", nil, errors.New("model unavailable")
		}
		l.insightsPrompt = prompt
		return "INSIGHTS SECTION", stats, nil
	case strings.Contains(prompt, "no user reviews available"):
		if l.failInsights {
			return "", nil, errors.New("model unavailable")
		}
		l.insightsPrompt = prompt
		return "NO REVIEWS SECTION", stats, nil
	}
	return "", nil, errors.Errorf("unexpected prompt: %s", prompt)
}

func (l *stubLLM) Warmup(ctx context.Context) {}

func newTestStore(driver *memDriver) *store.Store {
	return store.New(driver, &profile.Profile{})
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, *aicache.SemanticCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, aicache.NewSemanticCache(client, aicache.DefaultSemanticCacheConfig())
}

func ingestReview(t *testing.T, svc *Service, product, body string) {
	t.Helper()
	msg, err := svc.Ingest(context.Background(), &ReviewData{
		ProductName:      product,
		ProductReview:    body,
		ProductRecommend: "yes",
	})
	require.NoError(t, err)
	assert.Equal(t, "Review stored successfully", msg)
}

func TestGenerateComposesBothSections(t *testing.T) {
	ctx := context.Background()
	driver := &memDriver{hasIndex: true}
	llm := &stubLLM{}
	svc := NewService(newTestStore(driver), &stubEmbedder{}, llm, nil, nil)

	ingestReview(t, svc, "Widget Pro", "Battery life is fantastic, lasted a full week.")
	ingestReview(t, svc, "Widget Pro", "The strap broke after a month.")
	ingestReview(t, svc, "Other Gadget", "Unrelated review that must not leak in.")

	result, err := svc.Generate(ctx, "Widget Pro")
	require.NoError(t, err)
	assert.Equal(t, "widget_pro", result.ProductName)
	assert.False(t, result.Cached)

	assert.Contains(t, result.Content, "## Product Overview")
	assert.Contains(t, result.Content, "FACTUAL SECTION")
	assert.Contains(t, result.Content, "## User Experience & Review Analysis")
	assert.Contains(t, result.Content, "INSIGHTS SECTION")

	// The insights stage received the stored reviews for this product only.
	assert.Contains(t, llm.insightsPrompt, "Battery life is fantastic")
	assert.Contains(t, llm.insightsPrompt, "The strap broke")
	assert.NotContains(t, llm.insightsPrompt, "Unrelated review")
	assert.Equal(t, 2, llm.calls)
}

func TestGenerateNoStoredReviews(t *testing.T) {
	ctx := context.Background()
	driver := &memDriver{hasIndex: true}
	llm := &stubLLM{}
	svc := NewService(newTestStore(driver), &stubEmbedder{}, llm, nil, nil)

	result, err := svc.Generate(ctx, "Unknown Gizmo")
	require.NoError(t, err)
	assert.Contains(t, result.Content, "NO REVIEWS SECTION")
	assert.Contains(t, llm.insightsPrompt, "unknown_gizmo")
}

func TestGenerateDegradesWithoutIndex(t *testing.T) {
	// A missing index must not fail generation; the pipeline answers from
	// model knowledge via the no-reviews prompt.
	ctx := context.Background()
	driver := &memDriver{hasIndex: false}
	llm := &stubLLM{}
	svc := NewService(newTestStore(driver), &stubEmbedder{}, llm, nil, nil)

	result, err := svc.Generate(ctx, "Widget Pro")
	require.NoError(t, err)
	assert.Contains(t, result.Content, "NO REVIEWS SECTION")
}

func TestGenerateCacheConvergence(t *testing.T) {
	// Casing and whitespace variants of a product name normalize to the
	// same cache query, so the second request is served from the cache
	// without invoking the generator again.
	ctx := context.Background()
	driver := &memDriver{hasIndex: true}
	llm := &stubLLM{}
	_, cache := newTestCache(t)
	svc := NewService(newTestStore(driver), &stubEmbedder{}, llm, cache, nil)

	first, err := svc.Generate(ctx, "Widget Pro")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	callsAfterFirst := llm.calls

	second, err := svc.Generate(ctx, "  widget pro ")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, callsAfterFirst, llm.calls, "cached response must not invoke the model")
}

func TestGenerateCacheExpiryRegenerates(t *testing.T) {
	ctx := context.Background()
	driver := &memDriver{hasIndex: true}
	llm := &stubLLM{}
	mr, cache := newTestCache(t)
	svc := NewService(newTestStore(driver), &stubEmbedder{}, llm, cache, nil)

	_, err := svc.Generate(ctx, "Widget Pro")
	require.NoError(t, err)
	callsAfterFirst := llm.calls

	mr.FastForward(31 * time.Minute)

	result, err := svc.Generate(ctx, "Widget Pro")
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Greater(t, llm.calls, callsAfterFirst)
}

func TestGenerateStageFailureAborts(t *testing.T) {
	ctx := context.Background()
	driver := &memDriver{hasIndex: true}
	llm := &stubLLM{failInsights: true}
	mr, cache := newTestCache(t)
	svc := NewService(newTestStore(driver), &stubEmbedder{}, llm, cache, nil)

	ingestReview(t, svc, "Widget Pro", "A fine product.")

	_, err := svc.Generate(ctx, "Widget Pro")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review analysis stage failed")

	// Nothing partial was cached.
	assert.Empty(t, mr.Keys())
}

func TestGenerateEmptyProductName(t *testing.T) {
	embedder := &stubEmbedder{}
	svc := NewService(newTestStore(&memDriver{hasIndex: true}), embedder, &stubLLM{}, nil, nil)

	_, err := svc.Generate(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, 0, embedder.calls, "validation must happen before any embedding")
}

func TestIngestValidation(t *testing.T) {
	svc := NewService(newTestStore(&memDriver{hasIndex: true}), &stubEmbedder{}, &stubLLM{}, nil, nil)

	_, err := svc.Ingest(context.Background(), &ReviewData{ProductReview: "text"})
	require.Error(t, err)

	_, err = svc.Ingest(context.Background(), &ReviewData{ProductName: "Widget Pro", ProductReview: "  "})
	require.Error(t, err)
}

func TestIngestStoresNormalized(t *testing.T) {
	driver := &memDriver{hasIndex: true}
	svc := NewService(newTestStore(driver), &stubEmbedder{}, &stubLLM{}, nil, nil)

	ingestReview(t, svc, "  Widget Pro  ", "Works as advertised.")

	require.Len(t, driver.reviews, 1)
	r := driver.reviews[0]
	assert.Equal(t, "widget_pro", r.ProductName)
	assert.True(t, strings.HasPrefix(r.Key, "review:"), "key %q", r.Key)
	assert.Len(t, r.Embedding, 384)
	assert.NotZero(t, r.CreatedTs)
}
