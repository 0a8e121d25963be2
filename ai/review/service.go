// Package review implements review ingestion and the two-stage review
// generation pipeline.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/reviewsense/ai"
	aicache "github.com/hrygo/reviewsense/ai/cache"
	"github.com/hrygo/reviewsense/ai/metrics"
	"github.com/hrygo/reviewsense/store"
)

// contextReviewLimit is the maximum number of stored reviews retrieved as
// context for the insights stage.
const contextReviewLimit = 50

// Embedder is the embedding dependency of the pipeline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ResponseCache is the similarity-keyed response cache dependency. A nil
// cache disables response caching.
type ResponseCache interface {
	Check(ctx context.Context, vector []float32) (*aicache.SemanticEntry, error)
	Store(ctx context.Context, prompt, response string, vector []float32) error
}

// ReviewData is a submitted review as received from the web layer.
type ReviewData struct {
	ProductName      string `json:"product_name"`
	ProductURL       string `json:"product_url"`
	ProductImage     string `json:"product_image"`
	ProductReview    string `json:"product_review"`
	ProductRecommend string `json:"product_recommend"`
}

// GeneratedReview is the result of the generation pipeline.
type GeneratedReview struct {
	ProductName string `json:"product_name"`
	Content     string `json:"content"`

	// Cached is true when the response was served from the response cache
	// without invoking the generator.
	Cached bool `json:"cached"`
}

// Service coordinates the embedder, the vector store, the response cache
// and the generative model. All dependencies are injected; there is no
// process-global state.
type Service struct {
	store    *store.Store
	embedder Embedder
	llm      ai.LLMService
	cache    ResponseCache
	exporter *metrics.Exporter
}

// NewService creates a review Service. cache may be nil (caching
// disabled); exporter may be nil (metrics disabled).
func NewService(st *store.Store, embedder Embedder, llm ai.LLMService, cache ResponseCache, exporter *metrics.Exporter) *Service {
	return &Service{
		store:    st,
		embedder: embedder,
		llm:      llm,
		cache:    cache,
		exporter: exporter,
	}
}

// Generate produces a synthesized review for the product. The pipeline is
// strictly sequential: normalize, embed the canonical query, check the
// response cache, and on a miss run the two generation stages, store the
// composed result, and return it. Any stage error aborts the request; a
// partially composed review is never returned.
func (s *Service) Generate(ctx context.Context, productName string) (*GeneratedReview, error) {
	normalized := store.NormalizeProductName(productName)
	if normalized == "" {
		return nil, errors.New("product name required")
	}

	// The cache key is the embedding of the canonical review request for
	// this product, computed before any generation work.
	query := cacheQuery(normalized)
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.recordGeneration("failed")
		return nil, fmt.Errorf("failed to embed cache query: %w", err)
	}

	if s.cache != nil {
		entry, err := s.cache.Check(ctx, queryVector)
		if err != nil {
			// A cache failure degrades to a miss; generation still runs.
			slog.Warn("response cache lookup failed", "error", err)
		} else if entry != nil {
			slog.Debug("response cache hit", "product", normalized, "distance", entry.Distance)
			s.recordCache(true)
			s.recordGeneration("cached")
			return &GeneratedReview{ProductName: normalized, Content: entry.Response, Cached: true}, nil
		}
		s.recordCache(false)
	}

	factualInfo, err := s.factualInformation(ctx, normalized)
	if err != nil {
		s.recordGeneration("failed")
		return nil, err
	}

	reviewContext, err := s.retrieveContext(ctx, normalized)
	if err != nil {
		s.recordGeneration("failed")
		return nil, err
	}

	userInsights, err := s.analyzeUserReviews(ctx, normalized, reviewContext)
	if err != nil {
		s.recordGeneration("failed")
		return nil, err
	}

	combined := composeReview(factualInfo, userInsights)

	if s.cache != nil {
		// A cache write failure never fails a response that has already
		// been composed.
		if err := s.cache.Store(ctx, query, combined, queryVector); err != nil {
			slog.Warn("response cache store failed", "error", err)
		}
	}

	s.recordGeneration("generated")
	return &GeneratedReview{ProductName: normalized, Content: combined, Cached: false}, nil
}

// factualInformation runs the first generation stage: context-free factual
// product knowledge.
func (s *Service) factualInformation(ctx context.Context, productName string) (string, error) {
	start := time.Now()
	content, stats, err := s.llm.Chat(ctx, []ai.Message{
		ai.SystemPrompt(factualSystemPrompt),
		ai.UserMessage(factualUserPrompt(productName)),
	})
	if err != nil {
		return "", fmt.Errorf("factual information stage failed: %w", err)
	}
	s.observeStage("factual", start, stats)
	return content, nil
}

// retrieveContext embeds the insights query and fetches the nearest stored
// reviews for the product, newline-joined in similarity order. An empty
// result is valid. A missing index degrades to an empty context so the
// pipeline still answers from model knowledge alone.
func (s *Service) retrieveContext(ctx context.Context, productName string) (string, error) {
	start := time.Now()

	queryVector, err := s.embedder.Embed(ctx, insightsQuery(productName))
	if err != nil {
		return "", fmt.Errorf("failed to embed insights query: %w", err)
	}

	results, err := s.store.SearchReviews(ctx, &store.SearchReviewsOptions{
		Vector:      queryVector,
		ProductName: productName,
		Limit:       contextReviewLimit,
	})
	if err != nil {
		if errors.Is(err, store.ErrIndexNotFound) {
			slog.Warn("review index unavailable, generating without stored reviews", "product", productName)
			return "", nil
		}
		return "", fmt.Errorf("failed to retrieve review context: %w", err)
	}

	bodies := make([]string, 0, len(results))
	for _, r := range results {
		bodies = append(bodies, r.Review.ProductReview)
	}
	s.observeStage("retrieval", start, nil)
	slog.Debug("retrieved review context", "product", productName, "reviews", len(results))

	return strings.Join(bodies, "\n"), nil
}

// analyzeUserReviews runs the second generation stage. When the context is
// empty the model is told explicitly that no reviews are available instead
// of being handed an empty blob.
func (s *Service) analyzeUserReviews(ctx context.Context, productName, reviewContext string) (string, error) {
	userPrompt := noReviewsUserPrompt(productName)
	if strings.TrimSpace(reviewContext) != "" {
		userPrompt = insightsUserPrompt(productName, reviewContext)
	}

	start := time.Now()
	content, stats, err := s.llm.Chat(ctx, []ai.Message{
		ai.SystemPrompt(insightsSystemPrompt),
		ai.UserMessage(userPrompt),
	})
	if err != nil {
		return "", fmt.Errorf("review analysis stage failed: %w", err)
	}
	s.observeStage("insights", start, stats)
	return content, nil
}

// Ingest normalizes, embeds and persists a submitted review. The returned
// message describes the outcome; the review is durable only when the error
// is nil.
func (s *Service) Ingest(ctx context.Context, data *ReviewData) (string, error) {
	start := time.Now()

	normalized := store.NormalizeProductName(data.ProductName)
	if normalized == "" {
		s.recordIngest("failed", start)
		return "", errors.New("product name required")
	}
	if strings.TrimSpace(data.ProductReview) == "" {
		s.recordIngest("failed", start)
		return "", errors.New("review text required")
	}

	embedding, err := s.embedder.Embed(ctx, data.ProductReview)
	if err != nil {
		s.recordIngest("failed", start)
		return "", fmt.Errorf("failed to embed review: %w", err)
	}

	now := time.Now()
	r := &store.Review{
		Key:              store.ReviewKey(normalized, now),
		ProductName:      normalized,
		ProductURL:       data.ProductURL,
		ProductImage:     data.ProductImage,
		ProductReview:    data.ProductReview,
		ProductRecommend: data.ProductRecommend,
		Embedding:        embedding,
		CreatedTs:        now.Unix(),
	}
	if _, err := s.store.CreateReview(ctx, r); err != nil {
		s.recordIngest("failed", start)
		return "", fmt.Errorf("failed to store review: %w", err)
	}

	s.recordIngest("stored", start)
	slog.Debug("review stored", "key", r.Key, "product", normalized)
	return "Review stored successfully", nil
}

func (s *Service) recordGeneration(outcome string) {
	if s.exporter != nil {
		s.exporter.RecordGeneration(outcome)
	}
}

func (s *Service) recordCache(hit bool) {
	if s.exporter == nil {
		return
	}
	if hit {
		s.exporter.RecordCacheHit("response")
	} else {
		s.exporter.RecordCacheMiss("response")
	}
}

func (s *Service) recordIngest(outcome string, start time.Time) {
	if s.exporter != nil {
		s.exporter.RecordIngest(outcome, time.Since(start))
	}
}

func (s *Service) observeStage(stage string, start time.Time, stats *ai.LLMCallStats) {
	if s.exporter == nil {
		return
	}
	s.exporter.ObserveStage(stage, time.Since(start))
	if stats != nil {
		s.exporter.RecordLLMTokens(stage, stats.PromptTokens, stats.CompletionTokens)
	}
}
