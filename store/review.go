package store

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// Review represents a stored product review with its embedding vector.
// Reviews are created on submission and never updated or deleted.
type Review struct {
	// Key is the storage identifier, see ReviewKey.
	Key string

	// ProductName is always stored normalized (see NormalizeProductName).
	ProductName      string
	ProductURL       string
	ProductImage     string
	ProductReview    string
	ProductRecommend string // small fixed vocabulary: yes, no

	// Embedding is derived from ProductReview. Its length must match the
	// index schema's declared dimensionality exactly.
	Embedding []float32

	CreatedTs int64
}

// NormalizeProductName lower-cases a product name and replaces spaces with
// underscores. The function is idempotent; it is applied at every entry
// point so the stored name and the query filter always agree.
func NormalizeProductName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ReviewKey derives a storage key for a new review:
//
//	review:<product id>:<unix ts>:<random suffix>
//
// The product id is a short FNV hash of the normalized name and the
// timestamp is coarse, so key prefixes group reviews per product and are
// readable in storage tooling. Uniqueness under concurrent submissions
// comes from the shortuuid suffix, not the timestamp.
func ReviewKey(normalizedName string, now time.Time) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalizedName))
	productID := h.Sum32() % 10000
	return fmt.Sprintf("review:%d:%d:%s", productID, now.Unix(), shortuuid.New())
}

// FindReviews is the find condition for stored reviews.
type FindReviews struct {
	ProductName *string // normalized, exact match
	Limit       int
}

// ReviewWithScore represents a vector search result with similarity score.
type ReviewWithScore struct {
	Review *Review
	Score  float32 // Cosine similarity (0-1, higher is more similar)
}

// SearchReviewsOptions represents the options for review vector search.
type SearchReviewsOptions struct {
	Vector []float32

	// ProductName restricts the search to reviews whose normalized product
	// name matches exactly.
	ProductName string

	Limit int
}

// Validate validates the SearchReviewsOptions.
func (o *SearchReviewsOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.New("vector cannot be empty")
	}
	if o.ProductName == "" {
		return errors.New("product name cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 50
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large (max 1000): %d", o.Limit)
	}
	return nil
}
