// Package store provides persistence for product reviews and their
// embedding vectors, behind a database driver abstraction.
package store

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/reviewsense/internal/profile"
)

// ErrIndexNotFound is returned when the review index has not been
// provisioned. It is checked once at process start; the server may proceed
// in degraded mode.
var ErrIndexNotFound = errors.New("review index not found")

// Driver is the database driver interface.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// CreateIndex provisions the review index from the schema. With
	// overwrite set, an existing index (and its records) is dropped first.
	CreateIndex(ctx context.Context, schema IndexSchema, overwrite bool) error

	// IndexExists reports whether the review index has been provisioned.
	IndexExists(ctx context.Context, schema IndexSchema) (bool, error)

	// CreateReview writes a review record keyed by review.Key. Overwrites
	// are not expected and not deduplicated.
	CreateReview(ctx context.Context, review *Review) (*Review, error)

	// SearchReviews returns up to Limit records nearest to the query vector
	// by cosine similarity, restricted to the exact product name, ordered
	// nearest-first. An empty result is not an error.
	SearchReviews(ctx context.Context, opts *SearchReviewsOptions) ([]*ReviewWithScore, error)
}

// Store provides access to stored reviews.
type Store struct {
	profile *profile.Profile
	driver  Driver
	schema  IndexSchema

	// Index existence is probed once and cached after first success to
	// avoid a round-trip per request.
	indexMu    sync.Mutex
	indexKnown bool
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		schema:  ReviewIndexSchema(),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Schema returns the review index declaration in use.
func (s *Store) Schema() IndexSchema {
	return s.schema
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// IndexExists reports whether the review index is available. A positive
// answer is cached; a negative answer is re-probed on the next call so that
// provisioning the index does not require a restart of callers that probed
// too early.
func (s *Store) IndexExists(ctx context.Context) (bool, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if s.indexKnown {
		return true, nil
	}
	exists, err := s.driver.IndexExists(ctx, s.schema)
	if err != nil {
		return false, errors.Wrap(err, "failed to probe review index")
	}
	s.indexKnown = exists
	return exists, nil
}

// CreateIndex provisions the review index.
func (s *Store) CreateIndex(ctx context.Context, overwrite bool) error {
	if err := s.driver.CreateIndex(ctx, s.schema, overwrite); err != nil {
		return err
	}
	s.indexMu.Lock()
	s.indexKnown = true
	s.indexMu.Unlock()
	return nil
}

// CreateReview writes a review record.
func (s *Store) CreateReview(ctx context.Context, review *Review) (*Review, error) {
	vf, ok := s.schema.VectorField()
	if !ok {
		return nil, errors.New("index schema has no vector field")
	}
	if len(review.Embedding) != vf.Dims {
		return nil, errors.Errorf("embedding dimension mismatch: index declares %d, got %d", vf.Dims, len(review.Embedding))
	}
	return s.driver.CreateReview(ctx, review)
}

// SearchReviews performs vector similarity search over stored reviews.
func (s *Store) SearchReviews(ctx context.Context, opts *SearchReviewsOptions) ([]*ReviewWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if exists, err := s.IndexExists(ctx); err != nil {
		return nil, err
	} else if !exists {
		return nil, ErrIndexNotFound
	}
	return s.driver.SearchReviews(ctx, opts)
}
