package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/reviewsense/store"
)

// reviewTable is the backing table of the review index. Each schema text
// field maps to a column; the vector field maps to a pgvector column.
const reviewTable = "product_review"

// CreateIndex provisions the review table, the HNSW cosine index over the
// embedding column, and the exact-match filter index on product_name.
func (d *DB) CreateIndex(ctx context.Context, schema store.IndexSchema, overwrite bool) error {
	vf, ok := schema.VectorField()
	if !ok {
		return errors.New("index schema has no vector field")
	}

	if _, err := d.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return errors.Wrap(err, "failed to create pgvector extension")
	}

	if overwrite {
		if _, err := d.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+reviewTable); err != nil {
			return errors.Wrap(err, "failed to drop review table")
		}
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			product_name TEXT NOT NULL,
			product_url TEXT NOT NULL DEFAULT '',
			product_image TEXT NOT NULL DEFAULT '',
			product_review TEXT NOT NULL,
			product_recommend TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL,
			created_ts BIGINT NOT NULL
		)`, reviewTable, vf.Dims)
	if _, err := d.db.ExecContext(ctx, createTable); err != nil {
		return errors.Wrap(err, "failed to create review table")
	}

	createVectorIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING %s (embedding vector_cosine_ops)",
		reviewTable, reviewTable, vf.Algorithm,
	)
	if _, err := d.db.ExecContext(ctx, createVectorIndex); err != nil {
		return errors.Wrap(err, "failed to create embedding index")
	}

	createNameIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_product_name ON %s (product_name)",
		reviewTable, reviewTable,
	)
	if _, err := d.db.ExecContext(ctx, createNameIndex); err != nil {
		return errors.Wrap(err, "failed to create product name index")
	}

	return nil
}

// IndexExists reports whether the review table and its embedding index are
// provisioned.
func (d *DB) IndexExists(ctx context.Context, _ store.IndexSchema) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT to_regclass("+placeholder(1)+") IS NOT NULL AND to_regclass("+placeholder(2)+") IS NOT NULL",
		reviewTable, "idx_"+reviewTable+"_embedding",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check review index existence")
	}
	return exists, nil
}

// CreateReview writes a review record.
func (d *DB) CreateReview(ctx context.Context, review *store.Review) (*store.Review, error) {
	stmt := `
		INSERT INTO ` + reviewTable + ` (key, product_name, product_url, product_image, product_review, product_recommend, embedding, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	vector := pgvector.NewVector(review.Embedding)
	if _, err := d.db.ExecContext(ctx, stmt,
		review.Key,
		review.ProductName,
		review.ProductURL,
		review.ProductImage,
		review.ProductReview,
		review.ProductRecommend,
		vector,
		review.CreatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create review")
	}

	return review, nil
}

// SearchReviews performs vector similarity search using pgvector.
func (d *DB) SearchReviews(ctx context.Context, opts *store.SearchReviewsOptions) ([]*store.ReviewWithScore, error) {
	// The <=> operator computes cosine distance (1 - cosine_similarity),
	// so ordering by distance ASC yields most similar first.
	query := `
		SELECT
			key, product_name, product_url, product_image, product_review, product_recommend, created_ts,
			1 - (embedding <=> $1) AS score
		FROM ` + reviewTable + `
		WHERE product_name = $2
		ORDER BY embedding <=> $3
		LIMIT $4
	`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, opts.ProductName, vector, opts.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search reviews")
	}
	defer rows.Close()

	results := []*store.ReviewWithScore{}
	for rows.Next() {
		var result store.ReviewWithScore
		var review store.Review

		err := rows.Scan(
			&review.Key,
			&review.ProductName,
			&review.ProductURL,
			&review.ProductImage,
			&review.ProductReview,
			&review.ProductRecommend,
			&review.CreatedTs,
			&result.Score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan review search result")
		}

		result.Review = &review
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
