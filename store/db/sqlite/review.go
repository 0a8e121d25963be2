package sqlite

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/reviewsense/store"
)

const reviewTable = "product_review"

// float32ArrayToBLOB converts a vector to its little-endian blob encoding,
// validating against the declared dimensionality.
func float32ArrayToBLOB(vec []float32, dims int) ([]byte, error) {
	if len(vec) != dims {
		return nil, errors.Errorf("invalid vector dimension: got %d, want %d", len(vec), dims)
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf, nil
}

// blobToFloat32Array is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte, dims int) ([]float32, error) {
	if len(blob) != dims*4 {
		return nil, errors.Errorf("invalid blob length: got %d, want %d", len(blob), dims*4)
	}
	vec := make([]float32, dims)
	for i := 0; i < dims; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// CreateIndex provisions the review table and the product name filter index.
func (d *DB) CreateIndex(ctx context.Context, schema store.IndexSchema, overwrite bool) error {
	if _, ok := schema.VectorField(); !ok {
		return errors.New("index schema has no vector field")
	}

	if overwrite {
		if _, err := d.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+reviewTable); err != nil {
			return errors.Wrap(err, "failed to drop review table")
		}
	}

	createTable := `
		CREATE TABLE IF NOT EXISTS ` + reviewTable + ` (
			key TEXT PRIMARY KEY,
			product_name TEXT NOT NULL,
			product_url TEXT NOT NULL DEFAULT '',
			product_image TEXT NOT NULL DEFAULT '',
			product_review TEXT NOT NULL,
			product_recommend TEXT NOT NULL DEFAULT '',
			embedding BLOB NOT NULL,
			created_ts INTEGER NOT NULL
		)`
	if _, err := d.db.ExecContext(ctx, createTable); err != nil {
		return errors.Wrap(err, "failed to create review table")
	}

	createNameIndex := "CREATE INDEX IF NOT EXISTS idx_" + reviewTable + "_product_name ON " + reviewTable + " (product_name)"
	if _, err := d.db.ExecContext(ctx, createNameIndex); err != nil {
		return errors.Wrap(err, "failed to create product name index")
	}

	return nil
}

// IndexExists reports whether the review table is provisioned.
func (d *DB) IndexExists(ctx context.Context, _ store.IndexSchema) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type='table' AND name=?)", reviewTable,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check review index existence")
	}
	return exists, nil
}

// CreateReview writes a review record.
func (d *DB) CreateReview(ctx context.Context, review *store.Review) (*store.Review, error) {
	blob, err := float32ArrayToBLOB(review.Embedding, len(review.Embedding))
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO ` + reviewTable + ` (key, product_name, product_url, product_image, product_review, product_recommend, embedding, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		review.Key,
		review.ProductName,
		review.ProductURL,
		review.ProductImage,
		review.ProductReview,
		review.ProductRecommend,
		blob,
		review.CreatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create review")
	}

	return review, nil
}

// SearchReviews loads all reviews for the product and ranks them by cosine
// similarity in the application layer.
func (d *DB) SearchReviews(ctx context.Context, opts *store.SearchReviewsOptions) ([]*store.ReviewWithScore, error) {
	query := `
		SELECT key, product_name, product_url, product_image, product_review, product_recommend, embedding, created_ts
		FROM ` + reviewTable + `
		WHERE product_name = ?
	`
	rows, err := d.db.QueryContext(ctx, query, opts.ProductName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search reviews")
	}
	defer rows.Close()

	results := []*store.ReviewWithScore{}
	for rows.Next() {
		var review store.Review
		var blob []byte

		err := rows.Scan(
			&review.Key,
			&review.ProductName,
			&review.ProductURL,
			&review.ProductImage,
			&review.ProductReview,
			&review.ProductRecommend,
			&blob,
			&review.CreatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan review")
		}

		vec, err := blobToFloat32Array(blob, len(opts.Vector))
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt embedding for review %s", review.Key)
		}
		review.Embedding = vec

		results = append(results, &store.ReviewWithScore{
			Review: &review,
			Score:  cosineSimilarity(opts.Vector, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}
