package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/reviewsense/internal/profile"
	"github.com/hrygo/reviewsense/store"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	driver, err := NewDB(&profile.Profile{DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	return driver.(*DB)
}

func testReview(key, product string, embedding []float32) *store.Review {
	return &store.Review{
		Key:           key,
		ProductName:   product,
		ProductReview: "review body for " + key,
		Embedding:     embedding,
		CreatedTs:     1700000000,
	}
}

func TestVectorBlobRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.125, 0}

	blob, err := float32ArrayToBLOB(vec, 4)
	require.NoError(t, err)
	require.Len(t, blob, 16)

	got, err := blobToFloat32Array(blob, 4)
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = float32ArrayToBLOB(vec, 3)
	require.Error(t, err)
	_, err = blobToFloat32Array(blob[:15], 4)
	require.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestCreateIndexAndExists(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	schema := store.ReviewIndexSchema()

	exists, err := db.IndexExists(ctx, schema)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, db.CreateIndex(ctx, schema, false))

	exists, err = db.IndexExists(ctx, schema)
	require.NoError(t, err)
	assert.True(t, exists)

	// Recreating without overwrite keeps existing records.
	_, err = db.CreateReview(ctx, testReview("review:1:1700000000:a", "widget_pro", []float32{1, 0}))
	require.NoError(t, err)
	require.NoError(t, db.CreateIndex(ctx, schema, false))

	results, err := db.SearchReviews(ctx, &store.SearchReviewsOptions{
		Vector: []float32{1, 0}, ProductName: "widget_pro", Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Overwrite drops them.
	require.NoError(t, db.CreateIndex(ctx, schema, true))
	results, err = db.SearchReviews(ctx, &store.SearchReviewsOptions{
		Vector: []float32{1, 0}, ProductName: "widget_pro", Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchReviewsRankingAndFilter(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.CreateIndex(ctx, store.ReviewIndexSchema(), false))

	reviews := []*store.Review{
		testReview("review:1:1700000000:a", "widget_pro", []float32{1, 0}),
		testReview("review:1:1700000000:b", "widget_pro", []float32{0.8, 0.6}),
		testReview("review:1:1700000000:c", "widget_pro", []float32{0, 1}),
		testReview("review:2:1700000000:d", "other_gadget", []float32{1, 0}),
	}
	for _, r := range reviews {
		_, err := db.CreateReview(ctx, r)
		require.NoError(t, err)
	}

	results, err := db.SearchReviews(ctx, &store.SearchReviewsOptions{
		Vector: []float32{1, 0}, ProductName: "widget_pro", Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 3, "other products must be filtered out")

	// Nearest first.
	assert.Equal(t, "review:1:1700000000:a", results[0].Review.Key)
	assert.Equal(t, "review:1:1700000000:b", results[1].Review.Key)
	assert.Equal(t, "review:1:1700000000:c", results[2].Review.Key)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
	assert.InDelta(t, 0.8, float64(results[1].Score), 1e-6)
	assert.InDelta(t, 0.0, float64(results[2].Score), 1e-6)

	// Limit truncates after ranking.
	results, err = db.SearchReviews(ctx, &store.SearchReviewsOptions{
		Vector: []float32{1, 0}, ProductName: "widget_pro", Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "review:1:1700000000:a", results[0].Review.Key)

	// Unknown product yields an empty result, not an error.
	results, err = db.SearchReviews(ctx, &store.SearchReviewsOptions{
		Vector: []float32{1, 0}, ProductName: "missing", Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
