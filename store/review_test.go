package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProductName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Noise Cancelling Headphones", "noise_cancelling_headphones"},
		{"Widget Pro", "widget_pro"},
		{"widget_pro", "widget_pro"},
		{"  Spaced  Name ", "spaced__name"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeProductName(tt.input))
	}
}

func TestNormalizeProductNameIdempotent(t *testing.T) {
	names := []string{"Noise Cancelling Headphones", "Widget Pro", "ALL CAPS", "already_normal"}
	for _, name := range names {
		once := NormalizeProductName(name)
		assert.Equal(t, once, NormalizeProductName(once))
	}
}

func TestReviewKey(t *testing.T) {
	now := time.Now()
	key := ReviewKey("widget_pro", now)

	parts := strings.Split(key, ":")
	require.Len(t, parts, 4)
	assert.Equal(t, "review", parts[0])
	assert.NotEmpty(t, parts[3])
}

func TestReviewKeyUniqueUnderCollision(t *testing.T) {
	// Same product, same coarse timestamp: keys must still differ.
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := ReviewKey("widget_pro", now)
		assert.False(t, seen[key], "duplicate key: %s", key)
		seen[key] = true
	}
}

func TestSearchReviewsOptionsValidate(t *testing.T) {
	valid := &SearchReviewsOptions{Vector: []float32{0.1}, ProductName: "widget_pro"}
	require.NoError(t, valid.Validate())
	assert.Equal(t, 50, valid.Limit, "default limit applied")

	tests := []struct {
		name string
		opts *SearchReviewsOptions
	}{
		{"empty vector", &SearchReviewsOptions{ProductName: "widget_pro"}},
		{"empty product name", &SearchReviewsOptions{Vector: []float32{0.1}}},
		{"negative limit", &SearchReviewsOptions{Vector: []float32{0.1}, ProductName: "x", Limit: -1}},
		{"excessive limit", &SearchReviewsOptions{Vector: []float32{0.1}, ProductName: "x", Limit: 1001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.opts.Validate())
		})
	}
}
