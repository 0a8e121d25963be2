package store

import (
	"github.com/pkg/errors"
)

// FieldType is the type of an index schema field.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeTag    FieldType = "tag"
	FieldTypeVector FieldType = "vector"
)

// SchemaField declares one field of the review index.
type SchemaField struct {
	Name string
	Type FieldType

	// Text attributes
	Weight float64
	NoStem bool

	// Vector attributes
	Dims           int
	DistanceMetric string // cosine
	Algorithm      string // hnsw
}

// IndexSchema declares the review index. The same declaration is used at
// index-creation time and at query time; the two must match, a mismatch is
// a fatal misconfiguration rather than a recoverable error.
type IndexSchema struct {
	Name   string
	Prefix string
	Fields []SchemaField
}

const (
	// ReviewIndexName is the name of the review index.
	ReviewIndexName = "review_idx"

	// ReviewEmbeddingDims is the declared dimensionality of the review
	// embedding field. The embedder's output must match it exactly.
	ReviewEmbeddingDims = 384
)

// ReviewIndexSchema returns the shared review index declaration.
func ReviewIndexSchema() IndexSchema {
	return IndexSchema{
		Name:   ReviewIndexName,
		Prefix: "review:",
		Fields: []SchemaField{
			{Name: "product_name", Type: FieldTypeText, Weight: 1.0},
			{Name: "product_url", Type: FieldTypeText, Weight: 0.5, NoStem: true},
			{Name: "product_image", Type: FieldTypeText, Weight: 0.5, NoStem: true},
			{Name: "product_review", Type: FieldTypeText, Weight: 2.0},
			{Name: "product_recommend", Type: FieldTypeTag, Weight: 1.0, NoStem: true},
			{
				Name:           "embeddings",
				Type:           FieldTypeVector,
				Dims:           ReviewEmbeddingDims,
				DistanceMetric: "cosine",
				Algorithm:      "hnsw",
			},
		},
	}
}

// VectorField returns the schema's vector field.
func (s IndexSchema) VectorField() (SchemaField, bool) {
	for _, f := range s.Fields {
		if f.Type == FieldTypeVector {
			return f, true
		}
	}
	return SchemaField{}, false
}

// Validate checks the schema shape and that the given embedder
// dimensionality matches the declared vector field.
func (s IndexSchema) Validate(embedderDims int) error {
	if s.Name == "" {
		return errors.New("index name required")
	}
	vf, ok := s.VectorField()
	if !ok {
		return errors.New("index schema has no vector field")
	}
	if vf.DistanceMetric != "cosine" {
		return errors.Errorf("unsupported distance metric %q", vf.DistanceMetric)
	}
	if vf.Dims != embedderDims {
		return errors.Errorf("embedding dimension mismatch: index declares %d, embedder produces %d", vf.Dims, embedderDims)
	}
	return nil
}
