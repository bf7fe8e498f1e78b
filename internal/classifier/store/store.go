// Package store provides vector storage for labeled triplet records.
package store

import (
	"context"
	"fmt"
	"math"

	"github.com/kart-io/triplet-classifier/internal/model"
)

// LabeledRecord is a stored training sample: the normalized triplets of a
// document summary, their vector, and the document label.
type LabeledRecord struct {
	// ID uniquely identifies the record.
	ID string

	// Triplets are the normalized triplets the vector was built from.
	Triplets model.TripletSet

	// Vector is the vector representation of the triplet set.
	Vector []float64

	// DocType is the document type label (e.g. "invoice").
	DocType string

	// DocCode is the document code label (e.g. "INV").
	DocCode string

	// InsertedAt is a store-assigned, strictly increasing sequence number.
	// It is preserved when a record is replaced by ID.
	InsertedAt int64
}

// QueryResult pairs a stored record with its similarity to the query vector.
type QueryResult struct {
	Record     *LabeledRecord
	Similarity float64
}

// DimensionMismatchError reports a vector whose dimension does not match
// the dimension established by the first record.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// VectorStore stores labeled records and answers nearest-neighbor queries.
//
// Query results are ordered by similarity descending; ties break on
// InsertedAt ascending, then ID ascending, so results are deterministic.
type VectorStore interface {
	// Upsert inserts the record, or replaces the record with the same ID.
	// A replaced record keeps its original InsertedAt.
	Upsert(ctx context.Context, record *LabeledRecord) error

	// Query returns up to topK records most similar to the vector.
	Query(ctx context.Context, vector []float64, topK int) ([]QueryResult, error)

	// Delete removes the record with the given ID. Deleting an absent ID
	// is not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Close releases store resources.
	Close(ctx context.Context) error
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors, clamped to [0, 1]. A zero vector yields 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
