package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/kart-io/triplet-classifier/internal/model"
	"github.com/kart-io/triplet-classifier/pkg/llm"
)

// DefaultHashedDimension is the default dimension for the hashed vectorizer.
const DefaultHashedDimension = 256

// Vectorizer turns a normalized triplet set into a fixed-dimension vector.
// Implementations must be deterministic: the same set always yields the
// same vector.
type Vectorizer interface {
	// Vectorize computes the vector for a triplet set.
	Vectorize(ctx context.Context, set model.TripletSet) ([]float64, error)

	// Dimension returns the output vector dimension.
	Dimension() int
}

// HashedVectorizer builds a bag-of-tokens vector by hashing each token of
// the triplet text into a fixed number of buckets with FNV-1a. It needs no
// external service and is fully deterministic.
type HashedVectorizer struct {
	dim int
}

// NewHashedVectorizer creates a hashed vectorizer. A non-positive dim
// falls back to DefaultHashedDimension.
func NewHashedVectorizer(dim int) *HashedVectorizer {
	if dim <= 0 {
		dim = DefaultHashedDimension
	}
	return &HashedVectorizer{dim: dim}
}

// Vectorize hashes every whitespace-separated token of every triplet field
// into a bucket and counts occurrences.
func (v *HashedVectorizer) Vectorize(_ context.Context, set model.TripletSet) ([]float64, error) {
	vec := make([]float64, v.dim)
	for _, t := range set {
		for _, field := range []string{t.Subject, t.Predicate, t.Object} {
			for _, token := range strings.Fields(field) {
				h := fnv.New32a()
				_, _ = h.Write([]byte(token))
				vec[int(h.Sum32())%v.dim]++
			}
		}
	}
	return vec, nil
}

// Dimension returns the configured bucket count.
func (v *HashedVectorizer) Dimension() int {
	return v.dim
}

// EmbeddingVectorizer vectorizes triplet sets through an external embedding
// provider. The triplet set is rendered to its canonical text form and
// embedded as one document.
type EmbeddingVectorizer struct {
	provider llm.EmbeddingProvider
	dim      int
}

// NewEmbeddingVectorizer creates a vectorizer backed by an embedding
// provider. dim must match the provider's output dimension.
func NewEmbeddingVectorizer(provider llm.EmbeddingProvider, dim int) *EmbeddingVectorizer {
	return &EmbeddingVectorizer{provider: provider, dim: dim}
}

// Vectorize embeds the canonical text of the triplet set.
func (v *EmbeddingVectorizer) Vectorize(ctx context.Context, set model.TripletSet) ([]float64, error) {
	embedding, err := v.provider.EmbedSingle(ctx, set.Text())
	if err != nil {
		return nil, fmt.Errorf("embed triplet set: %w", err)
	}
	if v.dim > 0 && len(embedding) != v.dim {
		return nil, &DimensionMismatchError{Want: v.dim, Got: len(embedding)}
	}

	vec := make([]float64, len(embedding))
	for i, f := range embedding {
		vec[i] = float64(f)
	}
	return vec, nil
}

// Dimension returns the expected embedding dimension.
func (v *EmbeddingVectorizer) Dimension() int {
	return v.dim
}

var (
	_ Vectorizer = (*HashedVectorizer)(nil)
	_ Vectorizer = (*EmbeddingVectorizer)(nil)
)
