package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/triplet-classifier/internal/classifier/store"
	"github.com/kart-io/triplet-classifier/internal/model"
)

func invoiceTriplets() model.TripletSet {
	return model.TripletSet{
		{Subject: "invoice", Predicate: "total_amount", Object: "<AMOUNT>"},
		{Subject: "invoice", Predicate: "issued_on", Object: "<DATE>"},
		{Subject: "document", Predicate: "identifier", Object: "<REF>"},
	}
}

func TestHashedVectorizerDeterministic(t *testing.T) {
	v := store.NewHashedVectorizer(64)

	a, err := v.Vectorize(context.Background(), invoiceTriplets())
	require.NoError(t, err)
	b, err := v.Vectorize(context.Background(), invoiceTriplets())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashedVectorizerSeparatesContent(t *testing.T) {
	v := store.NewHashedVectorizer(store.DefaultHashedDimension)

	a, err := v.Vectorize(context.Background(), invoiceTriplets())
	require.NoError(t, err)
	b, err := v.Vectorize(context.Background(), model.TripletSet{
		{Subject: "bank statement", Predicate: "period", Object: "<DATE>"},
	})
	require.NoError(t, err)

	sim := store.CosineSimilarity(a, b)
	assert.Less(t, sim, 0.99)
	assert.InDelta(t, 1.0, store.CosineSimilarity(a, a), 1e-9)
}

func TestHashedVectorizerEmptySet(t *testing.T) {
	v := store.NewHashedVectorizer(32)

	vec, err := v.Vectorize(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, vec, 32)
	for _, f := range vec {
		assert.Zero(t, f)
	}
}

func TestHashedVectorizerDefaultDimension(t *testing.T) {
	v := store.NewHashedVectorizer(0)
	assert.Equal(t, store.DefaultHashedDimension, v.Dimension())
}

type stubEmbedder struct {
	embedding []float32
	err       error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.embedding
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.embedding, nil
}

func (s *stubEmbedder) Name() string { return "stub" }

func TestEmbeddingVectorizer(t *testing.T) {
	v := store.NewEmbeddingVectorizer(&stubEmbedder{embedding: []float32{0.5, 0.25, 0}}, 3)

	vec, err := v.Vectorize(context.Background(), invoiceTriplets())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, 0}, vec)
}

func TestEmbeddingVectorizerDimensionCheck(t *testing.T) {
	v := store.NewEmbeddingVectorizer(&stubEmbedder{embedding: []float32{0.5, 0.25}}, 3)

	_, err := v.Vectorize(context.Background(), invoiceTriplets())
	var mismatch *store.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestEmbeddingVectorizerProviderError(t *testing.T) {
	v := store.NewEmbeddingVectorizer(&stubEmbedder{err: errors.New("connection refused")}, 3)

	_, err := v.Vectorize(context.Background(), invoiceTriplets())
	require.Error(t, err)
}
