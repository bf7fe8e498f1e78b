package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/triplet-classifier/internal/classifier/store"
	"github.com/kart-io/triplet-classifier/internal/model"
)

func record(id string, vector []float64, docType, docCode string) *store.LabeledRecord {
	return &store.LabeledRecord{
		ID:      id,
		Vector:  vector,
		DocType: docType,
		DocCode: docCode,
		Triplets: model.TripletSet{
			{Subject: "document", Predicate: "type", Object: docType},
		},
	}
}

func TestMemoryStoreUpsertAndCount(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, record("a", []float64{1, 0, 0}, "invoice", "INV")))
	require.NoError(t, s.Upsert(ctx, record("b", []float64{0, 1, 0}, "bank_statement", "BS")))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, record("a", []float64{1, 0, 0}, "invoice", "INV")))

	err := s.Upsert(ctx, record("b", []float64{1, 0}, "invoice", "INV"))
	require.Error(t, err)

	var mismatch *store.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Want)
	assert.Equal(t, 2, mismatch.Got)
}

func TestMemoryStoreQueryOrdering(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, record("far", []float64{0, 1, 0}, "receipt", "RCP")))
	require.NoError(t, s.Upsert(ctx, record("near", []float64{1, 0.1, 0}, "invoice", "INV")))
	require.NoError(t, s.Upsert(ctx, record("exact", []float64{1, 0, 0}, "invoice", "INV")))

	results, err := s.Query(ctx, []float64{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "exact", results[0].Record.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Equal(t, "near", results[1].Record.ID)
	assert.Equal(t, "far", results[2].Record.ID)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-9)
}

func TestMemoryStoreQueryTieBreaksOnInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	// Identical vectors: the earlier insert must win.
	require.NoError(t, s.Upsert(ctx, record("second", []float64{1, 0}, "invoice", "INV")))
	require.NoError(t, s.Upsert(ctx, record("first", []float64{1, 0}, "invoice", "INV")))

	results, err := s.Query(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "second", results[0].Record.ID)
	assert.Equal(t, "first", results[1].Record.ID)
}

func TestMemoryStoreReplaceKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, record("a", []float64{1, 0}, "invoice", "INV")))
	require.NoError(t, s.Upsert(ctx, record("b", []float64{1, 0}, "invoice", "INV")))

	// Replacing "a" must not move it behind "b" in tie-breaks.
	require.NoError(t, s.Upsert(ctx, record("a", []float64{1, 0}, "receipt", "RCP")))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	results, err := s.Query(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Record.ID)
	assert.Equal(t, "receipt", results[0].Record.DocType)
	assert.Equal(t, "b", results[1].Record.ID)
}

func TestMemoryStoreQueryEmpty(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	results, err := s.Query(ctx, []float64{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, record("a", []float64{1, 0}, "invoice", "INV")))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "missing"))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryStoreQueryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, record("a", []float64{1, 0}, "invoice", "INV")))

	results, err := s.Query(ctx, []float64{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	results[0].Record.DocType = "mutated"
	results[0].Record.Vector[0] = 42

	fresh, err := s.Query(ctx, []float64{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "invoice", fresh[0].Record.DocType)
	assert.InDelta(t, 1.0, fresh[0].Similarity, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, store.CosineSimilarity([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, store.CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	// Opposite vectors clamp to 0.
	assert.Equal(t, 0.0, store.CosineSimilarity([]float64{1, 0}, []float64{-1, 0}))
	// Mismatched or empty input yields 0.
	assert.Equal(t, 0.0, store.CosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, store.CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, store.CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}
