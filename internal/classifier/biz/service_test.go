package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/triplet-classifier/internal/classifier/extract"
	"github.com/kart-io/triplet-classifier/internal/classifier/store"
	"github.com/kart-io/triplet-classifier/internal/model"
	apperrors "github.com/kart-io/triplet-classifier/pkg/errors"
)

func newTestService(t *testing.T, threshold float64) (*Service, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	pipeline := NewPipeline(extract.NewHeuristic(), nil, engine, NewEvaluator(nil), fastConfig(threshold))

	svc, err := NewService(pipeline, ms, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc, ms
}

func TestServiceClassifyRejectsEmptySummary(t *testing.T) {
	svc, _ := newTestService(t, 0.85)

	_, err := svc.Classify(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrClassifierEmptySummary.Code))
}

func TestServiceIngestValidation(t *testing.T) {
	svc, _ := newTestService(t, 0.85)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, model.Sample{Summary: "", DocType: "INVOICE", DocCode: "INV001"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrClassifierEmptySummary.Code))

	_, err = svc.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "", DocCode: "INV001"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrClassifierEmptyLabel.Code))

	_, err = svc.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: ""})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrClassifierEmptyLabel.Code))
}

func TestServiceIngestAndClassify(t *testing.T) {
	svc, ms := newTestService(t, 0.85)
	ctx := context.Background()

	id, err := svc.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	count, err := ms.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	result, err := svc.Classify(ctx, invoiceSummary)
	require.NoError(t, err)
	assert.Equal(t, "INVOICE", result.DocType)
	assert.Equal(t, "INV001", result.DocCode)
	assert.Equal(t, id, result.MatchedRecordID)
}

func TestServiceIngestBatch(t *testing.T) {
	svc, ms := newTestService(t, 0.85)
	ctx := context.Background()

	results, err := svc.IngestBatch(ctx, []model.Sample{
		{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"},
		{Summary: statementSummary, DocType: "BANK_STATEMENT", DocCode: "BS001"},
		{Summary: "", DocType: "INVOICE", DocCode: "INV002"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NotEmpty(t, results[0].ID)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].ID)
	assert.NotEmpty(t, results[2].Error)
	assert.Empty(t, results[2].ID)

	count, err := ms.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestServiceIngestBatchReturnsAfterCancel(t *testing.T) {
	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	slow := &scriptedExtractor{fn: func(int32, string) (model.TripletSet, error) {
		time.Sleep(100 * time.Millisecond)
		return invoiceTriplets(), nil
	}}
	pipeline := NewPipeline(slow, nil, engine, NewEvaluator(nil), fastConfig(0.85))
	svc, err := NewService(pipeline, ms, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	samples := make([]model.Sample, 64)
	for i := range samples {
		samples[i] = model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	type batch struct {
		results []IngestResult
		err     error
	}
	done := make(chan batch, 1)
	go func() {
		results, err := svc.IngestBatch(ctx, samples)
		done <- batch{results: results, err: err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case b := <-done:
		require.NoError(t, b.err)
		require.Len(t, b.results, len(samples))
		canceled := 0
		for _, r := range b.results {
			if r.Error != "" {
				canceled++
			}
		}
		// Samples still queued at cancellation report the error instead
		// of ingesting.
		assert.Greater(t, canceled, 0)
	case <-time.After(10 * time.Second):
		t.Fatal("IngestBatch did not return after cancellation")
	}
}

func TestServiceEvaluate(t *testing.T) {
	svc, _ := newTestService(t, 0.85)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, model.Sample{Summary: statementSummary, DocType: "BANK_STATEMENT", DocCode: "BS001"})
	require.NoError(t, err)

	metrics, err := svc.Evaluate(ctx, []model.Sample{
		{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"},
		{Summary: statementSummary, DocType: "BANK_STATEMENT", DocCode: "BS001"},
		{Summary: weatherSummary, DocType: "WEATHER", DocCode: "W001"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.SampleCount)
	assert.InDelta(t, 2.0/3.0, metrics.Accuracy, 1e-9)
	assert.Equal(t, []bool{true, true, false}, metrics.PerSampleCorrect)
}

func TestServiceEvaluateNoSamples(t *testing.T) {
	svc, _ := newTestService(t, 0.85)

	metrics, err := svc.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, metrics.NoSamples)
	assert.Zero(t, metrics.Accuracy)
}

func TestServiceDeleteRecord(t *testing.T) {
	svc, ms := newTestService(t, 0.85)
	ctx := context.Background()

	id, err := svc.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRecord(ctx, id))
	count, err := ms.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Absent id is not an error.
	assert.NoError(t, svc.DeleteRecord(ctx, "missing"))
}

func TestServiceNeighbors(t *testing.T) {
	svc, _ := newTestService(t, 0.85)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, model.Sample{Summary: statementSummary, DocType: "BANK_STATEMENT", DocCode: "BS001"})
	require.NoError(t, err)

	neighbors, err := svc.Neighbors(ctx, invoiceSummary, 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "INVOICE", neighbors[0].Record.DocType)
}

func TestServiceStats(t *testing.T) {
	svc, _ := newTestService(t, 0.85)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["records"])
	assert.InDelta(t, 0.85, stats["threshold"].(float64), 1e-9)
	assert.Contains(t, stats, "runtime")
	assert.Contains(t, stats, "ingest_pool")
}
