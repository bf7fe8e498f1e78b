package biz

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/triplet-classifier/internal/classifier/extract"
	"github.com/kart-io/triplet-classifier/internal/classifier/store"
	"github.com/kart-io/triplet-classifier/internal/model"
)

const (
	invoiceSummary   = "Payment of $1200 was made by ACME Corp on 2025-09-01 for invoice #INV-100."
	statementSummary = "Account ACC-339 shows a closing balance of $5000 on 2025-08-31 per statement BS-77."
	weatherSummary   = "The weather today is sunny."
)

// scriptedExtractor lets tests control extraction behavior per call.
type scriptedExtractor struct {
	calls atomic.Int32
	fn    func(call int32, text string) (model.TripletSet, error)
}

func (e *scriptedExtractor) Extract(_ context.Context, text string) (model.TripletSet, error) {
	return e.fn(e.calls.Add(1), text)
}

func (e *scriptedExtractor) Name() string { return "scripted" }

func fastConfig(threshold float64) *PipelineConfig {
	return &PipelineConfig{
		Threshold:      threshold,
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		ExtractTimeout: time.Second,
	}
}

func newHeuristicPipeline(t *testing.T, threshold float64) *Pipeline {
	t.Helper()
	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	return NewPipeline(extract.NewHeuristic(), nil, engine, NewEvaluator(nil), fastConfig(threshold))
}

func TestPipelineClassifiesKnownDocuments(t *testing.T) {
	p := newHeuristicPipeline(t, 0.85)
	ctx := context.Background()

	invoiceID, err := p.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)
	require.NotEmpty(t, invoiceID)
	_, err = p.Ingest(ctx, model.Sample{Summary: statementSummary, DocType: "BANK_STATEMENT", DocCode: "BS001"})
	require.NoError(t, err)

	outcome := p.Run(ctx, invoiceSummary, nil)
	require.False(t, outcome.Failed())
	assert.Equal(t, StageDone, outcome.Stage)
	assert.Equal(t, "INVOICE", outcome.Result.DocType)
	assert.Equal(t, "INV001", outcome.Result.DocCode)
	assert.InDelta(t, 1.0, outcome.Result.Confidence, 1e-9)
	assert.Equal(t, invoiceID, outcome.Result.MatchedRecordID)

	outcome = p.Run(ctx, statementSummary, nil)
	require.False(t, outcome.Failed())
	assert.Equal(t, "BANK_STATEMENT", outcome.Result.DocType)
	assert.Equal(t, "BS001", outcome.Result.DocCode)
}

func TestPipelineUnrelatedTextIsUnknown(t *testing.T) {
	p := newHeuristicPipeline(t, 0.5)
	ctx := context.Background()

	_, err := p.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)

	outcome := p.Run(ctx, weatherSummary, nil)
	require.False(t, outcome.Failed())
	assert.True(t, outcome.Result.Unknown())
	assert.Less(t, outcome.Result.Confidence, 0.5)
}

func TestPipelineEmptyStoreIsUnknown(t *testing.T) {
	p := newHeuristicPipeline(t, 0.85)

	outcome := p.Run(context.Background(), invoiceSummary, nil)
	require.False(t, outcome.Failed())
	assert.True(t, outcome.Result.Unknown())
	assert.Zero(t, outcome.Result.Confidence)
}

func TestPipelineEvaluateStageWithGroundTruth(t *testing.T) {
	p := newHeuristicPipeline(t, 0.85)
	ctx := context.Background()

	_, err := p.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)

	outcome := p.Run(ctx, invoiceSummary, &GroundTruth{DocType: "INVOICE", DocCode: "INV001"})
	require.False(t, outcome.Failed())
	require.NotNil(t, outcome.Metrics)
	assert.InDelta(t, 1.0, outcome.Metrics.Accuracy, 1e-9)
	assert.Equal(t, 1, outcome.Metrics.SampleCount)

	outcome = p.Run(ctx, invoiceSummary, &GroundTruth{DocType: "RECEIPT", DocCode: "RC001"})
	require.False(t, outcome.Failed())
	require.NotNil(t, outcome.Metrics)
	assert.Zero(t, outcome.Metrics.Accuracy)
}

func TestPipelineRetriesServiceErrorThenSucceeds(t *testing.T) {
	flaky := &scriptedExtractor{fn: func(call int32, _ string) (model.TripletSet, error) {
		if call < 3 {
			return nil, &extract.ServiceError{Provider: "scripted", Err: errors.New("connection refused")}
		}
		return model.TripletSet{{Subject: "amount", Predicate: "has_value", Object: "$1200"}}, nil
	}}

	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	p := NewPipeline(flaky, extract.NewHeuristic(), engine, NewEvaluator(nil), fastConfig(0.85))

	outcome := p.Run(context.Background(), invoiceSummary, nil)
	require.False(t, outcome.Failed())
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestPipelineFallsBackToHeuristicAfterRetryExhaustion(t *testing.T) {
	down := &scriptedExtractor{fn: func(int32, string) (model.TripletSet, error) {
		return nil, &extract.ServiceError{Provider: "scripted", Err: errors.New("server error, status code 503")}
	}}

	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	p := NewPipeline(down, extract.NewHeuristic(), engine, NewEvaluator(nil), fastConfig(0.85))
	ctx := context.Background()

	// Ingest goes through the same recovery path, so the heuristic output
	// lands in the store; classification then matches it exactly.
	_, err := p.Ingest(ctx, model.Sample{Summary: invoiceSummary, DocType: "INVOICE", DocCode: "INV001"})
	require.NoError(t, err)

	outcome := p.Run(ctx, invoiceSummary, nil)
	require.False(t, outcome.Failed())
	assert.Equal(t, "INVOICE", outcome.Result.DocType)
	assert.GreaterOrEqual(t, down.calls.Load(), int32(6))
}

func TestPipelineNonRetryableExtractionFails(t *testing.T) {
	broken := &scriptedExtractor{fn: func(int32, string) (model.TripletSet, error) {
		return nil, errors.New("unparseable reply")
	}}

	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	p := NewPipeline(broken, extract.NewHeuristic(), engine, NewEvaluator(nil), fastConfig(0.85))

	outcome := p.Run(context.Background(), invoiceSummary, nil)
	require.True(t, outcome.Failed())
	assert.Equal(t, StageFailed, outcome.Stage)
	assert.Equal(t, StageExtract, outcome.FailedAt)
	assert.Error(t, outcome.Err)
	// No fallback for non-transient failures.
	assert.Equal(t, int32(1), broken.calls.Load())
}

func TestPipelineNoFallbackConfiguredFails(t *testing.T) {
	down := &scriptedExtractor{fn: func(int32, string) (model.TripletSet, error) {
		return nil, &extract.ServiceError{Provider: "scripted", Err: errors.New("connection refused")}
	}}

	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	p := NewPipeline(down, nil, engine, NewEvaluator(nil), fastConfig(0.85))

	outcome := p.Run(context.Background(), invoiceSummary, nil)
	require.True(t, outcome.Failed())
	assert.Equal(t, StageExtract, outcome.FailedAt)
	assert.Equal(t, int32(3), down.calls.Load())
}

func TestPipelineMalformedTripletFailsAtNormalize(t *testing.T) {
	bad := &scriptedExtractor{fn: func(int32, string) (model.TripletSet, error) {
		return model.TripletSet{{Subject: "", Predicate: "was", Object: "x"}}, nil
	}}

	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	p := NewPipeline(bad, nil, engine, NewEvaluator(nil), fastConfig(0.85))

	outcome := p.Run(context.Background(), invoiceSummary, nil)
	require.True(t, outcome.Failed())
	assert.Equal(t, StageNormalize, outcome.FailedAt)
}

func TestPipelineExtractTimeoutCountsTowardRetries(t *testing.T) {
	slow := &scriptedExtractor{fn: func(int32, string) (model.TripletSet, error) {
		return nil, context.DeadlineExceeded
	}}

	ms := store.NewMemoryStore()
	engine := NewEngine(ms, store.NewHashedVectorizer(store.DefaultHashedDimension))
	cfg := fastConfig(0.85)
	cfg.ExtractTimeout = time.Millisecond
	p := NewPipeline(slow, nil, engine, NewEvaluator(nil), cfg)

	outcome := p.Run(context.Background(), invoiceSummary, nil)
	require.True(t, outcome.Failed())
	assert.Equal(t, StageExtract, outcome.FailedAt)
	assert.Equal(t, int32(3), slow.calls.Load())
}

// failingVectorizer always errors, standing in for an unreachable
// embedding provider.
type failingVectorizer struct {
	err error
}

func (v *failingVectorizer) Vectorize(context.Context, model.TripletSet) ([]float64, error) {
	return nil, v.err
}

func (v *failingVectorizer) Dimension() int { return store.DefaultHashedDimension }

// failingStore errors on lookups while delegating everything else.
type failingStore struct {
	store.VectorStore
	queryErr error
}

func (s *failingStore) Query(context.Context, []float64, int) ([]store.QueryResult, error) {
	return nil, s.queryErr
}

func TestPipelineAttributesEngineFailures(t *testing.T) {
	ctx := context.Background()

	// A vectorization failure belongs to the classify stage.
	p := NewPipeline(extract.NewHeuristic(), nil,
		NewEngine(store.NewMemoryStore(), &failingVectorizer{err: errors.New("embed provider down")}),
		NewEvaluator(nil), fastConfig(0.85))
	outcome := p.Run(ctx, invoiceSummary, nil)
	require.True(t, outcome.Failed())
	assert.Equal(t, StageClassify, outcome.FailedAt)

	// A store lookup failure belongs to the query stage.
	fs := &failingStore{VectorStore: store.NewMemoryStore(), queryErr: errors.New("store down")}
	p = NewPipeline(extract.NewHeuristic(), nil,
		NewEngine(fs, store.NewHashedVectorizer(store.DefaultHashedDimension)),
		NewEvaluator(nil), fastConfig(0.85))
	outcome = p.Run(ctx, invoiceSummary, nil)
	require.True(t, outcome.Failed())
	assert.Equal(t, StageStoreOrQuery, outcome.FailedAt)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "EXTRACT", StageExtract.String())
	assert.Equal(t, "NORMALIZE", StageNormalize.String())
	assert.Equal(t, "STORE_OR_QUERY", StageStoreOrQuery.String())
	assert.Equal(t, "CLASSIFY", StageClassify.String())
	assert.Equal(t, "EVALUATE", StageEvaluate.String())
	assert.Equal(t, "DONE", StageDone.String())
	assert.Equal(t, "FAILED", StageFailed.String())
}
