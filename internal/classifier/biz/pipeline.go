package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/triplet-classifier/internal/classifier/extract"
	"github.com/kart-io/triplet-classifier/internal/classifier/metrics"
	"github.com/kart-io/triplet-classifier/internal/classifier/normalize"
	"github.com/kart-io/triplet-classifier/internal/classifier/store"
	"github.com/kart-io/triplet-classifier/internal/model"
	"github.com/kart-io/triplet-classifier/pkg/llm/resilience"
)

// Stage identifies one step of the classification pipeline.
type Stage int

const (
	StageExtract Stage = iota
	StageNormalize
	StageStoreOrQuery
	StageClassify
	StageEvaluate
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageExtract:
		return "EXTRACT"
	case StageNormalize:
		return "NORMALIZE"
	case StageStoreOrQuery:
		return "STORE_OR_QUERY"
	case StageClassify:
		return "CLASSIFY"
	case StageEvaluate:
		return "EVALUATE"
	case StageDone:
		return "DONE"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// GroundTruth is the expected label for a summary, when known. Supplying
// it makes the pipeline run its evaluation stage.
type GroundTruth struct {
	DocType string
	DocCode string
}

// Outcome is the terminal state of one pipeline run. Stage is either
// StageDone or StageFailed; FailedAt names the stage that produced Err.
type Outcome struct {
	Stage    Stage
	FailedAt Stage
	Result   *model.ClassificationResult
	Metrics  *model.EvaluationMetrics
	Err      error
}

// Failed reports whether the run ended in the FAILED state.
func (o *Outcome) Failed() bool {
	return o.Stage == StageFailed
}

// PipelineConfig tunes the pipeline's retry and timeout behavior.
type PipelineConfig struct {
	// Threshold is the minimum similarity for an accepted match.
	Threshold float64

	// MaxAttempts bounds extraction attempts, including the first call.
	MaxAttempts int

	// InitialDelay is the backoff before the first extraction retry.
	InitialDelay time.Duration

	// MaxDelay caps the extraction backoff.
	MaxDelay time.Duration

	// ExtractTimeout bounds each extraction attempt. A timed-out attempt
	// counts against MaxAttempts.
	ExtractTimeout time.Duration
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Threshold:      0.85,
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		ExtractTimeout: 30 * time.Second,
	}
}

// Pipeline drives one summary through extract, normalize, classify and
// optional evaluate stages. Classification runs are independent of each
// other and may execute concurrently; store mutation happens only through
// Ingest.
type Pipeline struct {
	extractor  extract.Extractor
	fallback   extract.Extractor
	normalizer *normalize.Normalizer
	engine     *Engine
	evaluator  *Evaluator
	config     *PipelineConfig
	metrics    *metrics.Metrics
}

// NewPipeline assembles a pipeline. fallback may be nil to disable the
// heuristic rescue path; config nil uses defaults.
func NewPipeline(extractor, fallback extract.Extractor, engine *Engine, evaluator *Evaluator, config *PipelineConfig) *Pipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	return &Pipeline{
		extractor:  extractor,
		fallback:   fallback,
		normalizer: normalize.New(),
		engine:     engine,
		evaluator:  evaluator,
		config:     config,
		metrics:    metrics.Get(),
	}
}

// Run classifies one summary. truth may be nil; when present, the run
// includes the evaluation stage and the outcome carries metrics for this
// single sample.
func (p *Pipeline) Run(ctx context.Context, summary string, truth *GroundTruth) *Outcome {
	set, err := p.extractWithRecovery(ctx, summary)
	if err != nil {
		return p.fail(StageExtract, err)
	}

	normalized, err := p.normalizer.NormalizeSet(set)
	if err != nil {
		return p.fail(StageNormalize, err)
	}

	result, err := p.engine.Classify(ctx, normalized, p.config.Threshold)
	if err != nil {
		return p.fail(classifyStage(err), err)
	}

	outcome := &Outcome{Stage: StageDone, Result: result}

	if truth != nil {
		m := p.evaluator.Evaluate([]Prediction{{
			Result:      result,
			WantDocType: truth.DocType,
			WantDocCode: truth.DocCode,
		}})
		outcome.Metrics = &m
	}

	return outcome
}

// Ingest extracts, normalizes and stores one labeled sample, returning the
// id of the stored record.
func (p *Pipeline) Ingest(ctx context.Context, sample model.Sample) (string, error) {
	set, err := p.extractWithRecovery(ctx, sample.Summary)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}

	normalized, err := p.normalizer.NormalizeSet(set)
	if err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}

	vector, err := p.engine.Vectorizer().Vectorize(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("vectorize: %w", err)
	}

	record := &store.LabeledRecord{
		ID:       ulid.Make().String(),
		Triplets: normalized,
		Vector:   vector,
		DocType:  sample.DocType,
		DocCode:  sample.DocCode,
	}
	if err := p.engine.store.Upsert(ctx, record); err != nil {
		return "", fmt.Errorf("store record: %w", err)
	}
	return record.ID, nil
}

// extractWithRecovery runs the configured extractor with per-attempt
// timeouts and bounded retries on transient service failures, then falls
// back to the heuristic extractor before giving up.
func (p *Pipeline) extractWithRecovery(ctx context.Context, summary string) (model.TripletSet, error) {
	var (
		set      model.TripletSet
		attempts int
	)

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:  p.config.MaxAttempts,
		InitialDelay: p.config.InitialDelay,
		MaxDelay:     p.config.MaxDelay,
		Multiplier:   2.0,
		RetryableErrors: func(err error) bool {
			return extract.IsServiceError(err) || errors.Is(err, context.DeadlineExceeded)
		},
	}

	err := resilience.RetryWithBackoff(ctx, retryCfg, func() error {
		if attempts > 0 {
			p.metrics.RecordExtractionRetry()
		}
		attempts++

		attemptCtx := ctx
		if p.config.ExtractTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.config.ExtractTimeout)
			defer cancel()
		}

		var extractErr error
		set, extractErr = p.extractor.Extract(attemptCtx, summary)
		return extractErr
	})
	if err == nil {
		return set, nil
	}

	// Only transient service failures earn the heuristic rescue; anything
	// else (malformed output, cancellation) fails the stage as-is.
	if p.fallback == nil || !(extract.IsServiceError(err) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, err
	}

	logger.Warnw("extraction service exhausted retries, falling back",
		"extractor", p.extractor.Name(),
		"fallback", p.fallback.Name(),
		"attempts", attempts,
		"error", err.Error(),
	)
	p.metrics.RecordExtractionFallback()

	set, fallbackErr := p.fallback.Extract(ctx, summary)
	if fallbackErr != nil {
		return nil, fmt.Errorf("fallback after %w: %v", err, fallbackErr)
	}
	return set, nil
}

// classifyStage attributes an engine failure: store lookups fail the
// STORE_OR_QUERY stage, everything else (vectorization) the CLASSIFY
// stage.
func classifyStage(err error) Stage {
	var le *lookupError
	if errors.As(err, &le) {
		return StageStoreOrQuery
	}
	return StageClassify
}

func (p *Pipeline) fail(at Stage, err error) *Outcome {
	logger.Errorw("pipeline stage failed", "stage", at.String(), "error", err.Error())
	p.metrics.RecordClassificationError()
	return &Outcome{Stage: StageFailed, FailedAt: at, Err: err}
}
