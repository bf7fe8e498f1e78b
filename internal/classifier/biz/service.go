package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/triplet-classifier/internal/classifier/metrics"
	"github.com/kart-io/triplet-classifier/internal/classifier/store"
	"github.com/kart-io/triplet-classifier/internal/model"
	apperrors "github.com/kart-io/triplet-classifier/pkg/errors"
	"github.com/kart-io/triplet-classifier/pkg/pool"
)

// Service is the facade the transport layer talks to. It owns the
// pipeline, the store, the optional result cache and the ingest worker
// pool.
type Service struct {
	pipeline *Pipeline
	store    store.VectorStore
	cache    *ResultCache
	metrics  *metrics.Metrics

	ingestPool *pool.Pool
}

// NewService wires the service facade. cache may be nil when Redis is
// disabled or unreachable.
func NewService(pipeline *Pipeline, vs store.VectorStore, cache *ResultCache) (*Service, error) {
	ingestPool, err := pool.NewPool("ingest", pool.IngestPool, pool.IngestPoolConfig())
	if err != nil {
		return nil, err
	}

	return &Service{
		pipeline:   pipeline,
		store:      vs,
		cache:      cache,
		metrics:    metrics.Get(),
		ingestPool: ingestPool,
	}, nil
}

// Classify runs one summary through the pipeline, consulting the result
// cache first. Cache failures degrade to a miss and never fail the call.
func (s *Service) Classify(ctx context.Context, summary string) (*model.ClassificationResult, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, apperrors.ErrClassifierEmptySummary
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, summary, s.pipeline.config.Threshold)
		if err != nil {
			logger.Warnw("result cache lookup failed", "error", err.Error())
		} else if cached != nil {
			s.metrics.RecordCacheHit()
			return cached, nil
		} else {
			s.metrics.RecordCacheMiss()
		}
	}

	start := time.Now()
	outcome := s.pipeline.Run(ctx, summary, nil)
	if outcome.Failed() {
		return nil, s.failureError(outcome)
	}
	s.metrics.RecordClassification(outcome.Result.Unknown(), time.Since(start))

	if s.cache != nil {
		if err := s.cache.Set(ctx, summary, s.pipeline.config.Threshold, outcome.Result); err != nil {
			logger.Warnw("result cache store failed", "error", err.Error())
		}
	}
	return outcome.Result, nil
}

// Ingest stores one labeled sample and invalidates the result cache, since
// new records can change what any summary resolves to.
func (s *Service) Ingest(ctx context.Context, sample model.Sample) (string, error) {
	if strings.TrimSpace(sample.Summary) == "" {
		return "", apperrors.ErrClassifierEmptySummary
	}
	if sample.DocType == "" || sample.DocCode == "" {
		return "", apperrors.ErrClassifierEmptyLabel
	}

	id, err := s.pipeline.Ingest(ctx, sample)
	if err != nil {
		s.metrics.RecordIngestError()
		return "", apperrors.ErrClassifierStore.WithCause(err)
	}
	s.metrics.RecordIngest()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warnw("result cache invalidation failed", "error", err.Error())
		}
	}
	return id, nil
}

// IngestResult is the outcome of one sample within an IngestBatch call.
type IngestResult struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// IngestBatch ingests samples concurrently through the ingest pool.
// Results come back in input order; per-sample failures do not abort the
// batch. Every accepted task runs and releases its WaitGroup slot; a
// canceled context becomes a per-sample error, never unfinished work that
// Wait would block on.
func (s *Service) IngestBatch(ctx context.Context, samples []model.Sample) ([]IngestResult, error) {
	results := make([]IngestResult, len(samples))

	var wg sync.WaitGroup
	for i, sample := range samples {
		i, sample := i, sample
		results[i].Index = i
		wg.Add(1)

		err := s.ingestPool.SubmitWithContext(ctx, func() {
			defer wg.Done()

			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				return
			}
			id, err := s.Ingest(ctx, sample)
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].ID = id
		})
		if err != nil {
			wg.Done()
			results[i].Error = err.Error()
		}
	}
	wg.Wait()

	return results, nil
}

// Evaluate classifies every sample and scores predictions against the
// labels. A pipeline failure aborts the run; evaluation is a measurement,
// not a best-effort batch.
func (s *Service) Evaluate(ctx context.Context, samples []model.Sample) (model.EvaluationMetrics, error) {
	predictions := make([]Prediction, 0, len(samples))

	for _, sample := range samples {
		outcome := s.pipeline.Run(ctx, sample.Summary, nil)
		if outcome.Failed() {
			return model.EvaluationMetrics{}, apperrors.ErrClassifierEvaluation.WithCause(outcome.Err)
		}
		predictions = append(predictions, Prediction{
			Result:      outcome.Result,
			WantDocType: sample.DocType,
			WantDocCode: sample.DocCode,
		})
	}

	s.metrics.RecordEvaluationRun()
	return s.pipeline.evaluator.Evaluate(predictions), nil
}

// Neighbors returns the k nearest labeled records for a summary. It runs
// extraction and normalization but skips thresholding; intended for
// diagnostics.
func (s *Service) Neighbors(ctx context.Context, summary string, k int) ([]store.QueryResult, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, apperrors.ErrClassifierEmptySummary
	}

	set, err := s.pipeline.extractWithRecovery(ctx, summary)
	if err != nil {
		return nil, apperrors.ErrClassifierExtraction.WithCause(err)
	}
	normalized, err := s.pipeline.normalizer.NormalizeSet(set)
	if err != nil {
		return nil, apperrors.ErrClassifierPipeline.WithCause(err)
	}
	return s.pipeline.engine.Neighbors(ctx, normalized, k)
}

// DeleteRecord removes a labeled record and invalidates the cache.
// Deleting an absent id is not an error.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apperrors.ErrClassifierStore.WithCause(err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warnw("result cache invalidation failed", "error", err.Error())
		}
	}
	return nil
}

// Stats reports store size, runtime counters, pool state and cache state.
func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, apperrors.ErrClassifierStore.WithCause(err)
	}

	stats := map[string]any{
		"records":   count,
		"threshold": s.pipeline.config.Threshold,
		"runtime":   s.metrics.Stats(),
		"ingest_pool": map[string]any{
			"running": s.ingestPool.Running(),
			"free":    s.ingestPool.Free(),
		},
	}

	if s.cache != nil {
		cacheStats, err := s.cache.Stats(ctx)
		if err != nil {
			logger.Warnw("result cache stats failed", "error", err.Error())
		} else {
			stats["cache"] = cacheStats
		}
	}
	return stats, nil
}

// Close releases the worker pool and the store.
func (s *Service) Close(ctx context.Context) error {
	s.ingestPool.Release()
	return s.store.Close(ctx)
}

// failureError maps a FAILED outcome to a registered error code while
// preserving the originating stage and error.
func (s *Service) failureError(outcome *Outcome) error {
	base := apperrors.ErrClassifierPipeline
	switch {
	case outcome.FailedAt == StageExtract:
		base = apperrors.ErrClassifierExtraction
	case outcome.FailedAt == StageStoreOrQuery:
		base = apperrors.ErrClassifierStore
	}

	var dimErr *store.DimensionMismatchError
	if errors.As(outcome.Err, &dimErr) {
		base = apperrors.ErrClassifierDimensionMismatch
	}
	if errors.Is(outcome.Err, context.DeadlineExceeded) {
		base = apperrors.ErrClassifierTimeout
	}

	return base.WithMessagef("stage %s: %v", outcome.FailedAt, outcome.Err)
}
