// Package biz implements the classification business logic: the
// nearest-neighbor engine, the evaluation harness, the orchestration
// pipeline, and the service facade.
package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/triplet-classifier/internal/classifier/store"
	"github.com/kart-io/triplet-classifier/internal/model"
)

// Engine classifies normalized triplet sets by nearest-neighbor lookup
// against the vector store.
type Engine struct {
	store      store.VectorStore
	vectorizer store.Vectorizer
}

// lookupError marks a store lookup failure so the pipeline can attribute
// it to the query stage instead of the classify stage.
type lookupError struct {
	err error
}

func (e *lookupError) Error() string {
	return fmt.Sprintf("query store: %v", e.err)
}

func (e *lookupError) Unwrap() error {
	return e.err
}

// NewEngine creates a classification engine.
func NewEngine(vs store.VectorStore, vectorizer store.Vectorizer) *Engine {
	return &Engine{store: vs, vectorizer: vectorizer}
}

// Classify finds the single nearest stored record and accepts it when its
// similarity reaches the threshold. The threshold is an explicit required
// parameter so behavior is reproducible from configuration.
//
// An empty triplet set and an empty store both yield UNKNOWN with
// confidence 0; a best match strictly below the threshold yields UNKNOWN
// carrying the best similarity found.
func (e *Engine) Classify(ctx context.Context, set model.TripletSet, threshold float64) (*model.ClassificationResult, error) {
	if set.Empty() {
		return model.NewUnknownResult(0), nil
	}

	vector, err := e.vectorizer.Vectorize(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("vectorize triplet set: %w", err)
	}

	results, err := e.store.Query(ctx, vector, 1)
	if err != nil {
		return nil, &lookupError{err: err}
	}
	if len(results) == 0 {
		return model.NewUnknownResult(0), nil
	}

	best := results[0]
	if best.Similarity < threshold {
		return model.NewUnknownResult(best.Similarity), nil
	}

	return &model.ClassificationResult{
		DocType:         best.Record.DocType,
		DocCode:         best.Record.DocCode,
		Confidence:      best.Similarity,
		MatchedRecordID: best.Record.ID,
	}, nil
}

// Neighbors returns the k nearest stored records for a triplet set. It is
// a diagnostic aid; classification itself always uses k=1.
func (e *Engine) Neighbors(ctx context.Context, set model.TripletSet, k int) ([]store.QueryResult, error) {
	if set.Empty() {
		return nil, nil
	}

	vector, err := e.vectorizer.Vectorize(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("vectorize triplet set: %w", err)
	}
	return e.store.Query(ctx, vector, k)
}

// Vectorizer exposes the engine's vectorizer for callers that build
// records (ingest shares the same vector space as queries).
func (e *Engine) Vectorizer() store.Vectorizer {
	return e.vectorizer
}
