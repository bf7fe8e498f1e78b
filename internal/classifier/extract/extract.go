// Package extract produces raw factual triplets from summary text.
//
// Two implementations satisfy the Extractor contract: an adapter that
// delegates to an external language-understanding service through the llm
// provider abstraction, and a deterministic heuristic fallback built on
// sentence patterns and entity cues. The caller selects the implementation
// by configuration; both return an empty TripletSet, not an error, for text
// with no detectable factual relation.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/triplet-classifier/internal/model"
)

// Extractor turns raw summary text into a TripletSet.
type Extractor interface {
	// Extract returns the triplets found in text. An empty result with a
	// nil error means no factual relation was detected.
	Extract(ctx context.Context, text string) (model.TripletSet, error)

	// Name returns the implementation name.
	Name() string
}

// ServiceError marks a transient extraction-service failure. The
// orchestrator retries these with backoff before falling back to the
// heuristic extractor; all other extraction errors fail fast.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("extraction service %s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsServiceError reports whether err is (or wraps) a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
