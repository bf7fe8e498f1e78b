package biz

import (
	"github.com/kart-io/logger"

	"github.com/kart-io/triplet-classifier/internal/model"
)

// Prediction pairs a classification result with the expected label for
// one evaluation sample.
type Prediction struct {
	Result      *model.ClassificationResult
	WantDocType string
	WantDocCode string
}

// Correct reports whether both the type and the code match exactly. A
// near-miss on either field counts as wrong.
func (p Prediction) Correct() bool {
	if p.Result == nil {
		return false
	}
	return p.Result.DocType == p.WantDocType && p.Result.DocCode == p.WantDocCode
}

// MetricBackend receives evaluation snapshots. Implementations must not
// block; errors are logged and never surfaced to the caller.
type MetricBackend interface {
	RecordEvaluation(metrics model.EvaluationMetrics) error
}

// Evaluator aggregates predictions into accuracy metrics.
type Evaluator struct {
	backend MetricBackend
}

// NewEvaluator creates an evaluator. backend may be nil.
func NewEvaluator(backend MetricBackend) *Evaluator {
	return &Evaluator{backend: backend}
}

// Evaluate computes exact-match accuracy over the predictions. Zero
// predictions yield accuracy 0 with the NoSamples flag set rather than a
// division error.
func (e *Evaluator) Evaluate(predictions []Prediction) model.EvaluationMetrics {
	metrics := model.EvaluationMetrics{
		SampleCount:       len(predictions),
		PerSampleCorrect:  make([]bool, len(predictions)),
		ConfidenceBuckets: make(map[string]int),
	}

	if len(predictions) == 0 {
		metrics.NoSamples = true
		e.publish(metrics)
		return metrics
	}

	correct := 0
	for i, p := range predictions {
		ok := p.Correct()
		metrics.PerSampleCorrect[i] = ok
		if ok {
			correct++
		}
		if p.Result != nil {
			metrics.ConfidenceBuckets[confidenceBucket(p.Result.Confidence)]++
		}
	}
	metrics.Accuracy = float64(correct) / float64(len(predictions))

	e.publish(metrics)
	return metrics
}

func (e *Evaluator) publish(metrics model.EvaluationMetrics) {
	if e.backend == nil {
		return
	}
	if err := e.backend.RecordEvaluation(metrics); err != nil {
		logger.Warnw("metric backend rejected evaluation snapshot", "error", err)
	}
}

func confidenceBucket(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "0.9-1.0"
	case confidence >= 0.7:
		return "0.7-0.9"
	case confidence >= 0.5:
		return "0.5-0.7"
	default:
		return "0.0-0.5"
	}
}
