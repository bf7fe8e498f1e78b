// Package metrics collects service-level counters for the classifier.
// Counters are lock-free; latency aggregation takes a small mutex.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the runtime counters of the classification service.
type Metrics struct {
	classificationsTotal   atomic.Uint64
	classificationsUnknown atomic.Uint64
	classificationErrors   atomic.Uint64

	ingestsTotal   atomic.Uint64
	ingestErrors   atomic.Uint64
	evaluationRuns atomic.Uint64

	extractionRetries   atomic.Uint64
	extractionFallbacks atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	durationMu      sync.Mutex
	totalDuration   time.Duration
	durationSamples uint64
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Get returns the process-wide metrics instance.
func Get() *Metrics {
	globalOnce.Do(func() {
		global = &Metrics{}
	})
	return global
}

// RecordClassification counts one finished classification and its latency.
func (m *Metrics) RecordClassification(unknown bool, elapsed time.Duration) {
	m.classificationsTotal.Add(1)
	if unknown {
		m.classificationsUnknown.Add(1)
	}

	m.durationMu.Lock()
	m.totalDuration += elapsed
	m.durationSamples++
	m.durationMu.Unlock()
}

// RecordClassificationError counts a classification that ended FAILED.
func (m *Metrics) RecordClassificationError() {
	m.classificationErrors.Add(1)
}

// RecordIngest counts one stored labeled record.
func (m *Metrics) RecordIngest() {
	m.ingestsTotal.Add(1)
}

// RecordIngestError counts a failed ingest.
func (m *Metrics) RecordIngestError() {
	m.ingestErrors.Add(1)
}

// RecordEvaluationRun counts one evaluation pass.
func (m *Metrics) RecordEvaluationRun() {
	m.evaluationRuns.Add(1)
}

// RecordExtractionRetry counts one retried extraction attempt.
func (m *Metrics) RecordExtractionRetry() {
	m.extractionRetries.Add(1)
}

// RecordExtractionFallback counts one fallback to the heuristic extractor.
func (m *Metrics) RecordExtractionFallback() {
	m.extractionFallbacks.Add(1)
}

// RecordCacheHit counts one result served from cache.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss counts one cache lookup that missed.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

func (m *Metrics) averageDuration() time.Duration {
	m.durationMu.Lock()
	defer m.durationMu.Unlock()
	if m.durationSamples == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.durationSamples)
}

// Stats returns a point-in-time snapshot as a plain map.
func (m *Metrics) Stats() map[string]any {
	return map[string]any{
		"classifications_total":   m.classificationsTotal.Load(),
		"classifications_unknown": m.classificationsUnknown.Load(),
		"classification_errors":   m.classificationErrors.Load(),
		"ingests_total":           m.ingestsTotal.Load(),
		"ingest_errors":           m.ingestErrors.Load(),
		"evaluation_runs":         m.evaluationRuns.Load(),
		"extraction_retries":      m.extractionRetries.Load(),
		"extraction_fallbacks":    m.extractionFallbacks.Load(),
		"cache_hits":              m.cacheHits.Load(),
		"cache_misses":            m.cacheMisses.Load(),
		"avg_classify_ms":         m.averageDuration().Milliseconds(),
	}
}

// Export renders the counters in Prometheus text exposition format.
func (m *Metrics) Export() string {
	var b strings.Builder

	writeCounter := func(name, help string, value uint64) {
		fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE %s counter\n", name)
		fmt.Fprintf(&b, "%s %d\n", name, value)
	}

	writeCounter("classifier_classifications_total", "Total classification requests processed.", m.classificationsTotal.Load())
	writeCounter("classifier_classifications_unknown_total", "Classifications that returned UNKNOWN.", m.classificationsUnknown.Load())
	writeCounter("classifier_classification_errors_total", "Classifications that failed.", m.classificationErrors.Load())
	writeCounter("classifier_ingests_total", "Labeled records stored.", m.ingestsTotal.Load())
	writeCounter("classifier_ingest_errors_total", "Failed ingest operations.", m.ingestErrors.Load())
	writeCounter("classifier_evaluation_runs_total", "Evaluation passes executed.", m.evaluationRuns.Load())
	writeCounter("classifier_extraction_retries_total", "Retried extraction attempts.", m.extractionRetries.Load())
	writeCounter("classifier_extraction_fallbacks_total", "Fallbacks to the heuristic extractor.", m.extractionFallbacks.Load())
	writeCounter("classifier_cache_hits_total", "Classification results served from cache.", m.cacheHits.Load())
	writeCounter("classifier_cache_misses_total", "Cache lookups that missed.", m.cacheMisses.Load())

	fmt.Fprintf(&b, "# HELP classifier_classify_duration_ms_avg Average classification latency in milliseconds.\n")
	fmt.Fprintf(&b, "# TYPE classifier_classify_duration_ms_avg gauge\n")
	fmt.Fprintf(&b, "classifier_classify_duration_ms_avg %d\n", m.averageDuration().Milliseconds())

	return b.String()
}

// Reset zeroes every counter. Intended for tests.
func (m *Metrics) Reset() {
	m.classificationsTotal.Store(0)
	m.classificationsUnknown.Store(0)
	m.classificationErrors.Store(0)
	m.ingestsTotal.Store(0)
	m.ingestErrors.Store(0)
	m.evaluationRuns.Store(0)
	m.extractionRetries.Store(0)
	m.extractionFallbacks.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)

	m.durationMu.Lock()
	m.totalDuration = 0
	m.durationSamples = 0
	m.durationMu.Unlock()
}
