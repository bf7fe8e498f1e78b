// Package model defines the domain types shared across the classifier service.
package model

import "strings"

// LabelUnknown is returned when no stored record matches a query with
// sufficient confidence.
const LabelUnknown = "UNKNOWN"

// Triplet is a (subject, predicate, object) factual relation extracted from
// a document summary. Triplets are immutable once produced by extraction;
// normalization returns a transformed copy.
type Triplet struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Text renders the triplet as a single space-joined string.
func (t Triplet) Text() string {
	return strings.TrimSpace(t.Subject + " " + t.Predicate + " " + t.Object)
}

// TripletSet is the ordered sequence of triplets extracted from one summary.
// Order reflects extraction order only; matching treats the set as unordered.
type TripletSet []Triplet

// Empty reports whether the set contains no triplets.
func (ts TripletSet) Empty() bool {
	return len(ts) == 0
}

// Text renders the set as one string, triplets separated by "; ".
func (ts TripletSet) Text() string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Text()
	}
	return strings.Join(parts, "; ")
}

// ClassificationResult is the outcome of classifying one summary.
type ClassificationResult struct {
	// DocType is the predicted document type, or LabelUnknown.
	DocType string `json:"doc_type"`

	// DocCode is the predicted document code, or LabelUnknown.
	DocCode string `json:"doc_code"`

	// Confidence is the best similarity found, in [0,1].
	Confidence float64 `json:"confidence"`

	// MatchedRecordID is the id of the matched record, empty when unknown.
	MatchedRecordID string `json:"matched_record_id,omitempty"`
}

// Unknown reports whether the result carries no accepted match.
func (r *ClassificationResult) Unknown() bool {
	return r.DocType == LabelUnknown && r.DocCode == LabelUnknown
}

// NewUnknownResult builds an UNKNOWN result with the given best similarity.
func NewUnknownResult(confidence float64) *ClassificationResult {
	return &ClassificationResult{
		DocType:    LabelUnknown,
		DocCode:    LabelUnknown,
		Confidence: confidence,
	}
}

// Sample is one labeled dataset entry, consumed for ingest and evaluation.
type Sample struct {
	Summary string `json:"summary"`
	DocType string `json:"doc_type"`
	DocCode string `json:"doc_code"`
}

// EvaluationMetrics is the snapshot returned by one evaluation run.
type EvaluationMetrics struct {
	// Accuracy is correct / total; 0 when NoSamples is true.
	Accuracy float64 `json:"accuracy"`

	// SampleCount is the number of evaluated samples.
	SampleCount int `json:"sample_count"`

	// PerSampleCorrect records exact-match correctness per sample, in order.
	PerSampleCorrect []bool `json:"per_sample_correct"`

	// NoSamples marks an evaluation over zero samples, distinguishing
	// "accuracy 0 over nothing" from "accuracy 0 over N wrong predictions".
	NoSamples bool `json:"no_samples,omitempty"`

	// ConfidenceBuckets is an optional histogram of prediction confidences.
	ConfidenceBuckets map[string]int `json:"confidence_buckets,omitempty"`
}
