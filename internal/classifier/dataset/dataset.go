// Package dataset loads labeled samples from JSON files for seeding and
// evaluation.
package dataset

import (
	"fmt"
	"os"

	"github.com/kart-io/triplet-classifier/internal/model"
	"github.com/kart-io/triplet-classifier/pkg/utils/json"
)

// Load reads a JSON array of samples from path. Every sample must carry a
// summary and both label fields; a partial record fails the whole load so
// an evaluation never runs against a silently truncated dataset.
func Load(path string) ([]model.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON array of samples.
func Parse(data []byte) ([]model.Sample, error) {
	var samples []model.Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	for i, s := range samples {
		if s.Summary == "" {
			return nil, fmt.Errorf("sample %d: empty summary", i)
		}
		if s.DocType == "" || s.DocCode == "" {
			return nil, fmt.Errorf("sample %d: missing label", i)
		}
	}
	return samples, nil
}
