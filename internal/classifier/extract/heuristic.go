package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/kart-io/triplet-classifier/internal/model"
)

// HeuristicName identifies the heuristic extractor.
const HeuristicName = "heuristic"

// Entity cue patterns, applied in fixed order so extraction is
// deterministic: two calls on the same text yield identical TripletSets.
var (
	amountPattern = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?`)
	datePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	refPattern    = regexp.MustCompile(`(?i)\b(?:INV|PO|BS|ACC)[-_]?\d[A-Za-z0-9-]*\b`)
	orgPattern    = regexp.MustCompile(`\b[A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)+\b`)
	svoPattern    = regexp.MustCompile(`([A-Za-z][A-Za-z ]*?)\s+(was|shows|issued|submitted|made|received)\s+(.+?)\.?$`)
)

// HeuristicExtractor extracts triplets with sentence patterns and entity
// cues (currency amounts, ISO dates, document identifiers, capitalized
// organization spans). It never calls out of process.
type HeuristicExtractor struct{}

// NewHeuristic returns the deterministic fallback extractor.
func NewHeuristic() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Name implements Extractor.
func (e *HeuristicExtractor) Name() string {
	return HeuristicName
}

// Extract implements Extractor. It never fails; text without any detectable
// relation yields an empty set.
func (e *HeuristicExtractor) Extract(_ context.Context, text string) (model.TripletSet, error) {
	var triplets model.TripletSet

	if m := amountPattern.FindString(text); m != "" {
		triplets = append(triplets, model.Triplet{Subject: "amount", Predicate: "has_value", Object: m})
	}
	if m := datePattern.FindString(text); m != "" {
		triplets = append(triplets, model.Triplet{Subject: "date", Predicate: "on", Object: m})
	}
	if m := refPattern.FindString(text); m != "" {
		triplets = append(triplets, model.Triplet{Subject: "document", Predicate: "identifier", Object: m})
	}
	if m := orgPattern.FindString(text); m != "" {
		triplets = append(triplets, model.Triplet{Subject: "organization", Predicate: "name", Object: m})
	}

	for _, sentence := range splitSentences(text) {
		if m := svoPattern.FindStringSubmatch(sentence); m != nil {
			triplets = append(triplets, model.Triplet{
				Subject:   strings.TrimSpace(m[1]),
				Predicate: m[2],
				Object:    strings.TrimSpace(m[3]),
			})
		}
	}

	return triplets, nil
}

func splitSentences(text string) []string {
	raw := strings.Split(text, ".")
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
