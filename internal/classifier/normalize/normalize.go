// Package normalize canonicalizes extracted triplets and masks PII spans
// with category placeholder tokens.
//
// Normalization applies, in fixed order: whitespace and case
// canonicalization, then masking of configured PII categories (currency
// amounts, dates, document/reference numbers, account numbers, bare
// numbers, person names, organization names). Tokens not matched by any
// pattern pass through unchanged. The transform is deterministic and
// idempotent: placeholder tokens are uppercase and the masking patterns
// only match lowercase text, so a second pass is a no-op.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kart-io/triplet-classifier/internal/model"
)

// ErrMalformedTriplet indicates extraction output with an empty subject or
// object. It is non-retryable and surfaced to the caller.
var ErrMalformedTriplet = errors.New("malformed triplet")

// Placeholder tokens substituted for detected PII spans.
const (
	TokenAmount  = "<AMOUNT>"
	TokenDate    = "<DATE>"
	TokenRef     = "<REF>"
	TokenAccount = "<ACCOUNT>"
	TokenNum     = "<NUM>"
	TokenPerson  = "<PERSON>"
	TokenOrg     = "<ORG>"
)

// maskRule rewrites one PII category. Rules run in declaration order; order
// matters because later rules must not see spans an earlier rule owns
// (amounts before bare numbers, account numbers before bare numbers).
type maskRule struct {
	pattern *regexp.Regexp
	token   string
}

var maskRules = []maskRule{
	{regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?`), TokenAmount},
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), TokenDate},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`), TokenDate},
	{regexp.MustCompile(`#?(?:inv|po|bs|acc|ref|doc)[-_]?\d[a-z0-9-]*`), TokenRef},
	{regexp.MustCompile(`\b\d{6,}\b`), TokenAccount},
	{regexp.MustCompile(`\b\d+(?:\.\d+)?\b`), TokenNum},
	{regexp.MustCompile(`\b(?:mr|mrs|ms|dr)\.? [a-z]+\b`), TokenPerson},
	{regexp.MustCompile(`\b[a-z][a-z&]*(?: [a-z&]+)? (?:corp|corporation|inc|llc|ltd|gmbh)\b`), TokenOrg},
}

// placeholderPattern recognizes already-substituted tokens so repeated
// normalization leaves them untouched.
var placeholderPattern = regexp.MustCompile(`<[A-Z]+>`)

// Normalizer canonicalizes and masks triplets. It is stateless and safe for
// concurrent use.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize returns the canonicalized, masked form of t. It fails only on
// malformed input: a subject or object that is empty after whitespace
// canonicalization.
func (n *Normalizer) Normalize(t model.Triplet) (model.Triplet, error) {
	subject := normalizeField(t.Subject)
	object := normalizeField(t.Object)

	if subject == "" {
		return model.Triplet{}, fmt.Errorf("%w: empty subject", ErrMalformedTriplet)
	}
	if object == "" {
		return model.Triplet{}, fmt.Errorf("%w: empty object", ErrMalformedTriplet)
	}

	return model.Triplet{
		Subject:   subject,
		Predicate: normalizeField(t.Predicate),
		Object:    object,
	}, nil
}

// NormalizeSet normalizes every triplet in the set, preserving extraction
// order. The input set is not mutated.
func (n *Normalizer) NormalizeSet(ts model.TripletSet) (model.TripletSet, error) {
	if ts.Empty() {
		return nil, nil
	}

	out := make(model.TripletSet, 0, len(ts))
	for i, t := range ts {
		nt, err := n.Normalize(t)
		if err != nil {
			return nil, fmt.Errorf("triplet %d: %w", i, err)
		}
		out = append(out, nt)
	}
	return out, nil
}

func normalizeField(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = lowerPreservingPlaceholders(s)
	for _, rule := range maskRules {
		s = rule.pattern.ReplaceAllString(s, rule.token)
	}
	return s
}

// lowerPreservingPlaceholders lowercases s while keeping placeholder tokens
// from a previous pass intact.
func lowerPreservingPlaceholders(s string) string {
	locs := placeholderPattern.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range locs {
		b.WriteString(strings.ToLower(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(strings.ToLower(s[last:]))
	return b.String()
}
