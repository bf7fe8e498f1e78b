// Package classifieropts provides classification pipeline configuration
// options.
package classifieropts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/triplet-classifier/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Store backend names.
const (
	StoreMemory = "memory"
	StoreMilvus = "milvus"
)

// Extractor names.
const (
	ExtractorHeuristic = "heuristic"
	ExtractorLLM       = "llm"
)

// Vectorizer names.
const (
	VectorizerHashed    = "hashed"
	VectorizerEmbedding = "embedding"
)

// Options contains classification pipeline configuration.
type Options struct {
	// Store selects the vector store backend (memory, milvus).
	Store string `json:"store" mapstructure:"store"`

	// Extractor selects the triplet extractor (heuristic, llm).
	Extractor string `json:"extractor" mapstructure:"extractor"`

	// Vectorizer selects the triplet vectorizer (hashed, embedding).
	Vectorizer string `json:"vectorizer" mapstructure:"vectorizer"`

	// Dimension is the vector dimension. For the embedding vectorizer it
	// must match the embedding model's output dimension.
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Collection is the Milvus collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// Threshold is the minimum similarity for an accepted match.
	Threshold float64 `json:"threshold" mapstructure:"threshold"`

	// MaxAttempts bounds extraction attempts, including the first call.
	MaxAttempts int `json:"max-attempts" mapstructure:"max-attempts"`

	// RetryInitialDelay is the backoff before the first extraction retry.
	RetryInitialDelay time.Duration `json:"retry-initial-delay" mapstructure:"retry-initial-delay"`

	// RetryMaxDelay caps the extraction backoff.
	RetryMaxDelay time.Duration `json:"retry-max-delay" mapstructure:"retry-max-delay"`

	// ExtractTimeout bounds each extraction attempt.
	ExtractTimeout time.Duration `json:"extract-timeout" mapstructure:"extract-timeout"`

	// Fallback enables the heuristic rescue path when the llm extractor
	// exhausts its retries.
	Fallback bool `json:"fallback" mapstructure:"fallback"`

	// Dataset is an optional path to a JSON file of labeled samples that
	// are ingested at startup. Empty disables preloading.
	Dataset string `json:"dataset" mapstructure:"dataset"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Store:             StoreMemory,
		Extractor:         ExtractorHeuristic,
		Vectorizer:        VectorizerHashed,
		Dimension:         256,
		Collection:        "labeled_triplets",
		Threshold:         0.85,
		MaxAttempts:       3,
		RetryInitialDelay: 500 * time.Millisecond,
		RetryMaxDelay:     5 * time.Second,
		ExtractTimeout:    30 * time.Second,
		Fallback:          true,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Store, options.Join(prefixes...)+"classifier.store", o.Store, "Vector store backend (memory, milvus).")
	fs.StringVar(&o.Extractor, options.Join(prefixes...)+"classifier.extractor", o.Extractor, "Triplet extractor (heuristic, llm).")
	fs.StringVar(&o.Vectorizer, options.Join(prefixes...)+"classifier.vectorizer", o.Vectorizer, "Triplet vectorizer (hashed, embedding).")
	fs.IntVar(&o.Dimension, options.Join(prefixes...)+"classifier.dimension", o.Dimension, "Vector dimension.")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"classifier.collection", o.Collection, "Milvus collection name.")
	fs.Float64Var(&o.Threshold, options.Join(prefixes...)+"classifier.threshold", o.Threshold, "Minimum similarity for an accepted match.")
	fs.IntVar(&o.MaxAttempts, options.Join(prefixes...)+"classifier.max-attempts", o.MaxAttempts, "Maximum extraction attempts.")
	fs.DurationVar(&o.RetryInitialDelay, options.Join(prefixes...)+"classifier.retry-initial-delay", o.RetryInitialDelay, "Initial extraction retry delay.")
	fs.DurationVar(&o.RetryMaxDelay, options.Join(prefixes...)+"classifier.retry-max-delay", o.RetryMaxDelay, "Maximum extraction retry delay.")
	fs.DurationVar(&o.ExtractTimeout, options.Join(prefixes...)+"classifier.extract-timeout", o.ExtractTimeout, "Per-attempt extraction timeout.")
	fs.BoolVar(&o.Fallback, options.Join(prefixes...)+"classifier.fallback", o.Fallback, "Fall back to the heuristic extractor after retry exhaustion.")
	fs.StringVar(&o.Dataset, options.Join(prefixes...)+"classifier.dataset", o.Dataset, "Path to a JSON dataset of labeled samples ingested at startup.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Store {
	case StoreMemory, StoreMilvus:
	default:
		errs = append(errs, fmt.Errorf("classifier.store must be one of %s, %s", StoreMemory, StoreMilvus))
	}
	switch o.Extractor {
	case ExtractorHeuristic, ExtractorLLM:
	default:
		errs = append(errs, fmt.Errorf("classifier.extractor must be one of %s, %s", ExtractorHeuristic, ExtractorLLM))
	}
	switch o.Vectorizer {
	case VectorizerHashed, VectorizerEmbedding:
	default:
		errs = append(errs, fmt.Errorf("classifier.vectorizer must be one of %s, %s", VectorizerHashed, VectorizerEmbedding))
	}
	if o.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("classifier.dimension must be positive"))
	}
	if o.Store == StoreMilvus && o.Collection == "" {
		errs = append(errs, fmt.Errorf("classifier.collection is required for the milvus store"))
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		errs = append(errs, fmt.Errorf("classifier.threshold must be within [0,1]"))
	}
	if o.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("classifier.max-attempts must be positive"))
	}
	return errs
}

// Complete completes the options with defaults.
func (o *Options) Complete() error {
	if o.RetryInitialDelay <= 0 {
		o.RetryInitialDelay = 500 * time.Millisecond
	}
	if o.RetryMaxDelay < o.RetryInitialDelay {
		o.RetryMaxDelay = o.RetryInitialDelay
	}
	return nil
}
