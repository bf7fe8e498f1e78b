// Package options contains flags and options for initializing the
// classifier server.
package options

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	classifiersvc "github.com/kart-io/triplet-classifier/internal/classifier"
	cacheopts "github.com/kart-io/triplet-classifier/pkg/options/cache"
	classifieropts "github.com/kart-io/triplet-classifier/pkg/options/classifier"
	httpopts "github.com/kart-io/triplet-classifier/pkg/options/http"
	llmopts "github.com/kart-io/triplet-classifier/pkg/options/llm"
	logopts "github.com/kart-io/triplet-classifier/pkg/options/logger"
	milvusopts "github.com/kart-io/triplet-classifier/pkg/options/milvus"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// ClassifierOptions contains classification pipeline configuration.
	ClassifierOptions *classifieropts.Options `json:"classifier" mapstructure:"classifier"`

	// CacheOptions contains result cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		ClassifierOptions: classifieropts.NewOptions(),
		CacheOptions:      cacheopts.NewOptions(),
	}
}

// AddFlags adds all server flags to the flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HTTPOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
	o.MilvusOptions.AddFlags(fs)
	o.EmbeddingOptions.AddFlags(fs, "embedding")
	o.ChatOptions.AddFlags(fs, "chat")
	o.ClassifierOptions.AddFlags(fs)
	o.CacheOptions.AddFlags(fs)
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.ClassifierOptions.Complete(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	var errs []error

	if err := o.HTTPOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.LogOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.ClassifierOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)

	return errors.Join(errs...)
}

// Config builds a classifiersvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*classifiersvc.Config, error) {
	return &classifiersvc.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		MilvusOptions:     o.MilvusOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		ClassifierOptions: o.ClassifierOptions,
		CacheOptions:      o.CacheOptions,
	}, nil
}
