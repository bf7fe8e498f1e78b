// Package classifier provides the classifier service server implementation.
package classifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/triplet-classifier/internal/classifier/biz"
	"github.com/kart-io/triplet-classifier/internal/classifier/dataset"
	"github.com/kart-io/triplet-classifier/internal/classifier/extract"
	"github.com/kart-io/triplet-classifier/internal/classifier/handler"
	"github.com/kart-io/triplet-classifier/internal/classifier/router"
	"github.com/kart-io/triplet-classifier/internal/classifier/store"
	"github.com/kart-io/triplet-classifier/pkg/component/milvus"
	"github.com/kart-io/triplet-classifier/pkg/llm"
	"github.com/kart-io/triplet-classifier/pkg/llm/resilience"
	cacheopts "github.com/kart-io/triplet-classifier/pkg/options/cache"
	classifieropts "github.com/kart-io/triplet-classifier/pkg/options/classifier"
	httpopts "github.com/kart-io/triplet-classifier/pkg/options/http"
	llmopts "github.com/kart-io/triplet-classifier/pkg/options/llm"
	logopts "github.com/kart-io/triplet-classifier/pkg/options/logger"
	milvusopts "github.com/kart-io/triplet-classifier/pkg/options/milvus"

	// LLM providers register themselves on import.
	_ "github.com/kart-io/triplet-classifier/pkg/llm/ollama"
	_ "github.com/kart-io/triplet-classifier/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "triplet-classifier"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	MilvusOptions     *milvusopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	ClassifierOptions *classifieropts.Options
	CacheOptions      *cacheopts.Options
}

// Server is the assembled classifier server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	service         *biz.Service
	redisClose      func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Infow("Starting classifier service", "name", Name)

	vectorStore, err := cfg.newStore(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infow("Vector store initialized", "backend", cfg.ClassifierOptions.Store)

	vectorizer, err := cfg.newVectorizer()
	if err != nil {
		return nil, err
	}
	logger.Infow("Vectorizer initialized",
		"kind", cfg.ClassifierOptions.Vectorizer,
		"dimension", cfg.ClassifierOptions.Dimension,
	)

	extractor, fallback, err := cfg.newExtractors()
	if err != nil {
		return nil, err
	}
	logger.Infow("Extractor initialized",
		"extractor", extractor.Name(),
		"fallback", fallback != nil,
	)

	resultCache, redisClose := cfg.newResultCache(ctx)

	engine := biz.NewEngine(vectorStore, vectorizer)
	evaluator := biz.NewEvaluator(nil)
	pipeline := biz.NewPipeline(extractor, fallback, engine, evaluator, &biz.PipelineConfig{
		Threshold:      cfg.ClassifierOptions.Threshold,
		MaxAttempts:    cfg.ClassifierOptions.MaxAttempts,
		InitialDelay:   cfg.ClassifierOptions.RetryInitialDelay,
		MaxDelay:       cfg.ClassifierOptions.RetryMaxDelay,
		ExtractTimeout: cfg.ClassifierOptions.ExtractTimeout,
	})

	service, err := biz.NewService(pipeline, vectorStore, resultCache)
	if err != nil {
		return nil, fmt.Errorf("initialize service: %w", err)
	}
	logger.Infow("Classifier service initialized",
		"threshold", cfg.ClassifierOptions.Threshold,
		"cache.enabled", resultCache != nil,
	)

	if cfg.ClassifierOptions.Dataset != "" {
		if err := preloadDataset(ctx, service, cfg.ClassifierOptions.Dataset); err != nil {
			return nil, err
		}
	}

	gin.SetMode(cfg.HTTPOptions.Mode)
	engineHTTP := gin.New()
	engineHTTP.Use(gin.Recovery())
	router.Register(engineHTTP, handler.NewClassifierHandler(service))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPOptions.Addr,
			Handler:      engineHTTP,
			ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
			WriteTimeout: cfg.HTTPOptions.WriteTimeout,
			IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
		},
		shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout,
		service:         service,
		redisClose:      redisClose,
	}, nil
}

func (cfg *Config) newStore(ctx context.Context) (store.VectorStore, error) {
	switch cfg.ClassifierOptions.Store {
	case classifieropts.StoreMilvus:
		client, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("initialize milvus: %w", err)
		}
		ms, err := store.NewMilvusStore(ctx, client, cfg.ClassifierOptions.Collection, cfg.ClassifierOptions.Dimension)
		if err != nil {
			return nil, fmt.Errorf("initialize milvus store: %w", err)
		}
		return ms, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func (cfg *Config) newVectorizer() (store.Vectorizer, error) {
	switch cfg.ClassifierOptions.Vectorizer {
	case classifieropts.VectorizerEmbedding:
		provider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
		if err != nil {
			return nil, fmt.Errorf("initialize embedding provider: %w", err)
		}
		resilient := resilience.NewResilientEmbeddingProvider(provider, nil, nil)
		return store.NewEmbeddingVectorizer(resilient, cfg.ClassifierOptions.Dimension), nil
	default:
		return store.NewHashedVectorizer(cfg.ClassifierOptions.Dimension), nil
	}
}

// newExtractors builds the configured extractor and the heuristic fallback.
// The llm extractor is left unwrapped: retry and backoff around extraction
// belong to the pipeline so timed-out attempts count against its budget.
func (cfg *Config) newExtractors() (extract.Extractor, extract.Extractor, error) {
	var fallback extract.Extractor
	if cfg.ClassifierOptions.Fallback {
		fallback = extract.NewHeuristic()
	}

	switch cfg.ClassifierOptions.Extractor {
	case classifieropts.ExtractorLLM:
		provider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
		if err != nil {
			return nil, nil, fmt.Errorf("initialize chat provider: %w", err)
		}
		return extract.NewLLM(provider), fallback, nil
	default:
		return extract.NewHeuristic(), nil, nil
	}
}

// preloadDataset ingests a labeled dataset file before the server starts
// accepting requests. A sample that fails to ingest fails startup, so a
// preloaded server never serves from a partially loaded store.
func preloadDataset(ctx context.Context, service *biz.Service, path string) error {
	samples, err := dataset.Load(path)
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", path, err)
	}

	results, err := service.IngestBatch(ctx, samples)
	if err != nil {
		return fmt.Errorf("ingest dataset %s: %w", path, err)
	}
	for _, r := range results {
		if r.Error != "" {
			return fmt.Errorf("ingest dataset %s: sample %d: %s", path, r.Index, r.Error)
		}
	}

	logger.Infow("Dataset preloaded", "path", path, "samples", len(samples))
	return nil
}

// newResultCache connects Redis and degrades to no cache when the ping
// fails, so a missing Redis never blocks startup.
func (cfg *Config) newResultCache(ctx context.Context) (*biz.ResultCache, func()) {
	if !cfg.CacheOptions.Enabled || cfg.CacheOptions.Redis == nil {
		logger.Info("Result cache is disabled")
		return nil, nil
	}

	redisOpts := cfg.CacheOptions.Redis
	client := goredis.NewClient(&goredis.Options{
		Addr:         redisOpts.Addr(),
		Password:     redisOpts.Password,
		DB:           redisOpts.Database,
		MaxRetries:   redisOpts.MaxRetries,
		PoolSize:     redisOpts.PoolSize,
		MinIdleConns: redisOpts.MinIdleConns,
		DialTimeout:  redisOpts.DialTimeout,
		ReadTimeout:  redisOpts.ReadTimeout,
		WriteTimeout: redisOpts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		_ = client.Close()
		return nil, nil
	}

	logger.Infow("Result cache initialized",
		"addr", redisOpts.Addr(),
		"ttl", cfg.CacheOptions.TTL.String(),
	)
	cache := biz.NewResultCache(client, cfg.CacheOptions.TTL, cfg.CacheOptions.KeyPrefix)
	return cache, func() { _ = client.Close() }
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down classifier service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("HTTP server shutdown failed", "error", err.Error())
	}
	if err := s.service.Close(shutdownCtx); err != nil {
		logger.Warnw("service close failed", "error", err.Error())
	}
	if s.redisClose != nil {
		s.redisClose()
	}

	logger.Info("Classifier service stopped")
	return nil
}
