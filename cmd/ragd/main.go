package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/config"
	"github.com/kailas-cloud/ragd/internal/db"
	dbPostgres "github.com/kailas-cloud/ragd/internal/db/postgres"
	dbQdrant "github.com/kailas-cloud/ragd/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/ragd/internal/db/redis"
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/confidence"
	domwarmup "github.com/kailas-cloud/ragd/internal/domain/warmup"
	logpkg "github.com/kailas-cloud/ragd/internal/logger"
	"github.com/kailas-cloud/ragd/internal/metrics"
	"github.com/kailas-cloud/ragd/internal/repository/embcache"
	searchrepo "github.com/kailas-cloud/ragd/internal/repository/search"
	bedrockGen "github.com/kailas-cloud/ragd/internal/transport/bedrock"
	chiTransport "github.com/kailas-cloud/ragd/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/ragd/internal/transport/openai"
	"github.com/kailas-cloud/ragd/internal/usecase/collection"
	embeddinguc "github.com/kailas-cloud/ragd/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragd/internal/usecase/health"
	queryuc "github.com/kailas-cloud/ragd/internal/usecase/query"
	retrievaluc "github.com/kailas-cloud/ragd/internal/usecase/retrieval"
	"github.com/kailas-cloud/ragd/internal/usecase/synthesis"
	warmupuc "github.com/kailas-cloud/ragd/internal/usecase/warmup"
	"github.com/kailas-cloud/ragd/internal/version"
)

// languageModel is what both generation backends provide.
type languageModel interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragd API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("generation_provider", cfg.Generation.Provider),
		zap.String("generation_model", cfg.Generation.Model),
	)

	store, kv, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()
	metrics.RegisterPipelineMetrics()

	embedder, embHealth := buildEmbedder(cfg.Embedding, kv, cfg.Database.KeyPrefix, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", kv != nil && cfg.Embedding.CacheTTLSec > 0),
	)

	model, genHealth, err := buildLanguageModel(ctx, cfg.Generation, logger)
	if err != nil {
		logger.Fatal("Failed to create language model client", zap.Error(err))
	}

	// Warm-up: explicit config wins over environment detection
	required := domwarmup.Detect(os.LookupEnv)
	if cfg.Warmup.Enabled != nil {
		required = *cfg.Warmup.Enabled
	}
	machine := warmupuc.New(model, warmupuc.Config{
		Required:    required,
		MaxAttempts: cfg.Warmup.MaxAttempts,
		BackoffStep: time.Duration(cfg.Warmup.BackoffStepSec) * time.Second,
		Prompt:      cfg.Warmup.Prompt,
		MaxTokens:   cfg.Warmup.MaxTokens,
		Temperature: *cfg.Warmup.Temperature,
	}, logger.Named("warmup"))
	go machine.Start(ctx)

	// Pipeline
	searchRepo := searchrepo.New(store)
	retriever := retrievaluc.New(embedder, searchRepo, retrievaluc.Defaults{
		Collection: cfg.Retrieval.DefaultCollection,
		TopK:       cfg.Retrieval.TopK,
		Threshold:  *cfg.Retrieval.SimilarityThreshold,
	}, logger)
	synthesizer := synthesis.New(model, synthesis.Options{
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: *cfg.Generation.Temperature,
	}, logger)
	querySvc := queryuc.New(
		retriever, synthesizer,
		confidence.NewScorer(cfg.Retrieval.ConfidenceMode),
		cfg.Retrieval.ReturnCount, logger,
	)

	collSvc := collection.New(searchRepo, cfg.Retrieval.DefaultCollection)
	healthSvc := healthuc.New(store, embHealth, genHealth, machine)

	server := chiTransport.NewServer(
		querySvc, collSvc, healthSvc, machine,
		cfg.Retrieval.SourcePreviewChars, logger,
	)
	router := chiTransport.NewRouter(server, chiTransport.RouterOptions{
		APIKeys:      cfg.Auth.APIKeys,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		QueryTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		Logger:       logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore creates the vector store for the configured driver. kv is non-nil
// only for the rueidis backend, which doubles as the embedding cache.
func openStore(cfg config.DatabaseConfig) (db.Store, db.KVStore, error) {
	switch cfg.Driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%s store: %w", cfg.Driver, err)
		}
		return s, s, nil
	case "postgres":
		s, err := dbPostgres.NewStore(dbPostgres.Config{DSN: cfg.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		return s, nil, nil
	case "qdrant":
		s, err := dbQdrant.NewStore(dbQdrant.Config{
			Addr:   cfg.Addrs[0],
			APIKey: cfg.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("qdrant store: %w", err)
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	cfg config.EmbeddingConfig,
	kv db.KVStore,
	keyPrefix string,
	logger *zap.Logger,
) (domain.Embedder, healthuc.Checker) {
	const provider = "openai"

	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   provider,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = base
	if kv != nil && cfg.CacheTTLSec > 0 {
		embedder = embcache.New(base, kv, embcache.Options{
			KeyPrefix: keyPrefix + "emb:" + cfg.Model + ":",
			TTL:       time.Duration(cfg.CacheTTLSec) * time.Second,
			Lookups:   metrics.EmbeddingCacheTotal,
			Logger:    logger,
		})
	}

	// Instrumented (error classification + metrics)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provider, cfg.Model, logger)

	// Instruction prefix is outermost: the cache key includes the instruction
	if instruction := strings.TrimSpace(cfg.QueryInstruction); instruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}

	return embedder, base
}

// buildLanguageModel creates the generation backend. The returned checker is
// nil when the backend has no cheap liveness probe.
func buildLanguageModel(
	ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger,
) (languageModel, healthuc.Checker, error) {
	switch cfg.Provider {
	case "openai":
		g := openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:   logger,
		})
		return g, g, nil
	case "bedrock":
		g, err := bedrockGen.NewGenerator(ctx, &bedrockGen.Config{
			Region:        cfg.Bedrock.Region,
			Profile:       cfg.Bedrock.Profile,
			AssumeRoleARN: cfg.Bedrock.AssumeRoleARN,
			SessionName:   cfg.Bedrock.SessionName,
			Endpoint:      cfg.Bedrock.Endpoint,
			ModelID:       cfg.Model,
			Logger:        logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("bedrock generator: %w", err)
		}
		return g, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
