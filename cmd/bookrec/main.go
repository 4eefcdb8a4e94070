package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/config"
	dbRedis "github.com/kailas-cloud/bookrec/internal/db/redis"
	"github.com/kailas-cloud/bookrec/internal/domain"
	"github.com/kailas-cloud/bookrec/internal/domain/catalog"
	"github.com/kailas-cloud/bookrec/internal/domain/match"
	logpkg "github.com/kailas-cloud/bookrec/internal/logger"
	"github.com/kailas-cloud/bookrec/internal/metrics"
	catalogrepo "github.com/kailas-cloud/bookrec/internal/repository/catalog"
	"github.com/kailas-cloud/bookrec/internal/repository/replycache"
	chiTransport "github.com/kailas-cloud/bookrec/internal/transport/chi"
	openaiLLM "github.com/kailas-cloud/bookrec/internal/transport/openai"
	completionuc "github.com/kailas-cloud/bookrec/internal/usecase/completion"
	"github.com/kailas-cloud/bookrec/internal/usecase/extract"
	"github.com/kailas-cloud/bookrec/internal/usecase/filter"
	healthuc "github.com/kailas-cloud/bookrec/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/bookrec/internal/usecase/recommend"
	"github.com/kailas-cloud/bookrec/internal/usecase/rerank"
	"github.com/kailas-cloud/bookrec/internal/version"
)

func main() {
	// .env is optional; real environment wins
	_ = godotenv.Load()

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

	logger.Info("Starting bookrec API server",
		zap.String("build", version.String()),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("model", cfg.LLM.Model),
		zap.String("match_mode", cfg.Filter.MatchMode),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterLLMMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()

	dataset, err := loadDataset(ctx, cfg.Catalog, logger)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}

	mode, err := match.ParseMode(cfg.Filter.MatchMode)
	if err != nil {
		logger.Fatal("Invalid match mode", zap.Error(err))
	}

	// Optional reply cache. Valkey and Redis share the rueidis store.
	var cache *dbRedis.Store
	if cfg.Cache.Enabled {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cache.Close()

		if err := cache.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to reply cache",
			zap.String("driver", cfg.Cache.Driver),
			zap.Strings("addrs", cfg.Cache.Addrs),
		)
	}

	base := openaiLLM.NewCompleter(&openaiLLM.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      logger,
	})
	resilient := buildResilient(base, cfg.LLM, logger)
	llm := buildCompleter(base, resilient, cfg.LLM, cfg.Cache, cache, logger)

	recommender := recommenduc.New(
		recommenduc.Data{
			Catalog:  dataset.Catalog,
			Universe: dataset.Universe,
			TopN:     dataset.TopN,
		},
		extract.New(llm),
		filter.New(mode),
		rerank.New(llm),
	).WithLimits(cfg.Catalog.TopNDefault, cfg.Catalog.TopNMax).
		WithStageBudgets(resilient.Budget(extract.Stage), resilient.Budget(rerank.Stage))

	// Pass nil interface (not typed nil pointer!) if the cache is disabled.
	var cachePinger healthuc.CachePinger
	if cache != nil {
		cachePinger = cache
	}
	healthSvc := healthuc.New(cachePinger, base)

	// Refine ends before the write timeout so fallbacks and 503s still reach the client.
	server := chiTransport.NewServer(recommender, healthSvc, logger).
		WithRefineTimeout(cfg.RefineTimeout())

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func loadDataset(ctx context.Context, c config.CatalogConfig, logger *zap.Logger) (catalogrepo.Dataset, error) {
	topNScheme, err := catalog.ParseIDScheme(c.TopNIDs)
	if err != nil {
		return catalogrepo.Dataset{}, fmt.Errorf("top_n_ids: %w", err)
	}
	universeScheme, err := catalog.ParseIDScheme(c.UniverseIDs)
	if err != nil {
		return catalogrepo.Dataset{}, fmt.Errorf("universe_ids: %w", err)
	}

	loader := catalogrepo.NewLoader(catalogrepo.Files{
		DataDir:        c.DataDir,
		Books:          c.BooksFile,
		Tags:           c.TagsFile,
		BookTags:       c.BookTagsFile,
		TopN:           c.TopNFile,
		Universe:       c.UniverseFile,
		TopNScheme:     topNScheme,
		UniverseScheme: universeScheme,
	}, logger)

	start := time.Now()
	ds, err := loader.Load(ctx)
	if err != nil {
		return catalogrepo.Dataset{}, err
	}
	logger.Info("Catalog loaded",
		zap.String("data_dir", filepath.Clean(c.DataDir)),
		zap.Int("books", len(ds.Catalog.Books())),
		zap.Int("tags", len(ds.Catalog.Tags())),
		zap.Int("universe_rows", ds.Universe.Len()),
		zap.Int("top_n_rows", ds.TopN.Len()),
		zap.Duration("took", time.Since(start)),
	)
	return ds, nil
}

// buildResilient wraps the provider with timeouts, rate limiting, retries and the breaker.
func buildResilient(
	base *openaiLLM.Completer, llmCfg config.LLMConfig, logger *zap.Logger,
) *completionuc.ResilientCompleter {
	return completionuc.NewResilientCompleter(base, completionuc.ResilienceConfig{
		StageTimeouts: map[string]time.Duration{
			extract.Stage: time.Duration(llmCfg.ExtractTimeout) * time.Second,
			rerank.Stage:  time.Duration(llmCfg.RerankTimeout) * time.Second,
		},
		MaxRetries:      llmCfg.MaxRetries,
		BaseBackoff:     time.Duration(llmCfg.BaseBackoffMs) * time.Millisecond,
		MaxBackoff:      time.Duration(llmCfg.MaxBackoffMs) * time.Millisecond,
		RateLimit:       llmCfg.RateLimitRPS,
		RateBurst:       llmCfg.RateBurst,
		BreakerFailures: llmCfg.BreakerFailures,
		BreakerOpen:     time.Duration(llmCfg.BreakerOpenSec) * time.Second,
		Retryable:       openaiLLM.IsRetryable,
		ClientError:     openaiLLM.IsClientError,
	}, logger)
}

// buildCompleter assembles the decorator chain: OpenAI -> Resilient -> Cached -> Instrumented
func buildCompleter(
	base *openaiLLM.Completer,
	resilient *completionuc.ResilientCompleter,
	llmCfg config.LLMConfig,
	cacheCfg config.CacheConfig,
	cache *dbRedis.Store,
	logger *zap.Logger,
) domain.Completer {
	var llm domain.Completer = resilient

	// Cached (hits skip the rate limiter and breaker)
	if cache != nil {
		llm = replycache.New(
			llm, cache, llmCfg.Model,
			time.Duration(cacheCfg.TTLSec)*time.Second,
			metrics.LLMCacheTotal, logger,
		)
	}

	// Instrumented (usage + logging), outermost
	return completionuc.NewInstrumentedCompleter(llm, base.Model(), logger)
}
