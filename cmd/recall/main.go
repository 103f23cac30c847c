package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/app"
	"github.com/kailas-cloud/recall/internal/config"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	chiTransport "github.com/kailas-cloud/recall/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/recall/internal/transport/openai"
	"github.com/kailas-cloud/recall/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	"github.com/kailas-cloud/recall/internal/usecase/indexing"
	"github.com/kailas-cloud/recall/internal/usecase/rag"
	"github.com/kailas-cloud/recall/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
	usageuc "github.com/kailas-cloud/recall/internal/usecase/usage"
	"github.com/kailas-cloud/recall/internal/version"
)

func main() {
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

	logger.Info("Starting recall API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRAGMetrics()

	ctx := context.Background()
	backend, err := app.OpenBackend(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open vector index", zap.Error(err))
	}
	defer backend.Close()

	if err := backend.Index.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to prepare vector collection", zap.Error(err))
	}
	logger.Info("Vector index ready", zap.Int("dimensions", cfg.Embedding.Dimensions))

	emb := app.NewEmbedding(ctx, &cfg, backend, logger)

	retriever := retrieval.New(emb.Service, backend.Index, logger)
	generator := generation.New(
		openaiTransport.NewChat(openaiTransport.ChatConfig{
			ClientConfig: openaiTransport.ClientConfig{APIKey: cfg.Generation.APIKey, BaseURL: cfg.Generation.BaseURL},
			Model:        cfg.Generation.Model,
		}, logger),
		generation.Config{
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
			Language:    cfg.Generation.Language,
		},
		logger,
	)

	ragCfg := rag.Config{
		Limit:            cfg.RAG.Limit,
		ScoreThreshold:   cfg.RAG.ScoreThreshold,
		MaxContextLength: cfg.RAG.MaxContextLength,
		NoResultsMessage: cfg.RAG.NoResultsMessage,
		FailureMessage:   cfg.RAG.FailureMessage,
		FaultMessage:     cfg.RAG.FaultMessage,
	}
	logger.Info("RAG configured", zap.Stringer("rag", ragCfg), zap.String("model", cfg.Generation.Model))

	ragSvc := rag.New(retriever, generator, ragCfg, logger)
	searchSvc := searchuc.New(retriever, request.Limits{
		DefaultLimit:     cfg.Search.DefaultLimit,
		MaxLimit:         cfg.Search.MaxLimit,
		DefaultThreshold: cfg.Search.DefaultThreshold,
		MinQueryChars:    cfg.Search.MinQueryChars,
	}, logger)
	indexingSvc := indexing.New(emb.Service, backend.Index, indexing.Config{
		Dimensions:          cfg.Embedding.Dimensions,
		SummaryExcerptChars: cfg.Index.SummaryExcerptChars,
	}, logger)

	// Pass nil interface (not typed nil pointer) if budget is not configured.
	var budgetReader usageuc.BudgetReader
	if emb.Budget != nil {
		budgetReader = emb.Budget
	}
	usageSvc := usageuc.New(budgetReader)
	healthSvc := healthuc.New(backend.Pinger, emb.Provider, logger)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty: every request is anonymous, tenant routes will answer 401")
	}

	server := chiTransport.NewServer(ragSvc, searchSvc, indexingSvc, usageSvc, healthSvc, chiTransport.Config{
		JWTSecret:      cfg.Auth.JWTSecret,
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
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
