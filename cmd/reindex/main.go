// Command reindex re-embeds every completed content row into the vector index.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/app"
	"github.com/kailas-cloud/recall/internal/config"
	logpkg "github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	contentrepo "github.com/kailas-cloud/recall/internal/repository/content"
	"github.com/kailas-cloud/recall/internal/usecase/indexing"
	"github.com/kailas-cloud/recall/internal/version"
)

func main() {
	batch := flag.Int("batch", indexing.DefaultReindexBatch, "items embedded per provider call")
	dsn := flag.String("dsn", "", "postgres DSN of the content store (overrides content.postgres_dsn)")
	flag.Parse()

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

	if *dsn != "" {
		cfg.Content.PostgresDSN = *dsn
	}
	if cfg.Content.PostgresDSN == "" {
		logger.Fatal("content.postgres_dsn is required for reindex")
	}

	metrics.RegisterEmbeddingMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting reindex",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int("batch", *batch),
	)

	backend, err := app.OpenBackend(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open vector index", zap.Error(err))
	}
	defer backend.Close()

	src, err := contentrepo.Open(ctx, cfg.Content.PostgresDSN, logger)
	if err != nil {
		logger.Fatal("Failed to connect content store", zap.Error(err))
	}
	defer func() { _ = src.Close() }()

	emb := app.NewEmbedding(ctx, &cfg, backend, logger)
	svc := indexing.New(emb.Service, backend.Index, indexing.Config{
		Dimensions:          cfg.Embedding.Dimensions,
		SummaryExcerptChars: cfg.Index.SummaryExcerptChars,
		ReindexBatch:        *batch,
	}, logger)

	start := time.Now()
	stats, err := svc.Reindex(ctx, src)
	logger.Info("Reindex complete",
		zap.Int("indexed", stats.Indexed),
		zap.Int("failed", stats.Failed),
		zap.Duration("took", time.Since(start)),
	)
	if err != nil {
		// Fatal skips the deferred closes; the process is exiting anyway.
		logger.Fatal("Reindex aborted", zap.Error(err))
	}
}
