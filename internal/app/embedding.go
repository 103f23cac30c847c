package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/config"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
	budgetrepo "github.com/kailas-cloud/recall/internal/repository/budget"
	"github.com/kailas-cloud/recall/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/recall/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/recall/internal/usecase/embedding"
)

const providerOpenAI = "openai"

// Embedding is the assembled embedding stack.
type Embedding struct {
	Service  *embeddinguc.Service
	Budget   *embeddinguc.BudgetTracker // nil when no limit is configured
	Provider *openaiTransport.Embedder
}

// NewEmbedding assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Service.
// The cache and the budget persistence need a Redis-protocol backend.
func NewEmbedding(ctx context.Context, cfg *config.Config, b *Backend, logger *zap.Logger) *Embedding {
	ec := cfg.Embedding

	base := openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		ClientConfig: openaiTransport.ClientConfig{APIKey: ec.APIKey, BaseURL: ec.BaseURL},
		Model:        ec.Model,
		Dimensions:   ec.Dimensions,
		Provider:     providerOpenAI,
	}, logger)

	svc, tracker := WrapEmbedder(ctx, base, providerOpenAI, ec, b, logger)
	return &Embedding{Service: svc, Budget: tracker, Provider: base}
}

// WrapEmbedder decorates any provider with the cache, budget and zero-vector
// fallback layers. The tracker is nil when ec sets no budget limit.
func WrapEmbedder(
	ctx context.Context, base domain.Embedder, provider string,
	ec config.EmbeddingConfig, b *Backend, logger *zap.Logger,
) (*embeddinguc.Service, *embeddinguc.BudgetTracker) {
	embedder := base
	if ec.Cache && b.Redis != nil {
		embedder = embcache.New(base, b.Redis, ec.Model, metrics.EmbeddingCacheTotal, logger)
	}

	var tracker *embeddinguc.BudgetTracker
	if ec.Budget.DailyTokenLimit > 0 || ec.Budget.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if ec.Budget.Action == string(embeddinguc.BudgetActionReject) {
			action = embeddinguc.BudgetActionReject
		}
		tracker = embeddinguc.NewBudgetTracker(
			provider, ec.Budget.DailyTokenLimit, ec.Budget.MonthlyTokenLimit, action, logger,
		)
		if b.Redis != nil {
			tracker.WithStore(ctx, budgetrepo.New(b.Redis))
		}
	}

	// nil interface, not a typed nil pointer
	var checker embeddinguc.BudgetChecker
	if tracker != nil {
		checker = tracker
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provider, ec.Model, checker, logger)

	return embeddinguc.NewService(embedder, ec.Dimensions, ec.MaxInputChars, logger), tracker
}
