package recall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/app"
	"github.com/kailas-cloud/recall/internal/config"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/answer"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	"github.com/kailas-cloud/recall/internal/usecase/indexing"
	"github.com/kailas-cloud/recall/internal/usecase/rag"
	"github.com/kailas-cloud/recall/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
	usageuc "github.com/kailas-cloud/recall/internal/usecase/usage"
)

const defaultProvider = "custom"

// Internal interfaces, swapped for mocks in tests.
type askUseCase interface {
	Ask(ctx context.Context, question string, scope request.Scope) answer.Response
}

type searchUseCase interface {
	Limits() request.Limits
	SemanticSearch(ctx context.Context, req *request.Request) []candidate.Candidate
}

type indexUseCase interface {
	IndexContent(ctx context.Context, p content.Payload) (string, error)
	DeleteContent(ctx context.Context, contentID string) error
}

// Client is the recall SDK entry point.
type Client struct {
	backend   *app.Backend
	ragSvc    askUseCase
	searchSvc searchUseCase
	indexSvc  indexUseCase
	healthSvc healthUseCase
	usageSvc  usageUseCase
	obs       *observer
}

// New creates a Client, connects to the index backend and prepares the collection.
// The provided context is used for the readiness check and collection setup.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{provider: defaultProvider}
	for _, o := range opts {
		o.apply(cc)
	}

	cfg, err := cc.toConfig()
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	// internal layers log through zap; client operations are reported by the observer
	log := zap.NewNop()

	backend, err := app.OpenBackend(ctx, &cfg, log)
	if err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}
	if err := backend.Index.EnsureCollection(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("recall: prepare collection: %w", err)
	}

	return wireClient(ctx, backend, cc, &cfg, obs, log), nil
}

func (cc *clientConfig) toConfig() (config.Config, error) {
	switch cc.driver {
	case "redis", "valkey":
		if len(cc.addrs) == 0 || cc.addrs[0] == "" {
			return config.Config{}, errors.New("recall: database address required")
		}
	case "bolt":
		if cc.boltPath == "" {
			return config.Config{}, errors.New("recall: bolt path required")
		}
	case "":
		return config.Config{}, errors.New("recall: backend required (use WithRedis, WithValkey or WithBolt)")
	default:
		return config.Config{}, fmt.Errorf("recall: unknown driver %q", cc.driver)
	}
	if cc.embedder != nil && cc.dimensions <= 0 {
		return config.Config{}, fmt.Errorf("recall: vector dimensions must be positive, got %d", cc.dimensions)
	}

	action := "warn"
	if cc.rejectOverBudget {
		action = "reject"
	}

	cfg := config.Config{
		Database: config.DatabaseConfig{
			Driver:   cc.driver,
			Addrs:    cc.addrs,
			Password: cc.password,
			BoltPath: cc.boltPath,
		},
		Embedding: config.EmbeddingConfig{
			Model:      cc.provider,
			Dimensions: cc.dimensions,
			Cache:      cc.cache,
			Budget: config.BudgetConfig{
				DailyTokenLimit:   cc.dailyTokenLimit,
				MonthlyTokenLimit: cc.monthlyTokenLimit,
				Action:            action,
			},
		},
		Generation: config.GenerationConfig{Language: cc.language},
		RAG: config.RAGConfig{
			Limit:            cc.ragLimit,
			ScoreThreshold:   cc.ragThreshold,
			MaxContextLength: cc.maxContextLength,
		},
	}
	cfg.ApplyDefaults()
	if cfg.RAG.ScoreThreshold > 1 {
		return config.Config{}, fmt.Errorf("recall: retrieval threshold must be between 0 and 1, got %v", cc.ragThreshold)
	}
	return cfg, nil
}

func wireClient(
	ctx context.Context, backend *app.Backend, cc *clientConfig,
	cfg *config.Config, obs *observer, log *zap.Logger,
) *Client {
	var emb domain.Embedder = noopEmbedder{}
	if cc.embedder != nil {
		emb = &embedderAdapter{inner: cc.embedder}
	}
	var llm domain.Completer = noopCompleter{}
	if cc.completer != nil {
		llm = &completerAdapter{inner: cc.completer}
	}

	embSvc, tracker := app.WrapEmbedder(ctx, emb, cc.provider, cfg.Embedding, backend, log)

	retriever := retrieval.New(embSvc, backend.Index, log)
	generator := generation.New(llm, generation.Config{
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
		Language:    cfg.Generation.Language,
	}, log)
	ragSvc := rag.New(retriever, generator, rag.Config{
		Limit:            cfg.RAG.Limit,
		ScoreThreshold:   cfg.RAG.ScoreThreshold,
		MaxContextLength: cfg.RAG.MaxContextLength,
		NoResultsMessage: cfg.RAG.NoResultsMessage,
		FailureMessage:   cfg.RAG.FailureMessage,
		FaultMessage:     cfg.RAG.FaultMessage,
	}, log)
	searchSvc := searchuc.New(retriever, request.Limits{
		DefaultLimit:     cfg.Search.DefaultLimit,
		MaxLimit:         cfg.Search.MaxLimit,
		DefaultThreshold: cfg.Search.DefaultThreshold,
		MinQueryChars:    cfg.Search.MinQueryChars,
	}, log)
	indexSvc := indexing.New(embSvc, backend.Index, indexing.Config{
		Dimensions:          cfg.Embedding.Dimensions,
		SummaryExcerptChars: cfg.Index.SummaryExcerptChars,
	}, log)

	var budgetReader usageuc.BudgetReader
	if tracker != nil {
		budgetReader = tracker
	}

	return &Client{
		backend:   backend,
		ragSvc:    ragSvc,
		searchSvc: searchSvc,
		indexSvc:  indexSvc,
		healthSvc: healthuc.New(backend.Pinger, nil, log),
		usageSvc:  usageuc.New(budgetReader),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.backend != nil {
		c.backend.Close()
	}
}

// Ask answers a question from the content visible in scope.
func (c *Client) Ask(ctx context.Context, scope Scope, question string) Answer {
	start := time.Now()
	resp := c.ragSvc.Ask(ctx, question, scope.inner)
	c.obs.observe("ask", start, nil)

	sources := make([]Source, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		sources = append(sources, Source(s))
	}
	return Answer{Text: resp.Answer, Sources: sources, Confidence: resp.Confidence}
}

// Search returns the content in scope most similar to query, best first.
// limit 0 and a negative threshold select the defaults (10 and 0.6).
// Only invalid parameters produce an error; backend failures yield an empty list.
func (c *Client) Search(
	ctx context.Context, scope Scope, query string, limit int, threshold float64,
) (_ []Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	req, err := request.New(query, scope.inner, limit, threshold, c.searchSvc.Limits())
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	cs := c.searchSvc.SemanticSearch(ctx, &req)
	out := make([]Result, 0, len(cs))
	for _, cand := range cs {
		out = append(out, Result{
			ContentID:  cand.ContentID,
			OwnerID:    cand.OwnerID,
			Title:      cand.Title,
			Summary:    cand.Summary,
			Tags:       cand.Tags,
			Similarity: cand.Similarity,
		})
	}
	return out, nil
}

// Index embeds a content item and replaces its indexed point. Returns the new point id.
func (c *Client) Index(ctx context.Context, item Content) (_ string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	pointID, err := c.indexSvc.IndexContent(ctx, content.Payload{
		ContentID: item.ID,
		OwnerID:   item.OwnerID,
		IsPublic:  item.IsPublic,
		Title:     item.Title,
		Summary:   item.Summary,
		Tags:      item.Tags,
	})
	if err != nil {
		return "", fmt.Errorf("index content %s: %w", item.ID, err)
	}
	return pointID, nil
}

// Delete removes every indexed point of a content item. Deleting an unknown id is not an error.
func (c *Client) Delete(ctx context.Context, contentID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	if err = c.indexSvc.DeleteContent(ctx, contentID); err != nil {
		return fmt.Errorf("delete content %s: %w", contentID, err)
	}
	return nil
}
