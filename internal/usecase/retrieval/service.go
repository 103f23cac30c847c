package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// Empty-result causes.
const (
	causeEmbeddingFailed = "embedding_failed"
	causeSearchFault     = "search_fault"
	causeNoMatch         = "no_match"
)

// Retriever turns a query into ranked candidates within an access scope.
// It does a single search: no pagination, re-ranking or query expansion.
type Retriever struct {
	embed  Embedder
	index  Index
	logger *zap.Logger
}

// New creates a retriever.
func New(embed Embedder, index Index, logger *zap.Logger) *Retriever {
	return &Retriever{embed: embed, index: index, logger: logger}
}

// Retrieve always returns a non-nil slice. The error tells an empty result apart
// from a failure: ErrEmbeddingFailed when the query embedding is the zero vector
// (the index is not searched), ErrIndexUnavailable when the search itself failed.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, scope request.Scope, limit int, threshold float64,
) ([]candidate.Candidate, error) {
	log := logger.FromContext(ctx, r.logger).With(zap.Stringer("scope", scope))

	vec := r.embed.Embed(ctx, query)
	if domain.IsZeroVector(vec) {
		metrics.RetrievalEmptyTotal.WithLabelValues(causeEmbeddingFailed).Inc()
		log.Warn("Embedding failed, skipping search", zap.Int("query_chars", len(query)))
		return []candidate.Candidate{}, domain.ErrEmbeddingFailed
	}

	cs, err := r.index.Search(ctx, vec, scope.Filter(), limit, threshold)
	if err != nil {
		metrics.RetrievalEmptyTotal.WithLabelValues(causeSearchFault).Inc()
		log.Error("Vector search failed", zap.Error(err))
		return []candidate.Candidate{}, fmt.Errorf("search: %w", err)
	}

	metrics.RAGRetrievedCandidates.Observe(float64(len(cs)))
	if len(cs) == 0 {
		metrics.RetrievalEmptyTotal.WithLabelValues(causeNoMatch).Inc()
		log.Debug("No results", zap.Int("limit", limit), zap.Float64("threshold", threshold))
		return []candidate.Candidate{}, nil
	}
	return cs, nil
}
