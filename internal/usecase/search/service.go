package search

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/logger"
)

// Service is the retrieval-only entry point used by search UIs:
// the same retriever as question answering, without generation or confidence.
type Service struct {
	retriever Retriever
	limits    request.Limits
	logger    *zap.Logger
}

// New creates a search service.
func New(r Retriever, limits request.Limits, logger *zap.Logger) *Service {
	return &Service{retriever: r, limits: limits, logger: logger}
}

// Limits returns the bounds requests are validated against.
func (s *Service) Limits() request.Limits { return s.limits }

// SemanticSearch returns candidates ranked by similarity. Failures degrade to
// an empty list and are visible only in logs and metrics.
func (s *Service) SemanticSearch(ctx context.Context, req *request.Request) []candidate.Candidate {
	cs, err := s.retriever.Retrieve(ctx, req.Query(), req.Scope(), req.Limit(), req.Threshold())
	if err != nil && !errors.Is(err, domain.ErrEmbeddingFailed) {
		logger.FromContext(ctx, s.logger).Warn("Semantic search degraded to empty result",
			zap.Stringer("scope", req.Scope()),
			zap.Error(err),
		)
	}
	if cs == nil {
		return []candidate.Candidate{}
	}
	return cs
}
