package search

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
)

// Retriever finds candidates for a query within a scope.
type Retriever interface {
	Retrieve(
		ctx context.Context, query string, scope request.Scope, limit int, threshold float64,
	) ([]candidate.Candidate, error)
}
