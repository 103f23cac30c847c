package retrieval

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
)

// Embedder vectorizes a query. A zero vector means the embedding failed.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Index is the read side of the content vector index.
type Index interface {
	Search(
		ctx context.Context, vec []float32, f filter.Expression, limit int, threshold float64,
	) ([]candidate.Candidate, error)
}
