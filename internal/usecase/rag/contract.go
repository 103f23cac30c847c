package rag

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/usecase/generation"
)

// Retriever finds candidates for a question within a scope.
type Retriever interface {
	Retrieve(
		ctx context.Context, query string, scope request.Scope, limit int, threshold float64,
	) ([]candidate.Candidate, error)
}

// Generator answers a question from a context block.
type Generator interface {
	Generate(ctx context.Context, question, contextText string) generation.Result
}
