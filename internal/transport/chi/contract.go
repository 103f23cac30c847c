package chi

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/answer"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	domusage "github.com/kailas-cloud/recall/internal/domain/usage"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
)

// Asker answers a question over the scoped content.
type Asker interface {
	Ask(ctx context.Context, question string, scope request.Scope) answer.Response
}

// Searcher runs semantic search.
type Searcher interface {
	Limits() request.Limits
	SemanticSearch(ctx context.Context, req *request.Request) []candidate.Candidate
}

// Indexer keeps content vectors up to date on behalf of a tenant.
// Both calls fail with domain.ErrForbidden for content another tenant owns.
type Indexer interface {
	IndexOwnContent(ctx context.Context, p content.Payload) (string, error)
	DeleteOwnContent(ctx context.Context, ownerID int64, contentID string) error
}

// UsageReporter reports embedding budget usage.
type UsageReporter interface {
	Reports(ctx context.Context) []domusage.Report
}

// HealthChecker aggregates component checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
