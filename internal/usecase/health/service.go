package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Check names reported by the service.
const (
	CheckIndex     = "index"
	CheckEmbedding = "embedding"
)

// Service coordinates health checks.
type Service struct {
	index     IndexPinger
	embedding EmbeddingChecker
	logger    *zap.Logger
}

// New creates a Service. embedding can be nil when the provider exposes no health endpoint.
func New(index IndexPinger, embedding EmbeddingChecker, logger *zap.Logger) *Service {
	return &Service{index: index, embedding: embedding, logger: logger}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	checks[CheckIndex] = s.probe(ctx, CheckIndex, s.index.Ping)
	if s.embedding != nil {
		checks[CheckEmbedding] = s.probe(ctx, CheckEmbedding, s.embedding.HealthCheck)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) probe(ctx context.Context, name string, fn func(context.Context) error) CheckResult {
	if err := fn(ctx); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Health check failed", zap.String("check", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
