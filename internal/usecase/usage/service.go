package usage

import (
	"context"

	domusage "github.com/kailas-cloud/recall/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br BudgetReader
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br}
}

// GetReport builds the usage report of one budget window.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	if s.br == nil {
		return domusage.NewReport(period, domusage.Budget{TokensRemaining: -1})
	}
	return domusage.NewReport(period, s.br.Snapshot(period))
}

// Reports returns the daily and monthly reports.
func (s *Service) Reports(ctx context.Context) []domusage.Report {
	return []domusage.Report{
		s.GetReport(ctx, domusage.PeriodDay),
		s.GetReport(ctx, domusage.PeriodMonth),
	}
}
