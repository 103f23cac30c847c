package recall

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/recall/internal/domain/usage"
)

// UsagePeriod is the budget window of a usage report.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport contains the embedding token budget of one window.
type UsageReport struct {
	Period UsagePeriod
	Budget BudgetStatus
}

// BudgetStatus tracks token quota state. TokensRemaining is -1 without a limit.
type BudgetStatus struct {
	TokensLimit     int
	TokensUsed      int
	TokensRemaining int
	IsExhausted     bool
	ResetsAt        time.Time // zero without a limit
}

// Usage returns the embedding budget report for the given period.
// Observer always records success: budgets are tracked in memory.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) UsageReport {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, nil) }()

	report := c.usageSvc.GetReport(ctx, domusage.Period(period))
	b := report.Budget()

	var resetsAt time.Time
	if b.ResetsAt > 0 {
		resetsAt = time.UnixMilli(b.ResetsAt).UTC()
	}
	return UsageReport{
		Period: UsagePeriod(report.Period()),
		Budget: BudgetStatus{
			TokensLimit:     b.TokensLimit,
			TokensUsed:      b.TokensUsed,
			TokensRemaining: b.TokensRemaining,
			IsExhausted:     b.IsExhausted,
			ResetsAt:        resetsAt,
		},
	}
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}
