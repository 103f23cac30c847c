package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// Budget is a snapshot of one embedding token budget window.
type Budget struct {
	TokensLimit     int
	TokensUsed      int
	TokensRemaining int
	IsExhausted     bool
	ResetsAt        int64 // unix millis
}

// Report is an embedding API usage report for a time period.
type Report struct {
	period Period
	budget Budget
}

// NewReport creates a usage report.
func NewReport(period Period, b Budget) Report {
	return Report{period: period, budget: b}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// Budget returns the budget status.
func (r *Report) Budget() Budget { return r.budget }
