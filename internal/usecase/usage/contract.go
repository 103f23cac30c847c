package usage

import domusage "github.com/kailas-cloud/recall/internal/domain/usage"

// BudgetReader provides read-only access to token budget windows.
type BudgetReader interface {
	Snapshot(p domusage.Period) domusage.Budget
}
