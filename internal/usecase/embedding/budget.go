package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/usage"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore is the persistence interface for budget counters.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64, ttl time.Duration) error
	Get(ctx context.Context, key string) (int64, error)
}

// window is one rolling budget period (calendar day or month, UTC).
type window struct {
	period usage.Period
	limit  int64
	used   int64
	start  time.Time
	layout string
	ttl    time.Duration
}

func (w *window) truncate(t time.Time) time.Time {
	if w.period == usage.PeriodDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (w *window) end() time.Time {
	if w.period == usage.PeriodDay {
		return w.start.AddDate(0, 0, 1)
	}
	return w.start.AddDate(0, 1, 0)
}

func (w *window) roll(now time.Time) {
	if s := w.truncate(now); s.After(w.start) {
		w.used = 0
		w.start = s
	}
}

func (w *window) exceeded() bool { return w.limit > 0 && w.used >= w.limit }

func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1 // unlimited
	}
	return max(w.limit-w.used, 0)
}

// BudgetTracker is an in-memory token budget tracker with optional persistence.
// Check is in-memory only; Record updates memory first, then writes behind to the store.
type BudgetTracker struct {
	mu       sync.Mutex
	day      *window
	month    *window
	action   BudgetAction
	provider string
	store    BudgetStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewBudgetTracker creates a budget tracker with the given limits (0 = unlimited).
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		day:      &window{period: usage.PeriodDay, limit: dailyLimit, layout: "2006-01-02", ttl: 48 * time.Hour},
		month:    &window{period: usage.PeriodMonth, limit: monthlyLimit, layout: "2006-01", ttl: 62 * 24 * time.Hour},
		action:   action,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	now := b.now()
	b.day.start = b.day.truncate(now)
	b.month.start = b.month.truncate(now)
	return b
}

// WithStore attaches a persistence store and loads current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	for _, w := range b.windows() {
		val, err := store.Get(ctx, b.key(w))
		if err != nil {
			b.logger.Warn("Failed to load budget from store",
				zap.String("period", string(w.period)), zap.Error(err))
			continue
		}
		w.used = val
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("monthly_used", b.month.used),
	)
	return b
}

func (b *BudgetTracker) windows() []*window { return []*window{b.day, b.month} }

func (b *BudgetTracker) key(w *window) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s", domain.KeyPrefix, b.provider, w.period, w.start.Format(w.layout))
}

func (b *BudgetTracker) rollLocked() {
	now := b.now()
	for _, w := range b.windows() {
		w.roll(now)
	}
}

// Check verifies the budget allows a new request. In-memory only (hot path).
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	if !b.day.exceeded() && !b.month.exceeded() {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("daily_limit", b.day.limit),
		zap.Int64("monthly_used", b.month.used),
		zap.Int64("monthly_limit", b.month.limit),
	)
	return nil
}

// Record registers consumed tokens after a request.
func (b *BudgetTracker) Record(tokens int64) {
	type write struct {
		key string
		ttl time.Duration
	}

	b.mu.Lock()
	b.rollLocked()
	writes := make([]write, 0, 2)
	for _, w := range b.windows() {
		w.used += tokens
		writes = append(writes, write{key: b.key(w), ttl: w.ttl})
	}
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}

	// background context: the caller's request may already be finished
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, wr := range writes {
		if err := store.IncrBy(ctx, wr.key, tokens, wr.ttl); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("key", wr.key), zap.Error(err))
		}
	}
}

// Remaining returns tokens left in the period (-1 if unlimited).
func (b *BudgetTracker) Remaining(p usage.Period) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	if p == usage.PeriodDay {
		return b.day.remaining()
	}
	return b.month.remaining()
}

// Snapshot returns the budget state of the period.
func (b *BudgetTracker) Snapshot(p usage.Period) usage.Budget {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	w := b.month
	if p == usage.PeriodDay {
		w = b.day
	}
	return usage.Budget{
		TokensLimit:     int(w.limit),
		TokensUsed:      int(w.used),
		TokensRemaining: int(w.remaining()),
		IsExhausted:     w.exceeded(),
		ResetsAt:        w.end().UnixMilli(),
	}
}
