// ABOUTME: Token-budget tracker: keeps the latest context window accounting of a session
// ABOUTME: Invariant violations are logged and kept as received, never corrected

package tracker

import (
	"sync"

	"github.com/bigduu/copilot-client-app-sub002/internal/event"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
)

// Budget tracks token_budget_updated and context_summarized events.
type Budget struct {
	event.NopSink

	mu         sync.RWMutex
	usage      *event.BudgetUsage
	violations int
	summaries  int
	saved      int
}

// NewBudget creates an empty budget tracker.
func NewBudget() *Budget { return &Budget{} }

// Observe feeds e to the tracker.
func (b *Budget) Observe(e event.Event) { e.Dispatch(b) }

func (b *Budget) OnTokenBudgetUpdated(e event.TokenBudgetUpdated) {
	u := e.Usage
	err := event.CheckBudget(u)
	if err != nil {
		log.Warn("tracker: token budget: %v", err)
	}

	b.mu.Lock()
	b.usage = &u
	if err != nil {
		b.violations++
	}
	b.mu.Unlock()

	log.Debug("tracker: token budget %d/%d (%.1f%%)", u.TotalTokens, u.BudgetLimit, u.UsagePercentage())
}

func (b *Budget) OnContextSummarized(e event.ContextSummarized) {
	b.mu.Lock()
	b.summaries++
	b.saved += e.TokensSaved
	b.mu.Unlock()
}

// Usage returns the latest usage; ok is false before the first update.
func (b *Budget) Usage() (event.BudgetUsage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.usage == nil {
		return event.BudgetUsage{}, false
	}
	return *b.usage, true
}

// Violations returns how many updates broke a budget invariant.
func (b *Budget) Violations() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.violations
}

// Summaries returns the number of context summarizations and tokens saved.
func (b *Budget) Summaries() (count, tokensSaved int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.summaries, b.saved
}
