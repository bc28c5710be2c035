package llmadapter

import (
	"sync"
	"time"
)

// BudgetTracker accumulates per-model spend over a rolling week and reports headroom,
// directly analogous to the teacher's RateLimiter.WeeklyUsagePct / IsInHeadroomWarning
// (SPEC_FULL.md §D).
type BudgetTracker struct {
	mu         sync.Mutex
	weeklyCaps map[string]float64
	spend      map[string][]spendEntry
	now        func() time.Time
}

type spendEntry struct {
	at     time.Time
	amount float64
}

// NewBudgetTracker builds a tracker with a weekly USD cap per model id. now is injectable
// for tests; pass time.Now in production.
func NewBudgetTracker(weeklyCaps map[string]float64, now func() time.Time) *BudgetTracker {
	return &BudgetTracker{
		weeklyCaps: weeklyCaps,
		spend:      make(map[string][]spendEntry),
		now:        now,
	}
}

// Record adds a completed call's cost to the tracker.
func (b *BudgetTracker) Record(modelID string, costUSD float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spend[modelID] = append(b.spend[modelID], spendEntry{at: b.now(), amount: costUSD})
}

// WeeklyUsagePct returns the fraction (0.0-1.0+) of the model's weekly cap spent in the
// trailing 7 days. A model with no configured cap reports 0.
func (b *BudgetTracker) WeeklyUsagePct(modelID string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	cap, ok := b.weeklyCaps[modelID]
	if !ok || cap <= 0 {
		return 0
	}

	total := b.trailingSpendLocked(modelID)
	return total / cap
}

// IsInHeadroomWarning reports whether the model has crossed the given warning threshold
// (e.g. 0.8 for an 80% warning line) of its weekly cap.
func (b *BudgetTracker) IsInHeadroomWarning(modelID string, threshold float64) bool {
	return b.WeeklyUsagePct(modelID) >= threshold
}

// trailingSpendLocked sums spend in the trailing 7 days and prunes older entries. Caller
// must hold b.mu.
func (b *BudgetTracker) trailingSpendLocked(modelID string) float64 {
	cutoff := b.now().Add(-7 * 24 * time.Hour)
	entries := b.spend[modelID]

	kept := entries[:0]
	var total float64
	for _, e := range entries {
		if e.at.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
		total += e.amount
	}
	b.spend[modelID] = kept
	return total
}

// DowngradeTier returns the next-cheaper tier name given an ordered tier list, the way
// the teacher's DowngradeTier steps a provider down one pricing tier on RateLimited
// rather than failing the call outright. It never steps up — cost safety always wins
// over quality escalation (SPEC_FULL.md §D).
func DowngradeTier(tiers []string, current string) (string, bool) {
	for i, t := range tiers {
		if t == current {
			if i+1 < len(tiers) {
				return tiers[i+1], true
			}
			return current, false
		}
	}
	return current, false
}
