package budget

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
)

// MaxDecimal is a sentinel value representing an effectively unlimited remaining budget.
var MaxDecimal = decimal.New(1, 18) // 1e18

// Usage holds token counts for a single API call.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}

func (u *Usage) add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadInputTokens += o.CacheReadInputTokens
	u.CacheCreationInputTokens += o.CacheCreationInputTokens
}

// Tracker tracks cumulative token usage and cost across API calls. Trackers
// form a tree: usage recorded on a child also counts against every ancestor,
// so one session-wide tracker sees the spend of every delegated run.
// It is safe for concurrent use.
type Tracker struct {
	parent     *Tracker
	maxBudget  decimal.Decimal // 0 = unlimited
	totalCost  decimal.Decimal
	totalUsage Usage
	pricing    map[anthropic.Model]ModelPricing
	mu         sync.Mutex
}

// NewTracker creates a root tracker. maxBudget of 0 means unlimited.
func NewTracker(maxBudget decimal.Decimal, pricing map[anthropic.Model]ModelPricing) *Tracker {
	return &Tracker{
		maxBudget: maxBudget,
		totalCost: decimal.Zero,
		pricing:   pricing,
	}
}

// Child returns a tracker with its own limit whose usage rolls up into t.
func (t *Tracker) Child(maxBudget decimal.Decimal) *Tracker {
	return &Tracker{
		parent:    t,
		maxBudget: maxBudget,
		totalCost: decimal.Zero,
		pricing:   t.pricing,
	}
}

// RecordUsage records token usage for a single API call on t and its ancestors.
func (t *Tracker) RecordUsage(model anthropic.Model, usage Usage) {
	cost := decimal.Zero
	if pricing, ok := Lookup(t.pricing, model); ok {
		totalInput := usage.InputTokens + usage.CacheReadInputTokens + usage.CacheCreationInputTokens
		cost = pricing.CostForInput(usage.InputTokens, usage.CacheReadInputTokens, usage.CacheCreationInputTokens, totalInput).
			Add(pricing.CostForOutput(usage.OutputTokens, totalInput))
	}
	// Unknown models count tokens but add no cost.
	for n := t; n != nil; n = n.parent {
		n.mu.Lock()
		n.totalUsage.add(usage)
		n.totalCost = n.totalCost.Add(cost)
		n.mu.Unlock()
	}
}

// TotalCost returns the cumulative cost across all recorded usage.
func (t *Tracker) TotalCost() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCost
}

// TotalUsage returns the cumulative token usage across all recorded calls.
func (t *Tracker) TotalUsage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalUsage
}

// Remaining returns the remaining budget of t alone. If maxBudget is 0
// (unlimited), returns MaxDecimal.
func (t *Tracker) Remaining() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxBudget.IsZero() {
		return MaxDecimal
	}
	return t.maxBudget.Sub(t.totalCost)
}

// Exhausted reports whether t or any ancestor has reached its limit.
func (t *Tracker) Exhausted() bool {
	for n := t; n != nil; n = n.parent {
		if n.exhausted() {
			return true
		}
	}
	return false
}

func (t *Tracker) exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxBudget.IsZero() {
		return false
	}
	return t.totalCost.GreaterThanOrEqual(t.maxBudget)
}
