package cost

import "sync"

// Usage is the token usage reported by one research call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Summary is the accumulated usage of one orchestrator invocation.
// EstimatedUSD is nil unless every call used a priced model.
type Summary struct {
	Calls        int      `json:"calls"`
	InputTokens  int64    `json:"input_tokens"`
	OutputTokens int64    `json:"output_tokens"`
	EstimatedUSD *float64 `json:"estimated_usd"`
}

// Tracker accumulates usage across one orchestrator invocation. It is safe
// for concurrent use and is discarded once the invocation returns.
type Tracker struct {
	calc *Calculator

	mu       sync.Mutex
	calls    int
	input    int64
	output   int64
	usd      float64
	unpriced bool
}

// NewTracker returns a Tracker that prices usage with calc. calc may be nil.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// Add records the usage of one call against model.
func (t *Tracker) Add(model string, u Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls++
	t.input += u.InputTokens
	t.output += u.OutputTokens

	usd, ok := t.calc.Tokens(model, u.InputTokens, u.OutputTokens)
	if !ok {
		t.unpriced = true
		return
	}
	t.usd += usd
}

// Summary returns the totals so far.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{Calls: t.calls, InputTokens: t.input, OutputTokens: t.output}
	if t.calls > 0 && !t.unpriced {
		usd := t.usd
		s.EstimatedUSD = &usd
	}
	return s
}
