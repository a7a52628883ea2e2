// Package cost prices Anthropic token usage for the deep-analysis pass.
package cost

import "sync"

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates holds per-model pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call. Unknown models price at
// zero rather than guessing.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":   {Input: 15.00, Output: 75.00},
		},
	}
}

// Usage is an accumulated view of token spend.
type Usage struct {
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Tracker accumulates token usage across concurrent analysis queries.
type Tracker struct {
	mu    sync.Mutex
	calc  *Calculator
	model string
	usage Usage
}

// NewTracker creates a tracker pricing calls against one model.
func NewTracker(calc *Calculator, model string) *Tracker {
	return &Tracker{calc: calc, model: model}
}

// Record adds one call's token counts.
func (t *Tracker) Record(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.Calls++
	t.usage.InputTokens += input
	t.usage.OutputTokens += output
	t.usage.CostUSD += t.calc.Claude(t.model, input, output)
}

// Snapshot returns the usage accumulated so far.
func (t *Tracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}
