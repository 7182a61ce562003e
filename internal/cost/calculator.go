package cost

// Rates holds externally configured pricing. Models without an entry have
// no known price.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for research backend usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Tokens computes the USD cost of one call. ok is false when the model has
// no configured rate.
func (c *Calculator) Tokens(model string, input, output int64) (usd float64, ok bool) {
	if c == nil {
		return 0, false
	}
	rate, ok := c.rates.Models[model]
	if !ok {
		return 0, false
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	return inCost + outCost, true
}

// Empty reports whether no model has a configured rate.
func (c *Calculator) Empty() bool {
	return c == nil || len(c.rates.Models) == 0
}
