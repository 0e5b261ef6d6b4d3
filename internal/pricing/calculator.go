// Package pricing turns a model name and token counts into an estimated
// USD cost, so a cache hit's savings can be reported in the same
// currency a bill would be.
package pricing

import "strings"

// ModelPricing is the USD-per-1000-token rate for one model or model
// family. Model may end in "*" to match every model name sharing that
// prefix (e.g. "gpt-4*" covers any gpt-4 variant not given a more
// specific entry of its own).
type ModelPricing struct {
	Model           string
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// DefaultPricing is the built-in rate table for the model families a
// cache deployment is likely to sit in front of. Rates are approximate
// published list prices and will drift; a deployment billed against a
// specific provider contract should build its own table and pass it to
// NewCalculator instead.
var DefaultPricing = []ModelPricing{
	{Model: "gpt-4o", InputCostPer1K: 0.005, OutputCostPer1K: 0.015},
	{Model: "gpt-4o-mini", InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006},
	{Model: "gpt-4-turbo*", InputCostPer1K: 0.01, OutputCostPer1K: 0.03},
	{Model: "gpt-4*", InputCostPer1K: 0.03, OutputCostPer1K: 0.06},
	{Model: "gpt-3.5-turbo", InputCostPer1K: 0.0005, OutputCostPer1K: 0.0015},

	{Model: "claude-3-5-sonnet*", InputCostPer1K: 0.003, OutputCostPer1K: 0.015},
	{Model: "claude-3-opus*", InputCostPer1K: 0.015, OutputCostPer1K: 0.075},
	{Model: "claude-3-sonnet*", InputCostPer1K: 0.003, OutputCostPer1K: 0.015},
	{Model: "claude-3-haiku*", InputCostPer1K: 0.00025, OutputCostPer1K: 0.00125},
	{Model: "claude-2*", InputCostPer1K: 0.008, OutputCostPer1K: 0.024},

	{Model: "gemini-1.5-pro*", InputCostPer1K: 0.00125, OutputCostPer1K: 0.005},
	{Model: "gemini-1.5-flash*", InputCostPer1K: 0.000075, OutputCostPer1K: 0.0003},
	{Model: "gemini-pro*", InputCostPer1K: 0.0005, OutputCostPer1K: 0.0015},

	{Model: "deepseek-chat", InputCostPer1K: 0.00014, OutputCostPer1K: 0.00028},
	{Model: "deepseek-coder", InputCostPer1K: 0.00014, OutputCostPer1K: 0.00028},

	{Model: "llama-3*", InputCostPer1K: 0.0002, OutputCostPer1K: 0.0002},
	{Model: "llama-2*", InputCostPer1K: 0.0002, OutputCostPer1K: 0.0002},

	{Model: "mistral-large*", InputCostPer1K: 0.004, OutputCostPer1K: 0.012},
	{Model: "mistral-medium*", InputCostPer1K: 0.0027, OutputCostPer1K: 0.0081},
	{Model: "mistral-small*", InputCostPer1K: 0.001, OutputCostPer1K: 0.003},
	{Model: "mixtral-8x7b*", InputCostPer1K: 0.0007, OutputCostPer1K: 0.0007},

	{Model: "command-r-plus*", InputCostPer1K: 0.003, OutputCostPer1K: 0.015},
	{Model: "command-r*", InputCostPer1K: 0.0005, OutputCostPer1K: 0.0015},
	{Model: "command*", InputCostPer1K: 0.001, OutputCostPer1K: 0.002},
}

// wildcardRate is one "*"-suffixed ModelPricing entry with its prefix
// pre-lowercased for matching.
type wildcardRate struct {
	prefix  string
	pricing ModelPricing
}

// Calculator resolves a model name to a rate and prices token usage
// against it. Exact names are looked up in O(1); wildcard patterns are
// kept sorted longest-prefix-first so the first match found is already
// the most specific one.
type Calculator struct {
	exact     map[string]ModelPricing
	wildcards []wildcardRate
}

// NewCalculator builds a Calculator from rates. A nil rates uses
// DefaultPricing.
func NewCalculator(rates []ModelPricing) *Calculator {
	if rates == nil {
		rates = DefaultPricing
	}

	c := &Calculator{exact: make(map[string]ModelPricing, len(rates))}
	for _, r := range rates {
		c.upsert(r)
	}
	return c
}

// Calculate returns the USD cost of inputTokens input and outputTokens
// output against model's rate, or 0 if no rate matches it.
func (c *Calculator) Calculate(model string, inputTokens, outputTokens int) float64 {
	rate, ok := c.findPricing(model)
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1000.0 * rate.InputCostPer1K
	outputCost := float64(outputTokens) / 1000.0 * rate.OutputCostPer1K
	return inputCost + outputCost
}

// findPricing resolves model to a rate, preferring an exact
// case-insensitive match over the longest matching wildcard prefix.
func (c *Calculator) findPricing(model string) (ModelPricing, bool) {
	lower := strings.ToLower(model)

	if rate, ok := c.exact[lower]; ok {
		return rate, true
	}
	for _, w := range c.wildcards {
		if strings.HasPrefix(lower, w.prefix) {
			return w.pricing, true
		}
	}
	return ModelPricing{}, false
}

// AddPricing adds or overwrites the rate for a model name or wildcard
// pattern.
func (c *Calculator) AddPricing(rate ModelPricing) {
	c.upsert(rate)
}

// GetPricing resolves model the same way Calculate does, without
// computing a cost.
func (c *Calculator) GetPricing(model string) (ModelPricing, bool) {
	return c.findPricing(model)
}

func (c *Calculator) upsert(rate ModelPricing) {
	if !strings.HasSuffix(rate.Model, "*") {
		c.exact[strings.ToLower(rate.Model)] = rate
		return
	}

	prefix := strings.ToLower(strings.TrimSuffix(rate.Model, "*"))
	for i, w := range c.wildcards {
		if w.prefix == prefix {
			c.wildcards[i] = wildcardRate{prefix: prefix, pricing: rate}
			return
		}
	}

	insertAt := 0
	for insertAt < len(c.wildcards) && len(c.wildcards[insertAt].prefix) >= len(prefix) {
		insertAt++
	}
	c.wildcards = append(c.wildcards, wildcardRate{})
	copy(c.wildcards[insertAt+1:], c.wildcards[insertAt:])
	c.wildcards[insertAt] = wildcardRate{prefix: prefix, pricing: rate}
}
