package billing

import (
	"math"
	"strings"
)

// Price holds per-million-token rates for a model family.
type Price struct {
	ModelPrefix      string
	InputPerMTokUSD  float64
	OutputPerMTokUSD float64
}

// PricingTable maps model identifiers to token prices. Lookup walks the
// entries in insertion order and picks the first whose prefix appears in
// the model string, so more specific prefixes must come first.
type PricingTable struct {
	entries  []Price
	fallback Price
}

// NewPricingTable builds a table with an explicit fallback entry. The
// fallback guarantees cost calculation never fails for an unknown model.
func NewPricingTable(entries []Price, fallback Price) *PricingTable {
	return &PricingTable{entries: entries, fallback: fallback}
}

// DefaultPricingTable returns the standard OpenAI-family rates. The
// fallback is the cheapest entry so an unrecognized model is never
// over-billed.
func DefaultPricingTable() *PricingTable {
	cheapest := Price{ModelPrefix: "gpt-4o-mini", InputPerMTokUSD: 0.15, OutputPerMTokUSD: 0.60}
	return NewPricingTable([]Price{
		cheapest,
		{ModelPrefix: "gpt-4o-search-preview", InputPerMTokUSD: 2.50, OutputPerMTokUSD: 10.00},
		{ModelPrefix: "gpt-4o", InputPerMTokUSD: 2.50, OutputPerMTokUSD: 10.00},
		{ModelPrefix: "gpt-4-turbo", InputPerMTokUSD: 10.00, OutputPerMTokUSD: 30.00},
		{ModelPrefix: "gpt-4", InputPerMTokUSD: 30.00, OutputPerMTokUSD: 60.00},
		{ModelPrefix: "gpt-3.5-turbo", InputPerMTokUSD: 0.50, OutputPerMTokUSD: 1.50},
		{ModelPrefix: "o1-mini", InputPerMTokUSD: 1.10, OutputPerMTokUSD: 4.40},
		{ModelPrefix: "o1", InputPerMTokUSD: 15.00, OutputPerMTokUSD: 60.00},
	}, cheapest)
}

// Lookup returns the first matching price entry, or the fallback.
func (t *PricingTable) Lookup(model string) Price {
	for _, entry := range t.entries {
		if strings.Contains(model, entry.ModelPrefix) {
			return entry
		}
	}
	return t.fallback
}

// CostBreakdown is the billed cost of one model call, in USD.
type CostBreakdown struct {
	InputCostUSD  float64 `json:"input_cost_usd"`
	OutputCostUSD float64 `json:"output_cost_usd"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
}

// CalculateCost prices one model call. It never fails: unknown models use
// the fallback entry and zero token counts yield a zero total.
func (t *PricingTable) CalculateCost(model string, promptTokens, completionTokens int) CostBreakdown {
	price := t.Lookup(model)

	input := round6(float64(promptTokens) / 1_000_000 * price.InputPerMTokUSD)
	output := round6(float64(completionTokens) / 1_000_000 * price.OutputPerMTokUSD)

	return CostBreakdown{
		InputCostUSD:  input,
		OutputCostUSD: output,
		TotalCostUSD:  round6(input + output),
	}
}

// round6 rounds to 6 decimal places, the resolution of the cost columns.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
