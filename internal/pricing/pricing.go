// Package pricing holds the static model price table used for cost
// computation. Prices are USD per million tokens and are fixed at startup;
// there is no mutable state.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Price is the per-million-token cost pair for one model.
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

func price(input, output float64) Price {
	return Price{
		Input:  decimal.NewFromFloat(input),
		Output: decimal.NewFromFloat(output),
	}
}

type entry struct {
	model string
	price Price
}

// 2025 published rates. Kept as an ordered slice because the family
// fallback in Lookup scans top to bottom; more specific and higher tier
// entries must come before the cheaper models that share a prefix.
var priceTable = []entry{
	{"claude-sonnet-4-20250514", price(3.00, 15.00)},
	{"claude-opus-4-20250514", price(15.00, 75.00)},
	{"claude-3-5-sonnet-20241022", price(3.00, 15.00)},
	{"claude-3-5-sonnet-20240620", price(3.00, 15.00)},
	{"claude-3-5-haiku-20241022", price(0.80, 4.00)},
	{"claude-3-opus-20240229", price(15.00, 75.00)},
	{"claude-3-sonnet-20240229", price(3.00, 15.00)},
	{"claude-3-haiku-20240307", price(0.25, 1.25)},
	{"claude-2.1", price(8.00, 24.00)},
	{"claude-2.0", price(8.00, 24.00)},
	{"claude-instant-1.2", price(0.80, 2.40)},
}

var prices = func() map[string]Price {
	m := make(map[string]Price, len(priceTable))
	for _, e := range priceTable {
		m[e.model] = e.price
	}
	return m
}()

// defaultPrice is the documented mid-tier fallback for unrecognized models.
var defaultPrice = price(3.00, 15.00)

var million = decimal.NewFromInt(1_000_000)

// Lookup returns the price pair for a model identifier. Exact matches win;
// otherwise the model is matched against each table entry's family prefix
// (the first three dash-separated segments) in table order, so an
// unrecognized claude-3-5 variant resolves to sonnet rates rather than
// haiku. Unrecognized models fall back to the default $3.00/$15.00 pair.
func Lookup(model string) Price {
	if p, ok := prices[model]; ok {
		return p
	}
	for _, e := range priceTable {
		if strings.Contains(model, familyPrefix(e.model)) {
			return e.price
		}
	}
	return defaultPrice
}

func familyPrefix(model string) string {
	parts := strings.Split(model, "-")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, "-")
}

// Cost computes the USD cost for the given token counts. Arithmetic is done
// in decimal and converted to float64 at the boundary so wire formats stay
// plain JSON numbers.
func Cost(model string, inputTokens, outputTokens int64) float64 {
	p := Lookup(model)
	in := decimal.NewFromInt(inputTokens).Mul(p.Input).Div(million)
	out := decimal.NewFromInt(outputTokens).Mul(p.Output).Div(million)
	f, _ := in.Add(out).Float64()
	return f
}
