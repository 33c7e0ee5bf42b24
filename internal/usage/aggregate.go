// Package usage aggregates raw usage records into per-model and per-month
// rollups for one reporting year.
package usage

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/technojoe/claude-token-share/internal/models"
	"github.com/technojoe/claude-token-share/internal/pricing"
)

// Aggregate folds records into one UsageData for the target year.
//
// Records outside the target year are excluded. Cache-creation and
// cache-read tokens count as input tokens. A record carrying an upstream
// cost uses it verbatim; otherwise cost comes from the pricing table.
// The result is zero-valued (never an error) when no record matches;
// callers decide how to surface "no usable data".
func Aggregate(records []models.RawUsageRecord, year int, source models.DataSource, label string) models.UsageData {
	data := models.UsageData{
		Provider:         models.ProviderClaude,
		DataSource:       source,
		DataSourceLabel:  label,
		Year:             year,
		ModelBreakdown:   []models.ModelUsage{},
		MonthlyBreakdown: []models.MonthlyUsage{},
	}

	modelBuckets := make(map[string]models.ModelUsage)
	monthBuckets := make(map[time.Month]models.MonthlyUsage)

	for _, rec := range records {
		if rec.Timestamp.Year() != year {
			continue
		}

		in := rec.InputTokens + rec.CacheCreationTokens + rec.CacheReadTokens
		out := rec.OutputTokens

		var cost float64
		if rec.CostUSD != nil {
			cost = *rec.CostUSD
		} else {
			cost = pricing.Cost(rec.Model, in, out)
		}

		mb := modelBuckets[rec.Model]
		mb.Model = rec.Model
		mb.InputTokens += in
		mb.OutputTokens += out
		mb.TotalTokens += in + out
		mb.Cost += cost
		modelBuckets[rec.Model] = mb

		month := rec.Timestamp.Month()
		mo := monthBuckets[month]
		mo.Month = models.MonthLabels[month-1]
		mo.InputTokens += in
		mo.OutputTokens += out
		mo.TotalTokens += in + out
		mo.Cost += cost
		monthBuckets[month] = mo
	}

	data.ModelBreakdown = lo.Values(modelBuckets)
	sort.Slice(data.ModelBreakdown, func(i, j int) bool {
		return data.ModelBreakdown[i].TotalTokens > data.ModelBreakdown[j].TotalTokens
	})

	// Grand totals are derived from the per-model rollup so the two can
	// never drift apart.
	data.TotalInputTokens = lo.SumBy(data.ModelBreakdown, func(m models.ModelUsage) int64 { return m.InputTokens })
	data.TotalOutputTokens = lo.SumBy(data.ModelBreakdown, func(m models.ModelUsage) int64 { return m.OutputTokens })
	data.TotalCost = lo.SumBy(data.ModelBreakdown, func(m models.ModelUsage) float64 { return m.Cost })
	data.TotalTokens = data.TotalInputTokens + data.TotalOutputTokens

	// Calendar order, not insertion order.
	for m := time.January; m <= time.December; m++ {
		if mo, ok := monthBuckets[m]; ok {
			data.MonthlyBreakdown = append(data.MonthlyBreakdown, mo)
		}
	}

	return data
}
