package usage

import (
	"math"
	"testing"
	"time"

	"github.com/technojoe/claude-token-share/internal/models"
)

func rec(model string, in, out int64, ts time.Time) models.RawUsageRecord {
	return models.RawUsageRecord{
		Model:        model,
		InputTokens:  in,
		OutputTokens: out,
		Timestamp:    ts,
	}
}

func TestAggregate_Empty(t *testing.T) {
	data := Aggregate(nil, 2025, models.SourceLocalFiles, "test")

	if data.TotalTokens != 0 || data.TotalCost != 0 {
		t.Errorf("Expected zero totals, got tokens=%d cost=%v", data.TotalTokens, data.TotalCost)
	}
	if data.ModelBreakdown == nil || data.MonthlyBreakdown == nil {
		t.Error("Breakdowns should be empty slices, not nil")
	}
	if data.Year != 2025 || data.Provider != models.ProviderClaude {
		t.Errorf("Unexpected metadata: year=%d provider=%s", data.Year, data.Provider)
	}
}

func TestAggregate_YearBoundary(t *testing.T) {
	records := []models.RawUsageRecord{
		rec("claude-sonnet-4-20250514", 100, 50, time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)),
		rec("claude-sonnet-4-20250514", 200, 100, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		rec("claude-sonnet-4-20250514", 300, 150, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	data := Aggregate(records, 2025, models.SourceLocalFiles, "test")

	if data.TotalInputTokens != 200 || data.TotalOutputTokens != 100 {
		t.Errorf("Expected only the 2025 record, got in=%d out=%d",
			data.TotalInputTokens, data.TotalOutputTokens)
	}
}

func TestAggregate_CacheTokensCountAsInput(t *testing.T) {
	records := []models.RawUsageRecord{
		{
			Model:               "claude-sonnet-4-20250514",
			InputTokens:         100,
			OutputTokens:        10,
			CacheCreationTokens: 40,
			CacheReadTokens:     60,
			Timestamp:           time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
		},
	}

	data := Aggregate(records, 2025, models.SourceLocalFiles, "test")

	if data.TotalInputTokens != 200 {
		t.Errorf("Expected cache tokens folded into input (200), got %d", data.TotalInputTokens)
	}
	if data.TotalTokens != 210 {
		t.Errorf("Expected total 210, got %d", data.TotalTokens)
	}
}

func TestAggregate_UpstreamCostVerbatim(t *testing.T) {
	cost := 12.34
	records := []models.RawUsageRecord{
		{
			Model:        "claude-sonnet-4-20250514",
			InputTokens:  1_000_000,
			OutputTokens: 1_000_000,
			Timestamp:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			CostUSD:      &cost,
		},
	}

	data := Aggregate(records, 2025, models.SourceAdminAPI, "test")

	if math.Abs(data.TotalCost-12.34) > 1e-9 {
		t.Errorf("Expected upstream cost 12.34 used verbatim, got %v", data.TotalCost)
	}
}

func TestAggregate_ComputedCost(t *testing.T) {
	records := []models.RawUsageRecord{
		rec("claude-sonnet-4-20250514", 1_000_000, 1_000_000, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	}

	data := Aggregate(records, 2025, models.SourceLocalFiles, "test")

	// $3 input + $15 output per million.
	if math.Abs(data.TotalCost-18.00) > 1e-9 {
		t.Errorf("Expected computed cost 18.00, got %v", data.TotalCost)
	}
}

func TestAggregate_ModelOrdering(t *testing.T) {
	ts := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	records := []models.RawUsageRecord{
		rec("small-model", 10, 5, ts),
		rec("big-model", 1000, 500, ts),
		rec("mid-model", 100, 50, ts),
	}

	data := Aggregate(records, 2025, models.SourceLocalFiles, "test")

	if len(data.ModelBreakdown) != 3 {
		t.Fatalf("Expected 3 models, got %d", len(data.ModelBreakdown))
	}
	want := []string{"big-model", "mid-model", "small-model"}
	for i, w := range want {
		if data.ModelBreakdown[i].Model != w {
			t.Errorf("Position %d: expected %s, got %s", i, w, data.ModelBreakdown[i].Model)
		}
	}
}

func TestAggregate_OpusRollup(t *testing.T) {
	records := []models.RawUsageRecord{
		rec("claude-3-opus-20240229", 1000, 500, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		rec("claude-3-opus-20240229", 2000, 1000, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)),
	}

	data := Aggregate(records, 2025, models.SourceLocalFiles, "test")

	if len(data.ModelBreakdown) != 1 || len(data.MonthlyBreakdown) != 1 {
		t.Fatalf("Expected one model and one month, got %d/%d",
			len(data.ModelBreakdown), len(data.MonthlyBreakdown))
	}

	m := data.ModelBreakdown[0]
	if m.InputTokens != 3000 || m.OutputTokens != 1500 || m.TotalTokens != 4500 {
		t.Errorf("Unexpected model rollup: %+v", m)
	}
	// 3000/1e6*15 + 1500/1e6*75
	if math.Abs(m.Cost-0.1575) > 1e-9 {
		t.Errorf("Expected cost 0.1575, got %v", m.Cost)
	}

	mo := data.MonthlyBreakdown[0]
	if mo.Month != "Mar" || mo.TotalTokens != 4500 || math.Abs(mo.Cost-0.1575) > 1e-9 {
		t.Errorf("Unexpected monthly rollup: %+v", mo)
	}
}

func TestAggregate_SumInvariants(t *testing.T) {
	records := []models.RawUsageRecord{
		rec("a", 100, 50, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)),
		rec("b", 200, 25, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)),
		rec("a", 300, 75, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)),
	}

	data := Aggregate(records, 2025, models.SourceLocalFiles, "test")

	var modelSum, monthSum int64
	for _, m := range data.ModelBreakdown {
		if m.TotalTokens != m.InputTokens+m.OutputTokens {
			t.Errorf("Model %s: total != input + output: %+v", m.Model, m)
		}
		modelSum += m.TotalTokens
	}
	for _, m := range data.MonthlyBreakdown {
		if m.TotalTokens != m.InputTokens+m.OutputTokens {
			t.Errorf("Month %s: total != input + output: %+v", m.Month, m)
		}
		monthSum += m.TotalTokens
	}

	if modelSum != data.TotalTokens || monthSum != data.TotalTokens {
		t.Errorf("Breakdown sums diverge from total: models=%d months=%d total=%d",
			modelSum, monthSum, data.TotalTokens)
	}
	if data.TotalTokens != data.TotalInputTokens+data.TotalOutputTokens {
		t.Errorf("Total %d != input %d + output %d",
			data.TotalTokens, data.TotalInputTokens, data.TotalOutputTokens)
	}
}

func TestAggregate_MonthsInCalendarOrder(t *testing.T) {
	records := []models.RawUsageRecord{
		rec("m", 1, 1, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)),
		rec("m", 1, 1, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
		rec("m", 1, 1, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)),
		rec("m", 1, 1, time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)),
	}

	data := Aggregate(records, 2025, models.SourceLocalFiles, "test")

	want := []string{"Feb", "Jul", "Nov"}
	if len(data.MonthlyBreakdown) != len(want) {
		t.Fatalf("Expected %d months, got %d", len(want), len(data.MonthlyBreakdown))
	}
	for i, w := range want {
		if data.MonthlyBreakdown[i].Month != w {
			t.Errorf("Position %d: expected %s, got %s", i, w, data.MonthlyBreakdown[i].Month)
		}
	}
	if data.MonthlyBreakdown[0].TotalTokens != 4 {
		t.Errorf("Expected Feb to accumulate both records, got %d tokens",
			data.MonthlyBreakdown[0].TotalTokens)
	}
}
