// Package models defines data structures and domain types.
package models

import "time"

// Provider identifies the AI provider a usage report belongs to.
type Provider string

// ProviderClaude is the only provider currently supported.
const ProviderClaude Provider = "claude"

// DataSource describes how usage data was retrieved.
type DataSource string

const (
	// SourceAdminAPI means usage came from the provider's admin usage API.
	SourceAdminAPI DataSource = "admin-api"
	// SourceLocalFiles means usage was parsed from local conversation logs.
	SourceLocalFiles DataSource = "local-files"
)

// RawUsageRecord is one observed unit of consumption before aggregation.
// Records are ephemeral: produced by a fetcher or the local log scanner
// and consumed immediately by the aggregator.
type RawUsageRecord struct {
	Model               string
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	Timestamp           time.Time
	// CostUSD carries an upstream-provided cost when present. Nil means
	// the aggregator computes cost from the pricing table.
	CostUSD *float64
}

// ModelUsage is the rollup for one model within a reporting scope.
type ModelUsage struct {
	Model        string  `json:"model"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	Cost         float64 `json:"cost"`
}

// MonthlyUsage is the rollup for one calendar month within the reporting year.
// Month is a short label ("Jan".."Dec").
type MonthlyUsage struct {
	Month        string  `json:"month"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	Cost         float64 `json:"cost"`
}

// UsageData is the top-level aggregate for one user, year and data source.
// It is transient: computed per request and never persisted except what the
// user explicitly submits to the leaderboard.
type UsageData struct {
	Provider          Provider       `json:"provider"`
	DataSource        DataSource     `json:"dataSource"`
	DataSourceLabel   string         `json:"dataSourceLabel"`
	Year              int            `json:"year"`
	TotalInputTokens  int64          `json:"totalInputTokens"`
	TotalOutputTokens int64          `json:"totalOutputTokens"`
	TotalTokens       int64          `json:"totalTokens"`
	TotalCost         float64        `json:"totalCost"`
	ModelBreakdown    []ModelUsage   `json:"modelBreakdown"`
	MonthlyBreakdown  []MonthlyUsage `json:"monthlyBreakdown"`
}

// MonthLabels lists the month labels used in monthly breakdowns, in
// calendar order.
var MonthLabels = []string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// MonthIndex maps a short month label to its 1-based calendar index.
// Returns 0 for unrecognized labels.
func MonthIndex(label string) int {
	for i, m := range MonthLabels {
		if m == label {
			return i + 1
		}
	}
	return 0
}
