package models

import "time"

// LeaderboardView selects which slice of the leaderboard to query.
type LeaderboardView string

const (
	// ViewCurrentYear shows yearly totals for the configured target year.
	ViewCurrentYear LeaderboardView = "year"
	// ViewAllTime shows yearly totals across all years.
	ViewAllTime LeaderboardView = "all-time"
	// ViewMonthly shows per-month totals for the configured target year.
	ViewMonthly LeaderboardView = "monthly"
)

// LeaderboardUser is a persistent opt-in identity keyed by X handle.
type LeaderboardUser struct {
	ID          int64     `json:"id"`
	XUsername   string    `json:"xUsername"`
	XUserID     string    `json:"xUserId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LeaderboardEntry is one ranked row as returned by leaderboard queries.
// Month is nil for the yearly aggregate and 1..12 for a calendar month.
// Rank is never stored; it is computed at query time.
type LeaderboardEntry struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"userId"`
	Year              int       `json:"year"`
	Month             *int      `json:"month"`
	TotalTokens       int64     `json:"totalTokens"`
	TotalInputTokens  int64     `json:"totalInputTokens"`
	TotalOutputTokens int64     `json:"totalOutputTokens"`
	TotalCost         float64   `json:"totalCost"`
	SubmittedAt       time.Time `json:"submittedAt"`
	XUsername         string    `json:"xUsername"`
	DisplayName       string    `json:"displayName,omitempty"`
	Rank              int64     `json:"rank"`
}

// LeaderboardPage is one page of ranked entries plus the total match count.
type LeaderboardPage struct {
	Entries  []LeaderboardEntry `json:"entries"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}
