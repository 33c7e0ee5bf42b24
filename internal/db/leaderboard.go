package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/models"
)

// ErrNotFound is returned when a handle has no leaderboard entry.
var ErrNotFound = errors.New("user not found on leaderboard")

// ErrBadView is returned for an unrecognized leaderboard view name.
var ErrBadView = errors.New("unknown leaderboard view")

// yearlyMonth is the month sentinel for the whole-year aggregate row.
const yearlyMonth = 0

// OptIn records a user's consented usage submission: it upserts the user
// row, the yearly entry, and every non-empty monthly entry in a single
// transaction, then returns the caller's current yearly rank. Resubmission
// overwrites the stored totals and refreshes the submission timestamp.
func (db *DB) OptIn(ctx context.Context, handle, externalID string, data models.UsageData) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin opt-in transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO leaderboard_users (x_username, x_user_id)
		VALUES (?, ?)
		ON CONFLICT(x_username) DO UPDATE SET
			x_user_id = COALESCE(NULLIF(excluded.x_user_id, ''), leaderboard_users.x_user_id)
		RETURNING id
	`, handle, externalID).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert leaderboard user: %w", err)
	}

	if err := upsertEntry(ctx, tx, userID, data.Year, yearlyMonth,
		data.TotalTokens, data.TotalInputTokens, data.TotalOutputTokens, data.TotalCost); err != nil {
		return 0, err
	}

	for _, monthData := range data.MonthlyBreakdown {
		month := models.MonthIndex(monthData.Month)
		if month == 0 || monthData.TotalTokens <= 0 {
			continue
		}
		if err := upsertEntry(ctx, tx, userID, data.Year, month,
			monthData.TotalTokens, monthData.InputTokens, monthData.OutputTokens, monthData.Cost); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit opt-in: %w", err)
	}

	var rank int64
	err = db.QueryRowContext(ctx, `
		SELECT rank FROM (
			SELECT user_id, RANK() OVER (ORDER BY total_tokens DESC) AS rank
			FROM leaderboard_entries
			WHERE year = ? AND month = ?
		)
		WHERE user_id = ?
	`, data.Year, yearlyMonth, userID).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("failed to compute rank: %w", err)
	}

	return rank, nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, userID int64, year, month int,
	tokens, inputTokens, outputTokens int64, cost float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO leaderboard_entries
			(user_id, year, month, total_tokens, total_input_tokens, total_output_tokens, total_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, year, month) DO UPDATE SET
			total_tokens = excluded.total_tokens,
			total_input_tokens = excluded.total_input_tokens,
			total_output_tokens = excluded.total_output_tokens,
			total_cost = excluded.total_cost,
			submitted_at = CURRENT_TIMESTAMP
	`, userID, year, month, tokens, inputTokens, outputTokens, cost)
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry (month %d): %w", month, err)
	}
	return nil
}

// viewFilter builds the WHERE fragment for a leaderboard view. The returned
// clause always starts with "WHERE".
func viewFilter(view models.LeaderboardView, year int, search string) (string, []any, error) {
	var conds []string
	var args []any

	switch view {
	case models.ViewCurrentYear:
		conds = append(conds, "e.year = ? AND e.month = 0")
		args = append(args, year)
	case models.ViewAllTime:
		conds = append(conds, "e.month = 0")
	case models.ViewMonthly:
		conds = append(conds, "e.year = ? AND e.month > 0")
		args = append(args, year)
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrBadView, view)
	}

	if search != "" {
		conds = append(conds, "LOWER(u.x_username) LIKE '%' || LOWER(?) || '%'")
		args = append(args, search)
	}

	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// Page returns one page of ranked entries for the given view, plus the
// distinct-user count matching the view and search filter. Pages are
// 1-based. Ranks use standard competition ranking over total tokens; equal
// totals share a rank and are listed earliest-submission first.
func (db *DB) Page(ctx context.Context, view models.LeaderboardView, year int, search string, page, pageSize int) (*models.LeaderboardPage, error) {
	if page < 1 {
		page = 1
	}

	where, args, err := viewFilter(view, year, search)
	if err != nil {
		return nil, err
	}

	countQuery := fmt.Sprintf(`
		SELECT COUNT(DISTINCT u.id)
		FROM leaderboard_entries e
		JOIN leaderboard_users u ON u.id = e.user_id
		%s
	`, where)

	var total int
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count leaderboard entries: %w", err)
	}

	entriesQuery := fmt.Sprintf(`
		SELECT
			e.id, e.user_id, e.year, e.month,
			e.total_tokens, e.total_input_tokens, e.total_output_tokens, e.total_cost,
			e.submitted_at,
			u.x_username, COALESCE(u.display_name, ''),
			RANK() OVER (ORDER BY e.total_tokens DESC) AS rank
		FROM leaderboard_entries e
		JOIN leaderboard_users u ON u.id = e.user_id
		%s
		ORDER BY e.total_tokens DESC, e.submitted_at ASC, e.id ASC
		LIMIT ? OFFSET ?
	`, where)

	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := db.QueryContext(ctx, entriesQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard page: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	result := &models.LeaderboardPage{
		Entries:  []models.LeaderboardEntry{},
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, entry)
	}

	return result, rows.Err()
}

// UserRank returns one user's yearly entry and rank, matching the handle
// case-insensitively. Returns ErrNotFound when the handle has no yearly
// entry for the year.
func (db *DB) UserRank(ctx context.Context, handle string, year int) (*models.LeaderboardEntry, error) {
	row := db.QueryRowContext(ctx, `
		WITH ranked AS (
			SELECT
				e.id, e.user_id, e.year, e.month,
				e.total_tokens, e.total_input_tokens, e.total_output_tokens, e.total_cost,
				e.submitted_at,
				u.x_username, COALESCE(u.display_name, ''),
				RANK() OVER (ORDER BY e.total_tokens DESC) AS rank
			FROM leaderboard_entries e
			JOIN leaderboard_users u ON u.id = e.user_id
			WHERE e.year = ? AND e.month = 0
		)
		SELECT * FROM ranked WHERE LOWER(x_username) = LOWER(?)
	`, year, handle)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	var month int

	err := s.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Year,
		&month,
		&entry.TotalTokens,
		&entry.TotalInputTokens,
		&entry.TotalOutputTokens,
		&entry.TotalCost,
		&entry.SubmittedAt,
		&entry.XUsername,
		&entry.DisplayName,
		&entry.Rank,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, err
	}
	if err != nil {
		return entry, fmt.Errorf("failed to scan leaderboard entry: %w", err)
	}

	if month != yearlyMonth {
		entry.Month = &month
	}
	return entry, nil
}
