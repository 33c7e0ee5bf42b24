// Package db manages the leaderboard database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection with leaderboard-specific methods.
type DB struct {
	*sql.DB
	path string
}

// New creates a new database connection and initializes the schema.
func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:   sqlDB,
		path: path,
	}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Healthy reports whether the database connection is usable.
func (db *DB) Healthy(ctx context.Context) bool {
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil
}

// configure sets up database pragmas for optimal performance.
func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (db *DB) createSchema() error {
	if err := db.createUsersTable(); err != nil {
		return err
	}
	return db.createEntriesTable()
}

func (db *DB) createUsersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS leaderboard_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		x_username TEXT NOT NULL UNIQUE,
		x_user_id TEXT,
		display_name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_username_lower ON leaderboard_users(LOWER(x_username));
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Entry rows use month = 0 for the yearly aggregate and 1..12 for calendar
// months. A NULL month would defeat the UNIQUE constraint SQLite-side
// (NULLs are pairwise distinct), so the sentinel keeps upserts honest; the
// API layer still presents the yearly month as null.
func (db *DB) createEntriesTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS leaderboard_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES leaderboard_users(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL DEFAULT 0 CHECK (month BETWEEN 0 AND 12),
		total_tokens INTEGER NOT NULL DEFAULT 0,
		total_input_tokens INTEGER NOT NULL DEFAULT 0,
		total_output_tokens INTEGER NOT NULL DEFAULT 0,
		total_cost REAL NOT NULL DEFAULT 0,
		submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, year, month)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_year_month ON leaderboard_entries(year, month);
	CREATE INDEX IF NOT EXISTS idx_entries_tokens ON leaderboard_entries(total_tokens DESC);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	// Checkpoint WAL before closing
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}
