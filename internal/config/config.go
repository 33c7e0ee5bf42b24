// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ListenAddr    string
	DatabasePath  string
	AppURL        string
	SessionSecret string
	SecureCookies bool
	TargetYear    int
	PageSize      int

	// X OAuth2 app (delegated posting).
	XClientID     string
	XClientSecret string
	XRedirectURI  string

	// X OAuth 1.0a app keys (media upload under delegated posting).
	XAppKey          string
	XAppSecret       string
	XAppAccessToken  string
	XAppAccessSecret string

	// Local conversation log scanning.
	LocalLogsRoot  string
	WatchLocalLogs bool
}

// Default values
const (
	defaultListenAddr = ":8080"
	defaultTargetYear = 2025
	defaultPageSize   = 25
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		ListenAddr:    getEnvString("LISTEN_ADDR", defaultListenAddr),
		DatabasePath:  getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		AppURL:        getEnvString("APP_URL", "http://localhost:8080"),
		SessionSecret: getEnvString("SESSION_SECRET", ""),
		SecureCookies: getEnvBool("SECURE_COOKIES", false),
		TargetYear:    getEnvInt("TARGET_YEAR", defaultTargetYear),
		PageSize:      getEnvInt("LEADERBOARD_PAGE_SIZE", defaultPageSize),

		XClientID:     getEnvString("X_CLIENT_ID", ""),
		XClientSecret: getEnvString("X_CLIENT_SECRET", ""),
		XRedirectURI:  getEnvString("X_REDIRECT_URI", ""),

		XAppKey:          getEnvString("X_APP_KEY", ""),
		XAppSecret:       getEnvString("X_APP_SECRET", ""),
		XAppAccessToken:  getEnvString("X_APP_ACCESS_TOKEN", ""),
		XAppAccessSecret: getEnvString("X_APP_ACCESS_SECRET", ""),

		LocalLogsRoot:  getEnvString("LOCAL_LOGS_ROOT", getDefaultLogsRoot()),
		WatchLocalLogs: getEnvBool("WATCH_LOCAL_LOGS", false),
	}

	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET is required and must be at least 32 characters")
	}

	if cfg.XRedirectURI == "" {
		cfg.XRedirectURI = cfg.AppURL + "/api/auth/x/callback"
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "token-share", ".env"),
			filepath.Join(home, ".token-share", ".env"),
		)
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "leaderboard.db"
	}
	return filepath.Join(home, ".config", "token-share", "leaderboard.db")
}

// getDefaultLogsRoot returns the default directory holding local
// conversation logs.
func getDefaultLogsRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
// Accepts values like "true", "1", "false", "0".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
