package config

import (
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "test.db"))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr :8080, got %s", cfg.ListenAddr)
	}
	if cfg.TargetYear != 2025 {
		t.Errorf("Expected default target year 2025, got %d", cfg.TargetYear)
	}
	if cfg.PageSize != 25 {
		t.Errorf("Expected default page size 25, got %d", cfg.PageSize)
	}
	if !strings.HasSuffix(cfg.XRedirectURI, "/api/auth/x/callback") {
		t.Errorf("Expected redirect URI derived from app URL, got %s", cfg.XRedirectURI)
	}
}

func TestLoad_RequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Error("Expected an error for a short session secret")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("TARGET_YEAR", "2024")
	t.Setenv("LEADERBOARD_PAGE_SIZE", "10")
	t.Setenv("WATCH_LOCAL_LOGS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9999" || cfg.TargetYear != 2024 || cfg.PageSize != 10 {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
	if !cfg.WatchLocalLogs {
		t.Error("Expected watch mode enabled")
	}
}

func TestGetEnvInt_Invalid(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")

	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Errorf("Expected fallback 7, got %d", got)
	}
}
