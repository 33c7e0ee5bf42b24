package locallog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const usageLine = `{"timestamp":"2025-03-15T12:00:00Z","message":{"model":"claude-sonnet-4-20250514","usage":{"input_tokens":100,"output_tokens":50,"cache_creation_input_tokens":10,"cache_read_input_tokens":20}}}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
}

func TestScan_NoFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := NewScanner(dir).Scan()
	if !errors.Is(err, ErrNoFiles) {
		t.Errorf("Expected ErrNoFiles, got %v", err)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "does-not-exist")).Scan()
	if err == nil || errors.Is(err, ErrNoFiles) {
		t.Errorf("Expected a directory-access error, got %v", err)
	}
}

func TestScan_ParsesUsageLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "projects", "a", "conv.jsonl"), strings.Join([]string{
		usageLine,
		`{"type":"user","message":{"content":"hello"}}`, // no usage object
		`not json at all`,
		``,
		usageLine,
	}, "\n"))

	records, err := NewScanner(dir).Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	r := records[0]
	if r.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Unexpected model %s", r.Model)
	}
	if r.InputTokens != 100 || r.OutputTokens != 50 ||
		r.CacheCreationTokens != 10 || r.CacheReadTokens != 20 {
		t.Errorf("Unexpected token counts: %+v", r)
	}
	if r.Timestamp.Year() != 2025 {
		t.Errorf("Expected timestamp year 2025, got %d", r.Timestamp.Year())
	}
}

func TestScan_SkipsDeniedDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "node_modules", "x.jsonl"), usageLine)
	writeFile(t, filepath.Join(dir, ".git", "y.jsonl"), usageLine)
	writeFile(t, filepath.Join(dir, "statsig", "z.jsonl"), usageLine)
	writeFile(t, filepath.Join(dir, "ok.jsonl"), usageLine)

	records, err := NewScanner(dir).Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record (denied dirs skipped), got %d", len(records))
	}
}

func TestScan_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.json"), usageLine)
	writeFile(t, filepath.Join(dir, "notes.txt"), usageLine)

	_, err := NewScanner(dir).Scan()
	if !errors.Is(err, ErrNoFiles) {
		t.Errorf("Expected ErrNoFiles when only non-jsonl files exist, got %v", err)
	}
}

func TestScan_DepthCap(t *testing.T) {
	dir := t.TempDir()
	deep := dir
	for i := 0; i < maxDepth+2; i++ {
		deep = filepath.Join(deep, "d")
	}
	writeFile(t, filepath.Join(deep, "deep.jsonl"), usageLine)
	writeFile(t, filepath.Join(dir, "shallow.jsonl"), usageLine)

	records, err := NewScanner(dir).Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected only the shallow record, got %d", len(records))
	}
}

func TestScan_ProgressReported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jsonl"), usageLine)

	var messages []string
	s := NewScanner(dir, WithProgress(func(msg string) {
		messages = append(messages, msg)
	}))
	if _, err := s.Scan(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(messages) == 0 {
		t.Error("Expected progress messages")
	}
}

func TestParseTimestamp_Formats(t *testing.T) {
	tests := []string{
		"2025-03-15T12:00:00Z",
		"2025-03-15T12:00:00.123Z",
		"2025-03-15T12:00:00+02:00",
	}
	for _, raw := range tests {
		if _, err := parseTimestamp(raw); err != nil {
			t.Errorf("parseTimestamp(%q) failed: %v", raw, err)
		}
	}
}

func TestScan_ModelDefaultsToUnknown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jsonl"),
		`{"timestamp":"2025-03-15T12:00:00Z","message":{"usage":{"input_tokens":1,"output_tokens":1}}}`)

	records, err := NewScanner(dir).Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 1 || records[0].Model != "unknown" {
		t.Errorf("Expected one record with model 'unknown', got %+v", records)
	}
}
