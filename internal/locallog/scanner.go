// Package locallog extracts usage records from Claude Code conversation
// logs (line-delimited JSON under a user-selected directory tree).
package locallog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/models"
)

// ErrNoFiles is returned when the scanned tree contains no conversation files.
var ErrNoFiles = errors.New("no conversation files found")

// maxDepth bounds the recursive descent to guard against pathological trees.
const maxDepth = 10

// Directories that never contain conversation logs.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"statsig":      true,
}

// ProgressFunc receives advisory human-readable progress messages.
type ProgressFunc func(message string)

// Scanner walks a directory tree and parses usage records out of .jsonl files.
type Scanner struct {
	root     string
	progress ProgressFunc
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithProgress sets a progress callback. Progress is advisory only.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scanner) {
		s.progress = fn
	}
}

// NewScanner creates a scanner rooted at dir.
func NewScanner(dir string, opts ...Option) *Scanner {
	s := &Scanner{root: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory the scanner walks.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the tree and returns every usage record found. Individual
// malformed lines and unreadable files are skipped silently; only a total
// absence of .jsonl files is an error.
func (s *Scanner) Scan() ([]models.RawUsageRecord, error) {
	s.report("Scanning for conversation files...")

	files, err := s.collectFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", s.root, err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	s.report(fmt.Sprintf("Found %d conversation files. Parsing...", len(files)))

	var records []models.RawUsageRecord
	for i, path := range files {
		records = append(records, parseFile(path)...)
		if (i+1)%10 == 0 {
			s.report(fmt.Sprintf("Parsed %d/%d files...", i+1, len(files)))
		}
	}

	s.report("Aggregating usage data...")
	return records, nil
}

func (s *Scanner) report(msg string) {
	if s.progress != nil {
		s.progress(msg)
	}
}

func (s *Scanner) collectFiles() ([]string, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			if pathDepth(s.root, path) > maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// conversationLine mirrors the shape of a Claude Code JSONL entry that
// carries token usage.
type conversationLine struct {
	Timestamp string `json:"timestamp"`
	Message   *struct {
		Model string `json:"model"`
		Usage *struct {
			InputTokens              int64 `json:"input_tokens"`
			OutputTokens             int64 `json:"output_tokens"`
			CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
			CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

func parseFile(path string) []models.RawUsageRecord {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("could not open conversation file", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	var records []models.RawUsageRecord
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 10*1024*1024) // 10MB max line size

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Cheap probe: only assistant messages carry a nested usage object.
		if !gjson.GetBytes(line, "message.usage").Exists() {
			continue
		}
		var entry conversationLine
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed lines
		}
		if entry.Message == nil || entry.Message.Usage == nil {
			continue
		}

		ts := time.Now()
		if entry.Timestamp != "" {
			if parsed, err := parseTimestamp(entry.Timestamp); err == nil {
				ts = parsed
			}
		}

		model := entry.Message.Model
		if model == "" {
			model = "unknown"
		}

		u := entry.Message.Usage
		records = append(records, models.RawUsageRecord{
			Model:               model,
			InputTokens:         u.InputTokens,
			OutputTokens:        u.OutputTokens,
			CacheCreationTokens: u.CacheCreationInputTokens,
			CacheReadTokens:     u.CacheReadInputTokens,
			Timestamp:           ts,
		})
	}

	return records
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.000Z", raw)
}
