package server

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/technojoe/claude-token-share/internal/anthropic"
	"github.com/technojoe/claude-token-share/internal/locallog"
	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/models"
	"github.com/technojoe/claude-token-share/internal/usage"
)

const (
	adminSourceLabel = "Anthropic Admin API"
	localSourceLabel = "Claude Code (Local Files)"
)

func newAdminClient(apiKey string) usageFetcher {
	return anthropic.NewClient(apiKey)
}

type usageClaudeRequest struct {
	AdminAPIKey string `json:"adminApiKey"`
	Year        int    `json:"year"`
}

func (s *Server) handleUsageClaude(w http.ResponseWriter, r *http.Request) {
	var req usageClaudeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := s.sessions.Load(r)

	// An omitted key falls back to the one remembered from a previous
	// request in this session.
	apiKey := req.AdminAPIKey
	if apiKey == "" {
		apiKey = sess.ClaudeAPIKey
	}
	if !anthropic.ValidKeyFormat(apiKey) {
		writeError(w, http.StatusBadRequest,
			"invalid API key format: admin keys start with sk-ant-admin-")
		return
	}

	year := req.Year
	if year == 0 {
		year = s.cfg.TargetYear
	}

	records, err := s.newFetcher(apiKey).GetUsage(r.Context(), year)
	if err != nil {
		switch {
		case errors.Is(err, anthropic.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid admin API key")
		case errors.Is(err, anthropic.ErrForbidden):
			writeError(w, http.StatusForbidden,
				"this key lacks permission to read organization usage")
		default:
			logger.Error("usage fetch failed", "error", err)
			writeError(w, http.StatusBadGateway, "failed to fetch usage data")
		}
		return
	}

	// Remember the key server-side; the browser never needs to hold it
	// past the first request.
	if sess.ClaudeAPIKey != apiKey {
		sess.ClaudeAPIKey = apiKey
		if err := s.sessions.Save(w, sess); err != nil {
			logger.Warn("failed to persist session", "error", err)
		}
	}

	data := usage.Aggregate(records, year, models.SourceAdminAPI, adminSourceLabel)
	writeJSON(w, http.StatusOK, data)
}

type usageLocalRequest struct {
	Dir  string `json:"dir"`
	Year int    `json:"year"`
}

func (s *Server) handleUsageLocal(w http.ResponseWriter, r *http.Request) {
	var req usageLocalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dir := req.Dir
	if dir == "" {
		dir = s.cfg.LocalLogsRoot
	}
	if !underRoot(s.cfg.LocalLogsRoot, dir) {
		writeError(w, http.StatusBadRequest, "directory is outside the configured logs root")
		return
	}

	year := req.Year
	if year == 0 {
		year = s.cfg.TargetYear
	}

	records, err := locallog.NewScanner(dir).Scan()
	if err != nil {
		if errors.Is(err, locallog.ErrNoFiles) {
			writeError(w, http.StatusNotFound, "no conversation log files found")
			return
		}
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "directory does not exist")
			return
		}
		logger.Error("local scan failed", "dir", dir, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to scan conversation logs")
		return
	}

	data := usage.Aggregate(records, year, models.SourceLocalFiles, localSourceLabel)
	writeJSON(w, http.StatusOK, data)
}

// underRoot reports whether dir resolves to root or a descendant of it.
func underRoot(root, dir string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
