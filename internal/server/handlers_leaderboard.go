package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/technojoe/claude-token-share/internal/db"
	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/models"
)

func (s *Server) handleLeaderboardPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	view := models.LeaderboardView(q.Get("view"))
	if view == "" {
		view = models.ViewCurrentYear
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	result, err := s.store.Page(r.Context(), view, s.cfg.TargetYear, q.Get("search"), page, s.cfg.PageSize)
	if err != nil {
		if errors.Is(err, db.ErrBadView) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("leaderboard query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLeaderboardRank(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	year := s.cfg.TargetYear
	if raw := r.URL.Query().Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		year = n
	}

	entry, err := s.store.UserRank(r.Context(), username, year)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found on the leaderboard")
			return
		}
		logger.Error("rank query failed", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rank")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type optInRequest struct {
	Consent   bool             `json:"consent"`
	UsageData models.UsageData `json:"usageData"`
}

func (s *Server) handleLeaderboardOptIn(w http.ResponseWriter, r *http.Request) {
	var req optInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Consent is checked before anything touches the store.
	if !req.Consent {
		writeError(w, http.StatusBadRequest, "consent is required to join the leaderboard")
		return
	}

	sess := s.sessions.Load(r)
	if !sess.Connected() {
		writeError(w, http.StatusUnauthorized, "connect your X account first")
		return
	}

	if req.UsageData.TotalTokens <= 0 {
		writeError(w, http.StatusBadRequest, "usage data with a positive token total is required")
		return
	}

	rank, err := s.store.OptIn(r.Context(), sess.XUsername, sess.XUserID, req.UsageData)
	if err != nil {
		logger.Error("opt-in failed", "username", sess.XUsername, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save leaderboard entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username": sess.XUsername,
		"rank":     rank,
	})
}
