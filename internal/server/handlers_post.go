package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/models"
	"github.com/technojoe/claude-token-share/internal/xapi"
)

type postRequest struct {
	Message     string `json:"message"`
	ImageBase64 string `json:"imageBase64"`

	// Static OAuth 1.0a keys; when all four are present they take the
	// place of the session's delegated token.
	APIKey            string `json:"apiKey"`
	APISecret         string `json:"apiSecret"`
	AccessToken       string `json:"accessToken"`
	AccessTokenSecret string `json:"accessTokenSecret"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "x posting is not configured")
		return
	}

	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	var image []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "imageBase64 is not valid base64")
			return
		}
		image = decoded
	}

	creds := xapi.Credentials{
		APIKey:            req.APIKey,
		APISecret:         req.APISecret,
		AccessToken:       req.AccessToken,
		AccessTokenSecret: req.AccessTokenSecret,
	}

	sess := s.sessions.Load(r)
	if !creds.StaticComplete() {
		if !sess.Connected() {
			writeError(w, http.StatusUnauthorized,
				"connect your X account or supply all four API credentials")
			return
		}
		creds = xapi.Credentials{
			Token: xapi.Token{
				AccessToken:  sess.XAccessToken,
				RefreshToken: sess.XRefreshToken,
				ExpiresAt:    sess.XTokenExpires,
			},
			Username: sess.XUsername,
		}
	}

	result, refreshed, err := s.publisher.Publish(r.Context(), creds, req.Message, image)
	if refreshed != nil {
		sess.XAccessToken = refreshed.AccessToken
		sess.XRefreshToken = refreshed.RefreshToken
		sess.XTokenExpires = refreshed.ExpiresAt
		if saveErr := s.sessions.Save(w, sess); saveErr != nil {
			logger.Error("failed to persist refreshed token", "error", saveErr)
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, xapi.ErrMessageTooLong):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, xapi.ErrReconnect):
			s.sessions.Clear(w)
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, xapi.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, xapi.ErrForbidden):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, xapi.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, xapi.ErrDuplicate):
			writeError(w, http.StatusConflict, err.Error())
		default:
			logger.Error("post failed", "error", err)
			writeError(w, http.StatusBadGateway, "failed to publish post")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePostPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	totalTokens, err := strconv.ParseInt(q.Get("totalTokens"), 10, 64)
	if err != nil || totalTokens < 0 {
		writeError(w, http.StatusBadRequest, "totalTokens must be a non-negative integer")
		return
	}

	source := models.DataSource(q.Get("dataSource"))
	if source == "" {
		source = models.SourceLocalFiles
	}

	msg := xapi.BuildShareMessage(totalTokens, source, s.cfg.AppURL)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"length":  len([]rune(msg)),
	})
}
