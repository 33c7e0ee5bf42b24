package server

import (
	"net/http"
	"net/url"

	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/xapi"
)

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "x sign-in is not configured")
		return
	}

	verifier := xapiVerifier()
	state := xapiState()

	sess := s.sessions.Load(r)
	sess.CodeVerifier = verifier
	sess.State = state
	if err := s.sessions.Save(w, sess); err != nil {
		logger.Error("failed to save session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start sign-in")
		return
	}

	http.Redirect(w, r, s.oauth.AuthorizeURL(state, xapiChallenge(verifier)), http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "x sign-in is not configured")
		return
	}

	q := r.URL.Query()
	if q.Get("error") != "" {
		s.redirectApp(w, r, "error", "access_denied")
		return
	}

	sess := s.sessions.Load(r)
	state, code := q.Get("state"), q.Get("code")
	if code == "" || state == "" || sess.State == "" || state != sess.State {
		s.redirectApp(w, r, "error", "state_mismatch")
		return
	}

	token, err := s.oauth.ExchangeCode(r.Context(), code, sess.CodeVerifier)
	if err != nil {
		logger.Error("code exchange failed", "error", err)
		s.redirectApp(w, r, "error", "exchange_failed")
		return
	}

	user, err := s.oauth.Me(r.Context(), token.AccessToken)
	if err != nil {
		logger.Error("failed to fetch x profile", "error", err)
		s.redirectApp(w, r, "error", "profile_failed")
		return
	}

	sess.XAccessToken = token.AccessToken
	sess.XRefreshToken = token.RefreshToken
	sess.XTokenExpires = token.ExpiresAt
	sess.XUserID = user.ID
	sess.XUsername = user.Username
	sess.CodeVerifier = ""
	sess.State = ""
	if err := s.sessions.Save(w, sess); err != nil {
		logger.Error("failed to save session", "error", err)
		s.redirectApp(w, r, "error", "session_failed")
		return
	}

	logger.Info("x account connected", "username", user.Username)
	s.redirectApp(w, r, "x_auth", "success")
}

// redirectApp sends the browser back to the app root with a status flag.
func (s *Server) redirectApp(w http.ResponseWriter, r *http.Request, key, value string) {
	u := s.cfg.AppURL + "/?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, u, http.StatusFound)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": sess.Connected(),
		"username":  sess.XUsername,
	})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"loggedOut": true})
}

// Indirection over the PKCE helpers so tests can pin values.
var (
	xapiVerifier  = xapi.GenerateVerifier
	xapiState     = xapi.GenerateState
	xapiChallenge = xapi.ChallengeS256
)
