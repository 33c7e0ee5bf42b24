// Package server exposes the HTTP API and the text dashboard.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/technojoe/claude-token-share/internal/config"
	"github.com/technojoe/claude-token-share/internal/db"
	"github.com/technojoe/claude-token-share/internal/models"
	"github.com/technojoe/claude-token-share/internal/session"
	"github.com/technojoe/claude-token-share/internal/xapi"
)

// usageFetcher pulls raw usage records for a reporting year. Satisfied by
// *anthropic.Client; tests substitute a stub.
type usageFetcher interface {
	GetUsage(ctx context.Context, year int) ([]models.RawUsageRecord, error)
}

// Server holds the request handlers and their dependencies.
type Server struct {
	cfg       *config.Config
	store     *db.DB
	sessions  *session.Store
	oauth     *xapi.OAuthClient
	publisher *xapi.Publisher

	// newFetcher builds an admin-API client per request key; replaced in
	// handler tests.
	newFetcher func(apiKey string) usageFetcher

	live liveUsage
	mux  *http.ServeMux
}

// liveUsage holds the most recent aggregate produced by the local log
// watcher, consumed by the text dashboard.
type liveUsage struct {
	mu   sync.RWMutex
	data *models.UsageData
}

func (l *liveUsage) set(data models.UsageData) {
	l.mu.Lock()
	l.data = &data
	l.mu.Unlock()
}

func (l *liveUsage) get() *models.UsageData {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data
}

// New wires the handlers. oauth and publisher may be nil when X posting is
// not configured; the corresponding endpoints then report unavailability.
func New(cfg *config.Config, store *db.DB, sessions *session.Store, oauth *xapi.OAuthClient, publisher *xapi.Publisher) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		sessions:  sessions,
		oauth:     oauth,
		publisher: publisher,
		newFetcher: func(apiKey string) usageFetcher {
			return newAdminClient(apiKey)
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/usage/claude", s.handleUsageClaude)
	mux.HandleFunc("POST /api/usage/local", s.handleUsageLocal)

	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboardPage)
	mux.HandleFunc("GET /api/leaderboard/rank/{username}", s.handleLeaderboardRank)
	mux.HandleFunc("POST /api/leaderboard/opt-in", s.handleLeaderboardOptIn)

	mux.HandleFunc("GET /api/auth/x", s.handleAuthStart)
	mux.HandleFunc("GET /api/auth/x/callback", s.handleAuthCallback)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /api/auth/logout", s.handleAuthLogout)

	mux.HandleFunc("POST /api/post", s.handlePost)
	mux.HandleFunc("GET /api/post/preview", s.handlePostPreview)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /dash", s.handleDash)
	mux.HandleFunc("GET /version", s.handleVersion)

	s.mux = mux
}

// SetLiveUsage is the watcher callback target; it stores the latest local
// aggregate for the dashboard.
func (s *Server) SetLiveUsage(data models.UsageData) {
	s.live.set(data)
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return withRecovery(withRequestLog(s.mux))
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
