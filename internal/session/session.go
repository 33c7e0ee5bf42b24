// Package session manages the signed, encrypted browser session cookie.
package session

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	cookieName = "token-share-session"
	maxAge     = 24 * time.Hour
)

// Session is the per-browser state carried in the signed cookie. Handlers
// read it once per request and pass credentials explicitly into the
// services that need them.
type Session struct {
	XAccessToken  string
	XRefreshToken string
	XTokenExpires time.Time
	XUserID       string
	XUsername     string
	ClaudeAPIKey  string
	CodeVerifier  string
	State         string
}

// Connected reports whether the session holds a usable delegated X token.
// A lapsed access token still counts while a refresh token is present; the
// publisher refreshes it on the next post.
func (s *Session) Connected() bool {
	if s.XAccessToken == "" {
		return false
	}
	return time.Now().Before(s.XTokenExpires) || s.XRefreshToken != ""
}

// Store encodes and decodes session cookies.
type Store struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewStore derives the cookie signing and encryption keys from secret.
// The secret must be at least 32 characters.
func NewStore(secret string, secure bool) (*Store, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 characters, got %d", len(secret))
	}
	hashKey := sha256.Sum256([]byte(secret + ":hash"))
	blockKey := sha256.Sum256([]byte(secret + ":block"))

	codec := securecookie.New(hashKey[:], blockKey[:])
	codec.MaxAge(int(maxAge.Seconds()))

	return &Store{codec: codec, secure: secure}, nil
}

// Load returns the session from the request cookie, or an empty session
// when the cookie is absent or fails validation.
func (s *Store) Load(r *http.Request) *Session {
	sess := &Session{}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return sess
	}
	if err := s.codec.Decode(cookieName, cookie.Value, sess); err != nil {
		return &Session{}
	}
	return sess
}

// Save writes the session back to the response as a signed cookie.
func (s *Store) Save(w http.ResponseWriter, sess *Session) error {
	encoded, err := s.codec.Encode(cookieName, sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		// Lax so the OAuth redirect back from X still carries the cookie.
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (s *Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
