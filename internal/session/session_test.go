package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewStore_ShortSecret(t *testing.T) {
	if _, err := NewStore("too-short", false); err == nil {
		t.Error("Expected an error for a short secret")
	}
}

func TestSession_RoundTrip(t *testing.T) {
	store, err := NewStore(testSecret, false)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	sess := &Session{
		XAccessToken:  "at-1",
		XRefreshToken: "rt-1",
		XTokenExpires: time.Now().Add(time.Hour).Truncate(time.Second),
		XUserID:       "42",
		XUsername:     "alice",
	}

	rec := httptest.NewRecorder()
	if err := store.Save(rec, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	resp := rec.Result()
	cookies := resp.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Expected one cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("Cookie must be HttpOnly with SameSite=Lax: %+v", cookie)
	}
	if strings.Contains(cookie.Value, "at-1") {
		t.Error("Token must not appear in the cookie in cleartext")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	got := store.Load(req)
	if got.XAccessToken != "at-1" || got.XUsername != "alice" || got.XUserID != "42" {
		t.Errorf("Round trip lost data: %+v", got)
	}
	if !got.Connected() {
		t.Error("Expected a live session to report connected")
	}
}

func TestLoad_InvalidCookie(t *testing.T) {
	store, err := NewStore(testSecret, false)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token-share-session", Value: "tampered"})

	sess := store.Load(req)
	if sess.Connected() || sess.XUsername != "" {
		t.Errorf("Tampered cookie must yield an empty session, got %+v", sess)
	}
}

func TestLoad_NoCookie(t *testing.T) {
	store, err := NewStore(testSecret, false)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	sess := store.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if sess == nil || sess.Connected() {
		t.Errorf("Expected an empty disconnected session, got %+v", sess)
	}
}

func TestClear(t *testing.T) {
	store, err := NewStore(testSecret, false)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	rec := httptest.NewRecorder()
	store.Clear(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Errorf("Expected an expiring cookie, got %+v", cookies)
	}
}

func TestConnected_ExpiredToken(t *testing.T) {
	sess := &Session{
		XAccessToken:  "at-1",
		XTokenExpires: time.Now().Add(-time.Minute),
	}
	if sess.Connected() {
		t.Error("Expired token without a refresh token must not count as connected")
	}

	sess.XRefreshToken = "rt-1"
	if !sess.Connected() {
		t.Error("A refresh token keeps the session connected past access-token expiry")
	}
}
