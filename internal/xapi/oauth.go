// Package xapi talks to the X (Twitter) API: OAuth2 PKCE delegation,
// post publishing and media upload.
package xapi

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	authorizeURL = "https://twitter.com/i/oauth2/authorize"
	tokenURL     = "https://api.twitter.com/2/oauth2/token"
	meURL        = "https://api.twitter.com/2/users/me"
)

// Scopes requested during delegation. offline.access yields a refresh token.
var oauthScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}

// Token is a delegated OAuth2 user token.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the token needs a refresh.
func (t Token) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// GenerateVerifier returns a new PKCE code verifier.
func GenerateVerifier() string {
	return randomToken(32)
}

// GenerateState returns a new OAuth state parameter.
func GenerateState() string {
	return randomToken(16)
}

func randomToken(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ChallengeS256 derives the S256 code challenge from a verifier.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// OAuthClient performs the OAuth2 authorization-code exchange with X.
type OAuthClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	meURL        string
	http         httpClient
}

// OAuthOption configures OAuthClient.
type OAuthOption func(*OAuthClient)

// WithOAuthHTTPClient sets a custom HTTP client.
func WithOAuthHTTPClient(c httpClient) OAuthOption {
	return func(o *OAuthClient) {
		o.http = c
	}
}

// WithTokenURL overrides the token endpoint, for tests.
func WithTokenURL(u string) OAuthOption {
	return func(o *OAuthClient) {
		o.tokenURL = u
	}
}

// WithMeURL overrides the users/me endpoint, for tests.
func WithMeURL(u string) OAuthOption {
	return func(o *OAuthClient) {
		o.meURL = u
	}
}

// NewOAuthClient creates an OAuth client for the registered X app.
func NewOAuthClient(clientID, clientSecret, redirectURI string, opts ...OAuthOption) *OAuthClient {
	c := &OAuthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		tokenURL:     tokenURL,
		meURL:        meURL,
		http:         defaultHTTPClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthorizeURL builds the authorization redirect URL for the given state
// and code challenge.
func (c *OAuthClient) AuthorizeURL(state, challenge string) string {
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {c.clientID},
		"redirect_uri":          {c.redirectURI},
		"scope":                 {strings.Join(oauthScopes, " ")},
		"state":                 {state},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	return authorizeURL + "?" + params.Encode()
}

// ExchangeCode trades an authorization code plus its PKCE verifier for tokens.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code, verifier string) (*Token, error) {
	form := url.Values{
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.redirectURI},
		"code_verifier": {verifier},
	}
	return c.requestToken(ctx, form)
}

// Refresh exchanges a refresh token for a fresh access token.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, ErrReconnect
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	tok, err := c.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconnect, err)
	}
	// Some responses omit the rotated refresh token; keep the old one.
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (c *OAuthClient) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oe struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &oe) == nil && oe.Error != "" {
			msg := oe.ErrorDescription
			if msg == "" {
				msg = oe.Error
			}
			return nil, fmt.Errorf("token endpoint refused exchange: %s", msg)
		}
		return nil, fmt.Errorf("token exchange failed (status %d)", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	return &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// User identifies the authenticated X account.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Me fetches the authenticated user with a delegated bearer token.
func (c *OAuthClient) Me(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.meURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed (status %d)", resp.StatusCode)
	}

	var out struct {
		Data User `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	return &out.Data, nil
}
