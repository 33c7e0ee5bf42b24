package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/models"
)

// MaxMessageLen is the post character ceiling. Validation happens locally,
// before any network call.
const MaxMessageLen = 280

var (
	// ErrMessageTooLong means the message exceeds MaxMessageLen.
	ErrMessageTooLong = errors.New("message exceeds 280 characters")
	// ErrReconnect means the delegated token is gone for good: expired with
	// no refresh token, or the refresh attempt failed.
	ErrReconnect = errors.New("x session expired, reconnect required")
	// ErrUnauthorized means X rejected the credentials.
	ErrUnauthorized = errors.New("x authentication failed")
	// ErrForbidden means the credentials lack write permission.
	ErrForbidden = errors.New("x access denied: app needs read and write permissions")
	// ErrRateLimited means X throttled the request; the user may retry later.
	ErrRateLimited = errors.New("x rate limit exceeded")
	// ErrDuplicate means X refused identical repeated content.
	ErrDuplicate = errors.New("duplicate post rejected")
)

var defaultHTTPClient = &http.Client{Timeout: 60 * time.Second}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials selects the posting mode: a delegated OAuth2 user token, or
// user-supplied static OAuth 1.0a keys.
type Credentials struct {
	// Delegated OAuth2 user context.
	Token    Token
	Username string

	// User-supplied OAuth 1.0a keys.
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Delegated reports whether the delegated-token mode is in use.
func (c Credentials) Delegated() bool {
	return c.Token.AccessToken != "" || c.Token.RefreshToken != ""
}

// StaticComplete reports whether all four static keys are present.
func (c Credentials) StaticComplete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// AppCredentials are the application-level OAuth 1.0a keys required for
// media upload when posting with a delegated token; the user token alone
// cannot upload media under X's permission model.
type AppCredentials struct {
	Key          string
	Secret       string
	AccessToken  string
	AccessSecret string
}

// Configured reports whether all four app keys are present.
func (a AppCredentials) Configured() bool {
	return a.Key != "" && a.Secret != "" && a.AccessToken != "" && a.AccessSecret != ""
}

// Publisher submits posts to X.
type Publisher struct {
	oauth      *OAuthClient
	app        AppCredentials
	apiBase    string
	uploadBase string
	http       httpClient
}

// PublisherOption configures Publisher.
type PublisherOption func(*Publisher)

// WithPublisherHTTPClient sets a custom HTTP client.
func WithPublisherHTTPClient(c httpClient) PublisherOption {
	return func(p *Publisher) {
		p.http = c
	}
}

// WithAPIBase overrides the API base URL, for tests.
func WithAPIBase(u string) PublisherOption {
	return func(p *Publisher) {
		p.apiBase = u
	}
}

// WithUploadBase overrides the media upload base URL, for tests.
func WithUploadBase(u string) PublisherOption {
	return func(p *Publisher) {
		p.uploadBase = u
	}
}

// NewPublisher creates a publisher. oauth may be nil when delegated posting
// is not configured; app may be zero when media upload under delegation is
// not available.
func NewPublisher(oauth *OAuthClient, app AppCredentials, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		oauth:      oauth,
		app:        app,
		apiBase:    "https://api.twitter.com",
		uploadBase: "https://upload.twitter.com",
		http:       defaultHTTPClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish posts message (optionally with a PNG image) using creds. It
// returns the post identity and, when an expired delegated token was
// refreshed along the way, the fresh token for the caller to persist.
func (p *Publisher) Publish(ctx context.Context, creds Credentials, message string, imagePNG []byte) (*models.PostResult, *Token, error) {
	if utf8.RuneCountInString(message) > MaxMessageLen {
		return nil, nil, ErrMessageTooLong
	}

	var refreshed *Token

	if creds.Delegated() {
		if creds.Token.AccessToken == "" || creds.Token.Expired() {
			if p.oauth == nil {
				return nil, nil, ErrReconnect
			}
			tok, err := p.oauth.Refresh(ctx, creds.Token.RefreshToken)
			if err != nil {
				return nil, nil, err
			}
			creds.Token = *tok
			refreshed = tok
		}
	} else if !creds.StaticComplete() {
		return nil, nil, fmt.Errorf("all four x credentials are required")
	}

	username, err := p.resolveUsername(ctx, creds)
	if err != nil {
		logger.Warn("could not resolve x username", "error", err)
		username = "user"
	}

	var mediaID string
	if len(imagePNG) > 0 {
		mediaID = p.uploadMedia(ctx, creds, imagePNG)
	}

	postID, err := p.createPost(ctx, creds, message, mediaID)
	if err != nil {
		return nil, refreshed, err
	}

	return &models.PostResult{
		PostID:  postID,
		PostURL: fmt.Sprintf("https://x.com/%s/status/%s", username, postID),
	}, refreshed, nil
}

func (p *Publisher) resolveUsername(ctx context.Context, creds Credentials) (string, error) {
	if creds.Delegated() {
		if creds.Username != "" {
			return creds.Username, nil
		}
		if p.oauth == nil {
			return "", fmt.Errorf("no oauth client configured")
		}
		user, err := p.oauth.Me(ctx, creds.Token.AccessToken)
		if err != nil {
			return "", err
		}
		return user.Username, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"/2/users/me", nil)
	if err != nil {
		return "", err
	}
	creds.userSigner().sign(req, nil)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("users/me failed (status %d)", resp.StatusCode)
	}

	var out struct {
		Data User `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.Data.Username, nil
}

func (c Credentials) userSigner() oauth1Signer {
	return oauth1Signer{
		consumerKey:    c.APIKey,
		consumerSecret: c.APISecret,
		token:          c.AccessToken,
		tokenSecret:    c.AccessTokenSecret,
	}
}

// uploadMedia uploads a PNG and returns its media id, or "" when upload is
// unavailable or fails. Media failures never fail the post: the text-only
// post proceeds.
func (p *Publisher) uploadMedia(ctx context.Context, creds Credentials, image []byte) string {
	var signer oauth1Signer

	if creds.Delegated() {
		// A delegated OAuth2 token cannot upload media; the app-level
		// OAuth 1.0a credential set is required instead.
		if !p.app.Configured() {
			logger.Info("app-level media credentials not configured, posting without image")
			return ""
		}
		signer = oauth1Signer{
			consumerKey:    p.app.Key,
			consumerSecret: p.app.Secret,
			token:          p.app.AccessToken,
			tokenSecret:    p.app.AccessSecret,
		}
	} else {
		signer = creds.userSigner()
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", "usage.png")
	if err == nil {
		_, err = part.Write(image)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		logger.Warn("failed to build media upload body", "error", err)
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadBase+"/1.1/media/upload.json", &buf)
	if err != nil {
		logger.Warn("failed to create media upload request", "error", err)
		return ""
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	signer.sign(req, nil)

	resp, err := p.http.Do(req)
	if err != nil {
		logger.Warn("media upload failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("media upload rejected", "status", resp.StatusCode, "error", err)
		return ""
	}

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		logger.Warn("failed to parse media upload response", "error", err)
		return ""
	}
	return out.MediaIDString
}

func (p *Publisher) createPost(ctx context.Context, creds Credentials, message, mediaID string) (string, error) {
	payload := map[string]any{"text": message}
	if mediaID != "" {
		payload["media"] = map[string]any{"media_ids": []string{mediaID}}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode post payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/2/tweets", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if creds.Delegated() {
		req.Header.Set("Authorization", "Bearer "+creds.Token.AccessToken)
	} else {
		creds.userSigner().sign(req, nil)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read post response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyPostError(resp.StatusCode, body)
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse post response: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("post response carried no id")
	}
	return out.Data.ID, nil
}

// classifyPostError maps upstream responses onto the distinguishable error
// kinds the caller surfaces to the user.
func classifyPostError(status int, body []byte) error {
	var upstream struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	_ = json.Unmarshal(body, &upstream)

	detail := upstream.Detail
	if detail == "" && len(upstream.Errors) > 0 {
		detail = upstream.Errors[0].Message
	}
	if detail == "" {
		detail = upstream.Title
	}

	lower := strings.ToLower(detail)
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case strings.Contains(lower, "duplicate"):
		return ErrDuplicate
	case status == http.StatusForbidden:
		return ErrForbidden
	case detail != "":
		return fmt.Errorf("x API error: %s", detail)
	default:
		return fmt.Errorf("x API error: status %d", status)
	}
}
