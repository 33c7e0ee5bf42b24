package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/technojoe/claude-token-share/internal/models"
)

const apiVersion = "2023-06-01"

// maxPages caps pagination so a misbehaving upstream that never clears
// has_more cannot iterate forever.
const maxPages = 1000

const pageLimit = 1000

var (
	// ErrUnauthorized means the Admin API key was rejected outright.
	ErrUnauthorized = errors.New("invalid or unauthorized admin API key")
	// ErrForbidden means the key is valid but lacks usage access.
	ErrForbidden = errors.New("admin API key lacks usage access")
)

// usagePage is one page of the organization usage report.
type usagePage struct {
	Data     []usageEntry `json:"data"`
	HasMore  bool         `json:"has_more"`
	NextPage string       `json:"next_page"`
}

type usageEntry struct {
	Date                     string   `json:"date"`
	Model                    string   `json:"model"`
	InputTokens              int64    `json:"input_tokens"`
	OutputTokens             int64    `json:"output_tokens"`
	CacheCreationInputTokens int64    `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64    `json:"cache_read_input_tokens"`
	CostUSD                  *float64 `json:"cost_usd"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GetUsage pages through the organization usage report for the given year
// and returns the concatenation of all pages as raw usage records.
func (c *Client) GetUsage(ctx context.Context, year int) ([]models.RawUsageRecord, error) {
	var records []models.RawUsageRecord

	nextPage := ""
	for page := 0; page < maxPages; page++ {
		report, err := c.getUsagePage(ctx, year, nextPage)
		if err != nil {
			return nil, err
		}

		for _, entry := range report.Data {
			ts, err := time.Parse("2006-01-02", entry.Date)
			if err != nil {
				continue
			}
			records = append(records, models.RawUsageRecord{
				Model:               entry.Model,
				InputTokens:         entry.InputTokens,
				OutputTokens:        entry.OutputTokens,
				CacheCreationTokens: entry.CacheCreationInputTokens,
				CacheReadTokens:     entry.CacheReadInputTokens,
				Timestamp:           ts,
				CostUSD:             entry.CostUSD,
			})
		}

		if !report.HasMore {
			return records, nil
		}
		nextPage = report.NextPage
	}

	return nil, fmt.Errorf("usage pagination did not terminate within %d pages", maxPages)
}

func (c *Client) getUsagePage(ctx context.Context, year int, page string) (*usagePage, error) {
	params := url.Values{
		"start_date": {fmt.Sprintf("%d-01-01", year)},
		"end_date":   {fmt.Sprintf("%d-12-31", year)},
		"limit":      {fmt.Sprintf("%d", pageLimit)},
	}
	if page != "" {
		params.Set("page", page)
	}

	reqURL := c.baseURL + "/v1/organizations/usage?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// Limit response body to 4MB to prevent memory exhaustion.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("usage API error: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("usage API error: status %d", resp.StatusCode)
	}

	var report usagePage
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &report, nil
}
