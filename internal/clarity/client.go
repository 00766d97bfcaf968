// Package clarity is a client for the Microsoft Clarity Data Export API.
package clarity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

const insightsPath = "/project-live-insights"

// FetchOptions shape one export request. The API caps each request at three
// days of data and at most three breakdown dimensions.
type FetchOptions struct {
	NumDays    int    `validate:"min=1,max=3"`
	Dimension1 string `validate:"omitempty,oneof=Browser Device Country OS Source Medium Campaign Channel URL"`
	Dimension2 string `validate:"omitempty,oneof=Browser Device Country OS Source Medium Campaign Channel URL"`
	Dimension3 string `validate:"omitempty,oneof=Browser Device Country OS Source Medium Campaign Channel URL"`
}

// MetricGroup is one entry of the export response: a metric name plus its
// per-dimension breakdown rows. Numeric values arrive as JSON strings.
type MetricGroup struct {
	MetricName  string           `json:"metricName"`
	Information []map[string]any `json:"information"`
}

// FetchResult is a successful export response with its transport details.
type FetchResult struct {
	Groups       []MetricGroup
	StatusCode   int
	ResponseSize int
	RawBody      []byte
}

// APIError is a non-2xx response from the export endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clarity api returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Clarity Data Export API. Requests pass through a rate
// limiter so bursts of fetches stay polite regardless of the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	validate   *validator.Validate
	logger     *slog.Logger
	maxRetries int
}

// NewClient creates an API client. The token is the JWT issued by the
// Clarity project settings page.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		validate:   validator.New(),
		logger:     logger,
		maxRetries: 3,
	}
}

// FetchProjectInsights requests export data for the trailing NumDays days.
// Transient failures retry with exponential backoff; 4xx responses do not.
func (c *Client) FetchProjectInsights(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	if err := c.validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid fetch options: %w", err)
	}

	endpoint, err := url.Parse(c.baseURL + insightsPath)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	params := endpoint.Query()
	params.Set("numOfDays", strconv.Itoa(opts.NumDays))
	if opts.Dimension1 != "" {
		params.Set("dimension1", opts.Dimension1)
	}
	if opts.Dimension2 != "" {
		params.Set("dimension2", opts.Dimension2)
	}
	if opts.Dimension3 != "" {
		params.Set("dimension3", opts.Dimension3)
	}
	endpoint.RawQuery = params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, retry, err := c.doRequest(ctx, endpoint.String())
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retry {
			break
		}

		c.logger.Warn("Clarity request failed, retrying",
			"attempt", attempt+1, "max_retries", c.maxRetries, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(math.Pow(2, float64(attempt))) * time.Second):
		}
	}
	return nil, lastErr
}

// doRequest performs one attempt. The second return value reports whether the
// failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, endpoint string) (*FetchResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("clarity request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read clarity response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, &APIError{StatusCode: resp.StatusCode, Body: "rate limited"}
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
		// Client errors are not transient.
		retry := resp.StatusCode < 400 || resp.StatusCode >= 500
		return nil, retry, apiErr
	}

	var groups []MetricGroup
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, false, fmt.Errorf("invalid clarity response: %w", err)
	}

	return &FetchResult{
		Groups:       groups,
		StatusCode:   resp.StatusCode,
		ResponseSize: len(body),
		RawBody:      body,
	}, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// InfoInt reads a numeric field from a breakdown row. The export API encodes
// numbers as strings, so both forms are accepted. Returns nil when the key
// is absent or unreadable.
func InfoInt(info map[string]any, key string) *int64 {
	v, ok := info[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			if f, ferr := strconv.ParseFloat(n, 64); ferr == nil {
				parsed = int64(f)
			} else {
				return nil
			}
		}
		return &parsed
	case float64:
		parsed := int64(n)
		return &parsed
	}
	return nil
}

// InfoFloat reads a float field from a breakdown row.
func InfoFloat(info map[string]any, key string) *float64 {
	v, ok := info[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		return &parsed
	case float64:
		f := n
		return &f
	}
	return nil
}

// InfoString reads a string field from a breakdown row, empty when absent.
func InfoString(info map[string]any, key string) string {
	if v, ok := info[key].(string); ok {
		return v
	}
	return ""
}
