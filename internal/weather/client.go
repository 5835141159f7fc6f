// Package weather is a client for the weatherapi.com HTTP API and the
// operations that expose it.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the weatherapi.com v1 endpoint.
const DefaultBaseURL = "http://api.weatherapi.com/v1"

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 10 * 1024 * 1024

// ErrUnexpectedPayload is returned when a response lacks a section the
// caller depends on or cannot be decoded.
var ErrUnexpectedPayload = errors.New("unexpected payload")

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("weather API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("weather API returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the weather provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL overrides the provider endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithAPIKey sets the key sent with every request
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		return nil, fmt.Errorf("no weather API key provided")
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	return c, nil
}

// Current fetches current conditions, including air quality.
func (c *Client) Current(ctx context.Context, location string) (*CurrentResponse, error) {
	var resp CurrentResponse
	query := url.Values{"q": {location}, "aqi": {"yes"}}
	if err := c.get(ctx, "current.json", query, &resp); err != nil {
		return nil, err
	}
	if resp.Location == nil || resp.Current == nil {
		return nil, fmt.Errorf("%w: current.json response missing location or current", ErrUnexpectedPayload)
	}
	return &resp, nil
}

// Forecast fetches a forecast of the given number of days. Alerts are
// included only when requested.
func (c *Client) Forecast(ctx context.Context, location string, days int, alerts bool) (*ForecastResponse, error) {
	var resp ForecastResponse
	query := url.Values{
		"q":      {location},
		"days":   {strconv.Itoa(days)},
		"aqi":    {"no"},
		"alerts": {yesNo(alerts)},
	}
	if err := c.get(ctx, "forecast.json", query, &resp); err != nil {
		return nil, err
	}
	if resp.Location == nil || resp.Forecast == nil {
		return nil, fmt.Errorf("%w: forecast.json response missing location or forecast", ErrUnexpectedPayload)
	}
	return &resp, nil
}

// Astronomy fetches sun and moon data for a date formatted as YYYY-MM-DD.
func (c *Client) Astronomy(ctx context.Context, location, date string) (*AstronomyResponse, error) {
	var resp AstronomyResponse
	query := url.Values{"q": {location}, "dt": {date}}
	if err := c.get(ctx, "astronomy.json", query, &resp); err != nil {
		return nil, err
	}
	if resp.Location == nil || resp.Astronomy == nil || resp.Astronomy.Astro == nil {
		return nil, fmt.Errorf("%w: astronomy.json response missing location or astro", ErrUnexpectedPayload)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, v any) error {
	query.Set("key", c.apiKey)
	u := c.baseURL + "/" + endpoint + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("weather request",
		"endpoint", endpoint,
		"location", query.Get("q"),
		"status", resp.StatusCode,
		"duration", time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("error reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Code = payload.Error.Code
			apiErr.Message = payload.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrUnexpectedPayload, endpoint, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
