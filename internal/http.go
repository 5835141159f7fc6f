package internal

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HeaderTransport is a RoundTripper that adds default headers to requests.
// Headers already set on a request are left alone.
type HeaderTransport struct {
	Base    http.RoundTripper
	Headers http.Header
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	for key, values := range t.Headers {
		if req.Header.Get(key) != "" {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// RetryOptions configures NewHTTPClient.
type RetryOptions struct {
	Retries   int
	Timeout   time.Duration
	RPS       int
	UserAgent string
	Logger    *slog.Logger
}

// NewHTTPClient returns a standard client that retries failed requests with
// backoff and sets a User-Agent header.
func NewHTTPClient(opts RetryOptions) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	// The retry client's own logger prints full URLs, which carry API keys.
	retryClient.Logger = nil
	if logger := opts.Logger; logger != nil {
		retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt == 0 {
				return
			}
			logger.Debug("retrying request",
				"method", req.Method,
				"url", RedactURL(req.URL),
				"attempt", attempt,
			)
		}
	}

	if rps := opts.RPS; rps > 0 {
		retryClient.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
			// Ensure we wait at least 1/rps between requests
			minWait := time.Second / time.Duration(rps)
			if min < minWait {
				min = minWait
			}
			return retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
		}
	}

	client := retryClient.StandardClient()
	if opts.UserAgent != "" {
		client.Transport = &HeaderTransport{
			Base:    client.Transport,
			Headers: http.Header{"User-Agent": {opts.UserAgent}},
		}
	}
	return client
}

var secretParams = []string{"key", "api_key", "apikey", "token", "access_token"}

// RedactURL returns u as a string with credentials and secret query
// parameters masked.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	redacted := *u
	query := redacted.Query()
	for _, name := range secretParams {
		if query.Has(name) {
			query.Set(name, "xxxxx")
		}
	}
	redacted.RawQuery = query.Encode()
	return redacted.Redacted()
}
