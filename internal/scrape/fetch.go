// Package scrape fetches pages and extracts the content the report
// pipeline feeds into prompt modules. All scraped text is treated as
// untrusted and passes through a prompt-injection sanitizer.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/OptivexIQ/optivexiq-sub002/internal/constants"
)

// Error codes carried by Error. The string form is
// "<code>:<detail>:<url>" so stage failures are greppable per URL.
const (
	ErrCodeTimeout    = "scrape_timeout"
	ErrCodeHTTPError  = "scrape_http_error"
	ErrCodeBlocked    = "scrape_blocked"
	ErrCodeInvalidURL = "scrape_invalid_url"
)

// Error is a typed scrape failure. The pipeline treats these as stage
// failures, never as process-fatal.
type Error struct {
	Code   string
	URL    string
	Status int
	Signal string
	Cause  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeHTTPError:
		return fmt.Sprintf("%s:%d:%s", e.Code, e.Status, e.URL)
	case ErrCodeBlocked:
		return fmt.Sprintf("%s:%s:%s", e.Code, e.Signal, e.URL)
	default:
		return fmt.Sprintf("%s:%s", e.Code, e.URL)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Fetcher retrieves page HTML with a declared crawler user-agent and a
// bounded per-request timeout.
type Fetcher struct {
	client    *http.Client
	userAgent string
	detector  *blockDetector
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher with the standard scrape policy.
func NewFetcher(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: constants.ScrapeTimeout},
		userAgent: constants.CrawlerUserAgent,
		detector:  newBlockDetector(),
		logger:    logger.With("component", "scrape"),
	}
}

// Fetch GETs the URL and returns the response body as HTML. Non-2xx
// responses, timeouts, and bot-challenge pages return typed errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", &Error{Code: ErrCodeInvalidURL, URL: rawURL, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ScrapeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{Code: ErrCodeInvalidURL, URL: rawURL, Cause: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Code: ErrCodeTimeout, URL: rawURL, Cause: err}
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return "", &Error{Code: ErrCodeTimeout, URL: rawURL, Cause: err}
		}
		return "", &Error{Code: ErrCodeHTTPError, URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Code: ErrCodeHTTPError, URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxScrapeBodyBytes))
	if err != nil {
		return "", &Error{Code: ErrCodeHTTPError, URL: rawURL, Status: resp.StatusCode, Cause: err}
	}

	if signal := f.detector.detect(body); signal != "" {
		f.logger.Warn("bot challenge detected", "url", rawURL, "signal", signal)
		return "", &Error{Code: ErrCodeBlocked, URL: rawURL, Signal: signal}
	}

	return string(body), nil
}
