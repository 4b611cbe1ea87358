package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/clouder-dj/clouder/internal/shared"
)

// StatusError is a classified provider error. It wraps one of the shared
// sentinel errors so callers can branch with [errors.Is], and carries the
// HTTP status, a bounded response snippet, and the sanitized request URL.
type StatusError struct {
	Sentinel   error
	StatusCode int
	Snippet    string
	URL        string
}

func (e *StatusError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("%v: status %d from %s: %s", e.Sentinel, e.StatusCode, e.URL, e.Snippet)
	}
	return fmt.Sprintf("%v: status %d from %s", e.Sentinel, e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return e.Sentinel
}

const snippetLimit = 500

func newStatusError(sentinel error, status int, body []byte, rawURL string) *StatusError {
	snippet := string(body)
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	return &StatusError{
		Sentinel:   sentinel,
		StatusCode: status,
		Snippet:    snippet,
		URL:        safeURL(rawURL),
	}
}

// classify maps a terminal HTTP status to a shared sentinel error.
func classify(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return shared.ErrUnauthorized
	case http.StatusForbidden:
		return shared.ErrForbidden
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusTooManyRequests:
		return shared.ErrRateLimited
	}
	if status >= 500 {
		return shared.ErrUpstream
	}
	return shared.ErrAPIRequest
}

func retryableServerError(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// safeURL strips query parameters before a URL reaches a log line or error
// message. Query strings may carry tokens.
func safeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}

// retryAfterDelay parses a Retry-After header, which may be an integer
// number of seconds or an HTTP-date. Negative values floor at zero. Returns
// fallback when the header is missing or unparseable.
func retryAfterDelay(header string, fallback time.Duration, now time.Time) time.Duration {
	if header == "" {
		return fallback
	}

	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second
	}

	if when, err := http.ParseTime(header); err == nil {
		d := when.Sub(now)
		if d < 0 {
			d = 0
		}
		return d
	}

	return fallback
}

// backoffDelay computes the exponential backoff for the given zero-based
// attempt, capped at maxSleep.
func backoffDelay(base time.Duration, attempt int, maxSleep time.Duration) time.Duration {
	d := base * (1 << attempt)
	if maxSleep > 0 && d > maxSleep {
		d = maxSleep
	}
	return d
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
