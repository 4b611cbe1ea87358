package services

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/clouder-dj/clouder/internal/shared"
)

func TestRetryAfterDelay(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fallback := time.Second

	t.Run("Seconds", func(t *testing.T) {
		if got := retryAfterDelay("7", fallback, now); got != 7*time.Second {
			t.Errorf("expected 7s, got %v", got)
		}
	})

	t.Run("Negative Seconds Floor At Zero", func(t *testing.T) {
		if got := retryAfterDelay("-3", fallback, now); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})

	t.Run("HTTP Date", func(t *testing.T) {
		header := now.Add(30 * time.Second).Format(http.TimeFormat)
		if got := retryAfterDelay(header, fallback, now); got != 30*time.Second {
			t.Errorf("expected 30s, got %v", got)
		}
	})

	t.Run("Past HTTP Date Floors At Zero", func(t *testing.T) {
		header := now.Add(-time.Minute).Format(http.TimeFormat)
		if got := retryAfterDelay(header, fallback, now); got != 0 {
			t.Errorf("expected 0 for past date, got %v", got)
		}
	})

	t.Run("Missing Header Uses Fallback", func(t *testing.T) {
		if got := retryAfterDelay("", fallback, now); got != fallback {
			t.Errorf("expected fallback, got %v", got)
		}
	})

	t.Run("Garbage Uses Fallback", func(t *testing.T) {
		if got := retryAfterDelay("soon", fallback, now); got != fallback {
			t.Errorf("expected fallback, got %v", got)
		}
	})
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := backoffDelay(base, tc.attempt, time.Minute); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}

	t.Run("Capped At Max Sleep", func(t *testing.T) {
		if got := backoffDelay(base, 10, 500*time.Millisecond); got != 500*time.Millisecond {
			t.Errorf("expected cap, got %v", got)
		}
	})
}

func TestSafeURL(t *testing.T) {
	t.Run("Strips Query", func(t *testing.T) {
		got := safeURL("https://api.spotify.com/v1/search?q=isrc:ABC&access_token=secret")
		if got != "https://api.spotify.com/v1/search" {
			t.Errorf("query must be stripped, got %q", got)
		}
	})

	t.Run("Keeps Path", func(t *testing.T) {
		got := safeURL("https://api.spotify.com/v1/playlists/p1/tracks")
		if got != "https://api.spotify.com/v1/playlists/p1/tracks" {
			t.Errorf("path should survive, got %q", got)
		}
	})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, shared.ErrUnauthorized},
		{http.StatusForbidden, shared.ErrForbidden},
		{http.StatusNotFound, shared.ErrNotFound},
		{http.StatusTooManyRequests, shared.ErrRateLimited},
		{http.StatusBadGateway, shared.ErrUpstream},
		{http.StatusInternalServerError, shared.ErrUpstream},
		{http.StatusBadRequest, shared.ErrAPIRequest},
	}
	for _, tc := range cases {
		if got := classify(tc.status); !errors.Is(got, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, got)
		}
	}
}

func TestStatusError(t *testing.T) {
	t.Run("Wraps Sentinel", func(t *testing.T) {
		err := newStatusError(shared.ErrNotFound, 404, []byte("no such playlist"), "https://api.spotify.com/v1/playlists/x?token=s")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Error("expected errors.Is match on sentinel")
		}
	})

	t.Run("Truncates Snippet And Sanitizes URL", func(t *testing.T) {
		long := make([]byte, 2000)
		for i := range long {
			long[i] = 'x'
		}
		err := newStatusError(shared.ErrUpstream, 502, long, "https://api.spotify.com/v1/me?access_token=secret")
		if len(err.Snippet) != snippetLimit {
			t.Errorf("expected snippet capped at %d, got %d", snippetLimit, len(err.Snippet))
		}
		if err.URL != "https://api.spotify.com/v1/me" {
			t.Errorf("expected sanitized URL, got %q", err.URL)
		}
	})
}
