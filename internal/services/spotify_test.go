package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/shared"
	th "github.com/clouder-dj/clouder/internal/testing"
)

func newTestClient(t *testing.T, server *httptest.Server, store *th.MemoryTokenStore, expiresAt time.Time) (*SpotifyClient, *models.Credential) {
	t.Helper()

	cred := models.NewCredential(1, "user-1", "enc:"+store.Access, "enc:"+store.Refresh, expiresAt, "playlist-modify-private")
	cfg := shared.SpotifyConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		TokenURL:     server.URL + "/api/token",
		APIURL:       server.URL + "/v1",
	}
	retry := shared.RetryConfig{MaxRetries: 3, BaseDelayMS: 1, MaxSleepMS: 50, TimeoutMS: 5000}

	client, err := NewSpotifyClient(cfg, retry, store, cred, "spotify-user", shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, cred
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenGrant(w http.ResponseWriter, accessToken string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

var futureExpiry = time.Now().UTC().Add(time.Hour)
var pastExpiry = time.Now().UTC().Add(-time.Hour)

func TestSpotifyClientRefresh(t *testing.T) {
	t.Run("Proactive Refresh Is Single Flight", func(t *testing.T) {
		var refreshes atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
			refreshes.Add(1)
			tokenGrant(w, "fresh-token")
		})
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer fresh-token" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "stale token"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1", "name": "test"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("stale-token", "refresh-1")
		client, _ := newTestClient(t, server, store, pastExpiry)

		var wg sync.WaitGroup
		errs := make([]error, 10)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = client.GetPlaylist(context.Background(), "p1")
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Errorf("request %d failed: %v", i, err)
			}
		}
		if got := refreshes.Load(); got != 1 {
			t.Errorf("expected exactly one refresh for concurrent requests, got %d", got)
		}
	})

	t.Run("No Refresh When Token Fresh", func(t *testing.T) {
		var refreshes atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
			refreshes.Add(1)
			tokenGrant(w, "fresh-token")
		})
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		if _, err := client.GetPlaylist(context.Background(), "p1"); err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if got := refreshes.Load(); got != 0 {
			t.Errorf("expected no refresh with fresh token, got %d", got)
		}
	})

	t.Run("Reactive 401 Refreshes And Retries Once", func(t *testing.T) {
		var refreshes, apiCalls atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
			refreshes.Add(1)
			tokenGrant(w, "fresh-token")
		})
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer fresh-token" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "expired"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		// Token reads fresh but the provider rejects it anyway.
		store := th.NewMemoryTokenStore("rejected-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		if _, err := client.GetPlaylist(context.Background(), "p1"); err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if got := refreshes.Load(); got != 1 {
			t.Errorf("expected one reactive refresh, got %d", got)
		}
		if got := apiCalls.Load(); got != 2 {
			t.Errorf("expected original call plus one retry, got %d", got)
		}
	})

	t.Run("Second 401 Is Terminal", func(t *testing.T) {
		var refreshes, apiCalls atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
			refreshes.Add(1)
			tokenGrant(w, "fresh-token")
		})
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "nope"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("rejected-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		_, err := client.GetPlaylist(context.Background(), "p1")
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if got := refreshes.Load(); got != 1 {
			t.Errorf("expected exactly one refresh attempt, got %d", got)
		}
		if got := apiCalls.Load(); got != 2 {
			t.Errorf("expected exactly two API calls, got %d", got)
		}
	})

	t.Run("Invalid Grant Revokes And Deletes Credential", func(t *testing.T) {
		var refreshes atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
			refreshes.Add(1)
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Refresh token revoked",
			})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("stale-token", "revoked-refresh")
		client, _ := newTestClient(t, server, store, pastExpiry)

		_, err := client.GetPlaylist(context.Background(), "p1")
		if !errors.Is(err, shared.ErrTokenRevoked) {
			t.Fatalf("expected ErrTokenRevoked, got %v", err)
		}
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("revocation should classify as unauthorized, got %v", err)
		}
		if !store.Deleted {
			t.Error("credential should be deleted on invalid_grant")
		}

		// Revocation is sticky: later calls fail fast with no network traffic.
		_, err = client.GetPlaylist(context.Background(), "p1")
		if !errors.Is(err, shared.ErrTokenRevoked) {
			t.Errorf("expected sticky ErrTokenRevoked, got %v", err)
		}
		if got := refreshes.Load(); got != 1 {
			t.Errorf("expected no further refresh attempts after revocation, got %d", got)
		}
	})

	t.Run("Refresh Persists Rotated Refresh Token", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  "fresh-token",
				"refresh_token": "rotated-refresh",
				"expires_in":    3600,
				"scope":         "playlist-modify-private",
			})
		})
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("stale-token", "refresh-1")
		client, _ := newTestClient(t, server, store, pastExpiry)

		if _, err := client.GetPlaylist(context.Background(), "p1"); err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if store.UpdateTokensCalls != 1 {
			t.Errorf("expected rotated tokens to be persisted via UpdateTokens, got %d calls", store.UpdateTokensCalls)
		}
		if store.Refresh != "rotated-refresh" {
			t.Errorf("expected rotated refresh token to be stored, got %q", store.Refresh)
		}
	})
}

func TestSpotifyClientRetries(t *testing.T) {
	t.Run("Rate Limit Honors Retry After", func(t *testing.T) {
		var apiCalls atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			if apiCalls.Add(1) <= 2 {
				w.Header().Set("Retry-After", "0")
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limited"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		if _, err := client.GetPlaylist(context.Background(), "p1"); err != nil {
			t.Fatalf("expected success after rate limit clears: %v", err)
		}
		if got := apiCalls.Load(); got != 3 {
			t.Errorf("expected 3 calls, got %d", got)
		}
	})

	t.Run("Rate Limit Exhaustion", func(t *testing.T) {
		var apiCalls atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			w.Header().Set("Retry-After", "0")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limited"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		_, err := client.GetPlaylist(context.Background(), "p1")
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
		if got := apiCalls.Load(); got != 4 {
			t.Errorf("expected max_retries+1 = 4 calls, got %d", got)
		}
	})

	t.Run("Server Error Recovers", func(t *testing.T) {
		var apiCalls atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			if apiCalls.Add(1) == 1 {
				writeJSON(w, http.StatusBadGateway, map[string]any{"error": "bad gateway"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		if _, err := client.GetPlaylist(context.Background(), "p1"); err != nil {
			t.Fatalf("expected recovery after transient 502: %v", err)
		}
	})

	t.Run("Server Error Exhaustion", func(t *testing.T) {
		var apiCalls atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "unavailable"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		_, err := client.GetPlaylist(context.Background(), "p1")
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
		if got := apiCalls.Load(); got != 4 {
			t.Errorf("expected max_retries+1 = 4 calls, got %d", got)
		}

		var serr *StatusError
		if !errors.As(err, &serr) {
			t.Fatal("expected a StatusError")
		}
		if serr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected status 503 on error, got %d", serr.StatusCode)
		}
	})

	t.Run("Network Error Exhaustion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)
		server.Close()

		_, err := client.GetPlaylist(context.Background(), "p1")
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork against closed server, got %v", err)
		}
	})

	t.Run("Forbidden Is Not Retried", func(t *testing.T) {
		var apiCalls atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		_, err := client.GetPlaylist(context.Background(), "p1")
		if !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		if got := apiCalls.Load(); got != 1 {
			t.Errorf("403 must not be retried, got %d calls", got)
		}
	})

	t.Run("Context Cancels Rate Limit Sleep", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "5")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limited"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		cred := models.NewCredential(1, "user-1", "enc:a", "enc:r", futureExpiry, "")
		cfg := shared.SpotifyConfig{
			ClientID: "id", ClientSecret: "secret",
			TokenURL: server.URL + "/api/token",
			APIURL:   server.URL + "/v1",
		}
		// Large sleep cap so the Retry-After sleep is what the context interrupts.
		retry := shared.RetryConfig{MaxRetries: 3, BaseDelayMS: 1, MaxSleepMS: 60000, TimeoutMS: 5000}
		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, err := NewSpotifyClient(cfg, retry, store, cred, "spotify-user", shared.NewLogger(io.Discard))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err = client.GetPlaylist(ctx, "p1")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context deadline error, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("cancellation took too long: %v", elapsed)
		}
	})
}

func TestSpotifyClientOperations(t *testing.T) {
	t.Run("Create Playlist After Proactive Refresh", func(t *testing.T) {
		var refreshes atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
			refreshes.Add(1)
			tokenGrant(w, "fresh-token")
		})
		mux.HandleFunc("POST /v1/users/spotify-user/playlists", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer fresh-token" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "stale"})
				return
			}
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			writeJSON(w, http.StatusCreated, map[string]any{
				"id":     "new-playlist",
				"name":   payload["name"],
				"public": payload["public"],
				"owner":  map[string]any{"id": "spotify-user"},
				"external_urls": map[string]any{
					"spotify": "https://open.spotify.com/playlist/new-playlist",
				},
			})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("stale-token", "refresh-1")
		client, _ := newTestClient(t, server, store, pastExpiry)

		playlist, err := client.CreatePlaylist(context.Background(), "TECHNO :: AUG", false, "august picks")
		if err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if playlist.ID != "new-playlist" {
			t.Errorf("unexpected playlist ID %q", playlist.ID)
		}
		if playlist.Name != "TECHNO :: AUG" {
			t.Errorf("unexpected playlist name %q", playlist.Name)
		}
		if playlist.URL != "https://open.spotify.com/playlist/new-playlist" {
			t.Errorf("expected external URL to be captured, got %q", playlist.URL)
		}
		if got := refreshes.Load(); got != 1 {
			t.Errorf("expected one proactive refresh, got %d", got)
		}
	})

	t.Run("Add Items Batches And Aborts On Failure", func(t *testing.T) {
		var batches atomic.Int64
		var sizes []int
		var mu sync.Mutex

		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			var payload struct {
				URIs []string `json:"uris"`
			}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			mu.Lock()
			sizes = append(sizes, len(payload.URIs))
			mu.Unlock()

			if batches.Add(1) == 2 {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"snapshot_id": "s"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		uris := make([]string, 250)
		for i := range uris {
			uris[i] = fmt.Sprintf("spotify:track:%03d", i)
		}

		err := client.AddItemsToPlaylist(context.Background(), "p1", uris)
		if !errors.Is(err, shared.ErrForbidden) {
			t.Fatalf("expected ErrForbidden from failed batch, got %v", err)
		}
		if !strings.Contains(err.Error(), "added 100 of 250") {
			t.Errorf("error should report applied count, got %q", err.Error())
		}
		if got := batches.Load(); got != 2 {
			t.Errorf("third batch must not be sent after a failure, got %d batches", got)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(sizes) != 2 || sizes[0] != 100 || sizes[1] != 100 {
			t.Errorf("expected two batches of 100, got %v", sizes)
		}
	})

	t.Run("Add Items All Batches Succeed", func(t *testing.T) {
		var batches atomic.Int64

		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			batches.Add(1)
			writeJSON(w, http.StatusCreated, map[string]any{"snapshot_id": "s"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		uris := make([]string, 250)
		for i := range uris {
			uris[i] = fmt.Sprintf("spotify:track:%03d", i)
		}

		if err := client.AddItemsToPlaylist(context.Background(), "p1", uris); err != nil {
			t.Fatalf("failed to add items: %v", err)
		}
		if got := batches.Load(); got != 3 {
			t.Errorf("expected 3 batches for 250 URIs, got %d", got)
		}
	})

	t.Run("Unfollow Missing Playlist Reports Already Absent", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("DELETE /v1/playlists/gone/followers", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		outcome, err := client.UnfollowPlaylist(context.Background(), "gone")
		if err != nil {
			t.Fatalf("missing playlist must not be an error: %v", err)
		}
		if outcome != OutcomeAlreadyAbsent {
			t.Errorf("expected OutcomeAlreadyAbsent, got %q", outcome)
		}
	})

	t.Run("Unfollow Existing Playlist Reports Done", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("DELETE /v1/playlists/p1/followers", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		outcome, err := client.UnfollowPlaylist(context.Background(), "p1")
		if err != nil {
			t.Fatalf("failed to unfollow: %v", err)
		}
		if outcome != OutcomeDone {
			t.Errorf("expected OutcomeDone, got %q", outcome)
		}
	})

	t.Run("Get All Items Follows Pagination", func(t *testing.T) {
		var server *httptest.Server

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			page2 := server.URL + "/v1/page2"
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"added_at": "2026-08-01T00:00:00Z", "track": map[string]any{"uri": "spotify:track:a"}},
					{"added_at": "2026-08-02T00:00:00Z", "track": map[string]any{"uri": "spotify:track:b"}},
				},
				"next": page2,
			})
		})
		mux.HandleFunc("GET /v1/page2", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"added_at": "2026-08-03T00:00:00Z", "track": map[string]any{"uri": "spotify:track:c"}},
				},
				"next": nil,
			})
		})
		server = httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		items, err := client.GetPlaylistAllItems(context.Background(), "p1")
		if err != nil {
			t.Fatalf("failed to fetch items: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("expected 3 items across pages, got %d", len(items))
		}
		if items[2].URI != "spotify:track:c" {
			t.Errorf("expected page order preserved, got %q", items[2].URI)
		}
	})

	t.Run("Get All Items Returns Partial On Page Failure", func(t *testing.T) {
		var server *httptest.Server

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			page2 := server.URL + "/v1/page2"
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"added_at": "2026-08-01T00:00:00Z", "track": map[string]any{"uri": "spotify:track:a"}},
				},
				"next": page2,
			})
		})
		mux.HandleFunc("GET /v1/page2", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
		})
		server = httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		items, err := client.GetPlaylistAllItems(context.Background(), "p1")
		if err != nil {
			t.Fatalf("page failure must yield partial results, not an error: %v", err)
		}
		if len(items) != 1 || items[0].URI != "spotify:track:a" {
			t.Errorf("expected first page accumulated, got %v", items)
		}
	})

	t.Run("Update Playlist Details", func(t *testing.T) {
		var gotName string

		mux := http.NewServeMux()
		mux.HandleFunc("PUT /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			gotName = payload["name"]
			w.WriteHeader(http.StatusOK)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := th.NewMemoryTokenStore("valid-token", "refresh-1")
		client, _ := newTestClient(t, server, store, futureExpiry)

		if err := client.UpdatePlaylistDetails(context.Background(), "p1", "renamed"); err != nil {
			t.Fatalf("failed to update playlist: %v", err)
		}
		if gotName != "renamed" {
			t.Errorf("expected rename payload, got %q", gotName)
		}
	})
}
