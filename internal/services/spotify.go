// Per-user resilient Spotify client.
//
// Spotify API endpoints based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/shared"
)

// expiryBuffer is how far ahead of the recorded expiry a token is treated
// as stale and refreshed proactively.
const expiryBuffer = 5 * time.Minute

// addItemsBatchSize is the Spotify API limit for a single add-items call.
const addItemsBatchSize = 100

// SpotifyClient performs Spotify API requests for one user and owns that
// user's token lifecycle: proactive refresh before expiry, reactive refresh
// on 401, and bounded retries for rate limits, server errors, and network
// failures. Safe for concurrent use; refresh is serialized per client.
type SpotifyClient struct {
	cfg           shared.SpotifyConfig
	retry         shared.RetryConfig
	store         TokenStore
	cred          *models.Credential
	spotifyUserID string
	httpClient    *http.Client
	logger        *log.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	revoked      bool
}

// NewSpotifyClient decrypts the credential's tokens and returns a client
// bound to that user's session.
func NewSpotifyClient(cfg shared.SpotifyConfig, retry shared.RetryConfig, store TokenStore, cred *models.Credential, spotifyUserID string, logger *log.Logger) (*SpotifyClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingConfig)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: no credential for user", shared.ErrMissingCredentials)
	}

	access, refresh, err := store.DecryptTokens(cred)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt stored tokens: %w", err)
	}

	return &SpotifyClient{
		cfg:           cfg,
		retry:         retry,
		store:         store,
		cred:          cred,
		spotifyUserID: spotifyUserID,
		httpClient:    &http.Client{Timeout: retry.Timeout()},
		logger:        shared.WithLogger(logger, "user_id", cred.UserID(), "spotify_user_id", spotifyUserID),
		accessToken:   access,
		refreshToken:  refresh,
	}, nil
}

// refreshAccessToken posts a refresh_token grant and persists the result.
// Caller must hold c.mu.
func (c *SpotifyClient) refreshAccessToken(ctx context.Context) error {
	c.logger.Info("refreshing access token")

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: token refresh request failed: %v", shared.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read refresh response: %v", shared.ErrRefreshFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		var terr tokenError
		_ = json.Unmarshal(body, &terr)

		if resp.StatusCode == http.StatusBadRequest && terr.Error == "invalid_grant" {
			c.logger.Error("refresh token revoked, deleting credential",
				"status_code", resp.StatusCode,
				"error_description", terr.ErrorDescription)
			if err := c.store.Delete(c.cred.UserID()); err != nil {
				c.logger.Error("failed to delete revoked credential", "error", err)
			}
			c.revoked = true
			return fmt.Errorf("%w: refresh token revoked, re-authorization required", shared.ErrTokenRevoked)
		}

		c.logger.Error("token refresh failed",
			"status_code", resp.StatusCode,
			"error_code", terr.Error)
		return newStatusError(shared.ErrRefreshFailed, resp.StatusCode, body, c.cfg.TokenURL)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("%w: failed to decode refresh response: %v", shared.ErrRefreshFailed, err)
	}

	newExpiresAt := time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second)

	// Spotify may rotate the refresh token during refresh.
	if tok.RefreshToken != "" {
		scope := tok.Scope
		if scope == "" {
			scope = c.cred.Scope()
		}
		if err := c.store.UpdateTokens(c.cred, tok.AccessToken, tok.RefreshToken, newExpiresAt, scope); err != nil {
			return fmt.Errorf("failed to persist rotated tokens: %w", err)
		}
		c.refreshToken = tok.RefreshToken
	} else {
		if err := c.store.UpdateAccessToken(c.cred, tok.AccessToken, newExpiresAt); err != nil {
			return fmt.Errorf("failed to persist refreshed access token: %w", err)
		}
	}

	c.accessToken = tok.AccessToken
	c.logger.Info("access token refreshed",
		"expires_at", newExpiresAt.Format(time.RFC3339),
		"refresh_token_rotated", tok.RefreshToken != "")
	return nil
}

// refreshIfStale performs the proactive refresh check. The expiry read and
// the refresh happen under one lock hold, so concurrent callers coalesce on
// a single refresh and late arrivals see the updated expiry.
func (c *SpotifyClient) refreshIfStale(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.revoked {
		return fmt.Errorf("%w: refresh token revoked, re-authorization required", shared.ErrTokenRevoked)
	}

	if !c.cred.ExpiresWithin(expiryBuffer) {
		return nil
	}

	c.logger.Info("token expired or expiring soon, refreshing proactively")
	return c.refreshAccessToken(ctx)
}

// refreshAfter401 refreshes after a 401 response. capturedToken is the
// token the failed request was sent with: if another caller already swapped
// it, the refresh is skipped and the new token used as-is.
func (c *SpotifyClient) refreshAfter401(ctx context.Context, capturedToken string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.revoked {
		return "", fmt.Errorf("%w: refresh token revoked, re-authorization required", shared.ErrTokenRevoked)
	}

	if c.accessToken == capturedToken {
		if err := c.refreshAccessToken(ctx); err != nil {
			return "", err
		}
	} else {
		c.logger.Debug("token already refreshed by concurrent request")
	}

	return c.accessToken, nil
}

func (c *SpotifyClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *SpotifyClient) isRevoked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked
}

// request runs the resilient request loop and returns the response body of
// a successful (2xx) response.
func (c *SpotifyClient) request(ctx context.Context, method, rawURL string, payload any) ([]byte, error) {
	if c.isRevoked() {
		return nil, fmt.Errorf("%w: refresh token revoked, re-authorization required", shared.ErrTokenRevoked)
	}

	if err := c.refreshIfStale(ctx); err != nil {
		return nil, err
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	logger := shared.WithLogger(c.logger, "method", method, "url", safeURL(rawURL))
	retried401 := false
	token := c.currentToken()

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, rawURL, bodyBytes, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.retry.MaxRetries {
				delay := backoffDelay(c.retry.BaseDelay(), attempt, c.retry.MaxSleep())
				logger.Warn("network error, retrying",
					"error", err,
					"attempt", attempt+1,
					"delay", delay)
				if serr := sleepCtx(ctx, delay); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, fmt.Errorf("%w: request failed after %d attempts: %v", shared.ErrNetwork, attempt+1, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrNetwork, readErr)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			logger.Debug("request successful",
				"status_code", resp.StatusCode,
				"content_length", len(body))
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if retried401 {
				logger.Error("authorization failed after token refresh", "status_code", resp.StatusCode)
				return nil, newStatusError(shared.ErrUnauthorized, resp.StatusCode, body, rawURL)
			}
			logger.Warn("received 401, attempting token refresh")
			newToken, rerr := c.refreshAfter401(ctx, token)
			if rerr != nil {
				return nil, rerr
			}
			token = newToken
			retried401 = true
			// The refresh retry does not consume a backoff attempt.
			attempt--
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt < c.retry.MaxRetries {
				wanted := retryAfterDelay(resp.Header.Get("Retry-After"), c.retry.BaseDelay(), time.Now())
				delay := wanted
				if delay > c.retry.MaxSleep() {
					delay = c.retry.MaxSleep()
					logger.Warn("rate limit delay capped",
						"retry_after", wanted,
						"capped_to", delay)
				}
				logger.Warn("rate limited, waiting",
					"attempt", attempt+1,
					"delay", delay)
				if serr := sleepCtx(ctx, delay); serr != nil {
					return nil, serr
				}
				continue
			}
			logger.Error("rate limit retries exhausted", "max_retries", c.retry.MaxRetries)
			return nil, newStatusError(shared.ErrRateLimited, resp.StatusCode, body, rawURL)

		case retryableServerError(resp.StatusCode):
			if attempt < c.retry.MaxRetries {
				delay := backoffDelay(c.retry.BaseDelay(), attempt, c.retry.MaxSleep())
				logger.Warn("server error, retrying",
					"status_code", resp.StatusCode,
					"attempt", attempt+1,
					"delay", delay)
				if serr := sleepCtx(ctx, delay); serr != nil {
					return nil, serr
				}
				continue
			}
			logger.Error("server error retries exhausted",
				"status_code", resp.StatusCode,
				"max_retries", c.retry.MaxRetries)
			return nil, newStatusError(shared.ErrUpstream, resp.StatusCode, body, rawURL)

		default:
			logger.Error("request failed",
				"status_code", resp.StatusCode,
				"response_snippet", truncate(string(body), snippetLimit))
			return nil, newStatusError(classify(resp.StatusCode), resp.StatusCode, body, rawURL)
		}
	}
}

func (c *SpotifyClient) send(ctx context.Context, method, rawURL string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// CreatePlaylist creates a new playlist owned by the session's user.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, name string, public bool, description string) (*PlaylistDescriptor, error) {
	c.logger.Info("creating playlist", "name", name)

	endpoint := fmt.Sprintf("%s/users/%s/playlists", c.cfg.APIURL, url.PathEscape(c.spotifyUserID))
	payload := map[string]any{
		"name":        name,
		"public":      public,
		"description": description,
	}

	body, err := c.request(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var playlist spotifyPlaylist
	if err := json.Unmarshal(body, &playlist); err != nil {
		return nil, fmt.Errorf("failed to decode playlist response: %w", err)
	}

	c.logger.Info("playlist created",
		"playlist_id", playlist.ID,
		"owner_id", playlist.Owner.ID,
		"public", playlist.Public)
	return playlist.descriptor(), nil
}

// GetPlaylist retrieves a playlist by ID.
func (c *SpotifyClient) GetPlaylist(ctx context.Context, playlistID string) (*PlaylistDescriptor, error) {
	endpoint := fmt.Sprintf("%s/playlists/%s", c.cfg.APIURL, url.PathEscape(playlistID))

	body, err := c.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var playlist spotifyPlaylist
	if err := json.Unmarshal(body, &playlist); err != nil {
		return nil, fmt.Errorf("failed to decode playlist response: %w", err)
	}

	return playlist.descriptor(), nil
}

// UpdatePlaylistDetails renames a playlist.
func (c *SpotifyClient) UpdatePlaylistDetails(ctx context.Context, playlistID, name string) error {
	c.logger.Info("updating playlist details", "playlist_id", playlistID, "new_name", name)

	endpoint := fmt.Sprintf("%s/playlists/%s", c.cfg.APIURL, url.PathEscape(playlistID))
	payload := map[string]any{"name": name}

	if _, err := c.request(ctx, http.MethodPut, endpoint, payload); err != nil {
		return err
	}

	c.logger.Info("playlist updated", "playlist_id", playlistID)
	return nil
}

// UnfollowPlaylist unfollows (deletes) a playlist. A playlist that no
// longer exists is reported as [OutcomeAlreadyAbsent], not an error.
func (c *SpotifyClient) UnfollowPlaylist(ctx context.Context, playlistID string) (Outcome, error) {
	c.logger.Info("unfollowing playlist", "playlist_id", playlistID)

	endpoint := fmt.Sprintf("%s/playlists/%s/followers", c.cfg.APIURL, url.PathEscape(playlistID))

	_, err := c.request(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			c.logger.Warn("playlist to unfollow not found, likely already deleted", "playlist_id", playlistID)
			return OutcomeAlreadyAbsent, nil
		}
		return "", err
	}

	c.logger.Info("playlist unfollowed", "playlist_id", playlistID)
	return OutcomeDone, nil
}

// AddItemsToPlaylist appends track URIs to a playlist in batches of 100.
// A failed batch aborts the remainder; the returned error reports how many
// URIs were applied before the failure.
func (c *SpotifyClient) AddItemsToPlaylist(ctx context.Context, playlistID string, trackURIs []string) error {
	if len(trackURIs) == 0 {
		return nil
	}

	c.logger.Info("adding items to playlist", "playlist_id", playlistID, "count", len(trackURIs))

	endpoint := fmt.Sprintf("%s/playlists/%s/tracks", c.cfg.APIURL, url.PathEscape(playlistID))

	for i := 0; i < len(trackURIs); i += addItemsBatchSize {
		end := i + addItemsBatchSize
		if end > len(trackURIs) {
			end = len(trackURIs)
		}
		batch := trackURIs[i:end]

		payload := map[string]any{"uris": batch}
		if _, err := c.request(ctx, http.MethodPost, endpoint, payload); err != nil {
			c.logger.Error("failed to add batch to playlist",
				"playlist_id", playlistID,
				"batch_start", i+1,
				"batch_end", end,
				"error", err)
			return fmt.Errorf("added %d of %d items before failure: %w", i, len(trackURIs), err)
		}
	}

	c.logger.Info("items added to playlist", "playlist_id", playlistID, "count", len(trackURIs))
	return nil
}

type playlistItemsPage struct {
	Items []struct {
		AddedAt string `json:"added_at"`
		Track   struct {
			URI string `json:"uri"`
		} `json:"track"`
	} `json:"items"`
	Next *string `json:"next"`
}

// GetPlaylistAllItems fetches every item in a playlist, following
// pagination. A page failure ends the walk and returns what was
// accumulated so far.
func (c *SpotifyClient) GetPlaylistAllItems(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	c.logger.Info("fetching all playlist items", "playlist_id", playlistID)

	var items []PlaylistItem
	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=50&fields=%s",
		c.cfg.APIURL, url.PathEscape(playlistID),
		url.QueryEscape("items(added_at,track(uri)),next"))

	for next != "" {
		body, err := c.request(ctx, http.MethodGet, next, nil)
		if err != nil {
			c.logger.Error("failed to fetch playlist page, returning partial results",
				"playlist_id", playlistID,
				"accumulated", len(items),
				"error", err)
			break
		}

		var page playlistItemsPage
		if err := json.Unmarshal(body, &page); err != nil {
			c.logger.Error("failed to decode playlist page, returning partial results",
				"playlist_id", playlistID,
				"error", err)
			break
		}

		for _, item := range page.Items {
			if item.Track.URI != "" {
				items = append(items, PlaylistItem{URI: item.Track.URI, AddedAt: item.AddedAt})
			}
		}

		if page.Next == nil {
			break
		}
		next = *page.Next
	}

	c.logger.Info("fetched playlist items", "playlist_id", playlistID, "count", len(items))
	return items, nil
}
