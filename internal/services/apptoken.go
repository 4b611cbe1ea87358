// Anonymous Spotify access via the client-credentials grant.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/clouder-dj/clouder/internal/shared"
)

// appTokenBuffer is subtracted from the app token's lifetime so it is
// renewed before the provider would reject it.
const appTokenBuffer = 60 * time.Second

// artistsBatchSize is the Spotify API limit for a several-artists call.
const artistsBatchSize = 50

// AppTokenSource holds a lazily refreshed client-credentials token and the
// anonymous catalog operations built on it. The clock is injectable so
// cache expiry is testable. Safe for concurrent use.
type AppTokenSource struct {
	cfg        shared.SpotifyConfig
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewAppTokenSource creates an app token source. A nil clock defaults to
// [time.Now].
func NewAppTokenSource(cfg shared.SpotifyConfig, timeout time.Duration, logger *log.Logger, clock func() time.Time) (*AppTokenSource, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingConfig)
	}
	if clock == nil {
		clock = time.Now
	}
	return &AppTokenSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        clock,
	}, nil
}

// Token returns a valid app token, requesting a new one when the cached
// token is missing or within the renewal buffer of expiry.
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}

	s.logger.Info("requesting new client credentials token")

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: client credentials request failed: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read token response: %v", shared.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("client credentials grant failed", "status_code", resp.StatusCode)
		return "", newStatusError(shared.ErrAuthFailed, resp.StatusCode, body, s.cfg.TokenURL)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	s.token = tok.AccessToken
	s.expiresAt = s.now().Add(time.Duration(tok.ExpiresIn)*time.Second - appTokenBuffer)
	s.logger.Info("obtained new client credentials token")
	return s.token, nil
}

func (s *AppTokenSource) get(ctx context.Context, endpoint string, result any) error {
	token, err := s.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		return newStatusError(classify(resp.StatusCode), resp.StatusCode, body, endpoint)
	}

	return json.Unmarshal(body, result)
}

// SearchTrackByISRC looks up a track by its ISRC. Returns (nil, nil) when
// no track matches.
func (s *AppTokenSource) SearchTrackByISRC(ctx context.Context, isrc string) (*SpotifyTrack, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&type=track",
		s.cfg.APIURL, url.QueryEscape("isrc:"+isrc))

	var result struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}

	if err := s.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}

	if len(result.Tracks.Items) == 0 {
		s.logger.Debug("no track found for ISRC", "isrc", isrc)
		return nil, nil
	}

	track := result.Tracks.Items[0]
	s.logger.Debug("found track for ISRC", "isrc", isrc, "track_id", track.ID)
	return &track, nil
}

// GetArtistsByIDs fetches artist details in batches of 50. A failed batch
// is logged and skipped; the remaining batches still run.
func (s *AppTokenSource) GetArtistsByIDs(ctx context.Context, artistIDs []string) ([]SpotifyArtist, error) {
	if len(artistIDs) == 0 {
		return nil, nil
	}

	var all []SpotifyArtist
	for i := 0; i < len(artistIDs); i += artistsBatchSize {
		end := i + artistsBatchSize
		if end > len(artistIDs) {
			end = len(artistIDs)
		}
		batch := artistIDs[i:end]

		endpoint := fmt.Sprintf("%s/artists?ids=%s",
			s.cfg.APIURL, url.QueryEscape(strings.Join(batch, ",")))

		var result struct {
			Artists []SpotifyArtist `json:"artists"`
		}
		if err := s.get(ctx, endpoint, &result); err != nil {
			s.logger.Warn("artist batch fetch failed, skipping",
				"batch_start", i,
				"batch_size", len(batch),
				"error", err)
			continue
		}

		for _, artist := range result.Artists {
			if artist.ID != "" {
				all = append(all, artist)
			}
		}
	}

	s.logger.Debug("fetched artists", "count", len(all))
	return all, nil
}
