// Beatport catalog client.
//
// Beatport API v4, https://api.beatport.com/v4/catalog
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/clouder-dj/clouder/internal/shared"
)

const beatportPageSize = 100

// BeatportArtist represents a Beatport artist reference.
type BeatportArtist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// BeatportTrack represents a track in the Beatport catalog.
type BeatportTrack struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	MixName     string           `json:"mix_name"`
	ISRC        string           `json:"isrc"`
	PublishDate string           `json:"publish_date"`
	Artists     []BeatportArtist `json:"artists"`
}

type beatportPage struct {
	Results []BeatportTrack `json:"results"`
	Page    string          `json:"page"`
	Count   int             `json:"count"`
	Next    *string         `json:"next"`
}

// BeatportClient performs bearer-token requests against the Beatport
// catalog API.
type BeatportClient struct {
	cfg        shared.BeatportConfig
	httpClient *http.Client
	logger     *log.Logger
}

// NewBeatportClient creates a Beatport catalog client.
func NewBeatportClient(cfg shared.BeatportConfig, timeout time.Duration, logger *log.Logger) (*BeatportClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: beatport token is required", shared.ErrMissingConfig)
	}
	return &BeatportClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *BeatportClient) getPage(ctx context.Context, pageURL string) (*beatportPage, error) {
	c.logger.Debug("requesting catalog page", "url", safeURL(pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog request failed: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read catalog response: %v", shared.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("catalog request failed",
			"url", safeURL(pageURL),
			"status_code", resp.StatusCode)
		return nil, newStatusError(classify(resp.StatusCode), resp.StatusCode, body, pageURL)
	}

	var page beatportPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode catalog page: %w", err)
	}

	c.logger.Debug("catalog page received",
		"page", page.Page,
		"count", page.Count,
		"results", len(page.Results))
	return &page, nil
}

// GetTracks walks all catalog pages for a genre and publish-date window,
// sending each page of tracks to the yield function. The first failed page
// ends the stream; pages already delivered stand. A false return from
// yield stops the walk early.
func (c *BeatportClient) GetTracks(ctx context.Context, genreID int, publishDateStart, publishDateEnd string, yield func(tracks []BeatportTrack) bool) error {
	params := url.Values{}
	params.Set("genre_id", fmt.Sprintf("%d", genreID))
	params.Set("publish_date", publishDateStart+":"+publishDateEnd)
	params.Set("page", "1")
	params.Set("per_page", fmt.Sprintf("%d", beatportPageSize))
	params.Set("order_by", "-publish_date")

	next := fmt.Sprintf("%s/tracks/?%s", c.cfg.APIURL, params.Encode())

	for next != "" {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := c.getPage(ctx, next)
		if err != nil {
			c.logger.Error("catalog page stream ended on error", "error", err)
			return err
		}

		if !yield(page.Results) {
			return nil
		}

		if page.Next == nil {
			break
		}
		next = *page.Next
	}

	return nil
}
