// package services implements the provider-facing clients: the per-user
// resilient Spotify client, the anonymous app-token client, and the
// Beatport catalog client.
package services

import (
	"time"

	"github.com/clouder-dj/clouder/internal/models"
)

// TokenStore persists credential updates made by the client during token
// refresh. Satisfied by [repositories.CredentialRepository].
type TokenStore interface {
	// DecryptTokens returns the plaintext access and refresh tokens for
	// the credential.
	DecryptTokens(cred *models.Credential) (accessToken, refreshToken string, err error)

	// UpdateAccessToken replaces the access token and expiry, leaving the
	// refresh token untouched.
	UpdateAccessToken(cred *models.Credential, newAccessToken string, newExpiresAt time.Time) error

	// UpdateTokens replaces both tokens. Used when the provider rotates
	// the refresh token during refresh.
	UpdateTokens(cred *models.Credential, newAccessToken, newRefreshToken string, newExpiresAt time.Time, scope string) error

	// Delete removes the credential. Called when the provider reports the
	// refresh token as revoked.
	Delete(userID string) error
}

// Outcome is the result of an operation whose target may legitimately no
// longer exist. Absence is a result, not an error.
type Outcome string

const (
	// OutcomeDone means the operation was applied.
	OutcomeDone Outcome = "done"
	// OutcomeAlreadyAbsent means the target was already gone, so there
	// was nothing to apply.
	OutcomeAlreadyAbsent Outcome = "already_absent"
)

// PlaylistDescriptor is a provider playlist as returned by playlist
// operations.
type PlaylistDescriptor struct {
	ID          string
	Name        string
	Description string
	Public      bool
	OwnerID     string
	URL         string
	TrackCount  int
	URI         string
}

// PlaylistItem is a single entry in a playlist's track listing.
type PlaylistItem struct {
	URI     string
	AddedAt string
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	Popularity  int             `json:"popularity"`
	URI         string          `json:"uri"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyPlaylistTracks struct {
	Total int `json:"total"`
}

type spotifyPlaylist struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Public       bool                  `json:"public"`
	Owner        spotifyOwner          `json:"owner"`
	Tracks       spotifyPlaylistTracks `json:"tracks"`
	URI          string                `json:"uri"`
	ExternalURLs externalURLs          `json:"external_urls"`
}

func (p *spotifyPlaylist) descriptor() *PlaylistDescriptor {
	return &PlaylistDescriptor{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Public:      p.Public,
		OwnerID:     p.Owner.ID,
		URL:         p.ExternalURLs.Spotify,
		TrackCount:  p.Tracks.Total,
		URI:         p.URI,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

type tokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
