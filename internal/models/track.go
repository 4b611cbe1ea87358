package models

import (
	"fmt"
	"time"
)

// Provider identifies an external music service.
type Provider string

const (
	ProviderSpotify  Provider = "spotify"
	ProviderBeatport Provider = "beatport"
)

// Track represents a catalog track cached locally for cross-provider matching.
type Track struct {
	entity
	title  string
	artist string
	isrc   string
}

// NewTrack creates a new [Track] with the given sequence and metadata.
func NewTrack(sequence int, title, artist, isrc string) *Track {
	return &Track{entity: newEntity(sequence), title: title, artist: artist, isrc: isrc}
}

func (t *Track) Title() string  { return t.title }
func (t *Track) Artist() string { return t.artist }
func (t *Track) ISRC() string   { return t.isrc }

// Validate checks that the track carries enough metadata to be matchable.
func (t *Track) Validate() error {
	if t.title == "" {
		return fmt.Errorf("title is required")
	}
	if t.artist == "" {
		return fmt.Errorf("artist is required")
	}
	return nil
}

// ExternalData is a provider cross-link for a track (e.g. its Spotify ID and
// URI, or its Beatport catalog ID).
type ExternalData struct {
	ID         string
	TrackID    string
	Provider   Provider
	ExternalID string
	URI        string
	CreatedAt  time.Time
}

// TrackWithExternalData pairs a track with its provider cross-links.
//
// Returned as an explicit composite from the data access layer so callers
// never mutate a fetched [Track] to attach related records.
type TrackWithExternalData struct {
	Track    *Track
	External []ExternalData
}

// SpotifyURI returns the track's Spotify URI cross-link, if one exists.
func (t TrackWithExternalData) SpotifyURI() (string, bool) {
	for _, ed := range t.External {
		if ed.Provider == ProviderSpotify && ed.URI != "" {
			return ed.URI, true
		}
	}
	return "", false
}
