package models

import "fmt"

// Playlist represents a curation playlist owned by a user, optionally linked
// to a playlist created on Spotify.
type Playlist struct {
	entity
	userID             string
	name               string
	description        string
	spotifyPlaylistID  string
	spotifyPlaylistURL string
}

// NewPlaylist creates a new [Playlist] for the given user.
func NewPlaylist(sequence int, userID, name, description string) *Playlist {
	return &Playlist{entity: newEntity(sequence), userID: userID, name: name, description: description}
}

func (p *Playlist) UserID() string      { return p.userID }
func (p *Playlist) Name() string        { return p.name }
func (p *Playlist) Description() string { return p.description }

func (p *Playlist) SetName(name string)        { p.name = name }
func (p *Playlist) SetDescription(desc string) { p.description = desc }

// SpotifyPlaylistID returns the linked remote playlist ID, empty until the
// playlist has been pushed to Spotify.
func (p *Playlist) SpotifyPlaylistID() string  { return p.spotifyPlaylistID }
func (p *Playlist) SpotifyPlaylistURL() string { return p.spotifyPlaylistURL }

// LinkSpotify records the remote playlist this local playlist maps to.
func (p *Playlist) LinkSpotify(id, url string) {
	p.spotifyPlaylistID = id
	p.spotifyPlaylistURL = url
}

// Validate checks that the playlist has an owner and a name.
func (p *Playlist) Validate() error {
	if p.userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if p.name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
