package models

import (
	"fmt"
	"strings"
)

// User represents an account that owns credentials and curation playlists.
type User struct {
	entity
	email         string
	name          string
	spotifyUserID string
}

// NewUser creates a new [User] with the given sequence, email, and display name.
func NewUser(sequence int, email, name string) *User {
	return &User{entity: newEntity(sequence), email: email, name: name}
}

func (u *User) Email() string { return u.email }
func (u *User) Name() string  { return u.name }

// SpotifyUserID returns the provider-side user identifier, set after the first authorization.
func (u *User) SpotifyUserID() string      { return u.spotifyUserID }
func (u *User) SetSpotifyUserID(id string) { u.spotifyUserID = id }

// Validate checks that the user has a plausible email and a name.
func (u *User) Validate() error {
	if u.email == "" || !strings.Contains(u.email, "@") {
		return fmt.Errorf("invalid email: %q", u.email)
	}
	if u.name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
