package models

import (
	"fmt"
	"time"
)

// TokenPayload carries token material as returned by the provider's token
// endpoint. RefreshToken is optional everywhere except on the very first
// authorization for a user.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// Credential holds one user's OAuth token material, encrypted at rest.
//
// The model only ever carries ciphertext; decryption happens inside a live
// client session, never in the persistence layer.
type Credential struct {
	entity
	userID                string
	encryptedAccessToken  string
	encryptedRefreshToken string
	expiresAt             time.Time
	scope                 string
}

// NewCredential creates a new [Credential] for the given user with already-encrypted tokens.
func NewCredential(sequence int, userID, encryptedAccess, encryptedRefresh string, expiresAt time.Time, scope string) *Credential {
	return &Credential{
		entity:                newEntity(sequence),
		userID:                userID,
		encryptedAccessToken:  encryptedAccess,
		encryptedRefreshToken: encryptedRefresh,
		expiresAt:             expiresAt,
		scope:                 scope,
	}
}

func (c *Credential) UserID() string                { return c.userID }
func (c *Credential) EncryptedAccessToken() string  { return c.encryptedAccessToken }
func (c *Credential) EncryptedRefreshToken() string { return c.encryptedRefreshToken }
func (c *Credential) ExpiresAt() time.Time          { return c.expiresAt }
func (c *Credential) Scope() string                 { return c.scope }

func (c *Credential) SetEncryptedAccessToken(v string)  { c.encryptedAccessToken = v }
func (c *Credential) SetEncryptedRefreshToken(v string) { c.encryptedRefreshToken = v }
func (c *Credential) SetExpiresAt(t time.Time)          { c.expiresAt = t }
func (c *Credential) SetScope(s string)                 { c.scope = s }

// ExpiresWithin reports whether the access token is expired or will expire
// within the given buffer. A zero expiry is treated as already expired.
func (c *Credential) ExpiresWithin(buffer time.Duration) bool {
	if c.expiresAt.IsZero() {
		return true
	}
	return !time.Now().Before(c.expiresAt.Add(-buffer))
}

// Validate checks that the credential is complete.
func (c *Credential) Validate() error {
	if c.userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if c.encryptedAccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	if c.encryptedRefreshToken == "" {
		return fmt.Errorf("refresh token is required")
	}
	return nil
}
