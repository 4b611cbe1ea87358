package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig       = fmt.Errorf("configuration not found")
	ErrInvalidConfig       = fmt.Errorf("invalid configuration")
	ErrMissingCredentials  = fmt.Errorf("missing credentials")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrMissingRefreshToken = fmt.Errorf("refresh token missing on initial authorization")

	// Authentication errors
	ErrUnauthorized  = fmt.Errorf("unauthorized")
	ErrTokenRevoked  = fmt.Errorf("refresh token revoked, re-authorization required")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")
	ErrAuthFailed    = fmt.Errorf("authentication failed")

	// Remote API errors
	ErrForbidden   = fmt.Errorf("access forbidden")
	ErrNotFound    = fmt.Errorf("resource not found")
	ErrRateLimited = fmt.Errorf("rate limited")
	ErrUpstream    = fmt.Errorf("upstream server error")
	ErrNetwork     = fmt.Errorf("network error")
	ErrAPIRequest  = fmt.Errorf("API request failed")

	// Storage errors
	ErrCredentialNotFound = fmt.Errorf("credential not found")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
