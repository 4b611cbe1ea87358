package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/server"
	"github.com/clouder-dj/clouder/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const spotifyAuthURL = "https://accounts.spotify.com/authorize"

var spotifyScopes = []string{
	"playlist-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-email",
	"user-read-private",
}

// oauthConfig builds the authorization-code flow configuration. The token
// URL comes from config so tests can point the exchange at a local server.
func oauthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: cfg.TokenURL,
		},
	}
}

type spotifyProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// fetchProfile retrieves the authorizing user's Spotify profile with the
// freshly exchanged token.
func fetchProfile(ctx context.Context, config *oauth2.Config, token *oauth2.Token, apiURL string) (*spotifyProfile, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get(apiURL + "/me")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: profile request returned %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var profile spotifyProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: profile has no id", shared.ErrAPIRequest)
	}
	return &profile, nil
}

// AuthLogin performs the OAuth2 authorization flow for Spotify.
//
// Starts a local HTTP server, opens a browser for user authorization,
// exchanges the auth code for tokens, and stores the encrypted credential.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrInvalidArgument)
	}

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	oauthCfg := oauthConfig(config.Credentials.Spotify)
	state := shared.GenerateID()

	persist := func(ctx context.Context, token *oauth2.Token) error {
		profile, err := fetchProfile(ctx, oauthCfg, token, config.Credentials.Spotify.APIURL)
		if err != nil {
			return err
		}

		user, err := r.upsertUser(s, profile)
		if err != nil {
			return err
		}

		scope, _ := token.Extra("scope").(string)
		_, err = s.credentials.CreateOrUpdate(user.ID(), models.TokenPayload{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresIn:    int(time.Until(token.Expiry).Seconds()),
			Scope:        scope,
		})
		return err
	}

	handler := server.NewOAuthHandler(oauthCfg, state, persist)
	router := server.NewBasicRouter()
	router.Handler(handler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	authURL := oauthCfg.AuthCodeURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-handler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("authorization timed out after 2 minutes")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Credential stored (encrypted) in %s\n\n", config.Database.Path)
	r.writePlain("You can now use: clouder sync --genre <id>\n")

	return nil
}

// upsertUser finds the local account for a Spotify profile or creates it.
func (r *Runner) upsertUser(s *stores, profile *spotifyProfile) (*models.User, error) {
	email := profile.Email
	if email == "" {
		email = profile.ID + "@users.spotify.com"
	}
	name := profile.DisplayName
	if name == "" {
		name = profile.ID
	}

	users, err := s.users.List(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for _, user := range users {
		if user.SpotifyUserID() == profile.ID {
			return user, nil
		}
	}

	user := models.NewUser(0, email, name)
	user.SetSpotifyUserID(profile.ID)
	if err := s.users.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// AuthStatus reports on the stored credential without decrypting it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := r.currentUser(s)
	if err != nil {
		r.writePlain("✗ Not authorized. Run 'clouder auth login'.\n")
		return nil
	}

	cred, err := s.credentials.GetByUserID(user.ID())
	if err != nil {
		return err
	}
	if cred == nil {
		r.writePlain("✗ No credential stored for %s. Run 'clouder auth login'.\n", user.Name())
		return nil
	}

	r.writePlain("✓ Authorized as %s (Spotify: %s)\n", user.Name(), user.SpotifyUserID())
	r.writePlain("  Scope: %s\n", cred.Scope())
	if cred.ExpiresWithin(0) {
		r.writePlain("  Access token: expired at %s (will refresh on next use)\n", cred.ExpiresAt().Format(time.RFC3339))
	} else {
		r.writePlain("  Access token: valid until %s\n", cred.ExpiresAt().Format(time.RFC3339))
	}
	return nil
}
