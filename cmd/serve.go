package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/clouder-dj/clouder/internal/server"
	"github.com/clouder-dj/clouder/internal/services"
	"github.com/clouder-dj/clouder/internal/shared"
	"github.com/clouder-dj/clouder/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the curation API server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	engine, err := r.buildEngine(config, s)
	if err != nil {
		return err
	}

	user, err := r.currentUser(s)
	if err != nil {
		return err
	}

	factory := func(ctx context.Context) (server.RemoteClient, error) {
		return r.spotifyClient(config, s)
	}

	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))

	api := server.NewAPIHandler(engine, factory, s.playlists, s.tracks, s.jobs, user.ID(), r.logger)
	api.Register(router)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, config.Server, router, r.logger)
}

// buildEngine wires the sync engine's provider clients and stores.
//
// The Beatport client and app token source are only required for catalog
// syncs; their configuration is validated lazily so playlist commands work
// without Beatport credentials.
func (r *Runner) buildEngine(config *shared.Config, s *stores) (*tasks.Engine, error) {
	var catalog tasks.CatalogSource
	if config.Credentials.Beatport.Token != "" {
		bp, err := services.NewBeatportClient(config.Credentials.Beatport, config.Retry.Timeout(), r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Beatport client: %w", err)
		}
		catalog = bp
	}

	var matcher tasks.TrackMatcher
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		src, err := services.NewAppTokenSource(config.Credentials.Spotify, config.Retry.Timeout(), r.logger, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create app token source: %w", err)
		}
		matcher = src
	}

	return tasks.NewEngine(catalog, matcher, s.tracks, s.playlists, s.jobs, config.Sync, r.logger), nil
}
