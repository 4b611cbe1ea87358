package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clouder-dj/clouder/internal/formatter"
	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/services"
	"github.com/clouder-dj/clouder/internal/shared"
	"github.com/clouder-dj/clouder/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsList lists local curation playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	playlists, err := s.playlists.List(nil)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	if useJSON {
		type entry struct {
			ID                 string `json:"id"`
			Name               string `json:"name"`
			Description        string `json:"description,omitempty"`
			SpotifyPlaylistID  string `json:"spotify_playlist_id,omitempty"`
			SpotifyPlaylistURL string `json:"spotify_playlist_url,omitempty"`
			TrackCount         int    `json:"track_count"`
		}
		entries := make([]entry, 0, len(playlists))
		for _, p := range playlists {
			trackIDs, _ := s.playlists.TrackIDs(p.ID())
			entries = append(entries, entry{
				ID:                 p.ID(),
				Name:               p.Name(),
				Description:        p.Description(),
				SpotifyPlaylistID:  p.SpotifyPlaylistID(),
				SpotifyPlaylistURL: p.SpotifyPlaylistURL(),
				TrackCount:         len(trackIDs),
			})
		}
		return r.writeJSON(entries, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		trackIDs, _ := s.playlists.TrackIDs(p.ID())
		r.writePlain("%d. %s\n", i+1, p.Name())
		if p.Description() != "" {
			r.writePlain("   Description: %s\n", p.Description())
		}
		r.writePlain("   ID: %s\n", p.ID())
		r.writePlain("   Tracks: %d\n", len(trackIDs))
		if p.SpotifyPlaylistID() != "" {
			r.writePlain("   Spotify: %s\n", p.SpotifyPlaylistURL())
		}
		r.writePlain("\n")
	}

	return nil
}

// PlaylistsCreate creates a local curation playlist.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := r.currentUser(s)
	if err != nil {
		return err
	}

	playlist := models.NewPlaylist(0, user.ID(), cmd.String("name"), cmd.String("description"))
	if err := s.playlists.Create(playlist); err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}

	r.writePlain("✓ Created playlist %q\n", playlist.Name())
	r.writePlain("  ID: %s\n", playlist.ID())
	return nil
}

// PlaylistsBuild creates a Spotify playlist from a local playlist's tracks.
func (r *Runner) PlaylistsBuild(ctx context.Context, cmd *cli.Command) error {
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

	client, err := r.spotifyClient(config, s)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("  [%s] %s\n", update.Phase, update.Message)
		}
	}()

	result, err := engine.PlaylistBuild(ctx, progress, client, tasks.PlaylistBuildOpts{
		PlaylistID:  cmd.String("id"),
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		Public:      cmd.Bool("public"),
	})
	close(progress)
	<-done

	if err != nil {
		if errors.Is(err, shared.ErrTokenRevoked) {
			r.writePlain("✗ Refresh token revoked. Run 'clouder auth login' to reauthorize.\n")
		}
		return fmt.Errorf("build failed: %w", err)
	}

	r.writePlainln("✓ Playlist built")
	r.writePlain("  Spotify: %s\n", result.SpotifyPlaylistURL)
	r.writePlain("  Tracks: %d pushed, %d skipped (no Spotify link)\n", result.Resolved, result.Skipped)
	return nil
}

// PlaylistsImport pulls a Spotify playlist's items into a local playlist,
// matching them against the local track cache.
func (r *Runner) PlaylistsImport(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	playlist, err := s.playlists.Get(cmd.String("id"))
	if err != nil {
		return err
	}

	client, err := r.spotifyClient(config, s)
	if err != nil {
		return err
	}

	spotifyID := cmd.String("spotify-id")
	remote, err := client.GetPlaylist(ctx, spotifyID)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}

	items, err := client.GetPlaylistAllItems(ctx, spotifyID)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist items: %w", err)
	}

	var trackIDs []string
	skipped := 0
	for _, item := range items {
		id := item.URI
		if i := strings.LastIndex(id, ":"); i >= 0 {
			id = id[i+1:]
		}
		track, err := s.tracks.GetByExternalID(models.ProviderSpotify, id)
		if err != nil || track == nil {
			skipped++
			continue
		}
		trackIDs = append(trackIDs, track.ID())
	}

	if err := s.playlists.SetTracks(playlist.ID(), trackIDs); err != nil {
		return fmt.Errorf("failed to set playlist tracks: %w", err)
	}

	playlist.LinkSpotify(remote.ID, remote.URL)
	if err := s.playlists.Update(playlist); err != nil {
		return fmt.Errorf("failed to link playlist: %w", err)
	}

	r.writePlain("✓ Imported %q into %q\n", remote.Name, playlist.Name())
	r.writePlain("  Tracks: %d imported, %d skipped (not in local cache)\n", len(trackIDs), skipped)
	return nil
}

// PlaylistsExport writes a local playlist and its tracks to disk in the
// requested format.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	playlist, err := s.playlists.Get(cmd.String("id"))
	if err != nil {
		return err
	}

	trackIDs, err := s.playlists.TrackIDs(playlist.ID())
	if err != nil {
		return fmt.Errorf("failed to load playlist tracks: %w", err)
	}

	export := &formatter.PlaylistExport{Playlist: playlist}
	for _, trackID := range trackIDs {
		composite, err := s.tracks.GetWithExternalData(trackID)
		if err != nil {
			r.logger.Warn("skipping unresolvable track", "track_id", trackID, "error", err)
			continue
		}
		export.Tracks = append(export.Tracks, composite)
	}

	output := cmd.String("output")
	switch format := cmd.String("format"); format {
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d tracks\n", len(export.Tracks))
		r.writePlain("  Tracks: %s\n", result.TracksFile)
		r.writePlain("  Metadata: %s\n", result.MetadataFile)
	case "md":
		mdFile, err := formatter.WriteMarkdownExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d tracks to %s\n", len(export.Tracks), mdFile)
	case "txt":
		textFile, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d tracks to %s\n", len(export.Tracks), textFile)
	default:
		return fmt.Errorf("%w: unknown format %q (expected csv, md, or txt)", shared.ErrInvalidFlag, format)
	}

	return nil
}

// PlaylistsDelete deletes a local playlist and unfollows its linked Spotify
// playlist when one exists.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	playlist, err := s.playlists.Get(cmd.String("id"))
	if err != nil {
		return err
	}

	if playlist.SpotifyPlaylistID() != "" {
		client, err := r.spotifyClient(config, s)
		if err != nil {
			return err
		}

		outcome, err := client.UnfollowPlaylist(ctx, playlist.SpotifyPlaylistID())
		if err != nil {
			return fmt.Errorf("failed to unfollow Spotify playlist: %w", err)
		}
		if outcome == services.OutcomeAlreadyAbsent {
			r.writePlain("  Spotify playlist was already gone\n")
		} else {
			r.writePlain("  Unfollowed Spotify playlist %s\n", playlist.SpotifyPlaylistID())
		}
	}

	if err := s.playlists.Delete(playlist.ID()); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	r.writePlain("✓ Deleted playlist %q\n", playlist.Name())
	return nil
}
