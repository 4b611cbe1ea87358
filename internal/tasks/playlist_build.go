package tasks

import (
	"context"
	"fmt"

	"github.com/clouder-dj/clouder/internal/shared"
)

// PlaylistBuildOpts configures a remote playlist build.
type PlaylistBuildOpts struct {
	PlaylistID  string // Local playlist to build
	Name        string // Remote name override (defaults to the local name)
	Description string
	Public      bool
}

// PlaylistBuildResult summarizes a build run.
type PlaylistBuildResult struct {
	SpotifyPlaylistID  string
	SpotifyPlaylistURL string
	Resolved           int // Tracks pushed to the remote playlist
	Skipped            int // Tracks without a Spotify link
}

// PlaylistBuild creates a Spotify playlist from a local curation playlist.
// Track URIs are resolved through each track's external data; tracks with
// no Spotify link are skipped and counted. The local playlist row is
// updated with the remote ID and URL on success.
func (e *Engine) PlaylistBuild(ctx context.Context, progress chan<- ProgressUpdate, pusher PlaylistPusher, opts PlaylistBuildOpts) (*PlaylistBuildResult, error) {
	playlist, err := e.playlists.Get(opts.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}

	trackIDs, err := e.playlists.TrackIDs(opts.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist tracks: %w", err)
	}
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: playlist has no tracks", shared.ErrInvalidInput)
	}

	result := &PlaylistBuildResult{}
	uris := make([]string, 0, len(trackIDs))
	for _, trackID := range trackIDs {
		composite, err := e.tracks.GetWithExternalData(trackID)
		if err != nil {
			return nil, fmt.Errorf("failed to load track %s: %w", trackID, err)
		}

		if uri, ok := composite.SpotifyURI(); ok {
			uris = append(uris, uri)
			result.Resolved++
		} else {
			e.logger.Warn("track has no Spotify link, skipping",
				"track_id", trackID,
				"title", composite.Track.Title())
			result.Skipped++
		}
		e.sendProgress(progress, resolveTracksUpdate(result.Resolved, result.Skipped, len(trackIDs)))
	}

	if len(uris) == 0 {
		return nil, fmt.Errorf("%w: no tracks resolved to Spotify URIs", shared.ErrTrackNotFound)
	}

	name := opts.Name
	if name == "" {
		name = playlist.Name()
	}
	description := opts.Description
	if description == "" {
		description = playlist.Description()
	}

	remote, err := pusher.CreatePlaylist(ctx, name, opts.Public, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote playlist: %w", err)
	}
	e.sendProgress(progress, createPlaylistUpdate(remote.Name, remote.ID))

	if err := pusher.AddItemsToPlaylist(ctx, remote.ID, uris); err != nil {
		return nil, fmt.Errorf("failed to push tracks: %w", err)
	}
	e.sendProgress(progress, pushTracksUpdate(len(uris)))

	playlist.LinkSpotify(remote.ID, remote.URL)
	if err := e.playlists.Update(playlist); err != nil {
		e.logger.Error("remote playlist created but local link update failed",
			"playlist_id", playlist.ID(),
			"spotify_playlist_id", remote.ID,
			"error", err)
		return nil, fmt.Errorf("failed to link playlist: %w", err)
	}

	result.SpotifyPlaylistID = remote.ID
	result.SpotifyPlaylistURL = remote.URL

	e.logger.Info("playlist built",
		"playlist_id", playlist.ID(),
		"spotify_playlist_id", remote.ID,
		"resolved", result.Resolved,
		"skipped", result.Skipped)
	return result, nil
}
