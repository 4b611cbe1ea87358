// package tasks implements the long-running curation operations: catalog
// ingestion from Beatport and remote playlist builds on Spotify.
//
// Operations emit progress updates via channels for non-blocking status
// reporting to the CLI layer.
package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/services"
	"github.com/clouder-dj/clouder/internal/shared"
)

// CatalogSource streams pages of catalog tracks. Satisfied by
// [services.BeatportClient].
type CatalogSource interface {
	GetTracks(ctx context.Context, genreID int, publishDateStart, publishDateEnd string, yield func(tracks []services.BeatportTrack) bool) error
}

// TrackMatcher resolves catalog tracks to Spotify tracks. Satisfied by
// [services.AppTokenSource].
type TrackMatcher interface {
	SearchTrackByISRC(ctx context.Context, isrc string) (*services.SpotifyTrack, error)
}

// PlaylistPusher creates and fills remote playlists. Satisfied by
// [services.SpotifyClient].
type PlaylistPusher interface {
	CreatePlaylist(ctx context.Context, name string, public bool, description string) (*services.PlaylistDescriptor, error)
	AddItemsToPlaylist(ctx context.Context, playlistID string, trackURIs []string) error
}

// TrackStore is the slice of the track repository the engine writes
// through.
type TrackStore interface {
	Create(track *models.Track) error
	GetByISRC(isrc string) (*models.Track, error)
	GetByExternalID(provider models.Provider, externalID string) (*models.Track, error)
	LinkExternal(trackID string, provider models.Provider, externalID, uri string) error
	GetWithExternalData(id string) (*models.TrackWithExternalData, error)
}

// PlaylistStore is the slice of the playlist repository the engine uses.
type PlaylistStore interface {
	Get(id string) (*models.Playlist, error)
	Update(playlist *models.Playlist) error
	TrackIDs(playlistID string) ([]string, error)
}

// JobStore records ingestion job history.
type JobStore interface {
	Create(job *models.SyncJob) error
	Update(job *models.SyncJob) error
}

// Engine orchestrates catalog syncs and playlist builds over the provider
// clients and local repositories.
type Engine struct {
	catalog   CatalogSource
	matcher   TrackMatcher
	tracks    TrackStore
	playlists PlaylistStore
	jobs      JobStore
	cfg       shared.SyncConfig
	logger    *log.Logger
}

// NewEngine creates an Engine with the provided collaborators.
func NewEngine(catalog CatalogSource, matcher TrackMatcher, tracks TrackStore, playlists PlaylistStore, jobs JobStore, cfg shared.SyncConfig, logger *log.Logger) *Engine {
	return &Engine{
		catalog:   catalog,
		matcher:   matcher,
		tracks:    tracks,
		playlists: playlists,
		jobs:      jobs,
		cfg:       cfg,
		logger:    logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
