package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/services"
	"github.com/clouder-dj/clouder/internal/shared"
	"github.com/clouder-dj/clouder/internal/tasks"
)

// RemoteClient is the slice of the authenticated Spotify client the API
// endpoints use. Satisfied by [services.SpotifyClient].
type RemoteClient interface {
	tasks.PlaylistPusher
	GetPlaylist(ctx context.Context, playlistID string) (*services.PlaylistDescriptor, error)
	GetPlaylistAllItems(ctx context.Context, playlistID string) ([]services.PlaylistItem, error)
	UnfollowPlaylist(ctx context.Context, playlistID string) (services.Outcome, error)
}

// ClientFactory builds a RemoteClient for the configured user. Construction
// fails when no credential is stored, so handlers surface that before making
// any remote call.
type ClientFactory func(ctx context.Context) (RemoteClient, error)

// PlaylistDirectory is the slice of the playlist repository the API uses.
type PlaylistDirectory interface {
	Create(playlist *models.Playlist) error
	Get(id string) (*models.Playlist, error)
	Update(playlist *models.Playlist) error
	Delete(id string) error
	List(criteria map[string]any) ([]*models.Playlist, error)
	SetTracks(playlistID string, trackIDs []string) error
	TrackIDs(playlistID string) ([]string, error)
}

// TrackDirectory resolves imported playlist items to local tracks.
type TrackDirectory interface {
	GetByExternalID(provider models.Provider, externalID string) (*models.Track, error)
}

// JobDirectory exposes sync job history.
type JobDirectory interface {
	Get(id string) (*models.SyncJob, error)
	List(criteria map[string]any) ([]*models.SyncJob, error)
}

// APIHandler serves the curation API: local playlist CRUD, remote playlist
// builds and imports, and catalog sync jobs.
type APIHandler struct {
	engine    *tasks.Engine
	factory   ClientFactory
	playlists PlaylistDirectory
	tracks    TrackDirectory
	jobs      JobDirectory
	userID    string
	logger    *log.Logger
}

// NewAPIHandler creates the API handler for the given user's stores and
// client factory.
func NewAPIHandler(engine *tasks.Engine, factory ClientFactory, playlists PlaylistDirectory, tracks TrackDirectory, jobs JobDirectory, userID string, logger *log.Logger) *APIHandler {
	return &APIHandler{
		engine:    engine,
		factory:   factory,
		playlists: playlists,
		tracks:    tracks,
		jobs:      jobs,
		userID:    userID,
		logger:    logger,
	}
}

// Register wires every API endpoint into the router.
func (h *APIHandler) Register(router Router) {
	router.Handle("GET /v1/playlists", http.HandlerFunc(h.listPlaylists))
	router.Handle("POST /v1/playlists", http.HandlerFunc(h.createPlaylist))
	router.Handle("GET /v1/playlists/{id}", http.HandlerFunc(h.getPlaylist))
	router.Handle("DELETE /v1/playlists/{id}", http.HandlerFunc(h.deletePlaylist))
	router.Handle("POST /v1/playlists/{id}/build", http.HandlerFunc(h.buildPlaylist))
	router.Handle("POST /v1/playlists/{id}/import", http.HandlerFunc(h.importPlaylist))
	router.Handle("POST /v1/sync", http.HandlerFunc(h.startSync))
	router.Handle("GET /v1/jobs", http.HandlerFunc(h.listJobs))
	router.Handle("GET /v1/jobs/{id}", http.HandlerFunc(h.getJob))
}

// statusForError maps the client error taxonomy onto HTTP status codes.
//
// Missing or revoked credentials read as 401 so callers know to re-run the
// authorization flow; provider-side failures read as gateway errors.
func statusForError(err error) int {
	switch {
	case errors.Is(err, shared.ErrTokenRevoked),
		errors.Is(err, shared.ErrUnauthorized),
		errors.Is(err, shared.ErrCredentialNotFound),
		errors.Is(err, shared.ErrMissingCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrRateLimited),
		errors.Is(err, shared.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type playlistResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	SpotifyPlaylistID  string `json:"spotify_playlist_id,omitempty"`
	SpotifyPlaylistURL string `json:"spotify_playlist_url,omitempty"`
	TrackCount         int    `json:"track_count"`
}

func (h *APIHandler) playlistResponse(p *models.Playlist) playlistResponse {
	trackIDs, err := h.playlists.TrackIDs(p.ID())
	if err != nil {
		h.logger.Warn("failed to count playlist tracks", "playlist_id", p.ID(), "error", err)
	}
	return playlistResponse{
		ID:                 p.ID(),
		Name:               p.Name(),
		Description:        p.Description(),
		SpotifyPlaylistID:  p.SpotifyPlaylistID(),
		SpotifyPlaylistURL: p.SpotifyPlaylistURL(),
		TrackCount:         len(trackIDs),
	}
}

func (h *APIHandler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.List(map[string]any{"user_id": h.userID})
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]playlistResponse, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, h.playlistResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		h.writeError(w, shared.ErrInvalidInput)
		return
	}

	playlist := models.NewPlaylist(0, h.userID, req.Name, req.Description)
	if err := h.playlists.Create(playlist); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.playlistResponse(playlist))
}

func (h *APIHandler) getPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.playlists.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.playlistResponse(playlist))
}

// deletePlaylist removes the local playlist and, when it is linked to a
// Spotify playlist, unfollows the remote one. An already-missing remote
// playlist is not an error.
func (h *APIHandler) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.playlists.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	remote := services.OutcomeAlreadyAbsent
	if playlist.SpotifyPlaylistID() != "" {
		client, err := h.factory(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		remote, err = client.UnfollowPlaylist(r.Context(), playlist.SpotifyPlaylistID())
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	if err := h.playlists.Delete(playlist.ID()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"remote": string(remote)})
}

func (h *APIHandler) buildPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, shared.ErrInvalidInput)
			return
		}
	}

	client, err := h.factory(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.engine.PlaylistBuild(r.Context(), nil, client, tasks.PlaylistBuildOpts{
		PlaylistID:  r.PathValue("id"),
		Name:        req.Name,
		Description: req.Description,
		Public:      req.Public,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// importPlaylist pulls a remote Spotify playlist's items into the local
// playlist. Items are matched against the local track cache by Spotify track
// ID; unmatched items are counted and skipped, never invented.
func (h *APIHandler) importPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpotifyPlaylistID string `json:"spotify_playlist_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SpotifyPlaylistID == "" {
		h.writeError(w, shared.ErrInvalidInput)
		return
	}

	playlist, err := h.playlists.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	client, err := h.factory(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	remote, err := client.GetPlaylist(r.Context(), req.SpotifyPlaylistID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items, err := client.GetPlaylistAllItems(r.Context(), req.SpotifyPlaylistID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var trackIDs []string
	skipped := 0
	for _, item := range items {
		track, err := h.tracks.GetByExternalID(models.ProviderSpotify, spotifyIDFromURI(item.URI))
		if err != nil || track == nil {
			skipped++
			continue
		}
		trackIDs = append(trackIDs, track.ID())
	}

	if err := h.playlists.SetTracks(playlist.ID(), trackIDs); err != nil {
		h.writeError(w, err)
		return
	}

	playlist.LinkSpotify(remote.ID, remote.URL)
	if err := h.playlists.Update(playlist); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"imported": len(trackIDs),
		"skipped":  skipped,
		"total":    len(items),
	})
}

// spotifyIDFromURI extracts the bare ID from a "spotify:track:<id>" URI.
func spotifyIDFromURI(uri string) string {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func (h *APIHandler) startSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GenreID          int     `json:"genre_id"`
		PublishDateStart string  `json:"publish_date_start"`
		PublishDateEnd   string  `json:"publish_date_end"`
		Workers          int     `json:"workers"`
		RateLimit        float64 `json:"rate_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GenreID == 0 {
		h.writeError(w, shared.ErrInvalidInput)
		return
	}

	result, err := h.engine.CatalogSync(r.Context(), nil, tasks.CatalogSyncOpts{
		GenreID:          req.GenreID,
		PublishDateStart: req.PublishDateStart,
		PublishDateEnd:   req.PublishDateEnd,
		NumWorkers:       req.Workers,
		RateLimit:        req.RateLimit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type jobResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	GenreID      int    `json:"genre_id,omitempty"`
	WindowStart  string `json:"window_start,omitempty"`
	WindowEnd    string `json:"window_end,omitempty"`
	Total        int    `json:"total"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func jobToResponse(j *models.SyncJob) jobResponse {
	return jobResponse{
		ID:           j.ID(),
		Kind:         string(j.Kind()),
		Status:       string(j.Status()),
		GenreID:      j.GenreID(),
		WindowStart:  j.WindowStart(),
		WindowEnd:    j.WindowEnd(),
		Total:        j.Total(),
		Succeeded:    j.Succeeded(),
		Failed:       j.Failed(),
		ErrorMessage: j.ErrorMessage(),
	}
}

func (h *APIHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if status := r.URL.Query().Get("status"); status != "" {
		criteria["status"] = status
	}

	jobs, err := h.jobs.List(criteria)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobToResponse(job))
}
