package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/services"
	"github.com/clouder-dj/clouder/internal/shared"
)

type fakeCatalog struct {
	pages   [][]services.BeatportTrack
	failAt  int // fail after emitting this many pages (0 = never)
	failErr error
}

func (f *fakeCatalog) GetTracks(ctx context.Context, genreID int, start, end string, yield func([]services.BeatportTrack) bool) error {
	for i, page := range f.pages {
		if f.failAt > 0 && i >= f.failAt {
			return f.failErr
		}
		if !yield(page) {
			return nil
		}
	}
	return nil
}

type fakeMatcher struct {
	mu      sync.Mutex
	byISRC  map[string]*services.SpotifyTrack
	err     error
	lookups int
}

func (f *fakeMatcher) SearchTrackByISRC(ctx context.Context, isrc string) (*services.SpotifyTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.byISRC[isrc], nil
}

type memTrackStore struct {
	mu         sync.Mutex
	tracks     map[string]*models.Track
	byISRC     map[string]string
	byExternal map[string]string
	links      map[string][]models.ExternalData
}

func newMemTrackStore() *memTrackStore {
	return &memTrackStore{
		tracks:     map[string]*models.Track{},
		byISRC:     map[string]string{},
		byExternal: map[string]string{},
		links:      map[string][]models.ExternalData{},
	}
}

func (s *memTrackStore) Create(track *models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	track.SetID(shared.GenerateID())
	s.tracks[track.ID()] = track
	if track.ISRC() != "" {
		s.byISRC[track.ISRC()] = track.ID()
	}
	return nil
}

func (s *memTrackStore) GetByISRC(isrc string) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byISRC[isrc]; ok {
		return s.tracks[id], nil
	}
	return nil, nil
}

func (s *memTrackStore) GetByExternalID(provider models.Provider, externalID string) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byExternal[string(provider)+":"+externalID]; ok {
		return s.tracks[id], nil
	}
	return nil, nil
}

func (s *memTrackStore) LinkExternal(trackID string, provider models.Provider, externalID, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(provider) + ":" + externalID
	if _, exists := s.byExternal[key]; exists {
		return nil
	}
	s.byExternal[key] = trackID
	s.links[trackID] = append(s.links[trackID], models.ExternalData{
		TrackID:    trackID,
		Provider:   provider,
		ExternalID: externalID,
		URI:        uri,
	})
	return nil
}

func (s *memTrackStore) GetWithExternalData(id string) (*models.TrackWithExternalData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	track, ok := s.tracks[id]
	if !ok {
		return nil, fmt.Errorf("track not found: %s", id)
	}
	return &models.TrackWithExternalData{Track: track, External: s.links[id]}, nil
}

type memPlaylistStore struct {
	playlist *models.Playlist
	trackIDs []string
	updated  bool
}

func (s *memPlaylistStore) Get(id string) (*models.Playlist, error) {
	if s.playlist == nil || s.playlist.ID() != id {
		return nil, fmt.Errorf("playlist not found: %s", id)
	}
	return s.playlist, nil
}

func (s *memPlaylistStore) Update(playlist *models.Playlist) error {
	s.updated = true
	return nil
}

func (s *memPlaylistStore) TrackIDs(playlistID string) ([]string, error) {
	return s.trackIDs, nil
}

type memJobStore struct {
	mu   sync.Mutex
	jobs []*models.SyncJob
}

func (s *memJobStore) Create(job *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.SetID(shared.GenerateID())
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *memJobStore) Update(job *models.SyncJob) error {
	return nil
}

type fakePusher struct {
	created   *services.PlaylistDescriptor
	createErr error
	pushErr   error
	pushedTo  string
	pushed    []string
}

func (f *fakePusher) CreatePlaylist(ctx context.Context, name string, public bool, description string) (*services.PlaylistDescriptor, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = &services.PlaylistDescriptor{
		ID:   "remote-1",
		Name: name,
		URL:  "https://open.spotify.com/playlist/remote-1",
	}
	return f.created, nil
}

func (f *fakePusher) AddItemsToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushedTo = playlistID
	f.pushed = append(f.pushed, uris...)
	return nil
}

func bpTrack(id int, name, artist, isrc string) services.BeatportTrack {
	return services.BeatportTrack{
		ID:      id,
		Name:    name,
		ISRC:    isrc,
		Artists: []services.BeatportArtist{{ID: id * 10, Name: artist}},
	}
}

func newTestEngine(catalog CatalogSource, matcher TrackMatcher, tracks TrackStore, playlists PlaylistStore, jobs JobStore) *Engine {
	cfg := shared.SyncConfig{RateLimit: 1000, NumWorkers: 3, BatchSize: 50}
	return NewEngine(catalog, matcher, tracks, playlists, jobs, cfg, shared.NewLogger(io.Discard))
}

func TestCatalogSync(t *testing.T) {
	t.Run("Stores Tracks With Cross Links", func(t *testing.T) {
		catalog := &fakeCatalog{pages: [][]services.BeatportTrack{
			{
				bpTrack(1, "Alpha", "Artist A", "AAA111111111"),
				bpTrack(2, "Beta", "Artist B", "BBB222222222"),
			},
			{
				bpTrack(3, "Gamma", "Artist C", ""),
			},
		}}
		matcher := &fakeMatcher{byISRC: map[string]*services.SpotifyTrack{
			"AAA111111111": {ID: "sp1", URI: "spotify:track:sp1"},
		}}
		tracks := newMemTrackStore()
		jobs := &memJobStore{}

		engine := newTestEngine(catalog, matcher, tracks, &memPlaylistStore{}, jobs)
		result, err := engine.CatalogSync(context.Background(), nil, CatalogSyncOpts{
			GenreID:          6,
			PublishDateStart: "2026-08-01",
			PublishDateEnd:   "2026-08-28",
			RateLimit:        1000,
		})
		if err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		if result.Total != 3 || result.Succeeded != 3 || result.Failed != 0 {
			t.Errorf("unexpected counts: %+v", result)
		}
		if result.Matched != 1 {
			t.Errorf("expected 1 spotify match, got %d", result.Matched)
		}
		if len(tracks.tracks) != 3 {
			t.Errorf("expected 3 stored tracks, got %d", len(tracks.tracks))
		}

		// The matched track carries both provider links.
		matched, err := tracks.GetByExternalID(models.ProviderSpotify, "sp1")
		if err != nil || matched == nil {
			t.Fatalf("expected spotify cross-link: %v", err)
		}
		composite, _ := tracks.GetWithExternalData(matched.ID())
		if uri, ok := composite.SpotifyURI(); !ok || uri != "spotify:track:sp1" {
			t.Errorf("expected spotify URI on composite, got %q", uri)
		}

		// Tracks without an ISRC never hit the matcher.
		if matcher.lookups != 2 {
			t.Errorf("expected 2 matcher lookups, got %d", matcher.lookups)
		}

		if len(jobs.jobs) != 1 {
			t.Fatalf("expected one job row, got %d", len(jobs.jobs))
		}
		job := jobs.jobs[0]
		if job.Status() != models.JobCompleted {
			t.Errorf("expected completed job, got %s", job.Status())
		}
		if job.Total() != 3 || job.Succeeded() != 3 {
			t.Errorf("job counts not recorded: total=%d succeeded=%d", job.Total(), job.Succeeded())
		}
	})

	t.Run("Page Failure Fails Job But Keeps Stored Tracks", func(t *testing.T) {
		catalog := &fakeCatalog{
			pages: [][]services.BeatportTrack{
				{bpTrack(1, "Alpha", "Artist A", "")},
				{bpTrack(2, "Beta", "Artist B", "")},
			},
			failAt:  1,
			failErr: fmt.Errorf("%w: status 502", shared.ErrUpstream),
		}
		tracks := newMemTrackStore()
		jobs := &memJobStore{}

		engine := newTestEngine(catalog, &fakeMatcher{}, tracks, &memPlaylistStore{}, jobs)
		result, err := engine.CatalogSync(context.Background(), nil, CatalogSyncOpts{GenreID: 6})
		if !errors.Is(err, shared.ErrUpstream) {
			t.Fatalf("expected upstream error, got %v", err)
		}

		if result.Succeeded != 1 {
			t.Errorf("first page's track should be stored, got %d", result.Succeeded)
		}
		if jobs.jobs[0].Status() != models.JobFailed {
			t.Errorf("expected failed job, got %s", jobs.jobs[0].Status())
		}
		if jobs.jobs[0].ErrorMessage() == "" {
			t.Error("expected job error message to be recorded")
		}
	})

	t.Run("Match Failure Degrades To Unmatched", func(t *testing.T) {
		catalog := &fakeCatalog{pages: [][]services.BeatportTrack{
			{bpTrack(1, "Alpha", "Artist A", "AAA111111111")},
		}}
		matcher := &fakeMatcher{err: fmt.Errorf("%w: search down", shared.ErrUpstream)}
		tracks := newMemTrackStore()

		engine := newTestEngine(catalog, matcher, tracks, &memPlaylistStore{}, &memJobStore{})
		result, err := engine.CatalogSync(context.Background(), nil, CatalogSyncOpts{GenreID: 6})
		if err != nil {
			t.Fatalf("matcher failure must not fail the sync: %v", err)
		}
		if result.Succeeded != 1 || result.Matched != 0 {
			t.Errorf("expected stored but unmatched track, got %+v", result)
		}
	})

	t.Run("Duplicate Catalog Entries Deduplicate", func(t *testing.T) {
		catalog := &fakeCatalog{pages: [][]services.BeatportTrack{
			{bpTrack(1, "Alpha", "Artist A", "AAA111111111")},
			{bpTrack(1, "Alpha", "Artist A", "AAA111111111")},
		}}
		tracks := newMemTrackStore()

		engine := newTestEngine(catalog, &fakeMatcher{}, tracks, &memPlaylistStore{}, &memJobStore{})
		if _, err := engine.CatalogSync(context.Background(), nil, CatalogSyncOpts{GenreID: 6}); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(tracks.tracks) != 1 {
			t.Errorf("expected the repeated catalog entry to dedupe, got %d tracks", len(tracks.tracks))
		}
	})

	t.Run("Repeated Title Without ISRC Deduplicates", func(t *testing.T) {
		catalog := &fakeCatalog{pages: [][]services.BeatportTrack{
			{bpTrack(1, "Alpha", "Artist A", "")},
			{bpTrack(2, "  ALPHA ", "artist a", "")},
		}}
		tracks := newMemTrackStore()

		engine := newTestEngine(catalog, &fakeMatcher{}, tracks, &memPlaylistStore{}, &memJobStore{})
		if _, err := engine.CatalogSync(context.Background(), nil, CatalogSyncOpts{GenreID: 6, NumWorkers: 1}); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(tracks.tracks) != 1 {
			t.Errorf("expected normalized title/artist to dedupe, got %d tracks", len(tracks.tracks))
		}
	})
}

func TestPlaylistBuild(t *testing.T) {
	setup := func(t *testing.T) (*memTrackStore, *memPlaylistStore, []string) {
		t.Helper()

		tracks := newMemTrackStore()
		var ids []string
		for i, isrc := range []string{"AAA111111111", "BBB222222222", "CCC333333333"} {
			track := models.NewTrack(i+1, fmt.Sprintf("Track %d", i+1), "Artist", isrc)
			if err := tracks.Create(track); err != nil {
				t.Fatalf("failed to create track: %v", err)
			}
			ids = append(ids, track.ID())
		}

		// First two tracks carry Spotify links; the third does not.
		_ = tracks.LinkExternal(ids[0], models.ProviderSpotify, "sp1", "spotify:track:sp1")
		_ = tracks.LinkExternal(ids[1], models.ProviderSpotify, "sp2", "spotify:track:sp2")
		_ = tracks.LinkExternal(ids[2], models.ProviderBeatport, "333", "")

		playlist := models.NewPlaylist(1, "user-1", "TECHNO :: AUG", "august picks")
		playlist.SetID("pl-local")
		playlists := &memPlaylistStore{playlist: playlist, trackIDs: ids}
		return tracks, playlists, ids
	}

	t.Run("Resolves And Pushes Linked Tracks", func(t *testing.T) {
		tracks, playlists, _ := setup(t)
		pusher := &fakePusher{}

		engine := newTestEngine(&fakeCatalog{}, &fakeMatcher{}, tracks, playlists, &memJobStore{})
		result, err := engine.PlaylistBuild(context.Background(), nil, pusher, PlaylistBuildOpts{PlaylistID: "pl-local"})
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}

		if result.Resolved != 2 || result.Skipped != 1 {
			t.Errorf("expected 2 resolved / 1 skipped, got %+v", result)
		}
		if pusher.created == nil || pusher.created.Name != "TECHNO :: AUG" {
			t.Errorf("expected playlist created with local name, got %+v", pusher.created)
		}
		if len(pusher.pushed) != 2 || pusher.pushed[0] != "spotify:track:sp1" {
			t.Errorf("expected linked URIs pushed in order, got %v", pusher.pushed)
		}
		if result.SpotifyPlaylistID != "remote-1" {
			t.Errorf("expected remote ID in result, got %q", result.SpotifyPlaylistID)
		}
		if !playlists.updated {
			t.Error("local playlist should be updated with the remote link")
		}
		if playlists.playlist.SpotifyPlaylistID() != "remote-1" {
			t.Errorf("expected local playlist linked, got %q", playlists.playlist.SpotifyPlaylistID())
		}
	})

	t.Run("No Resolvable Tracks", func(t *testing.T) {
		tracks := newMemTrackStore()
		track := models.NewTrack(1, "Unlinked", "Artist", "")
		_ = tracks.Create(track)

		playlist := models.NewPlaylist(1, "user-1", "empty-links", "")
		playlist.SetID("pl-local")
		playlists := &memPlaylistStore{playlist: playlist, trackIDs: []string{track.ID()}}

		engine := newTestEngine(&fakeCatalog{}, &fakeMatcher{}, tracks, playlists, &memJobStore{})
		_, err := engine.PlaylistBuild(context.Background(), nil, &fakePusher{}, PlaylistBuildOpts{PlaylistID: "pl-local"})
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Empty Playlist", func(t *testing.T) {
		playlist := models.NewPlaylist(1, "user-1", "empty", "")
		playlist.SetID("pl-local")
		playlists := &memPlaylistStore{playlist: playlist}

		engine := newTestEngine(&fakeCatalog{}, &fakeMatcher{}, newMemTrackStore(), playlists, &memJobStore{})
		_, err := engine.PlaylistBuild(context.Background(), nil, &fakePusher{}, PlaylistBuildOpts{PlaylistID: "pl-local"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Push Failure Propagates", func(t *testing.T) {
		tracks, playlists, _ := setup(t)
		pusher := &fakePusher{pushErr: fmt.Errorf("%w: forbidden", shared.ErrForbidden)}

		engine := newTestEngine(&fakeCatalog{}, &fakeMatcher{}, tracks, playlists, &memJobStore{})
		_, err := engine.PlaylistBuild(context.Background(), nil, pusher, PlaylistBuildOpts{PlaylistID: "pl-local"})
		if !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected push error to propagate, got %v", err)
		}
		if playlists.updated {
			t.Error("failed build must not link the local playlist")
		}
	})
}

func TestPhaseString(t *testing.T) {
	phases := map[Phase]string{
		FetchCatalog:   "fetch_catalog",
		MatchTracks:    "match_tracks",
		PersistTracks:  "persist_tracks",
		ResolveTracks:  "resolve_tracks",
		CreatePlaylist: "create_playlist",
		PushTracks:     "push_tracks",
	}
	for phase, want := range phases {
		if got := phase.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
	if got := Phase(99).String(); got != "" {
		t.Errorf("unknown phase should be empty, got %q", got)
	}
}

func TestProgressUpdates(t *testing.T) {
	t.Run("Send Never Blocks", func(t *testing.T) {
		engine := newTestEngine(&fakeCatalog{}, &fakeMatcher{}, newMemTrackStore(), &memPlaylistStore{}, &memJobStore{})

		full := make(chan ProgressUpdate) // unbuffered, no reader
		engine.sendProgress(full, fetchCatalogUpdate(1, 10))
		engine.sendProgress(nil, fetchCatalogUpdate(1, 10))
	})

	t.Run("Messages Carry Counts", func(t *testing.T) {
		update := resolveTracksUpdate(2, 1, 3)
		if !strings.Contains(update.Message, "2 of 3") {
			t.Errorf("unexpected message %q", update.Message)
		}
		if update.Phase != ResolveTracks {
			t.Errorf("unexpected phase %v", update.Phase)
		}
	})
}
