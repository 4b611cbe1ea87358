package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase (0 when unknown up front)
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchCatalog Phase = iota
	MatchTracks
	PersistTracks
	ResolveTracks
	CreatePlaylist
	PushTracks
)

func (p Phase) String() string {
	switch p {
	case FetchCatalog:
		return "fetch_catalog"
	case MatchTracks:
		return "match_tracks"
	case PersistTracks:
		return "persist_tracks"
	case ResolveTracks:
		return "resolve_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case PushTracks:
		return "push_tracks"
	default:
		return ""
	}
}

func fetchCatalogUpdate(page, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCatalog,
		Step:    page,
		Message: fmt.Sprintf("Fetched catalog page %d (%d tracks)...", page, tracks),
	}
}

func persistedUpdate(succeeded, failed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PersistTracks,
		Step:    succeeded + failed,
		Message: fmt.Sprintf("Stored %d tracks (%d failed)...", succeeded, failed),
	}
}

func resolveTracksUpdate(resolved, skipped, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    resolved + skipped,
		Total:   total,
		Message: fmt.Sprintf("Resolved %d of %d tracks (%d without Spotify link)...", resolved, total, skipped),
	}
}

func createPlaylistUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", name, id),
	}
}

func pushTracksUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PushTracks,
		Step:    count,
		Total:   count,
		Message: fmt.Sprintf("Pushed %d tracks to Spotify...", count),
	}
}
