// package formatter provides functions to export playlist data to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/clouder-dj/clouder/internal/models"
)

// PlaylistExport bundles a curation playlist with its resolved tracks.
type PlaylistExport struct {
	Playlist *models.Playlist
	Tracks   []*models.TrackWithExternalData
}

// externalID returns a track's identifier for the given provider, or "".
func externalID(track *models.TrackWithExternalData, provider models.Provider) string {
	for _, ed := range track.External {
		if ed.Provider == provider {
			return ed.ExternalID
		}
	}
	return ""
}

// ExportToCSV converts a PlaylistExport to CSV format with columns: ID, Title, Artist, ISRC, Spotify URI, Beatport ID
func ExportToCSV(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "ISRC", "Spotify URI", "Beatport ID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		uri, _ := track.SpotifyURI()
		record := []string{
			track.Track.ID(),
			track.Track.Title(),
			track.Track.Artist(),
			track.Track.ISRC(),
			uri,
			externalID(track, models.ProviderBeatport),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown format
func ExportToMarkdown(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Playlist.Name()))

	if export.Playlist.Description() != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", export.Playlist.Description()))
	}

	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(export.Tracks)))
	if export.Playlist.SpotifyPlaylistURL() != "" {
		buf.WriteString(fmt.Sprintf("**Spotify**: %s\n", export.Playlist.SpotifyPlaylistURL()))
	}
	buf.WriteString("\n## Tracks\n\n")

	for i, track := range export.Tracks {
		isrcPart := ""
		if track.Track.ISRC() != "" {
			isrcPart = fmt.Sprintf(" [%s]", track.Track.ISRC())
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s\n", i+1, track.Track.Artist(), track.Track.Title(), isrcPart))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", export.Playlist.Name()))
	if export.Playlist.Description() != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", export.Playlist.Description()))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(export.Tracks)))

	for i, track := range export.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.Track.Artist(), track.Track.Title()))
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(playlist *models.Playlist) ([]byte, error) {
	meta := struct {
		ID                 string `json:"id"`
		Name               string `json:"name"`
		Description        string `json:"description,omitempty"`
		SpotifyPlaylistID  string `json:"spotify_playlist_id,omitempty"`
		SpotifyPlaylistURL string `json:"spotify_playlist_url,omitempty"`
	}{
		ID:                 playlist.ID(),
		Name:               playlist.Name(),
		Description:        playlist.Description(),
		SpotifyPlaylistID:  playlist.SpotifyPlaylistID(),
		SpotifyPlaylistURL: playlist.SpotifyPlaylistURL(),
	}
	return json.MarshalIndent(meta, "", "  ")
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(export *PlaylistExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Playlist.ID()
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export.Playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a playlist to a README.md in a dedicated directory.
//
// Directory name defaults to the playlist ID.
func WriteMarkdownExport(export *PlaylistExport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = export.Playlist.ID()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {playlist ID}_tracks.txt as the filename.
func WriteTextExport(export *PlaylistExport, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_tracks.txt", export.Playlist.ID())
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}
