package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/shared"
)

// TrackRepository implements [models.Repository] for the local track cache.
//
// Tracks are cached during catalog sync to enable cross-provider matching via
// ISRC, with provider identifiers stored as [models.ExternalData] cross-links.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new [TrackRepository] with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new track into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.Track) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)
	track.SetSequence(sequence)

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO tracks (id, sequence, title, artist, isrc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var isrc any = track.ISRC()
	if isrc == "" {
		isrc = nil
	}

	_, err = r.db.Exec(query, id, sequence, track.Title(), track.Artist(), isrc, track.CreatedAt(), track.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := `
		SELECT id, sequence, title, artist, isrc, created_at, updated_at, deleted_at
		FROM tracks
		WHERE id = ? AND deleted_at IS NULL
	`

	track, err := scanTrack(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	return track, nil
}

// GetByISRC retrieves a track by its ISRC. Returns (nil, nil) when no track matches.
func (r *TrackRepository) GetByISRC(isrc string) (*models.Track, error) {
	query := `
		SELECT id, sequence, title, artist, isrc, created_at, updated_at, deleted_at
		FROM tracks
		WHERE isrc = ? AND deleted_at IS NULL
	`

	track, err := scanTrack(r.db.QueryRow(query, isrc))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track by ISRC: %w", err)
	}
	return track, nil
}

// GetByExternalID retrieves a track via a provider cross-link. Returns (nil, nil) when absent.
func (r *TrackRepository) GetByExternalID(provider models.Provider, externalID string) (*models.Track, error) {
	query := `
		SELECT t.id, t.sequence, t.title, t.artist, t.isrc, t.created_at, t.updated_at, t.deleted_at
		FROM tracks t
		JOIN external_data ed ON ed.track_id = t.id
		WHERE ed.provider = ? AND ed.external_id = ? AND t.deleted_at IS NULL
	`

	track, err := scanTrack(r.db.QueryRow(query, string(provider), externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track by external ID: %w", err)
	}
	return track, nil
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	var isrc any = track.ISRC()
	if isrc == "" {
		isrc = nil
	}

	query := `
		UPDATE tracks
		SET title = ?, artist = ?, isrc = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, track.Title(), track.Artist(), isrc, now, track.ID())
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", track.ID())
	}

	return nil
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all tracks matching the given criteria, excluding soft-deleted tracks
func (r *TrackRepository) List(criteria map[string]any) ([]*models.Track, error) {
	query := `
		SELECT id, sequence, title, artist, isrc, created_at, updated_at, deleted_at
		FROM tracks
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// LinkExternal records a provider cross-link for a track.
// Re-linking the same provider is a no-op (UNIQUE constraint), not an error.
func (r *TrackRepository) LinkExternal(trackID string, provider models.Provider, externalID, uri string) error {
	query := `
		INSERT INTO external_data (id, track_id, provider, external_id, uri, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var u any = uri
	if uri == "" {
		u = nil
	}

	_, err := r.db.Exec(query, shared.GenerateID(), trackID, string(provider), externalID, u, time.Now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to link external data: %w", err)
	}

	return nil
}

// GetWithExternalData returns a track together with all of its provider
// cross-links as an explicit composite, so callers never attach related
// records onto a fetched entity themselves.
func (r *TrackRepository) GetWithExternalData(id string) (*models.TrackWithExternalData, error) {
	track, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, track_id, provider, external_id, uri, created_at
		FROM external_data
		WHERE track_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query external data: %w", err)
	}
	defer rows.Close()

	var external []models.ExternalData
	for rows.Next() {
		var (
			ed       models.ExternalData
			provider string
			uri      sql.NullString
		)
		if err := rows.Scan(&ed.ID, &ed.TrackID, &provider, &ed.ExternalID, &uri, &ed.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan external data: %w", err)
		}
		ed.Provider = models.Provider(provider)
		if uri.Valid {
			ed.URI = uri.String
		}
		external = append(external, ed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &models.TrackWithExternalData{Track: track, External: external}, nil
}

func scanTrack(s rowScanner) (*models.Track, error) {
	var (
		id        string
		sequence  int
		title     string
		artist    string
		isrc      sql.NullString
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	if err := s.Scan(&id, &sequence, &title, &artist, &isrc, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	track := models.NewTrack(sequence, title, artist, isrc.String)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}
