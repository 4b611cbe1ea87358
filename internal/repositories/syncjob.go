package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/shared"
)

// SyncJobRepository implements [models.Repository] for sync job tracking.
//
// Handles catalog sync and playlist build history with status-based queries.
type SyncJobRepository struct {
	db *sql.DB
}

// NewSyncJobRepository creates a new [SyncJobRepository] with the given database connection
func NewSyncJobRepository(db *sql.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// Create inserts a new sync job into the database with generated ID and sequence
func (r *SyncJobRepository) Create(job *models.SyncJob) error {
	sequence, err := NextSequence(r.db, "sync_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	job.SetID(id)
	job.SetSequence(sequence)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO sync_jobs (id, sequence, kind, status, genre_id, window_start, window_end, total, succeeded, failed, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var genreID any = job.GenreID()
	if job.GenreID() == 0 {
		genreID = nil
	}

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(job.Kind()),
		string(job.Status()),
		genreID,
		nullable(job.WindowStart()),
		nullable(job.WindowEnd()),
		job.Total(),
		job.Succeeded(),
		job.Failed(),
		nullable(job.ErrorMessage()),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync job: %w", err)
	}

	return nil
}

// Get retrieves a sync job by ID
func (r *SyncJobRepository) Get(id string) (*models.SyncJob, error) {
	query := `
		SELECT id, sequence, kind, status, genre_id, window_start, window_end, total, succeeded, failed, error, created_at, updated_at
		FROM sync_jobs
		WHERE id = ?
	`

	job, err := scanSyncJob(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: sync job %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync job: %w", err)
	}
	return job, nil
}

// Update modifies an existing sync job in the database
func (r *SyncJobRepository) Update(job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE sync_jobs
		SET status = ?, total = ?, succeeded = ?, failed = ?, error = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		string(job.Status()),
		job.Total(),
		job.Succeeded(),
		job.Failed(),
		nullable(job.ErrorMessage()),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync job not found: %s", job.ID())
	}

	return nil
}

// Delete removes a sync job by ID
func (r *SyncJobRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM sync_jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete sync job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync job not found: %s", id)
	}

	return nil
}

// List retrieves all sync jobs matching the given criteria
func (r *SyncJobRepository) List(criteria map[string]any) ([]*models.SyncJob, error) {
	query := `
		SELECT id, sequence, kind, status, genre_id, window_start, window_end, total, succeeded, failed, error, created_at, updated_at
		FROM sync_jobs
		WHERE 1 = 1
	`

	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

func scanSyncJob(s rowScanner) (*models.SyncJob, error) {
	var (
		id          string
		sequence    int
		kind        string
		status      string
		genreID     sql.NullInt64
		windowStart sql.NullString
		windowEnd   sql.NullString
		total       int
		succeeded   int
		failed      int
		errMessage  sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := s.Scan(&id, &sequence, &kind, &status, &genreID, &windowStart, &windowEnd, &total, &succeeded, &failed, &errMessage, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	job := models.NewSyncJob(sequence, models.JobKind(kind))
	job.SetID(id)
	job.SetStatus(models.JobStatus(status))
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if genreID.Valid {
		job.SetGenreID(int(genreID.Int64))
	}
	job.SetWindow(windowStart.String, windowEnd.String)
	job.SetCounts(total, succeeded, failed)
	if errMessage.Valid {
		job.SetErrorMessage(errMessage.String)
	}

	return job, nil
}
