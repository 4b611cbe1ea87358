package models

import "fmt"

// JobStatus tracks the lifecycle of a catalog sync job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobKind identifies the type of background job.
type JobKind string

const (
	JobCatalogSync   JobKind = "catalog_sync"
	JobPlaylistBuild JobKind = "playlist_build"
)

// SyncJob records one catalog ingestion or playlist build run.
type SyncJob struct {
	entity
	kind        JobKind
	status      JobStatus
	genreID     int
	windowStart string
	windowEnd   string
	total       int
	succeeded   int
	failed      int
	errMessage  string
}

// NewSyncJob creates a pending [SyncJob] of the given kind.
func NewSyncJob(sequence int, kind JobKind) *SyncJob {
	return &SyncJob{entity: newEntity(sequence), kind: kind, status: JobPending}
}

func (j *SyncJob) Kind() JobKind       { return j.kind }
func (j *SyncJob) Status() JobStatus   { return j.status }
func (j *SyncJob) GenreID() int        { return j.genreID }
func (j *SyncJob) WindowStart() string { return j.windowStart }
func (j *SyncJob) WindowEnd() string   { return j.windowEnd }
func (j *SyncJob) Total() int          { return j.total }
func (j *SyncJob) Succeeded() int      { return j.succeeded }
func (j *SyncJob) Failed() int         { return j.failed }
func (j *SyncJob) ErrorMessage() string { return j.errMessage }

func (j *SyncJob) SetStatus(s JobStatus)      { j.status = s }
func (j *SyncJob) SetGenreID(id int)          { j.genreID = id }
func (j *SyncJob) SetWindow(start, end string) { j.windowStart, j.windowEnd = start, end }
func (j *SyncJob) SetCounts(total, succeeded, failed int) {
	j.total, j.succeeded, j.failed = total, succeeded, failed
}
func (j *SyncJob) SetErrorMessage(msg string) { j.errMessage = msg }

// Validate checks that the job has a kind and a known status.
func (j *SyncJob) Validate() error {
	if j.kind == "" {
		return fmt.Errorf("kind is required")
	}
	switch j.status {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", j.status)
	}
}
