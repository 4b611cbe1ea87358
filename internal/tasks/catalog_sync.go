package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/services"
	"github.com/clouder-dj/clouder/internal/shared"
	"golang.org/x/time/rate"
)

// CatalogSyncOpts configures a catalog ingestion run.
type CatalogSyncOpts struct {
	GenreID          int
	PublishDateStart string
	PublishDateEnd   string
	NumWorkers       int     // Concurrent match workers (default: 5)
	RateLimit        float64 // Matcher requests per second (default: 5)
	JobSequence      int     // Sequence number for the recorded job row
}

// CatalogSyncResult summarizes an ingestion run.
type CatalogSyncResult struct {
	JobID     string
	Total     int
	Succeeded int
	Failed    int
	Matched   int // Tracks cross-linked to Spotify
}

type matchJob struct {
	track services.BeatportTrack
}

type matchResult struct {
	track   services.BeatportTrack
	spotify *services.SpotifyTrack
	err     error
}

// CatalogSync streams the Beatport catalog for a genre and date window,
// matches tracks against Spotify by ISRC in a rate-limited worker pool,
// and upserts tracks plus provider links into the local store. A SyncJob
// row records the run; a catalog page failure fails the job but keeps the
// tracks already stored.
func (e *Engine) CatalogSync(ctx context.Context, progress chan<- ProgressUpdate, opts CatalogSyncOpts) (*CatalogSyncResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: no catalog source configured", shared.ErrMissingConfig)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = e.cfg.NumWorkers
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = e.cfg.RateLimit
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	job := models.NewSyncJob(opts.JobSequence, models.JobCatalogSync)
	job.SetGenreID(opts.GenreID)
	job.SetWindow(opts.PublishDateStart, opts.PublishDateEnd)
	if err := e.jobs.Create(job); err != nil {
		return nil, fmt.Errorf("failed to record sync job: %w", err)
	}

	job.SetStatus(models.JobRunning)
	if err := e.jobs.Update(job); err != nil {
		return nil, fmt.Errorf("failed to mark job running: %w", err)
	}

	e.logger.Info("catalog sync started",
		"job_id", job.ID(),
		"genre_id", opts.GenreID,
		"window", opts.PublishDateStart+":"+opts.PublishDateEnd)

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan matchJob)
	results := make(chan matchResult)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.matchWorker(ctx, &wg, limiter, jobs, results)
	}

	// The producer streams catalog pages into the worker pool. Its error
	// decides the job's final status.
	streamErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		page := 0
		err := e.catalog.GetTracks(ctx, opts.GenreID, opts.PublishDateStart, opts.PublishDateEnd, func(tracks []services.BeatportTrack) bool {
			page++
			e.sendProgress(progress, fetchCatalogUpdate(page, len(tracks)))
			for _, track := range tracks {
				select {
				case <-ctx.Done():
					return false
				case jobs <- matchJob{track: track}:
				}
			}
			return true
		})
		streamErr <- err
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	result := &CatalogSyncResult{JobID: job.ID()}
	seen := map[string]string{}
	for res := range results {
		result.Total++
		if res.err != nil {
			result.Failed++
			continue
		}
		if err := e.storeTrack(res, seen); err != nil {
			e.logger.Warn("failed to store track",
				"beatport_id", res.track.ID,
				"error", err)
			result.Failed++
		} else {
			result.Succeeded++
			if res.spotify != nil {
				result.Matched++
			}
		}
		e.sendProgress(progress, persistedUpdate(result.Succeeded, result.Failed))
	}

	err := <-streamErr

	job.SetCounts(result.Total, result.Succeeded, result.Failed)
	if err != nil {
		job.SetStatus(models.JobFailed)
		job.SetErrorMessage(err.Error())
	} else {
		job.SetStatus(models.JobCompleted)
	}
	if uerr := e.jobs.Update(job); uerr != nil {
		e.logger.Error("failed to finalize sync job", "job_id", job.ID(), "error", uerr)
	}

	e.logger.Info("catalog sync finished",
		"job_id", job.ID(),
		"status", job.Status(),
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"matched", result.Matched)

	if err != nil {
		return result, fmt.Errorf("catalog stream failed: %w", err)
	}
	return result, nil
}

// matchWorker resolves catalog tracks to Spotify under the shared rate
// limit. A failed lookup degrades to an unmatched track, not a failed one.
func (e *Engine) matchWorker(ctx context.Context, wg *sync.WaitGroup, limiter *rate.Limiter, jobs <-chan matchJob, results chan<- matchResult) {
	defer wg.Done()

	for job := range jobs {
		res := matchResult{track: job.track}

		if job.track.ISRC != "" && e.matcher != nil {
			if err := limiter.Wait(ctx); err != nil {
				res.err = err
				results <- res
				continue
			}
			spotify, err := e.matcher.SearchTrackByISRC(ctx, job.track.ISRC)
			if err != nil {
				e.logger.Warn("ISRC match failed",
					"isrc", job.track.ISRC,
					"error", err)
			} else {
				res.spotify = spotify
			}
		}

		results <- res
	}
}

// storeTrack upserts a catalog track and its provider links. Tracks without
// an ISRC fall back to a normalized title/artist key so repeated catalog
// entries within a run collapse onto one row.
func (e *Engine) storeTrack(res matchResult, seen map[string]string) error {
	bp := res.track
	externalID := fmt.Sprintf("%d", bp.ID)
	key := shared.NormalizeTrackKey(trackTitle(bp), primaryArtist(bp))

	track, err := e.tracks.GetByExternalID(models.ProviderBeatport, externalID)
	if err != nil {
		return err
	}
	if track == nil && bp.ISRC != "" {
		track, err = e.tracks.GetByISRC(bp.ISRC)
		if err != nil {
			return err
		}
	}
	if track == nil && bp.ISRC == "" {
		if id, ok := seen[key]; ok {
			composite, err := e.tracks.GetWithExternalData(id)
			if err != nil {
				return err
			}
			track = composite.Track
		}
	}

	if track == nil {
		track = models.NewTrack(0, trackTitle(bp), primaryArtist(bp), bp.ISRC)
		if err := e.tracks.Create(track); err != nil {
			return err
		}
	}
	seen[key] = track.ID()

	if err := e.tracks.LinkExternal(track.ID(), models.ProviderBeatport, externalID, ""); err != nil {
		return err
	}

	if res.spotify != nil {
		if err := e.tracks.LinkExternal(track.ID(), models.ProviderSpotify, res.spotify.ID, res.spotify.URI); err != nil {
			return err
		}
	}

	return nil
}

func trackTitle(bp services.BeatportTrack) string {
	if bp.MixName != "" && bp.MixName != "Original Mix" {
		return bp.Name + " (" + bp.MixName + ")"
	}
	return bp.Name
}

func primaryArtist(bp services.BeatportTrack) string {
	if len(bp.Artists) == 0 {
		return ""
	}
	return bp.Artists[0].Name
}
