package main

import (
	"context"
	"fmt"
	"time"

	"github.com/clouder-dj/clouder/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync ingests a Beatport genre's recent releases into the local track
// cache, cross-linking each track to Spotify by ISRC where possible.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	s, err := r.openStores(config)
	if err != nil {
		return err
	}
	defer s.Close()

	engine, err := r.buildEngine(config, s)
	if err != nil {
		return err
	}

	start := cmd.String("start")
	end := cmd.String("end")
	if end == "" {
		end = time.Now().Format("2006-01-02")
	}
	if start == "" {
		start = time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	}

	genreID := cmd.Int("genre")
	r.writePlain("Syncing genre %d releases from %s to %s...\n\n", genreID, start, end)

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("  [%s] %s\n", update.Phase, update.Message)
		}
	}()

	result, err := engine.CatalogSync(ctx, progress, tasks.CatalogSyncOpts{
		GenreID:          genreID,
		PublishDateStart: start,
		PublishDateEnd:   end,
		NumWorkers:       cmd.Int("workers"),
		RateLimit:        cmd.Float("rate"),
	})
	close(progress)
	<-done

	if err != nil {
		if result != nil {
			r.writePlain("\n✗ Sync failed after %d tracks (job %s)\n", result.Succeeded, result.JobID)
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	r.writePlainln("✓ Sync complete (job %s)", result.JobID)
	r.writePlain("  Tracks: %d total, %d stored, %d failed\n", result.Total, result.Succeeded, result.Failed)
	r.writePlain("  Matched on Spotify: %d\n", result.Matched)
	return nil
}
