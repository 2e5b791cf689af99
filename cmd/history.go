package main

import (
	"context"
	"time"

	"github.com/desertthunder/beatsync/internal/repositories"
	"github.com/desertthunder/beatsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// History prints the most recent sync runs with their playlist outcomes.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	db, err := shared.NewDatabase(r.config.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	history := repositories.NewHistoryRepository(db)
	if err := history.Init(ctx); err != nil {
		return err
	}

	runs, err := history.Runs(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		return r.writePlainln("No sync runs recorded yet.")
	}

	for _, run := range runs {
		r.writePlainln("Run #%d  %s  %d sources, %d synced, %d failed (%s)",
			run.ID,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Sources,
			run.Synced,
			run.Failed,
			run.Duration().Round(time.Second),
		)

		syncs, err := history.PlaylistSyncs(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, sync := range syncs {
			if sync.Succeeded() {
				r.writePlainln("  ✓ %s: %d/%d tracks", sync.Title, sync.Matched, sync.Total)
			} else {
				r.writePlainln("  ✗ %s: %s", sync.SourceURL, sync.Err)
			}
		}
	}

	return nil
}
