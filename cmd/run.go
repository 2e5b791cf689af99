package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/desertthunder/beatsync/internal/bus"
	"github.com/desertthunder/beatsync/internal/models"
	"github.com/desertthunder/beatsync/internal/shared"
	"github.com/desertthunder/beatsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run starts the daemon: the message router with every pipeline stage
// attached, plus the cycle scheduler. Blocks until interrupted.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := r.build(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := comps.manager.Ensure(ctx); err != nil {
		return err
	}
	r.logger.Info("authenticated with Spotify")

	router, err := message.NewRouter(message.RouterConfig{}, bus.NewLoggerAdapter(r.logger))
	if err != nil {
		return err
	}
	router.AddMiddleware(middleware.Recoverer)

	pipeline := tasks.NewPipeline(
		r.config.Beatport.URLs,
		comps.scraper,
		comps.reconciler,
		comps.cache,
		comps.bus.Publisher(),
		comps.history,
		r.logger,
	)
	pipeline.Register(router, comps.bus.Subscriber())

	router.AddNoPublisherHandler("cover_policy_created", bus.TopicPlaylistCreated, comps.bus.Subscriber(), comps.policy.HandlePlaylistEvent)
	router.AddNoPublisherHandler("cover_policy_updated", bus.TopicPlaylistUpdated, comps.bus.Subscriber(), comps.policy.HandlePlaylistEvent)
	router.AddNoPublisherHandler("cover_uploader", bus.TopicCoverGenerated, comps.bus.Subscriber(), comps.uploader.HandleCoverGenerated)

	routerErr := make(chan error, 1)
	go func() {
		routerErr <- router.Run(ctx)
	}()
	<-router.Running()

	scheduler := tasks.NewScheduler(
		time.Duration(r.config.Schedule.RateMinutes)*time.Minute,
		comps.bus.Publisher(),
		r.logger,
	)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if err := <-routerErr; err != nil {
		return err
	}

	if err := comps.cache.Flush(); err != nil {
		r.logger.Error("failed to persist track match cache on shutdown", "error", err)
	}
	return nil
}

// Sync performs one synchronous pass over every configured chart and exits.
// Unlike the daemon it skips the bus: each source is scraped, reconciled, and
// covered inline so the exit code reflects the whole pass.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	comps, err := r.build(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := comps.manager.Ensure(ctx); err != nil {
		return err
	}
	r.logger.Info("authenticated with Spotify")

	startedAt := time.Now()
	runID, err := comps.history.StartRun(ctx, startedAt, len(r.config.Beatport.URLs))
	if err != nil {
		r.logger.Error("failed to record run start", "error", err)
	}

	synced, failed := 0, 0
	for _, url := range r.config.Beatport.URLs {
		if err := r.syncOne(ctx, comps, runID, url); err != nil {
			if errors.Is(err, shared.ErrAuthorizationRequired) {
				return err
			}
			failed++
			continue
		}
		synced++
	}

	if runID != 0 {
		if err := comps.history.FinishRun(ctx, runID, time.Now(), synced, failed); err != nil {
			r.logger.Error("failed to record run finish", "error", err)
		}
	}

	r.writePlainln("Synced %d/%d charts in %s", synced, synced+failed, time.Since(startedAt).Round(time.Second))
	if failed > 0 {
		return errors.New("one or more charts failed to sync")
	}
	return nil
}

func (r *Runner) syncOne(ctx context.Context, comps *components, runID int64, url string) error {
	record := models.PlaylistSync{RunID: runID, SourceURL: url}

	playlist, err := comps.scraper.Scrape(ctx, url)
	if err != nil {
		r.logger.Error("failed to scrape source", "url", url, "error", err)
		record.Err = err.Error()
		r.recordSync(ctx, comps, record)
		return err
	}
	record.Title = playlist.Title
	record.Total = len(playlist.Tracks)

	result, err := comps.reconciler.Reconcile(ctx, playlist)
	if err != nil {
		r.logger.Error("failed to sync playlist", "title", playlist.Title, "error", err)
		record.Err = err.Error()
		r.recordSync(ctx, comps, record)
		return err
	}
	record.TargetID = result.Target.ID
	record.Matched = result.Matched
	record.Created = result.Created

	if err := comps.cache.Flush(); err != nil {
		r.logger.Error("failed to persist track match cache", "error", err)
	}

	if err := comps.policy.Ensure(ctx, result.Target.ID, result.Target.Title); err != nil {
		r.logger.Error("failed to ensure cover image", "title", result.Target.Title, "error", err)
	}

	r.recordSync(ctx, comps, record)
	r.writePlainln("✓ %s: %d/%d tracks", result.Target.Title, result.Matched, result.Total)
	return nil
}

func (r *Runner) recordSync(ctx context.Context, comps *components, record models.PlaylistSync) {
	record.FinishedAt = time.Now()
	if err := comps.history.RecordPlaylistSync(ctx, record); err != nil {
		r.logger.Error("failed to record playlist sync", "error", err)
	}
}
