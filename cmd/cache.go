package main

import (
	"context"
	"path/filepath"

	"github.com/desertthunder/beatsync/internal/cache"
	"github.com/urfave/cli/v3"
)

func (r *Runner) openCache(cmd *cli.Command) (*cache.TrackMatchCache, string, error) {
	r.reloadConfig(cmd)

	path := filepath.Join(r.config.Storage.DataDir, trackCacheFilename)
	matchCache := cache.NewTrackMatchCache(path, r.logger)
	if err := matchCache.Load(); err != nil {
		return nil, path, err
	}
	return matchCache, path, nil
}

// CacheStats shows the size and location of the track match cache.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	matchCache, path, err := r.openCache(cmd)
	if err != nil {
		return err
	}

	r.writePlainln("Path: %s", path)
	return r.writePlainln("Cached matches: %d", matchCache.Len())
}

// CacheClear deletes all cached track matches. Subsequent cycles fall back to
// searching and repopulate the cache.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	matchCache, _, err := r.openCache(cmd)
	if err != nil {
		return err
	}

	removed := matchCache.Len()
	if err := matchCache.Clear(); err != nil {
		return err
	}

	r.logger.Info("track match cache cleared", "removed", removed)
	return r.writePlainln("✓ Removed %d cached matches", removed)
}
