package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/auth"
	"github.com/desertthunder/beatsync/internal/bus"
	"github.com/desertthunder/beatsync/internal/cache"
	"github.com/desertthunder/beatsync/internal/cover"
	"github.com/desertthunder/beatsync/internal/repositories"
	"github.com/desertthunder/beatsync/internal/scraper"
	"github.com/desertthunder/beatsync/internal/services"
	"github.com/desertthunder/beatsync/internal/shared"
	"github.com/desertthunder/beatsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// trackCacheFilename is the line-oriented match cache inside the data dir.
const trackCacheFilename = "spotify_track_cache"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, syncCommand, authCommand, cacheCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the runner's logger, used when the TUI owns stderr.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// reloadConfig replaces the startup config when the command names an explicit
// config file.
func (r *Runner) reloadConfig(cmd *cli.Command) {
	configPath := cmd.String("config")
	if configPath == "" {
		return
	}
	if _, err := os.Stat(configPath); err != nil {
		return
	}
	if loaded, err := shared.LoadConfig(configPath); err == nil {
		r.config = loaded
	} else {
		r.logger.Warn("failed to load config, keeping current", "path", configPath, "error", err)
	}
}

// components bundles the wired sync stack for one command invocation.
type components struct {
	bus        *bus.Bus
	store      auth.ValueStore
	manager    *auth.Manager
	client     *services.SpotifyClient
	cache      *cache.TrackMatchCache
	scraper    *scraper.BeatportScraper
	policy     *cover.Policy
	uploader   *cover.Uploader
	reconciler *tasks.Reconciler
	history    *repositories.HistoryRepository
	close      []func() error
}

// Close releases the bus and database in reverse construction order.
func (c *components) Close() {
	for i := len(c.close) - 1; i >= 0; i-- {
		_ = c.close[i]()
	}
}

// buildAuth constructs the credential manager and API client. The probe
// closes over the client variable so the manager can validate tokens with a
// profile fetch once both exist.
func (r *Runner) buildAuth() (*auth.Manager, *services.SpotifyClient, auth.ValueStore, error) {
	if err := os.MkdirAll(r.config.Storage.DataDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := auth.NewFileStore(r.config.Storage.DataDir)

	var client *services.SpotifyClient
	manager, err := auth.NewManager(auth.ManagerOpts{
		ClientID:     r.config.Spotify.ClientID,
		ClientSecret: r.config.Spotify.ClientSecret,
		RedirectURI:  r.config.Spotify.RedirectURI,
		AuthCode:     r.config.Spotify.AuthCode,
		Store:        store,
		Logger:       r.logger,
		Probe: func(ctx context.Context, accessToken string) error {
			return client.ProfileProbe(ctx, accessToken)
		},
	})
	if err != nil {
		return nil, nil, nil, err
	}

	client, err = services.NewSpotifyClient(services.SpotifyClientOpts{
		Auth:   manager,
		Logger: r.logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return manager, client, store, nil
}

// build wires the full sync stack for the run and sync commands.
func (r *Runner) build(ctx context.Context) (*components, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	manager, client, store, err := r.buildAuth()
	if err != nil {
		return nil, err
	}

	eventBus := bus.NewBus(r.logger)

	matchCache := cache.NewTrackMatchCache(filepath.Join(r.config.Storage.DataDir, trackCacheFilename), r.logger)
	if err := matchCache.Load(); err != nil {
		r.logger.Warn("failed to load track match cache, starting empty", "error", err)
	}

	db, err := shared.NewDatabase(r.config.Storage.DatabasePath)
	if err != nil {
		eventBus.Close()
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection keeps concurrent handlers from tripping SQLITE_BUSY.
	shared.ConfigureDatabase(db, 1, 1)

	history := repositories.NewHistoryRepository(db)
	if err := history.Init(ctx); err != nil {
		eventBus.Close()
		db.Close()
		return nil, err
	}

	renderer := cover.NewImageRenderer(r.logger)

	return &components{
		bus:        eventBus,
		store:      store,
		manager:    manager,
		client:     client,
		cache:      matchCache,
		scraper:    scraper.NewBeatportScraper(nil, r.logger),
		policy:     cover.NewPolicy(client, renderer, eventBus.Publisher(), r.logger, r.config.Cover.Generate),
		uploader:   cover.NewUploader(client, r.logger),
		reconciler: tasks.NewReconciler(client, matchCache, eventBus.Publisher(), r.logger),
		history:    history,
		close:      []func() error{eventBus.Close, db.Close},
	}, nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
