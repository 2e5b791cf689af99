package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/beatsync/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "beatsync",
		Usage:    "Keep Spotify playlists in sync with Beatport Top 100 charts",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrAuthorizationRequired) {
			// The authorization URL was already logged by the credential manager.
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}
