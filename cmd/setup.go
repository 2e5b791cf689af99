package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/beatsync/internal/repositories"
	"github.com/desertthunder/beatsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file, data directory, and history database schema.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
	} else {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
	}
	r.reloadConfig(cmd)

	if err := os.MkdirAll(r.config.Storage.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	r.logger.Info("data directory ready", "path", r.config.Storage.DataDir)

	db, err := shared.NewDatabase(r.config.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, 1, 1)

	if err := repositories.NewHistoryRepository(db).Init(ctx); err != nil {
		return err
	}
	r.logger.Info("history database ready", "path", r.config.Storage.DatabasePath)

	r.writePlainln("✓ Setup complete")
	r.writePlainln("Next steps:")
	r.writePlainln("1. Add your Spotify credentials and Beatport URLs to %s", configPath)
	return r.writePlainln("2. Run 'beatsync auth login', then 'beatsync run'")
}
