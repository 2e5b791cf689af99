package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/beatsync/internal/repositories"
	"github.com/desertthunder/beatsync/internal/shared"
	"github.com/desertthunder/beatsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive sync history browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/beatsync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	db, err := shared.NewDatabase(r.config.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	history := repositories.NewHistoryRepository(db)
	if err := history.Init(ctx); err != nil {
		return err
	}

	model := ui.NewModel(ctx, history)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
