package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/beatsync/internal/models"
)

var (
	_ list.Item = runItem{}
	_ list.Item = syncItem{}
)

// runItem wraps [models.SyncRun] to implement [list.Item].
type runItem struct {
	run models.SyncRun
}

func (i runItem) FilterValue() string { return i.run.StartedAt.Format(time.RFC3339) }
func (i runItem) Title() string {
	return fmt.Sprintf("Run #%d · %s", i.run.ID, i.run.StartedAt.Format("2006-01-02 15:04"))
}
func (i runItem) Description() string {
	return fmt.Sprintf("%d sources · %d synced · %d failed · %s",
		i.run.Sources, i.run.Synced, i.run.Failed, i.run.Duration().Round(time.Second))
}

// syncItem wraps [models.PlaylistSync] to implement [list.Item].
type syncItem struct {
	sync models.PlaylistSync
}

func (i syncItem) FilterValue() string { return i.sync.Title }
func (i syncItem) Title() string {
	if i.sync.Title == "" {
		return i.sync.SourceURL
	}
	return i.sync.Title
}
func (i syncItem) Description() string {
	if !i.sync.Succeeded() {
		return fmt.Sprintf("failed: %s", i.sync.Err)
	}
	desc := fmt.Sprintf("%d/%d tracks matched", i.sync.Matched, i.sync.Total)
	if i.sync.Created {
		desc = fmt.Sprintf("%s · playlist created", desc)
	}
	return desc
}
