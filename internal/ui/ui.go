package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/beatsync/internal/models"
)

// HistoryReader is the read side of the history repository the TUI needs.
type HistoryReader interface {
	Runs(ctx context.Context, limit int) ([]models.SyncRun, error)
	PlaylistSyncs(ctx context.Context, runID int64) ([]models.PlaylistSync, error)
}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunListView ViewState = iota
	SyncListView
)

// runHistoryLimit bounds how many runs the browser loads.
const runHistoryLimit = 50

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	view        ViewState
	history     HistoryReader
	width       int
	height      int
	runList     list.Model
	syncList    list.Model
	selectedRun *models.SyncRun
	err         error
	help        help.Model
	keys        keyMap
}

type runsFetchedMsg struct {
	runs []models.SyncRun
	err  error
}

type syncsFetchedMsg struct {
	run   models.SyncRun
	syncs []models.PlaylistSync
	err   error
}

// NewModel creates a new TUI model over the given history reader.
func NewModel(ctx context.Context, history HistoryReader) *Model {
	return &Model{
		ctx:     ctx,
		view:    RunListView,
		history: history,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by fetching recent runs.
func (m *Model) Init() tea.Cmd {
	return m.fetchRuns()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.runList.Width() == 0 {
			m.runList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.syncList.Width() == 0 {
			m.syncList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case RunListView:
			return m.handleRunListKeys(msg)
		case SyncListView:
			return m.handleSyncListKeys(msg)
		}

	case runsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(msg.runs))
		for i, run := range msg.runs {
			items[i] = runItem{run: run}
		}
		m.runList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.runList.Title = "Sync History"
		m.runList.SetSize(m.width-4, m.height-8)
		return m, nil

	case syncsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = RunListView
			return m, nil
		}
		m.selectedRun = &msg.run
		items := make([]list.Item, len(msg.syncs))
		for i, sync := range msg.syncs {
			items[i] = syncItem{sync: sync}
		}
		m.syncList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.syncList.Title = fmt.Sprintf("Run #%d", msg.run.ID)
		m.syncList.SetSize(m.width-4, m.height-8)
		m.view = SyncListView
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case RunListView:
		return m.renderRunList()
	case SyncListView:
		return m.renderSyncList()
	default:
		return ""
	}
}

func (m *Model) handleRunListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.runList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(runItem); ok {
				return m, m.fetchSyncs(item.run)
			}
		}
	}

	var cmd tea.Cmd
	m.runList, cmd = m.runList.Update(msg)
	return m, cmd
}

func (m *Model) handleSyncListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = RunListView
		return m, nil
	}

	var cmd tea.Cmd
	m.syncList, cmd = m.syncList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case RunListView:
		m.runList, cmd = m.runList.Update(msg)
	case SyncListView:
		m.syncList, cmd = m.syncList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchRuns() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.history.Runs(m.ctx, runHistoryLimit)
		return runsFetchedMsg{runs: runs, err: err}
	}
}

func (m *Model) fetchSyncs(run models.SyncRun) tea.Cmd {
	return func() tea.Msg {
		syncs, err := m.history.PlaylistSyncs(m.ctx, run.ID)
		return syncsFetchedMsg{run: run, syncs: syncs, err: err}
	}
}

func (m *Model) renderRunList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.runList.View(), helpView)
}

func (m *Model) renderSyncList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.syncList.View(), helpView)
}
