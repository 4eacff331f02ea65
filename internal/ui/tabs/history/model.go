// Package history provides the tab charting usage across the current window.
package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
)

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	Reload key.Binding
	Up     key.Binding
	Down   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Reload: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "reload history"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// Model represents the history tab state.
type Model struct {
	state    *app.State
	commands *app.Commands
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	warning  float64
	critical float64

	loading     bool
	loaded      bool
	lastRefresh time.Time
	errorMsg    string
}

// New creates a new history model. warning and critical are drawn as
// reference lines on the usage chart.
func New(state *app.State, commands *app.Commands, warning, critical float64) *Model {
	if commands == nil {
		commands = app.NewCommands(nil)
	}
	return &Model{
		state:    state,
		commands: commands,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		warning:  warning,
		critical: critical,
	}
}

// Init initializes the history tab.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

// load starts a history query unless one is already running.
func (m *Model) load() tea.Cmd {
	if m.loading {
		return nil
	}
	cmd := m.commands.LoadHistory()
	if cmd != nil {
		m.loading = true
	}
	return cmd
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case app.HistoryLoadedMsg:
		m.loading = false
		m.lastRefresh = time.Now()
		if msg.Error != nil {
			m.errorMsg = msg.Error.Error()
			return m, m.commands.NotifyError(fmt.Sprintf("History error: %s", m.errorMsg))
		}
		m.errorMsg = ""
		m.loaded = true
		m.state.SetHistory(msg.Samples, msg.Alerts)

	case app.TabActivatedMsg:
		if msg.Tab == app.TabHistory {
			return m, m.load()
		}

	case app.SnapshotUpdatedMsg:
		return m, m.load()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Reload) {
			return m, m.load()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.Reload, m.keys.Up, m.keys.Down}
}
