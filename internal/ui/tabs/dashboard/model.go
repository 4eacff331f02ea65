// Package dashboard provides the main usage tab.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
)

const animationDuration = 1.5 // seconds

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	ScrollDown key.Binding
	ScrollUp   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ScrollDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
	}
}

// AnimationState tracks the easing of the usage bar towards its target.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Step advances the animation to now with a quadratic ease-out.
func (a *AnimationState) Step(now time.Time) {
	if a.CurrentPercent == a.TargetPercent {
		return
	}
	elapsed := now.Sub(a.StartTime).Seconds()
	if elapsed >= animationDuration {
		a.CurrentPercent = a.TargetPercent
		return
	}
	progress := elapsed / animationDuration
	ease := 1.0 - (1.0-progress)*(1.0-progress)
	a.CurrentPercent = a.StartPercent + (a.TargetPercent-a.StartPercent)*ease
}

// Retarget starts a new animation from the current position. It reports
// whether the bar still has to move.
func (a *AnimationState) Retarget(target float64, now time.Time) bool {
	if target != a.TargetPercent {
		a.StartPercent = a.CurrentPercent
		a.TargetPercent = target
		a.StartTime = now
	}
	return a.CurrentPercent != a.TargetPercent
}

// Model represents the dashboard tab state.
type Model struct {
	state     *app.State
	animation AnimationState
	spinner   components.LoadingSpinner
	keys      keyMap
	viewport  viewport.Model
	usageBar  components.UsageBar
	now       func() time.Time
	width     int
	height    int
}

// New creates a new dashboard model.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		spinner:  components.NewSpinner("Scanning usage logs..."),
		usageBar: components.NewUsageBar("Used"),
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		now:      time.Now,
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(time.Time(msg)))

	case app.SnapshotUpdatedMsg:
		if m.animation.Retarget(msg.Event.Snapshot.Percentage, m.now()) {
			cmds = append(cmds, animationTickCmd())
		}

	case app.TabActivatedMsg:
		if msg.Tab == app.TabDashboard {
			cmds = append(cmds, animationTickCmd())
		}

	case tea.KeyMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(now time.Time) tea.Cmd {
	if snap, ok := m.state.Snapshot(); ok {
		m.animation.Retarget(snap.Percentage, now)
	}
	m.animation.Step(now)

	if m.animation.CurrentPercent != m.animation.TargetPercent || m.state.IsInitialLoading() {
		return animationTickCmd()
	}
	return nil
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.ScrollDown, m.keys.ScrollUp}
}
