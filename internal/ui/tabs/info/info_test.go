package info

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/config"
)

type fakeStatus struct {
	active bool
	next   time.Time
}

func (f fakeStatus) WatcherActive() bool             { return f.active }
func (f fakeStatus) NextScheduledRefresh() time.Time { return f.next }

func TestNew(t *testing.T) {
	m := New(app.NewState(), config.Default(), nil)
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() != nil {
		t.Error("Init should return nil")
	}
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
}

func TestModel_Update(t *testing.T) {
	m := New(app.NewState(), config.Default(), nil)

	updated, _ := m.Update(nil)
	if updated == nil {
		t.Error("Update returned nil model")
	}
	if updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown}); updated != m {
		t.Error("key update should return the same model")
	}
}

func TestModel_View(t *testing.T) {
	cfg := config.Default()
	cfg.LogRoot = "/tmp/claude-projects"
	cfg.MetricsAddr = ""

	state := app.NewState()
	state.SetPlan(config.PlanMax20x)

	m := New(state, cfg, fakeStatus{active: true})
	m.SetSize(120, 80)

	view := m.View()
	for _, want := range []string{
		"/tmp/claude-projects",
		"5 hours",
		"warning 90%, critical 95%",
		"(none)",
		"active",
		"▸ " + config.PlanMax20x.Info().Description,
		"400,000,000",
		"Go Version",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ViewWithoutConfig(t *testing.T) {
	m := New(app.NewState(), nil, nil)
	m.SetSize(80, 60)

	if view := m.View(); !strings.Contains(view, "Configuration not loaded") {
		t.Error("nil config should be reported")
	}
}
