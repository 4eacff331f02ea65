package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

// stubTab records the messages it receives.
type stubTab struct {
	msgs []tea.Msg
	w, h int
}

func (s *stubTab) Init() tea.Cmd { return nil }

func (s *stubTab) Update(msg tea.Msg) (Tab, tea.Cmd) {
	s.msgs = append(s.msgs, msg)
	return s, nil
}

func (s *stubTab) View() string { return "stub view" }

func (s *stubTab) SetSize(w, h int) { s.w, s.h = w, h }

func (s *stubTab) ShortHelp() []key.Binding {
	return []key.Binding{key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stub action"))}
}

func runes(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil)
	if model == nil {
		t.Fatal("NewModel returned nil")
	}
	if model.State() == nil {
		t.Error("State should be initialized")
	}
	if model.ActiveTab() != TabDashboard {
		t.Error("Default tab should be Dashboard")
	}
	if len(model.tabs) != 3 {
		t.Errorf("Should have 3 tab slots, got %d", len(model.tabs))
	}
	if model.Commands() == nil {
		t.Error("Commands should be initialized")
	}
}

func TestModel_Init(t *testing.T) {
	model := NewModel(nil)
	if cmd := model.Init(); cmd == nil {
		t.Error("Init returned nil command")
	}
	if len(model.state.Notifications()) != 1 {
		t.Error("Init should show the loading toast")
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	model := NewModel(nil)
	tab := &stubTab{}
	model.SetTabs([]Tab{tab, nil, nil})

	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 50})

	m, ok := newModel.(*Model)
	if !ok {
		t.Fatal("Update returned wrong model type")
	}
	if m.width != 100 || m.height != 50 {
		t.Errorf("size = %dx%d, want 100x50", m.width, m.height)
	}
	if !m.ready {
		t.Error("Model should be ready after WindowSizeMsg")
	}
	if tab.w != 100 || tab.h != 45 {
		t.Errorf("tab size = %dx%d, want 100x45", tab.w, tab.h)
	}
}

func TestModel_TabSwitch(t *testing.T) {
	tests := []struct {
		name  string
		start TabID
		msg   tea.Msg
		want  TabID
	}{
		{"message", TabDashboard, TabSwitchMsg{Tab: TabHistory}, TabHistory},
		{"key 3", TabDashboard, runes("3"), TabInfo},
		{"next wraps", TabInfo, tea.KeyMsg{Type: tea.KeyTab}, TabDashboard},
		{"prev wraps", TabDashboard, tea.KeyMsg{Type: tea.KeyShiftTab}, TabInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewModel(nil)
			model.activeTab = tt.start

			_, cmd := model.Update(tt.msg)
			if model.ActiveTab() != tt.want {
				t.Errorf("ActiveTab = %v, want %v", model.ActiveTab(), tt.want)
			}
			if cmd == nil {
				t.Error("switching should return a command")
			}
		})
	}
}

func TestModel_SwitchTabActivates(t *testing.T) {
	model := NewModel(nil)
	msg := model.switchTab(TabHistory)()

	act, ok := msg.(TabActivatedMsg)
	if !ok {
		t.Fatalf("Expected TabActivatedMsg, got %T", msg)
	}
	if act.Tab != TabHistory {
		t.Errorf("Tab = %v, want History", act.Tab)
	}
}

func TestModel_ActionKeysWithoutManager(t *testing.T) {
	model := NewModel(nil)
	for _, k := range []string{"r", "p", "t", "c"} {
		if cmd := model.handleKeyMsg(runes(k)); cmd != nil {
			t.Errorf("key %q should be a no-op without a manager", k)
		}
	}
}

func TestModel_Update_Tick(t *testing.T) {
	model := NewModel(nil)
	_, cmd := model.Update(TickMsg{Time: time.Now()})
	if cmd == nil {
		t.Error("TickMsg should return a command (next tick)")
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel(nil)

	if view := model.View(); !strings.Contains(view, "Loading...") {
		t.Error("View should show Loading when not ready")
	}

	model.ready = true
	model.width = 80
	model.height = 24

	view := model.View()
	if !strings.Contains(view, "Dashboard") {
		t.Error("View should show Dashboard tab")
	}
	if !strings.Contains(view, "not available") {
		t.Error("View should show placeholder text")
	}
	if !strings.Contains(view, "plan "+config.DefaultPlan.String()) {
		t.Error("footer should show the plan")
	}

	model.SetTabs([]Tab{&stubTab{}, nil, nil})
	if view := model.View(); !strings.Contains(view, "stub view") {
		t.Error("View should render the active tab")
	}
}

func TestModel_Help(t *testing.T) {
	model := NewModel(nil)
	model.SetTabs([]Tab{&stubTab{}, nil, nil})
	model.ready = true
	model.width = 80
	model.height = 40

	model.Update(ToggleHelpMsg{})
	if !model.showHelp {
		t.Error("showHelp should be true")
	}

	view := model.View()
	if !strings.Contains(view, "Keyboard Shortcuts") {
		t.Error("View should show help modal")
	}
	if !strings.Contains(view, "stub action") {
		t.Error("help should include tab bindings")
	}

	model.handleKeyMsg(runes("?"))
	if model.showHelp {
		t.Error("showHelp should be false after toggle")
	}

	model.showHelp = true
	model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyEsc})
	if model.showHelp {
		t.Error("Escape should close help")
	}
}

func TestModel_Notifications(t *testing.T) {
	model := NewModel(nil)

	model.Update(AddNotificationMsg{Message: "Test Note", Type: NotificationInfo})

	notifs := model.state.Notifications()
	if len(notifs) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifs))
	}

	model.ready = true
	model.width = 80
	model.height = 24
	if view := model.View(); !strings.Contains(view, "Test Note") {
		t.Error("View should show notification")
	}

	model.Update(RemoveNotificationMsg{ID: notifs[0].ID})
	if len(model.state.Notifications()) != 0 {
		t.Error("notification should be removed")
	}
}

func TestModel_HandleSnapshotEvent(t *testing.T) {
	model := NewModel(nil)
	tab := &stubTab{}
	model.SetTabs([]Tab{tab, nil, nil})

	ev := services.SnapshotEvent{
		Snapshot: models.UsageSnapshot{TotalTokens: 42},
		Level:    models.LevelCritical,
		Trigger:  services.TriggerChange,
	}
	cmd := model.handleServiceEvent(ev)
	if cmd == nil {
		t.Fatal("snapshot should be forwarded")
	}
	fwd, ok := cmd().(SnapshotUpdatedMsg)
	if !ok {
		t.Fatalf("Expected SnapshotUpdatedMsg, got %T", cmd())
	}
	if fwd.Event.Snapshot.TotalTokens != 42 {
		t.Error("forwarded event mismatch")
	}

	snap, ok := model.state.Snapshot()
	if !ok || snap.TotalTokens != 42 {
		t.Error("state should hold the snapshot")
	}
	if model.state.Level() != models.LevelCritical {
		t.Error("level not applied")
	}

	model.Update(fwd)
	if len(tab.msgs) == 0 {
		t.Error("active tab should receive the update")
	}
}

func TestModel_CurrentSnapshotOnlyWhenEmpty(t *testing.T) {
	model := NewModel(nil)

	model.Update(currentSnapshotMsg{event: services.SnapshotEvent{Snapshot: models.UsageSnapshot{TotalTokens: 1}}})
	model.Update(currentSnapshotMsg{event: services.SnapshotEvent{Snapshot: models.UsageSnapshot{TotalTokens: 2}}})

	snap, _ := model.state.Snapshot()
	if snap.TotalTokens != 1 {
		t.Errorf("TotalTokens = %d, want 1", snap.TotalTokens)
	}
}

func TestModel_HandleAlertEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     services.AlertEvent
		wantType  NotificationType
		wantAlert bool
	}{
		{"delivered", services.AlertEvent{Alert: models.Alert{ID: "a", Kind: models.AlertCritical}, Delivered: true}, NotificationWarning, true},
		{"failed", services.AlertEvent{Alert: models.Alert{ID: "b"}}, NotificationError, true},
		{"suppressed", services.AlertEvent{Alert: models.Alert{Kind: models.AlertWarning}, Suppressed: true}, NotificationInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewModel(nil)
			cmd := model.handleServiceEvent(tt.event)
			if cmd == nil {
				t.Fatal("alert event should notify")
			}
			add, ok := cmd().(AddNotificationMsg)
			if !ok {
				t.Fatalf("Expected AddNotificationMsg, got %T", cmd())
			}
			if add.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", add.Type, tt.wantType)
			}
			if got := len(model.state.Alerts()) == 1; got != tt.wantAlert {
				t.Errorf("alert recorded = %v, want %v", got, tt.wantAlert)
			}
		})
	}
}

func TestModel_HandlePlanAndErrorEvents(t *testing.T) {
	model := NewModel(nil)

	cmd := model.handleServiceEvent(services.PlanChangedEvent{Plan: config.PlanMax20x, TokenLimit: config.PlanMax20x.TokenLimit()})
	if model.state.Plan() != config.PlanMax20x {
		t.Error("plan should be updated")
	}
	if add, ok := cmd().(AddNotificationMsg); !ok || !strings.Contains(add.Message, "400.0M") {
		t.Errorf("unexpected plan notification %+v", cmd())
	}

	cmd = model.handleServiceEvent(services.ErrorEvent{Service: "watcher", Error: errors.New("boom")})
	add, ok := cmd().(AddNotificationMsg)
	if !ok || add.Type != NotificationError || !strings.Contains(add.Message, "boom") {
		t.Errorf("unexpected error notification %+v", add)
	}
}

func TestModel_Update_Messages(t *testing.T) {
	model := NewModel(nil)

	model.Update(StartLoadingMsg{Resource: ResourceRefresh})
	if !model.state.AnyLoading() {
		t.Error("refresh loading should be set")
	}

	model.state.SetLoading(ResourceInitial, false)
	model.Update(StopLoadingMsg{Resource: ResourceRefresh})
	if model.state.AnyLoading() {
		t.Error("loading should be cleared")
	}
	if len(model.state.Notifications()) != 0 {
		t.Error("loading toast should be cleared")
	}

	tests := []struct {
		name string
		msg  tea.Msg
		want NotificationType
	}{
		{"refresh failed", RefreshResultMsg{Error: errors.New("fail")}, NotificationError},
		{"plan failed", PlanSetMsg{Error: errors.New("fail")}, NotificationError},
		{"test alert", TestAlertSentMsg{Alert: models.Alert{Kind: models.AlertWarning}}, NotificationInfo},
		{"cooldowns", CooldownsResetMsg{}, NotificationSuccess},
		{"error", ErrorMsg{Error: errors.New("fail")}, NotificationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := model.handleAppMsg(tt.msg)
			if len(cmds) != 1 {
				t.Fatalf("got %d commands, want 1", len(cmds))
			}
			add, ok := cmds[0]().(AddNotificationMsg)
			if !ok {
				t.Fatalf("Expected AddNotificationMsg, got %T", cmds[0]())
			}
			if add.Type != tt.want {
				t.Errorf("Type = %v, want %v", add.Type, tt.want)
			}
		})
	}

	if cmds := model.handleAppMsg(RefreshResultMsg{}); len(cmds) != 0 {
		t.Error("successful refresh should stay quiet")
	}
}

func TestModel_HandleSpinnerTick(t *testing.T) {
	model := NewModel(nil)
	_, cmd := model.Update(spinner.TickMsg{})
	if cmd == nil {
		t.Error("Spinner tick should return command")
	}
}

func TestTabID_String(t *testing.T) {
	tests := []struct {
		id   TabID
		want string
	}{
		{TabDashboard, "Dashboard"},
		{TabHistory, "History"},
		{TabInfo, "Info"},
		{TabID(999), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()
	if len(km.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(km.FullHelp()) != 3 {
		t.Errorf("FullHelp groups = %d, want 3", len(km.FullHelp()))
	}
}

func TestModel_HistoryReachesInactiveTabs(t *testing.T) {
	model := NewModel(nil)
	dash, hist := &stubTab{}, &stubTab{}
	model.SetTabs([]Tab{dash, hist, nil})

	model.Update(HistoryLoadedMsg{})
	if len(hist.msgs) != 1 {
		t.Errorf("inactive history tab got %d messages, want 1", len(hist.msgs))
	}

	model.Update(TickMsg{})
	if len(hist.msgs) != 1 {
		t.Error("other messages should only reach the active tab")
	}
	if len(dash.msgs) != 2 {
		t.Errorf("active tab got %d messages, want 2", len(dash.msgs))
	}
}
