package app

import (
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

func TestNewState(t *testing.T) {
	s := NewState()
	if s == nil {
		t.Fatal("NewState returned nil")
	}
	if _, ok := s.Snapshot(); ok {
		t.Error("new state should have no snapshot")
	}
	if !s.IsInitialLoading() {
		t.Error("Initial loading should be true")
	}
	if s.Plan() != config.DefaultPlan {
		t.Errorf("Plan = %v, want %v", s.Plan(), config.DefaultPlan)
	}
}

func TestState_ApplySnapshot(t *testing.T) {
	s := NewState()
	proj := &models.Projection{TokensPerMinute: 10, Status: models.ProjectionSafe}

	s.ApplySnapshot(services.SnapshotEvent{
		Snapshot:   models.UsageSnapshot{TotalTokens: 500, TokenLimit: 1000, Percentage: 50},
		Level:      models.LevelWarning,
		Projection: proj,
		Trigger:    services.TriggerStartup,
	})

	snap, ok := s.Snapshot()
	if !ok {
		t.Fatal("snapshot should be present")
	}
	if snap.TotalTokens != 500 {
		t.Errorf("TotalTokens = %d, want 500", snap.TotalTokens)
	}
	if s.Level() != models.LevelWarning {
		t.Errorf("Level = %v, want warning", s.Level())
	}
	if s.Trigger() != services.TriggerStartup {
		t.Errorf("Trigger = %q", s.Trigger())
	}
	if s.Projection() != proj {
		t.Error("projection not stored")
	}
	if s.IsInitialLoading() {
		t.Error("Initial loading should be cleared")
	}
	if s.LastUpdated().IsZero() {
		t.Error("LastUpdated not set")
	}

	// The placeholder snapshot carries no projection and must not wipe one.
	s.ApplySnapshot(services.SnapshotEvent{Trigger: services.TriggerInitial})
	if s.Projection() != proj {
		t.Error("initial snapshot cleared the projection")
	}

	s.ApplySnapshot(services.SnapshotEvent{Trigger: services.TriggerInterval})
	if s.Projection() != nil {
		t.Error("projection should follow later snapshots")
	}
}

func TestState_SetLoading(t *testing.T) {
	s := NewState()

	s.SetLoading(ResourceRefresh, true)
	if !s.AnyLoading() {
		t.Error("AnyLoading should be true")
	}

	s.SetLoading(ResourceRefresh, false)
	if !s.AnyLoading() {
		t.Error("AnyLoading should be true (Initial is true)")
	}

	s.SetLoading(ResourceInitial, false)
	if s.AnyLoading() {
		t.Error("AnyLoading should be false")
	}

	s.SetLoading(ResourceHistory, true)
	if !s.AnyLoading() {
		t.Error("history loading not tracked")
	}

	s.SetLoading("unknown", true)
	s.SetLoading(ResourceHistory, false)
	if s.AnyLoading() {
		t.Error("unknown resource should be ignored")
	}
}

func TestState_History(t *testing.T) {
	s := NewState()

	samples := []models.UsageSample{{TotalTokens: 1}, {TotalTokens: 2}}
	alerts := make([]models.AlertRecord, maxRecentAlerts+5)
	s.SetHistory(samples, alerts)

	got := s.Samples()
	if len(got) != 2 {
		t.Fatalf("Samples len = %d, want 2", len(got))
	}
	got[0].TotalTokens = 99
	if s.Samples()[0].TotalTokens != 1 {
		t.Error("Samples should return a copy")
	}
	if len(s.Alerts()) != maxRecentAlerts {
		t.Errorf("Alerts len = %d, want %d", len(s.Alerts()), maxRecentAlerts)
	}
}

func TestState_AddAlert(t *testing.T) {
	s := NewState()

	s.AddAlert(models.AlertRecord{Alert: models.Alert{ID: "a"}})
	s.AddAlert(models.AlertRecord{Alert: models.Alert{ID: "b"}})
	s.AddAlert(models.AlertRecord{Alert: models.Alert{ID: "a"}, Delivered: true})

	alerts := s.Alerts()
	if len(alerts) != 2 {
		t.Fatalf("Alerts len = %d, want 2", len(alerts))
	}
	if alerts[0].ID != "a" || !alerts[0].Delivered {
		t.Errorf("newest alert = %+v, want delivered a", alerts[0])
	}
	if alerts[1].ID != "b" {
		t.Errorf("second alert = %q, want b", alerts[1].ID)
	}

	for range maxRecentAlerts + 3 {
		s.AddAlert(models.AlertRecord{})
	}
	if len(s.Alerts()) > maxRecentAlerts {
		t.Errorf("Alerts len = %d, exceeds %d", len(s.Alerts()), maxRecentAlerts)
	}
}

func TestState_Notifications(t *testing.T) {
	s := NewState()

	id := s.AddNotification(NotificationInfo, "test", time.Minute)
	if id == "" {
		t.Error("AddNotification returned empty ID")
	}

	notifs := s.Notifications()
	if len(notifs) != 1 {
		t.Errorf("Notifications len = %d, want 1", len(notifs))
	}
	if notifs[0].Message != "test" {
		t.Errorf("Notification message = %s, want test", notifs[0].Message)
	}

	s.RemoveNotification(id)
	if len(s.Notifications()) != 0 {
		t.Error("Notification should be removed")
	}

	for range maxNotifications + 2 {
		s.AddNotification(NotificationInfo, "x", 0)
	}
	if len(s.Notifications()) != maxNotifications {
		t.Errorf("Notifications len = %d, want %d", len(s.Notifications()), maxNotifications)
	}
}

func TestState_ClearExpiredNotifications(t *testing.T) {
	s := NewState()

	s.notifications = append(s.notifications,
		Notification{ID: "expired", CreatedAt: time.Now().Add(-2 * time.Minute), Duration: time.Minute},
		Notification{ID: "active", CreatedAt: time.Now(), Duration: time.Minute},
		Notification{ID: "sticky", CreatedAt: time.Now().Add(-time.Hour)},
	)

	s.ClearExpiredNotifications()

	notifs := s.Notifications()
	if len(notifs) != 2 {
		t.Fatalf("Notifications len = %d, want 2", len(notifs))
	}
	for _, n := range notifs {
		if n.ID == "expired" {
			t.Error("expired notification kept")
		}
	}
}

func TestState_LoadingNotification(t *testing.T) {
	s := NewState()

	s.SetLoadingNotification("one")
	s.SetLoadingNotification("two")

	notifs := s.Notifications()
	if len(notifs) != 1 {
		t.Fatalf("Notifications len = %d, want 1", len(notifs))
	}
	if notifs[0].Message != "two" || notifs[0].Type != NotificationLoading {
		t.Errorf("loading notification = %+v", notifs[0])
	}

	s.ClearLoadingNotification()
	if len(s.Notifications()) != 0 {
		t.Error("loading notification not cleared")
	}
}

func TestNotificationType_String(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
		{NotificationWarning, "warning"},
		{NotificationInfo, "info"},
		{NotificationLoading, "loading"},
		{NotificationType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
