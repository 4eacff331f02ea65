package app

import (
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

// TickMsg is sent periodically to expire toasts and redraw countdowns.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// SnapshotUpdatedMsg is forwarded to tabs after the state took a snapshot.
type SnapshotUpdatedMsg struct {
	Event services.SnapshotEvent
}

// RefreshResultMsg carries the outcome of a manual refresh.
type RefreshResultMsg struct {
	Error error
}

// HistoryLoadedMsg contains the stored samples and alerts of the window.
type HistoryLoadedMsg struct {
	Samples []models.UsageSample
	Alerts  []models.AlertRecord
	Error   error
}

// PlanSetMsg carries the outcome of a plan switch.
type PlanSetMsg struct {
	Plan  config.Plan
	Error error
}

// TestAlertSentMsg confirms a forced alert was handed to the dispatcher.
type TestAlertSentMsg struct {
	Alert models.Alert
}

// CooldownsResetMsg confirms alert cooldowns were cleared.
type CooldownsResetMsg struct{}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// TabActivatedMsg is sent to a tab when it becomes the visible one.
type TabActivatedMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}
