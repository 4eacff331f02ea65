package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second

	historyTimeout = 5 * time.Second
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// currentSnapshotMsg carries a snapshot read directly from the manager.
type currentSnapshotMsg struct {
	event services.SnapshotEvent
}

// loadCurrentCmd picks up a snapshot published before the UI subscribed.
func loadCurrentCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ev := mgr.Current()
		if ev == nil {
			return nil
		}
		return currentSnapshotMsg{event: *ev}
	}
}

// refreshCmd runs a manual aggregation pass.
func refreshCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return RefreshResultMsg{Error: mgr.Refresh()}
	}
}

// loadHistoryCmd reads the stored samples and alerts of the current window.
func loadHistoryCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()

		samples, err := mgr.WindowSamples(ctx)
		if err != nil {
			return HistoryLoadedMsg{Error: err}
		}
		alerts, err := mgr.WindowAlerts(ctx)
		return HistoryLoadedMsg{Samples: samples, Alerts: alerts, Error: err}
	}
}

// setPlanCmd switches the plan and persists it.
func setPlanCmd(mgr *services.Manager, plan config.Plan) tea.Cmd {
	return func() tea.Msg {
		return PlanSetMsg{Plan: plan, Error: mgr.SetPlan(plan)}
	}
}

// sendTestAlertCmd delivers a forced alert.
func sendTestAlertCmd(mgr *services.Manager, kind models.AlertKind) tea.Cmd {
	return func() tea.Msg {
		return TestAlertSentMsg{Alert: mgr.SendTestAlert(kind)}
	}
}

// resetCooldownsCmd clears every alert cooldown.
func resetCooldownsCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		mgr.ResetCooldowns()
		return CooldownsResetMsg{}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, LongNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// Commands exposes the manager-backed commands to tabs.
type Commands struct {
	manager *services.Manager
}

// NewCommands creates a new Commands instance.
func NewCommands(mgr *services.Manager) *Commands {
	return &Commands{manager: mgr}
}

// LoadHistory returns a command that loads the window history, or nil
// without a manager.
func (c *Commands) LoadHistory() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadHistoryCmd(c.manager)
}

// Refresh returns a command that runs a manual refresh, or nil without a
// manager.
func (c *Commands) Refresh() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return refreshCmd(c.manager)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyInfoCmd(message)
}
