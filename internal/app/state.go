// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"strconv"
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
	maxRecentAlerts  = 20
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing toast.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// Loadable resources.
const (
	ResourceInitial = "initial"
	ResourceRefresh = "refresh"
	ResourceHistory = "history"
)

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial bool
	Refresh bool
	History bool
}

// State is shared between the root model and every tab.
type State struct {
	mu sync.RWMutex

	snapshot   models.UsageSnapshot
	hasData    bool
	level      models.AlertLevel
	projection *models.Projection
	trigger    services.Trigger
	plan       config.Plan

	samples []models.UsageSample
	alerts  []models.AlertRecord // newest first

	loading     LoadingState
	lastUpdated time.Time

	notifications   []Notification
	notificationSeq int
}

// NewState returns an empty state waiting for its first snapshot.
func NewState() *State {
	return &State{
		plan:          config.DefaultPlan,
		notifications: make([]Notification, 0),
		loading:       LoadingState{Initial: true},
	}
}

// ApplySnapshot records a published snapshot.
func (s *State) ApplySnapshot(ev services.SnapshotEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = ev.Snapshot
	s.level = ev.Level
	s.trigger = ev.Trigger
	if ev.Projection != nil || ev.Trigger != services.TriggerInitial {
		s.projection = ev.Projection
	}
	s.hasData = true
	s.loading.Initial = false
	s.lastUpdated = time.Now()
}

// Snapshot returns the latest snapshot and whether one arrived yet.
func (s *State) Snapshot() (models.UsageSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasData
}

// Level returns the alert level of the latest snapshot.
func (s *State) Level() models.AlertLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// Projection returns the latest projection, or nil.
func (s *State) Projection() *models.Projection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projection
}

// Trigger returns what caused the latest snapshot.
func (s *State) Trigger() services.Trigger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trigger
}

// SetPlan records the active plan.
func (s *State) SetPlan(p config.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = p
}

// Plan returns the active plan.
func (s *State) Plan() config.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// SetHistory replaces the stored samples and alerts of the window.
func (s *State) SetHistory(samples []models.UsageSample, alerts []models.AlertRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = samples
	if len(alerts) > maxRecentAlerts {
		alerts = alerts[:maxRecentAlerts]
	}
	s.alerts = alerts
}

// Samples returns a copy of the window samples, oldest first.
func (s *State) Samples() []models.UsageSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UsageSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// AddAlert puts an alert outcome at the top of the recent list. A later
// outcome for the same alert ID replaces the earlier one.
func (s *State) AddAlert(rec models.AlertRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == rec.ID {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			break
		}
	}
	s.alerts = append([]models.AlertRecord{rec}, s.alerts...)
	if len(s.alerts) > maxRecentAlerts {
		s.alerts = s.alerts[:maxRecentAlerts]
	}
}

// Alerts returns a copy of the recent alerts, newest first.
func (s *State) Alerts() []models.AlertRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AlertRecord, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case ResourceInitial:
		s.loading.Initial = loading
	case ResourceRefresh:
		s.loading.Refresh = loading
	case ResourceHistory:
		s.loading.History = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading.Initial || s.loading.Refresh || s.loading.History
}

// IsInitialLoading returns true until the first snapshot arrives.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading.Initial
}

// LastUpdated returns when the last snapshot was applied.
func (s *State) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := "n" + strconv.Itoa(s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = activeNotifications(s.notifications)
}

// Notifications returns a copy of all active notifications.
func (s *State) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeNotifications(s.notifications)
}

func activeNotifications(all []Notification) []Notification {
	active := make([]Notification, 0, len(all))
	for _, n := range all {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification shows or updates the spinner toast.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the spinner toast.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}
