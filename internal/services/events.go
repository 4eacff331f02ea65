package services

import (
	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// Trigger names the source of an aggregation pass.
type Trigger string

const (
	TriggerInitial  Trigger = "initial"
	TriggerStartup  Trigger = "startup"
	TriggerInterval Trigger = "interval"
	TriggerChange   Trigger = "change"
	TriggerManual   Trigger = "manual"
)

type (
	// SnapshotEvent is emitted for every published snapshot.
	SnapshotEvent struct {
		Snapshot   models.UsageSnapshot
		Level      models.AlertLevel
		Projection *models.Projection
		Trigger    Trigger
	}

	// AlertEvent is emitted when an alert was delivered, failed or was
	// held back by its cooldown.
	AlertEvent struct {
		Alert      models.Alert
		Delivered  bool
		Suppressed bool
	}

	// PlanChangedEvent is emitted after the plan was switched.
	PlanChangedEvent struct {
		Plan       config.Plan
		TokenLimit uint64
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (SnapshotEvent) isServiceEvent()    {}
func (AlertEvent) isServiceEvent()       {}
func (PlanChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()       {}

// StatusRenderer is told about every published snapshot, including the
// initial empty one.
type StatusRenderer interface {
	OnSnapshot(models.UsageSnapshot)
}
