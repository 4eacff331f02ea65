package models

import "time"

// AlertLevel is the hysteresis level owned by the alert state machine.
type AlertLevel int

const (
	LevelNormal AlertLevel = iota
	LevelWarning
	LevelCritical
)

// String returns the display name of the level.
func (l AlertLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// AlertKind identifies an alert type. Cooldowns are keyed by kind.
type AlertKind int

const (
	AlertWarning AlertKind = iota
	AlertCritical
)

// AlertKinds lists every kind in ascending severity.
var AlertKinds = []AlertKind{AlertWarning, AlertCritical}

// String returns the stable identifier used in logs, metrics and storage.
func (k AlertKind) String() string {
	switch k {
	case AlertWarning:
		return "usage_warning"
	case AlertCritical:
		return "usage_critical"
	default:
		return "unknown"
	}
}

// Level returns the alert level a kind is raised for.
func (k AlertKind) Level() AlertLevel {
	if k == AlertCritical {
		return LevelCritical
	}
	return LevelWarning
}

// ParseAlertKind is the inverse of AlertKind.String.
func ParseAlertKind(s string) (AlertKind, bool) {
	for _, k := range AlertKinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Alert is a notification decided by the state machine.
type Alert struct {
	At              time.Time
	ID              string
	Kind            AlertKind
	Percentage      float64
	RemainingTokens uint64
	Forced          bool
}

// AlertRecord is a stored alert with its delivery outcome.
type AlertRecord struct {
	Alert
	Delivered bool
}
