// Package alerts decides when usage crosses a threshold and whether the
// resulting notification is allowed through its cooldown.
package alerts

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// Policy holds the thresholds and cooldown an evaluation runs against.
type Policy struct {
	WarningThreshold  float64
	CriticalThreshold float64
	Cooldown          time.Duration
}

// Target returns the level a percentage maps to. Critical is checked first.
func (p Policy) Target(percentage float64) models.AlertLevel {
	switch {
	case percentage >= p.CriticalThreshold:
		return models.LevelCritical
	case percentage >= p.WarningThreshold:
		return models.LevelWarning
	default:
		return models.LevelNormal
	}
}

// Evaluation is the outcome of one Evaluate call.
type Evaluation struct {
	Previous   models.AlertLevel
	Level      models.AlertLevel
	Send       []models.Alert // admitted, to be delivered
	Suppressed []models.Alert // emitted but held back by cooldown
}

// Changed reports whether the level moved.
func (e Evaluation) Changed() bool {
	return e.Previous != e.Level
}

// Machine is the hysteresis state machine. Level and cooldown bookkeeping
// share one mutex since passes complete on different goroutines.
type Machine struct {
	mu       sync.Mutex
	level    models.AlertLevel
	lastSent map[models.AlertKind]time.Time
}

// NewMachine returns a machine at LevelNormal with no cooldowns.
func NewMachine() *Machine {
	return &Machine{
		lastSent: make(map[models.AlertKind]time.Time),
	}
}

// Evaluate applies one snapshot. Alerts are emitted only on an upward
// crossing; dropping back to Normal clears every cooldown.
func (m *Machine) Evaluate(snap models.UsageSnapshot, p Policy, now time.Time) Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := Evaluation{Previous: m.level}
	target := p.Target(snap.Percentage)

	switch {
	case target == models.LevelCritical && m.level < models.LevelCritical:
		m.level = models.LevelCritical
		m.emitLocked(&ev, models.AlertCritical, snap, p.Cooldown, now)

	case target == models.LevelWarning && m.level < models.LevelWarning:
		m.level = models.LevelWarning
		m.emitLocked(&ev, models.AlertWarning, snap, p.Cooldown, now)

	case target == models.LevelNormal && m.level > models.LevelNormal:
		m.level = models.LevelNormal
		clear(m.lastSent)
	}

	ev.Level = m.level
	return ev
}

func (m *Machine) emitLocked(ev *Evaluation, kind models.AlertKind, snap models.UsageSnapshot, cooldown time.Duration, now time.Time) {
	a := newAlert(kind, snap, now, false)
	if m.admitLocked(kind, cooldown, now, false) {
		ev.Send = append(ev.Send, a)
	} else {
		ev.Suppressed = append(ev.Suppressed, a)
	}
}

// Admit applies the per-kind cooldown. An admitted alert records now as the
// kind's last delivery, whether or not delivery later succeeds.
func (m *Machine) Admit(kind models.AlertKind, cooldown time.Duration, now time.Time, force bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admitLocked(kind, cooldown, now, force)
}

func (m *Machine) admitLocked(kind models.AlertKind, cooldown time.Duration, now time.Time, force bool) bool {
	if !force {
		if last, ok := m.lastSent[kind]; ok && now.Sub(last) < cooldown {
			return false
		}
	}
	m.lastSent[kind] = now
	return true
}

// ForceAlert builds an alert that bypasses the cooldown. The level is not
// touched.
func (m *Machine) ForceAlert(kind models.AlertKind, snap models.UsageSnapshot, now time.Time) models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.admitLocked(kind, 0, now, true)
	return newAlert(kind, snap, now, true)
}

// ResetCooldowns forgets every last-delivery time.
func (m *Machine) ResetCooldowns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.lastSent)
}

// Level returns the current level.
func (m *Machine) Level() models.AlertLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// LastSent returns when kind was last admitted.
func (m *Machine) LastSent(kind models.AlertKind) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.lastSent[kind]
	return t, ok
}

func newAlert(kind models.AlertKind, snap models.UsageSnapshot, now time.Time, forced bool) models.Alert {
	return models.Alert{
		At:              now,
		ID:              uuid.NewString(),
		Kind:            kind,
		Percentage:      snap.Percentage,
		RemainingTokens: snap.RemainingTokens,
		Forced:          forced,
	}
}
