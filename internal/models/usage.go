// Package models defines data structures and domain types.
package models

import (
	"math"
	"time"
)

// TokenCounts holds the four token sub-counters reported on a usage record.
type TokenCounts struct {
	Input         uint64
	Output        uint64
	CacheCreation uint64
	CacheRead     uint64
}

// Total returns the sum of all sub-counters.
func (c TokenCounts) Total() uint64 {
	return c.Input + c.Output + c.CacheCreation + c.CacheRead
}

// UsageRecord is a single billable entry decoded from a log fragment.
type UsageRecord struct {
	Timestamp time.Time
	Tokens    uint64
}

// UsageWindow is the trailing span over which usage is summed.
type UsageWindow struct {
	Start time.Time
	End   time.Time
	Hours int
}

// NewUsageWindow returns the window of the given length ending at now.
func NewUsageWindow(now time.Time, hours int) UsageWindow {
	return UsageWindow{
		Start: now.Add(-time.Duration(hours) * time.Hour),
		End:   now,
		Hours: hours,
	}
}

// Contains reports whether t falls inside the window. Only the lower bound
// is checked; records written after the scan started belong to the next pass.
func (w UsageWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start)
}

// Duration returns the window length.
func (w UsageWindow) Duration() time.Duration {
	return time.Duration(w.Hours) * time.Hour
}

// UsageSnapshot is the immutable result of one aggregation pass.
// A zero time.Time in OldestInWindow or ResetAt means the value is absent.
type UsageSnapshot struct {
	ComputedAt      time.Time
	WindowStart     time.Time
	WindowEnd       time.Time
	OldestInWindow  time.Time
	ResetAt         time.Time
	TotalTokens     uint64
	TokenLimit      uint64
	RemainingTokens uint64
	Percentage      float64
	WindowHours     int
	RecordCount     int
	FragmentCount   int
}

// NewUsageSnapshot derives every computed field from the raw totals so that
// the clamping and reset rules live in one place.
func NewUsageSnapshot(total, limit uint64, oldest time.Time, window UsageWindow) UsageSnapshot {
	s := UsageSnapshot{
		ComputedAt:     window.End,
		WindowStart:    window.Start,
		WindowEnd:      window.End,
		WindowHours:    window.Hours,
		OldestInWindow: oldest,
		TotalTokens:    total,
		TokenLimit:     limit,
	}

	s.Percentage = UsagePercentage(total, limit)
	if total < limit {
		s.RemainingTokens = limit - total
	}
	if !oldest.IsZero() {
		s.ResetAt = oldest.Add(window.Duration())
	}
	return s
}

// EmptySnapshot returns the "no data yet" snapshot for a configured limit.
func EmptySnapshot(limit uint64, window UsageWindow) UsageSnapshot {
	return NewUsageSnapshot(0, limit, time.Time{}, window)
}

// UsagePercentage returns total/limit as a percentage clamped to [0, 100].
func UsagePercentage(total, limit uint64) float64 {
	if limit == 0 {
		return 0
	}
	p := float64(total) / float64(limit) * 100
	return math.Min(p, 100)
}

// HasReset reports whether the snapshot carries a reset time.
func (s UsageSnapshot) HasReset() bool {
	return !s.ResetAt.IsZero()
}

// TimeUntilReset returns the time left before the oldest in-window record
// ages out, or zero when unknown or already passed.
func (s UsageSnapshot) TimeUntilReset(now time.Time) time.Duration {
	if !s.HasReset() {
		return 0
	}
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Status returns the display status for the snapshot.
func (s UsageSnapshot) Status() UsageStatus {
	return StatusFor(s.Percentage)
}

// UsageStatus is the coarse display status shown next to the usage bar.
type UsageStatus string

const (
	StatusOK       UsageStatus = "OK"
	StatusWarning  UsageStatus = "WARNING"
	StatusCritical UsageStatus = "CRITICAL"
)

// StatusFor maps a percentage to a display status (>=90 critical, >=70 warning).
func StatusFor(percentage float64) UsageStatus {
	switch {
	case percentage >= 90:
		return StatusCritical
	case percentage >= 70:
		return StatusWarning
	default:
		return StatusOK
	}
}
