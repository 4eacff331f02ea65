package models

import "time"

// UsageSample is a published snapshot reduced to the values worth charting.
type UsageSample struct {
	Timestamp   time.Time
	TotalTokens uint64
	TokenLimit  uint64
	Percentage  float64
}

// ProjectionStatus indicates urgency level for limit exhaustion.
type ProjectionStatus string

const (
	ProjectionSafe     ProjectionStatus = "SAFE"
	ProjectionWarning  ProjectionStatus = "WARNING"
	ProjectionCritical ProjectionStatus = "CRITICAL"
	ProjectionUnknown  ProjectionStatus = "UNKNOWN"
)

// Projection estimates when the limit runs out at the current burn rate.
type Projection struct {
	ExhaustsAt      time.Time     // zero when the rate is zero or unknown
	ResetAt         time.Time     // copied from the snapshot
	TimeToExhaust   time.Duration // zero when unknown
	TokensPerMinute float64
	DataPoints      int
	Confidence      string // low, medium or high depending on DataPoints
	BeforeReset     bool   // limit is hit before the window resets
	Status          ProjectionStatus
}

// KnownRate reports whether a burn rate could be measured.
func (p *Projection) KnownRate() bool {
	return p != nil && p.TokensPerMinute > 0
}
