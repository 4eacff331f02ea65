package app

import (
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
)

// LogRenderer writes each published snapshot as a structured log line. It is
// the status output of headless runs.
type LogRenderer struct {
	now func() time.Time
}

// NewLogRenderer returns a renderer using the wall clock.
func NewLogRenderer() *LogRenderer {
	return &LogRenderer{now: time.Now}
}

// OnSnapshot implements services.StatusRenderer.
func (r *LogRenderer) OnSnapshot(s models.UsageSnapshot) {
	logger.Info("usage",
		"tokens", components.FormatTokens(s.TotalTokens),
		"limit", components.FormatTokens(s.TokenLimit),
		"percent", components.FormatPercent(s.Percentage),
		"status", string(s.Status()),
		"reset_in", components.FormatCountdown(s.TimeUntilReset(r.now())),
		"records", s.RecordCount,
	)
}
