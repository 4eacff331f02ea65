package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

func TestLogRenderer_OnSnapshot(t *testing.T) {
	var buf bytes.Buffer
	original := logger.Logger
	logger.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	defer func() { logger.Logger = original }()

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	window := models.NewUsageWindow(now, 5)
	snap := models.NewUsageSnapshot(960_000, 1_000_000, now.Add(-3*time.Hour), window)
	snap.RecordCount = 12

	r := NewLogRenderer()
	r.now = func() time.Time { return now }
	r.OnSnapshot(snap)

	out := buf.String()
	for _, want := range []string{
		"msg=usage",
		"tokens=960.0K",
		"limit=1.0M",
		"percent=96.0%",
		"status=CRITICAL",
		`reset_in="2h 00m"`,
		"records=12",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}
