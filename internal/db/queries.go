package db

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// timeLayout sorts lexically in UTC, so range filters can compare text.
const timeLayout = "2006-01-02 15:04:05.000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		logger.Debug("unparseable stored timestamp", "value", s, "error", err)
		return time.Time{}
	}
	return t
}

// RecordSample stores one published snapshot.
func (db *DB) RecordSample(ctx context.Context, s models.UsageSample) error {
	query := `
		INSERT INTO usage_samples (ts, total_tokens, token_limit, percentage)
		VALUES (?, ?, ?, ?)
	`

	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if _, err := db.ExecContext(ctx, query,
		formatTime(ts),
		int64(s.TotalTokens),
		int64(s.TokenLimit),
		s.Percentage,
	); err != nil {
		return fmt.Errorf("failed to insert usage sample: %w", err)
	}
	return nil
}

// SamplesSince returns samples at or after since, oldest first.
func (db *DB) SamplesSince(ctx context.Context, since time.Time) ([]models.UsageSample, error) {
	query := `
		SELECT ts, total_tokens, token_limit, percentage
		FROM usage_samples
		WHERE ts >= ?
		ORDER BY ts ASC, id ASC
	`

	rows, err := db.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []models.UsageSample
	for rows.Next() {
		var (
			s            models.UsageSample
			ts           string
			total, limit int64
		)
		if err := rows.Scan(&ts, &total, &limit, &s.Percentage); err != nil {
			return nil, fmt.Errorf("failed to scan usage sample: %w", err)
		}
		s.Timestamp = parseTime(ts)
		s.TotalTokens = uint64(total)
		s.TokenLimit = uint64(limit)
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// RecordAlert stores an alert and its delivery outcome.
func (db *DB) RecordAlert(ctx context.Context, a models.Alert, delivered bool) error {
	query := `
		INSERT INTO alert_events (id, kind, percentage, remaining_tokens, forced, delivered, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET delivered = excluded.delivered
	`

	if _, err := db.ExecContext(ctx, query,
		a.ID,
		a.Kind.String(),
		a.Percentage,
		int64(a.RemainingTokens),
		boolToInt(a.Forced),
		boolToInt(delivered),
		formatTime(a.At),
	); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// AlertsSince returns alerts at or after since, newest first.
func (db *DB) AlertsSince(ctx context.Context, since time.Time) ([]models.AlertRecord, error) {
	query := `
		SELECT id, kind, percentage, remaining_tokens, forced, delivered, ts
		FROM alert_events
		WHERE ts >= ?
		ORDER BY ts DESC
	`

	rows, err := db.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.AlertRecord
	for rows.Next() {
		var (
			r                 models.AlertRecord
			kind, ts          string
			remaining         int64
			forced, delivered int
		)
		if err := rows.Scan(&r.ID, &kind, &r.Percentage, &remaining, &forced, &delivered, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		k, ok := models.ParseAlertKind(kind)
		if !ok {
			logger.Debug("skipping alert with unknown kind", "kind", kind)
			continue
		}
		r.Kind = k
		r.RemainingTokens = uint64(remaining)
		r.Forced = forced != 0
		r.Delivered = delivered != 0
		r.At = parseTime(ts)
		records = append(records, r)
	}

	return records, rows.Err()
}

// PruneBefore deletes every sample and alert older than cutoff and returns
// the number of rows removed.
func (db *DB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"usage_samples", "alert_events"} {
		// Table names come from the fixed list above.
		res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE ts < ?", formatTime(cutoff))
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
