package db

import (
	"context"
	"fmt"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
)

// migrations are applied in order; the schema version is the number of
// entries applied, tracked in PRAGMA user_version.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS usage_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		token_limit INTEGER NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_usage_samples_ts ON usage_samples(ts);
	`,
	`
	CREATE TABLE IF NOT EXISTS alert_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		percentage REAL NOT NULL DEFAULT 0,
		remaining_tokens INTEGER NOT NULL DEFAULT 0,
		forced INTEGER NOT NULL DEFAULT 0,
		delivered INTEGER NOT NULL DEFAULT 0,
		ts TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_events_ts ON alert_events(ts);
	`,
}

// SchemaVersion returns the applied schema version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// migrate applies every migration newer than the stored version, each in
// its own transaction.
func (db *DB) migrate(ctx context.Context) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
		logger.Debug("applied database migration", "version", i+1)
	}
	return nil
}
