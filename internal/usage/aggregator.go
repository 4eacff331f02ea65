package usage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// Recorder receives aggregation telemetry. A nil Recorder is allowed.
type Recorder interface {
	FragmentFailed()
}

// Params are the configuration values an aggregation pass depends on.
type Params struct {
	TokenLimit  uint64
	WindowHours int
}

// Aggregator scans every fragment under a root directory and sums the
// usage that falls inside the trailing window. It keeps no state between
// passes other than the "root missing" warning latch, so concurrent calls
// are safe.
type Aggregator struct {
	root     string
	suffix   string
	recorder Recorder

	rootMissing atomic.Bool
}

// NewAggregator creates an aggregator over root.
func NewAggregator(root string, recorder Recorder) *Aggregator {
	return &Aggregator{
		root:     root,
		suffix:   FragmentSuffix,
		recorder: recorder,
	}
}

// Root returns the scanned directory.
func (a *Aggregator) Root() string {
	return a.root
}

type tally struct {
	total     uint64
	oldest    time.Time
	records   int
	fragments int
}

func (t *tally) add(rec models.UsageRecord) {
	t.total += rec.Tokens
	t.records++
	if t.oldest.IsZero() || rec.Timestamp.Before(t.oldest) {
		t.oldest = rec.Timestamp
	}
}

// Aggregate re-reads every fragment and returns the snapshot for the window
// ending at now. Per-fragment failures are logged and skipped. The only
// error returned is ctx's, in which case the partial result is discarded.
func (a *Aggregator) Aggregate(ctx context.Context, p Params, now time.Time) (models.UsageSnapshot, error) {
	window := models.NewUsageWindow(now, p.WindowHours)

	root, err := resolveRoot(a.root)
	if err != nil {
		if a.rootMissing.CompareAndSwap(false, true) {
			logger.Warn("log root not found, reporting zero usage", "root", a.root)
		}
		return models.EmptySnapshot(p.TokenLimit, window), nil
	}
	if a.rootMissing.CompareAndSwap(true, false) {
		logger.Info("log root available", "root", a.root)
	}

	var t tally
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable directories are skipped like unreadable fragments.
			logger.Debug("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), a.suffix) {
			return nil
		}

		if err := a.scanFragment(ctx, path, window, &t); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("skipping log fragment", "path", path, "error", err)
			if a.recorder != nil {
				a.recorder.FragmentFailed()
			}
			return nil
		}
		t.fragments++
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return models.UsageSnapshot{}, walkErr
		}
		logger.Warn("log walk ended early", "root", a.root, "error", walkErr)
	}

	snap := models.NewUsageSnapshot(t.total, p.TokenLimit, t.oldest, window)
	snap.RecordCount = t.records
	snap.FragmentCount = t.fragments
	return snap, nil
}

// resolveRoot follows symlinks in root and checks that it names a directory.
// WalkDir does not descend into a symlinked root.
func resolveRoot(root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", resolved)
	}
	return resolved, nil
}

// scanFragment adds the in-window records of one fragment to t. Records
// are only committed to t when the whole fragment was read, so a fragment
// that fails half way contributes nothing.
func (a *Aggregator) scanFragment(ctx context.Context, path string, window models.UsageWindow, t *tally) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var local tally
	r := bufio.NewReaderSize(f, 64*1024)
	for n := 1; ; n++ {
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 {
			if rec, ok := ParseRecord(line); ok && window.Contains(rec.Timestamp) {
				local.add(rec)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}

	t.total += local.total
	t.records += local.records
	if !local.oldest.IsZero() && (t.oldest.IsZero() || local.oldest.Before(t.oldest)) {
		t.oldest = local.oldest
	}
	return nil
}
