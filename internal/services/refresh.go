package services

import (
	"context"
	"errors"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/metrics"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// ErrClosed is returned by refreshes requested after Close.
var ErrClosed = errors.New("manager closed")

const compactInterval = 6 * time.Hour

// onLogChange is the detector callback. A pass cut short by Close is not a
// failure.
func (m *Manager) onLogChange() error {
	err := m.refresh(TriggerChange)
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		logger.Debug("change refresh abandoned", "error", err)
		return nil
	}
	return err
}

// refresh runs one aggregation pass. Passes may overlap; the sequence
// number taken here decides whether the result is still worth publishing.
func (m *Manager) refresh(trigger Trigger) error {
	m.lifeMu.RLock()
	if m.closed {
		m.lifeMu.RUnlock()
		return ErrClosed
	}
	m.inflight.Add(1)
	m.lifeMu.RUnlock()
	defer m.inflight.Done()

	seq := m.seq.Add(1)
	started := time.Now()
	now := m.now()

	snap, err := m.aggregator.Aggregate(m.ctx, m.params(), now)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		logger.Error("aggregation failed", "trigger", trigger, "error", err)
		m.broadcast(ErrorEvent{Service: "aggregator", Error: err})
		return err
	}
	m.metrics.RecordRefresh(string(trigger), time.Since(started))

	m.publish(seq, snap, trigger, now)
	return nil
}

// publish makes snap the current snapshot unless a newer pass already won.
// Everything downstream of a snapshot happens here, in sequence order.
func (m *Manager) publish(seq uint64, snap models.UsageSnapshot, trigger Trigger, now time.Time) bool {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	if seq <= m.published {
		logger.Debug("dropping stale snapshot", "seq", seq, "published", m.published, "trigger", trigger)
		return false
	}
	m.published = seq

	eval := m.machine.Evaluate(snap, m.policy(), now)
	if eval.Changed() {
		logger.Info("alert level changed",
			"from", eval.Previous.String(),
			"to", eval.Level.String(),
			"percentage", snap.Percentage,
		)
	}
	for _, a := range eval.Send {
		logger.Info("usage alert", "kind", a.Kind, "percentage", a.Percentage, "id", a.ID)
		m.dispatcher.Dispatch(a)
	}
	for _, a := range eval.Suppressed {
		logger.Info("alert suppressed by cooldown", "kind", a.Kind, "percentage", a.Percentage)
		m.metrics.RecordAlert(a.Kind, metrics.ResultSuppressed)
		m.broadcast(AlertEvent{Alert: a, Suppressed: true})
	}

	m.metrics.SetAlertLevel(eval.Level)
	m.metrics.ObserveSnapshot(snap)

	ev := &SnapshotEvent{Snapshot: snap, Level: eval.Level, Trigger: trigger}
	if trigger != TriggerInitial {
		ev.Projection = m.storeSample(snap, now)
	}
	m.current.Store(ev)

	for _, r := range m.renderers {
		m.render(r, snap)
	}

	m.broadcast(*ev)
	return true
}

// storeSample persists the snapshot, prunes rows that left the window and
// recomputes the projection.
func (m *Manager) storeSample(snap models.UsageSnapshot, now time.Time) *models.Projection {
	if m.database == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sample := models.UsageSample{
		Timestamp:   snap.ComputedAt,
		TotalTokens: snap.TotalTokens,
		TokenLimit:  snap.TokenLimit,
		Percentage:  snap.Percentage,
	}
	if err := m.database.RecordSample(ctx, sample); err != nil {
		logger.Error("failed to record usage sample", "error", err)
	}
	if _, err := m.database.PruneBefore(ctx, snap.WindowStart); err != nil {
		logger.Warn("failed to prune samples", "error", err)
	}

	proj, err := m.projection.Calculate(ctx, snap, now)
	if err != nil {
		logger.Debug("projection without history", "error", err)
	}
	return proj
}

// compactStore returns space freed by pruning to the filesystem.
func (m *Manager) compactStore() {
	ctx, cancel := context.WithTimeout(m.ctx, time.Minute)
	defer cancel()

	freed, err := m.database.Compact(ctx)
	if err != nil {
		if m.ctx.Err() == nil {
			logger.Warn("failed to compact sample store", "error", err)
		}
		return
	}
	logger.Debug("sample store compacted", "pages_freed", freed)
}

func (m *Manager) render(r StatusRenderer, snap models.UsageSnapshot) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("status renderer panicked", "panic", p)
		}
	}()
	r.OnSnapshot(snap)
}

// onAlertResult runs once per dispatched alert, from the delivery goroutine
// or synchronously when the rate limiter dropped it.
func (m *Manager) onAlertResult(a models.Alert, delivered bool) {
	result := metrics.ResultDelivered
	if !delivered {
		result = metrics.ResultFailed
		logger.Warn("notification not delivered", "kind", a.Kind, "id", a.ID)
	}
	m.metrics.RecordAlert(a.Kind, result)

	if m.database != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.database.RecordAlert(ctx, a, delivered); err != nil {
			logger.Error("failed to record alert", "error", err)
		}
		cancel()
	}

	m.broadcast(AlertEvent{Alert: a, Delivered: delivered})
}
