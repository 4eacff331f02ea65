// Package services wires the aggregator, change detector, interval
// scheduler and alerting into one refresh pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"

	"github.com/j-veylop/claude-usage-monitor/internal/alerts"
	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/db"
	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/metrics"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/notify"
	"github.com/j-veylop/claude-usage-monitor/internal/services/projection"
	"github.com/j-veylop/claude-usage-monitor/internal/usage"
	"github.com/j-veylop/claude-usage-monitor/internal/watcher"
)

// Options carries collaborators that callers may replace, mostly in tests.
type Options struct {
	Notifier       notify.Notifier // defaults to the desktop notifier
	Renderers      []StatusRenderer
	Metrics        *metrics.Metrics // defaults to a fresh registry
	Now            func() time.Time
	DisableWatcher bool
	DisableStore   bool
}

// Manager owns the published snapshot and every trigger that refreshes it.
type Manager struct {
	cfgMu sync.RWMutex
	cfg   config.Config

	aggregator *usage.Aggregator
	detector   *watcher.Detector
	cron       *cron.Cron
	machine    *alerts.Machine
	dispatcher *notify.Dispatcher
	database   *db.DB
	projection *projection.Service
	metrics    *metrics.Metrics
	renderers  []StatusRenderer
	now        func() time.Time

	// seq numbers passes at start; published is the newest one shown.
	seq       atomic.Uint64
	pubMu     sync.Mutex
	published uint64
	current   atomic.Pointer[SnapshotEvent]

	ctx      context.Context
	cancel   context.CancelFunc
	lifeMu   sync.RWMutex
	closed   bool
	started  bool
	inflight sync.WaitGroup

	mu          sync.RWMutex
	eventChan   chan ServiceEvent
	subscribers []chan ServiceEvent
}

// NewManager builds a manager. Nothing runs until Start.
func NewManager(cfg *config.Config, opts Options) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       *cfg,
		machine:   alerts.NewMachine(),
		metrics:   opts.Metrics,
		renderers: opts.Renderers,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
		eventChan: make(chan ServiceEvent, 100),
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}
	if m.now == nil {
		m.now = time.Now
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewDesktop()
	}
	m.dispatcher = notify.NewDispatcher(notifier, notify.DefaultInterval, cfg.NotifyBurst, m.onAlertResult)

	m.aggregator = usage.NewAggregator(cfg.LogRoot, m.metrics)

	if !opts.DisableStore && cfg.DatabasePath != "" {
		database, err := db.New(cfg.DatabasePath)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		m.database = database
		m.projection = projection.New(database)
	}

	if !opts.DisableWatcher {
		m.detector = watcher.NewDetector(cfg.LogRoot, usage.FragmentSuffix, cfg.DebounceDelay, m.onLogChange)
	}

	m.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})), cron.WithLogger(cronLogger{}))

	return m, nil
}

// Start publishes the empty snapshot, starts every trigger and kicks off
// the first scan in the background.
func (m *Manager) Start() error {
	m.lifeMu.Lock()
	if m.closed {
		m.lifeMu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.lifeMu.Unlock()
		return nil
	}
	m.started = true
	m.lifeMu.Unlock()

	cfg := m.Config()
	now := m.now()
	m.publish(m.seq.Add(1), models.EmptySnapshot(cfg.TokenLimit, models.NewUsageWindow(now, cfg.WindowHours)), TriggerInitial, now)

	if m.detector != nil {
		if err := m.detector.Start(); err != nil {
			logger.Error("change detection unavailable", "error", err)
			m.broadcast(ErrorEvent{Service: "watcher", Error: err})
		}
	}

	spec := fmt.Sprintf("@every %s", cfg.RefreshInterval)
	if _, err := m.cron.AddFunc(spec, func() {
		if err := m.refresh(TriggerInterval); err != nil {
			logger.Debug("interval refresh abandoned", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	if m.database != nil {
		if _, err := m.cron.AddFunc("@every "+compactInterval.String(), m.compactStore); err != nil {
			return fmt.Errorf("failed to schedule store compaction: %w", err)
		}
	}
	m.cron.Start()

	go func() {
		if err := m.refresh(TriggerStartup); err != nil {
			logger.Debug("startup refresh abandoned", "error", err)
		}
	}()

	logger.Info("usage monitor started",
		"root", cfg.LogRoot,
		"plan", cfg.Plan.String(),
		"token_limit", cfg.TokenLimit,
		"window_hours", cfg.WindowHours,
		"refresh_interval", cfg.RefreshInterval,
	)
	return nil
}

// Refresh runs a manual aggregation pass and waits for it.
func (m *Manager) Refresh() error {
	return m.refresh(TriggerManual)
}

// Config returns a copy of the effective configuration.
func (m *Manager) Config() config.Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

func (m *Manager) policy() alerts.Policy {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return alerts.Policy{
		WarningThreshold:  m.cfg.WarningThreshold,
		CriticalThreshold: m.cfg.CriticalThreshold,
		Cooldown:          m.cfg.Cooldown,
	}
}

func (m *Manager) params() usage.Params {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return usage.Params{TokenLimit: m.cfg.TokenLimit, WindowHours: m.cfg.WindowHours}
}

// SetPlan switches the plan, persists it to the settings file and
// refreshes so the new limit shows up immediately.
func (m *Manager) SetPlan(plan config.Plan) error {
	m.cfgMu.Lock()
	m.cfg.SetPlan(plan)
	settingsPath := m.cfg.SettingsPath
	limit := m.cfg.TokenLimit
	m.cfgMu.Unlock()

	logger.Info("plan changed", "plan", plan.String(), "token_limit", limit)
	m.broadcast(PlanChangedEvent{Plan: plan, TokenLimit: limit})

	var saveErr error
	if settingsPath != "" {
		if err := config.SavePlan(settingsPath, plan); err != nil {
			saveErr = fmt.Errorf("failed to persist plan: %w", err)
			m.broadcast(ErrorEvent{Service: "config", Error: saveErr})
		}
	}

	go func() {
		if err := m.refresh(TriggerManual); err != nil {
			logger.Debug("plan refresh abandoned", "error", err)
		}
	}()
	return saveErr
}

// SendTestAlert delivers a forced alert of the given kind with the current
// usage. The cooldown is bypassed but still recorded.
func (m *Manager) SendTestAlert(kind models.AlertKind) models.Alert {
	a := m.machine.ForceAlert(kind, m.Snapshot(), m.now())
	logger.Info("sending test notification", "kind", kind, "id", a.ID)
	m.dispatcher.Dispatch(a)
	return a
}

// ResetCooldowns clears every alert cooldown.
func (m *Manager) ResetCooldowns() {
	m.machine.ResetCooldowns()
}

// Snapshot returns the most recently published snapshot.
func (m *Manager) Snapshot() models.UsageSnapshot {
	if ev := m.current.Load(); ev != nil {
		return ev.Snapshot
	}
	cfg := m.Config()
	return models.EmptySnapshot(cfg.TokenLimit, models.NewUsageWindow(m.now(), cfg.WindowHours))
}

// Current returns the last published snapshot event, or nil before Start.
func (m *Manager) Current() *SnapshotEvent {
	return m.current.Load()
}

// Level returns the current alert level.
func (m *Manager) Level() models.AlertLevel {
	return m.machine.Level()
}

// Metrics returns the metric collectors.
func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

// Database returns the sample store, or nil when disabled.
func (m *Manager) Database() *db.DB {
	return m.database
}

// WatcherActive reports whether change detection is running.
func (m *Manager) WatcherActive() bool {
	return m.detector != nil && m.detector.Active()
}

// NextScheduledRefresh returns when the interval trigger fires next.
func (m *Manager) NextScheduledRefresh() time.Time {
	entries := m.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// WindowSamples returns the stored samples of the current window.
func (m *Manager) WindowSamples(ctx context.Context) ([]models.UsageSample, error) {
	if m.database == nil {
		return nil, nil
	}
	return m.database.SamplesSince(ctx, m.windowStart())
}

// WindowAlerts returns the stored alerts of the current window.
func (m *Manager) WindowAlerts(ctx context.Context) ([]models.AlertRecord, error) {
	if m.database == nil {
		return nil, nil
	}
	return m.database.AlertsSince(ctx, m.windowStart())
}

func (m *Manager) windowStart() time.Time {
	cfg := m.Config()
	return m.now().Add(-cfg.Window())
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	// Send to main event channel
	select {
	case m.eventChan <- event:
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Events returns the manager's own buffered event channel. Events are
// dropped when it is full.
func (m *Manager) Events() <-chan ServiceEvent {
	return m.eventChan
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return event
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close stops every trigger, abandons in-flight scans and releases the
// store. The published snapshot stays readable.
func (m *Manager) Close() error {
	m.lifeMu.Lock()
	if m.closed {
		m.lifeMu.Unlock()
		return nil
	}
	m.closed = true
	m.lifeMu.Unlock()

	var errs []error
	if m.detector != nil {
		if err := m.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	// Wait for a running cron job to notice the cancellation.
	m.cancel()
	<-m.cron.Stop().Done()

	m.inflight.Wait()
	m.dispatcher.Close()

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	if m.database != nil {
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	logger.Info("usage monitor stopped")
	return errors.Join(errs...)
}

// cronLogger routes cron's logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
