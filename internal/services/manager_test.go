package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []models.AlertKind
	fail  bool
}

func (f *fakeNotifier) Deliver(kind models.AlertKind, _ float64, _ uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return !f.fail
}

func (f *fakeNotifier) delivered() []models.AlertKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AlertKind(nil), f.kinds...)
}

type recordingRenderer struct {
	mu    sync.Mutex
	snaps []models.UsageSnapshot
}

func (r *recordingRenderer) OnSnapshot(s models.UsageSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recordingRenderer) first() (models.UsageSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return models.UsageSnapshot{}, false
	}
	return r.snaps[0], true
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, "projects")
	if err := os.MkdirAll(root, 0o750); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.LogRoot = root
	cfg.DatabasePath = filepath.Join(tmpDir, "usage.db")
	cfg.SettingsPath = filepath.Join(tmpDir, "settings.yaml")
	cfg.TokenLimit = 1000
	cfg.DebounceDelay = 50 * time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, opts Options) *Manager {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	mgr, err := NewManager(cfg, opts)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func writeUsage(t *testing.T, root, name string, at time.Time, tokens int) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	line := fmt.Sprintf(`{"timestamp":%q,"message":{"usage":{"output_tokens":%d}}}`+"\n",
		at.Format(time.RFC3339Nano), tokens)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatal(err)
	}
}

func TestNewManager(t *testing.T) {
	if _, err := NewManager(nil, Options{}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("nil config: err = %v, want ErrInvalidConfig", err)
	}

	bad := testConfig(t)
	bad.WindowHours = 0
	if _, err := NewManager(bad, Options{}); err == nil {
		t.Error("expected error for zero window")
	}

	mgr := newTestManager(t, testConfig(t), Options{Notifier: &fakeNotifier{}})
	if mgr.Database() == nil {
		t.Error("Database should be initialized")
	}
	if mgr.Metrics() == nil {
		t.Error("Metrics should be initialized")
	}
	if mgr.Current() != nil {
		t.Error("nothing should be published before Start")
	}
	if got := mgr.Snapshot(); got.TotalTokens != 0 || got.TokenLimit != 1000 {
		t.Errorf("Snapshot() before Start = %+v", got)
	}
}

func TestManager_StartPublishesEmptySnapshotFirst(t *testing.T) {
	cfg := testConfig(t)
	writeUsage(t, cfg.LogRoot, "p/s.jsonl", testNow.Add(-time.Hour), 300)

	renderer := &recordingRenderer{}
	mgr := newTestManager(t, cfg, Options{
		Notifier:       &fakeNotifier{},
		Renderers:      []StatusRenderer{renderer},
		DisableWatcher: true,
	})

	if err := mgr.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	first, ok := renderer.first()
	if !ok {
		t.Fatal("renderer was not called during Start")
	}
	if first.TotalTokens != 0 || first.HasReset() || !first.ComputedAt.Equal(testNow) {
		t.Errorf("first snapshot = %+v, want empty at %v", first, testNow)
	}

	deadline := time.Now().Add(5 * time.Second)
	for mgr.Snapshot().TotalTokens != 300 {
		if time.Now().After(deadline) {
			t.Fatalf("startup scan not published, snapshot = %+v", mgr.Snapshot())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := mgr.Start(); err != nil {
		t.Errorf("second Start() error = %v", err)
	}
}

func TestManager_RefreshAlertsAndStores(t *testing.T) {
	cfg := testConfig(t)
	writeUsage(t, cfg.LogRoot, "p/s.jsonl", testNow.Add(-2*time.Hour), 500)
	writeUsage(t, cfg.LogRoot, "p/s.jsonl", testNow.Add(-time.Hour), 460)

	notifier := &fakeNotifier{}
	mgr := newTestManager(t, cfg, Options{Notifier: notifier, DisableWatcher: true})

	if err := mgr.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	mgr.dispatcher.Wait()

	snap := mgr.Snapshot()
	if snap.TotalTokens != 960 || snap.RemainingTokens != 40 {
		t.Errorf("snapshot = %+v", snap)
	}
	if want := testNow.Add(-2 * time.Hour).Add(5 * time.Hour); !snap.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", snap.ResetAt, want)
	}
	if mgr.Level() != models.LevelCritical {
		t.Errorf("Level() = %v, want critical", mgr.Level())
	}
	if got := notifier.delivered(); len(got) != 1 || got[0] != models.AlertCritical {
		t.Errorf("delivered = %v, want one critical", got)
	}

	ctx := context.Background()
	samples, err := mgr.WindowSamples(ctx)
	if err != nil || len(samples) != 1 || samples[0].TotalTokens != 960 {
		t.Errorf("WindowSamples() = %+v, %v", samples, err)
	}
	records, err := mgr.WindowAlerts(ctx)
	if err != nil || len(records) != 1 || !records[0].Delivered {
		t.Errorf("WindowAlerts() = %+v, %v", records, err)
	}

	// Same level on the next pass: no new alert.
	if err := mgr.Refresh(); err != nil {
		t.Fatal(err)
	}
	mgr.dispatcher.Wait()
	if got := notifier.delivered(); len(got) != 1 {
		t.Errorf("delivered after second pass = %v, want still one", got)
	}
	if ev := mgr.Current(); ev == nil || ev.Trigger != TriggerManual || ev.Projection == nil {
		t.Errorf("Current() = %+v", ev)
	}
}

func TestManager_StaleSnapshotDropped(t *testing.T) {
	mgr := newTestManager(t, testConfig(t), Options{Notifier: &fakeNotifier{}, DisableWatcher: true, DisableStore: true})

	window := models.NewUsageWindow(testNow, 5)
	newer := models.NewUsageSnapshot(200, 1000, time.Time{}, window)
	older := models.NewUsageSnapshot(100, 1000, time.Time{}, window)

	if !mgr.publish(5, newer, TriggerChange, testNow) {
		t.Fatal("first publish should succeed")
	}
	if mgr.publish(3, older, TriggerInterval, testNow) {
		t.Error("older sequence should not be published")
	}
	if got := mgr.Snapshot().TotalTokens; got != 200 {
		t.Errorf("TotalTokens = %d, want 200", got)
	}
	if mgr.publish(5, older, TriggerInterval, testNow) {
		t.Error("equal sequence should not be published")
	}
}

func TestManager_ChangeTriggersRefresh(t *testing.T) {
	cfg := testConfig(t)
	mgr := newTestManager(t, cfg, Options{Notifier: &fakeNotifier{}, DisableStore: true})

	ch, _ := mgr.Subscribe()
	if err := mgr.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !mgr.WatcherActive() {
		t.Fatal("watcher should be active")
	}

	// Let the startup scan land before writing.
	deadline := time.After(5 * time.Second)
	for startupSeen := false; !startupSeen; {
		select {
		case ev := <-ch:
			if se, ok := ev.(SnapshotEvent); ok && se.Trigger == TriggerStartup {
				startupSeen = true
			}
		case <-deadline:
			t.Fatal("timeout waiting for startup snapshot")
		}
	}

	writeUsage(t, cfg.LogRoot, "s.jsonl", testNow.Add(-time.Minute), 42)

	for {
		select {
		case ev := <-ch:
			se, ok := ev.(SnapshotEvent)
			if !ok || se.Trigger != TriggerChange {
				continue
			}
			if se.Snapshot.TotalTokens != 42 {
				t.Errorf("TotalTokens = %d, want 42", se.Snapshot.TotalTokens)
			}
			return
		case <-deadline:
			t.Fatal("timeout waiting for change-triggered snapshot")
		}
	}
}

func TestManager_SetPlan(t *testing.T) {
	cfg := testConfig(t)
	mgr := newTestManager(t, cfg, Options{Notifier: &fakeNotifier{}, DisableWatcher: true})
	ch, _ := mgr.Subscribe()

	if err := mgr.SetPlan(config.PlanPro); err != nil {
		t.Fatalf("SetPlan() error = %v", err)
	}
	if got := mgr.Config().TokenLimit; got != config.PlanPro.TokenLimit() {
		t.Errorf("TokenLimit = %d, want %d", got, config.PlanPro.TokenLimit())
	}

	s, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		t.Fatal(err)
	}
	if s.Plan != config.PlanPro.String() {
		t.Errorf("persisted plan = %q, want %q", s.Plan, config.PlanPro.String())
	}

	select {
	case ev := <-ch:
		pc, ok := ev.(PlanChangedEvent)
		if !ok || pc.Plan != config.PlanPro {
			t.Errorf("first event = %#v, want PlanChangedEvent", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for plan event")
	}
}

func TestManager_SendTestAlert(t *testing.T) {
	notifier := &fakeNotifier{}
	mgr := newTestManager(t, testConfig(t), Options{Notifier: notifier, DisableWatcher: true})

	a := mgr.SendTestAlert(models.AlertWarning)
	b := mgr.SendTestAlert(models.AlertWarning)
	mgr.dispatcher.Wait()

	if !a.Forced || !b.Forced || a.ID == b.ID {
		t.Errorf("alerts = %+v, %+v", a, b)
	}
	if got := notifier.delivered(); len(got) != 2 {
		t.Errorf("delivered = %v, want 2 despite cooldown", got)
	}
	if mgr.Level() != models.LevelNormal {
		t.Errorf("Level() = %v, forced alerts must not move the level", mgr.Level())
	}
}

func TestManager_Close(t *testing.T) {
	mgr := newTestManager(t, testConfig(t), Options{Notifier: &fakeNotifier{}})
	if err := mgr.Start(); err != nil {
		t.Fatal(err)
	}
	ch, _ := mgr.Subscribe()

	if err := mgr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := mgr.Refresh(); !errors.Is(err, ErrClosed) {
		t.Errorf("Refresh() after Close = %v, want ErrClosed", err)
	}
	if err := mgr.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close = %v, want ErrClosed", err)
	}

	for range ch {
	}
	_ = mgr.Snapshot()
}

func TestManager_AfterCloseIsQuiet(t *testing.T) {
	notifier := &fakeNotifier{}
	mgr := newTestManager(t, testConfig(t), Options{Notifier: notifier, DisableWatcher: true})
	if err := mgr.Close(); err != nil {
		t.Fatal(err)
	}

	if err := mgr.onLogChange(); err != nil {
		t.Errorf("onLogChange() after Close = %v, want nil", err)
	}

	mgr.SendTestAlert(models.AlertCritical)
	mgr.dispatcher.Wait()
	if got := notifier.delivered(); len(got) != 0 {
		t.Errorf("delivered after Close = %v, want none", got)
	}
}

func TestManager_SchedulesCompaction(t *testing.T) {
	tests := []struct {
		name        string
		store       bool
		wantEntries int
	}{
		{"with store", true, 2},
		{"without store", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := newTestManager(t, testConfig(t), Options{
				Notifier:       &fakeNotifier{},
				DisableWatcher: true,
				DisableStore:   !tt.store,
			})
			if err := mgr.Start(); err != nil {
				t.Fatal(err)
			}
			if got := len(mgr.cron.Entries()); got != tt.wantEntries {
				t.Errorf("cron entries = %d, want %d", got, tt.wantEntries)
			}
			if tt.store {
				mgr.compactStore()
				if _, err := mgr.Database().SchemaVersion(context.Background()); err != nil {
					t.Errorf("store unusable after compaction: %v", err)
				}
			}
		})
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr := newTestManager(t, testConfig(t), Options{Notifier: &fakeNotifier{}, DisableWatcher: true, DisableStore: true})

	ch, cmd := mgr.Subscribe()
	if ch == nil || cmd == nil {
		t.Fatal("Subscribe should return a channel and a command")
	}

	mgr.broadcast(ErrorEvent{Service: "test", Error: errors.New("boom")})

	msg := cmd()
	ev, ok := msg.(ErrorEvent)
	if !ok || ev.Service != "test" {
		t.Errorf("cmd() = %#v, want ErrorEvent", msg)
	}

	select {
	case <-mgr.Events():
	default:
		t.Error("event should also reach the manager channel")
	}

	mgr.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan ServiceEvent, 1)
	ch <- AlertEvent{Suppressed: true}

	if msg := WaitForEvent(ch)(); msg == nil {
		t.Error("expected event")
	}

	close(ch)
	if msg := WaitForEvent(ch)(); msg != nil {
		t.Errorf("closed channel should yield nil, got %#v", msg)
	}
}

func TestServiceEvent_Interface(t *testing.T) {
	events := []ServiceEvent{
		SnapshotEvent{},
		AlertEvent{},
		PlanChangedEvent{},
		ErrorEvent{},
	}
	if len(events) != 4 {
		t.Fail()
	}
}
