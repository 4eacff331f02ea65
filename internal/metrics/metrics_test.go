package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

func TestObserveSnapshot(t *testing.T) {
	m := New()
	m.ObserveSnapshot(models.UsageSnapshot{TotalTokens: 420, TokenLimit: 1000, Percentage: 42})

	if got := testutil.ToFloat64(m.windowTokens); got != 420 {
		t.Errorf("window tokens = %v, want 420", got)
	}
	if got := testutil.ToFloat64(m.windowPercentage); got != 42 {
		t.Errorf("window percentage = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.tokenLimit); got != 1000 {
		t.Errorf("token limit = %v, want 1000", got)
	}
}

func TestCounters(t *testing.T) {
	m := New()

	m.RecordRefresh("interval", 10*time.Millisecond)
	m.RecordRefresh("interval", 20*time.Millisecond)
	m.RecordRefresh("change", time.Millisecond)
	m.FragmentFailed()
	m.RecordAlert(models.AlertWarning, ResultDelivered)
	m.RecordAlert(models.AlertCritical, ResultSuppressed)
	m.SetAlertLevel(models.LevelCritical)

	if got := testutil.ToFloat64(m.refreshes.WithLabelValues("interval")); got != 2 {
		t.Errorf("interval refreshes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.fragmentErrors); got != 1 {
		t.Errorf("fragment errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.alerts.WithLabelValues("usage_critical", ResultSuppressed)); got != 1 {
		t.Errorf("suppressed critical alerts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.alertLevel); got != 2 {
		t.Errorf("alert level = %v, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveSnapshot(models.UsageSnapshot{TotalTokens: 7})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "usagemon_window_tokens 7") {
		t.Errorf("metrics output missing window tokens:\n%s", body)
	}
}

func TestNew_Independent(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.FragmentFailed()
	if got := testutil.ToFloat64(b.fragmentErrors); got != 0 {
		t.Errorf("second instance saw %v fragment errors, want 0", got)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	m := New()
	m.ObserveSnapshot(models.UsageSnapshot{TokenLimit: 5})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "usagemon_token_limit 5") {
		t.Errorf("unexpected body:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_BadAddress(t *testing.T) {
	if err := New().Serve(context.Background(), "256.0.0.1:bad"); err == nil {
		t.Error("expected listen error")
	}
}
