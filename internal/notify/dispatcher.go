package notify

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// DefaultInterval is the sustained rate at which notifications may be sent.
const DefaultInterval = 10 * time.Second

// ResultFunc observes the outcome of a delivery.
type ResultFunc func(a models.Alert, delivered bool)

// Dispatcher delivers alerts off the caller's goroutine. Deliveries over
// the rate limit are dropped.
type Dispatcher struct {
	notifier Notifier
	limiter  *rate.Limiter
	onResult ResultFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher allowing burst deliveries at once and
// one more per interval.
func NewDispatcher(n Notifier, interval time.Duration, burst int, onResult ResultFunc) *Dispatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if burst <= 0 {
		burst = 1
	}
	return &Dispatcher{
		notifier: n,
		limiter:  rate.NewLimiter(rate.Every(interval), burst),
		onResult: onResult,
	}
}

// Dispatch starts delivery of a and returns immediately. It reports false
// when the alert was dropped by the rate limiter or the dispatcher is
// closed. Alerts dispatched after Close are not reported.
func (d *Dispatcher) Dispatch(a models.Alert) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		logger.Debug("notification after close dropped", "kind", a.Kind, "id", a.ID)
		return false
	}
	if !d.limiter.Allow() {
		d.mu.Unlock()
		logger.Warn("notification rate limited", "kind", a.Kind, "id", a.ID)
		d.report(a, false)
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.report(a, d.deliver(a))
	}()
	return true
}

func (d *Dispatcher) deliver(a models.Alert) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notifier panicked", "kind", a.Kind, "panic", r)
			delivered = false
		}
	}()
	return d.notifier.Deliver(a.Kind, a.Percentage, a.RemainingTokens)
}

func (d *Dispatcher) report(a models.Alert, delivered bool) {
	if d.onResult != nil {
		d.onResult(a, delivered)
	}
}

// Wait blocks until every started delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close refuses further alerts and waits for the started ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
