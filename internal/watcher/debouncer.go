// Package watcher turns filesystem activity under the log root into
// coalesced refresh triggers.
package watcher

import (
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
)

// Debouncer runs a callback once after a quiet period. At most one timer is
// pending; each Trigger cancels and replaces it.
type Debouncer struct {
	delay time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	stopped    bool
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the delay, replacing any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	// A timer that already fired but is waiting on mu sees a newer
	// generation and returns without running.
	d.generation++
	gen := d.generation
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen, fn)
	})
}

func (d *Debouncer) fire(gen uint64, fn func()) {
	d.mu.Lock()
	if d.stopped || gen != d.generation {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("debounced callback panicked", "panic", r)
		}
	}()
	fn()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
