// Package notify delivers usage alerts to the desktop.
package notify

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// Notifier delivers one alert. It must not panic; failure is reported
// through the return value.
type Notifier interface {
	Deliver(kind models.AlertKind, percentage float64, remaining uint64) bool
}

type sendFunc func(title, message string, icon any) error

type message struct {
	title  string
	format string
	send   sendFunc
}

// Desktop sends alerts as OS notifications through beeep.
type Desktop struct {
	messages map[models.AlertKind]message
}

// NewDesktop returns the desktop notifier. Warnings are plain notifications;
// critical alerts also play the system alert sound.
func NewDesktop() *Desktop {
	return newDesktop(beeep.Notify, beeep.Alert)
}

func newDesktop(notify, alert sendFunc) *Desktop {
	return &Desktop{
		messages: map[models.AlertKind]message{
			models.AlertWarning: {
				title:  "Claude Code Usage Warning",
				format: "Usage reached %.1f%%\nRemaining: %s tokens\nConsider pausing important tasks",
				send:   notify,
			},
			models.AlertCritical: {
				title:  "Claude Code CRITICAL Warning",
				format: "Usage reached %.1f%%!\nOnly %s tokens left\nStop operations immediately!",
				send:   alert,
			},
		},
	}
}

// Format returns the title and body for an alert kind.
func (d *Desktop) Format(kind models.AlertKind, percentage float64, remaining uint64) (title, body string, ok bool) {
	msg, ok := d.messages[kind]
	if !ok {
		return "", "", false
	}
	return msg.title, fmt.Sprintf(msg.format, percentage, humanize.Comma(int64(remaining))), true
}

// Deliver implements Notifier.
func (d *Desktop) Deliver(kind models.AlertKind, percentage float64, remaining uint64) (delivered bool) {
	title, body, ok := d.Format(kind, percentage, remaining)
	if !ok {
		logger.Warn("no message for alert kind", "kind", kind)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("notification panicked", "kind", kind, "panic", r)
			delivered = false
		}
	}()

	if err := d.messages[kind].send(title, body, ""); err != nil {
		logger.Error("failed to send notification", "kind", kind, "error", err)
		return false
	}
	logger.Info("notification sent", "kind", kind, "percentage", percentage)
	return true
}
