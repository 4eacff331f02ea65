package components

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatTokens renders a token count compactly: 950, 12.3K, 4.5M.
func FormatTokens(n uint64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatTokensExact renders a token count with thousands separators.
func FormatTokensExact(n uint64) string {
	return humanize.Comma(int64(n))
}

// FormatCountdown renders d as "2h 05m", or "--" when zero.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

// FormatRate renders a burn rate in tokens per minute.
func FormatRate(perMinute float64) string {
	if perMinute <= 0 {
		return "--"
	}
	return FormatTokens(uint64(perMinute)) + "/min"
}

// FormatClock renders t in local time, or "--" when zero.
func FormatClock(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return t.Local().Format("15:04")
}

// FormatPercent renders a percentage with one decimal.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}
