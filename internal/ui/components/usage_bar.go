// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

const (
	usageFrom = "#51cf66" // green at 0%
	usageTo   = "#ff6b6b" // red at 100%
	resetFrom = "#ffd93d"
	resetTo   = "#6c5ce7"
)

// UsageBar renders how much of the token limit is consumed.
type UsageBar struct {
	progress progress.Model
	label    string
}

// NewUsageBar creates a usage bar with a green to red gradient.
func NewUsageBar(label string) UsageBar {
	return UsageBar{
		progress: progress.New(
			progress.WithScaledGradient(usageFrom, usageTo),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		label: label,
	}
}

// Label returns the bar label.
func (u UsageBar) Label() string {
	return u.label
}

// View renders the bar for percent (0-100) within width cells.
func (u UsageBar) View(percent float64, width int) string {
	barWidth := max(width-30, 10) // label and percentage
	u.progress.Width = barWidth

	bar := u.progress.ViewAs(clampPercent(percent) / 100)

	percentStr := styles.UsageStyle(percent).
		Width(8).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.1f%%", percent))

	labelStr := styles.ProgressLabelStyle.Render(u.label)

	return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, bar, " ", percentStr)
}

// RenderResetBar renders the time elapsed in the window up to reset. The
// bar fills as the reset approaches.
func RenderResetBar(remaining, window time.Duration, label string, width int) string {
	percent := 0.0
	if window > 0 {
		percent = 1 - float64(remaining)/float64(window)
	}
	percent = min(max(percent, 0), 1)

	timeStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(8).
		Align(lipgloss.Right).
		Render(FormatCountdown(remaining))

	barWidth := max(width-30, 10)
	return styles.ProgressLabelStyle.Render(label) +
		renderGradient(percent, barWidth, resetFrom, resetTo) + " " + timeStr
}

// RenderGradientBar renders just the bar part for a consumed percentage.
func RenderGradientBar(percent float64, width int) string {
	return renderGradient(clampPercent(percent)/100, width, usageFrom, usageTo)
}

func renderGradient(fraction float64, width int, from, to string) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*fraction), 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(interpolateColor(from, to, t)))
			b.WriteString(style.Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
