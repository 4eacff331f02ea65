// Package styles defines the visual styling for the application.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// Color definitions.
var (
	Primary   = lipgloss.Color("208") // Orange
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	BgDark  = lipgloss.Color("235")
	BgLight = lipgloss.Color("237")

	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")

	// ToastStyle for floating notifications.
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1).
			MarginBottom(1)
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// DocStyle provides consistent document margins.
var DocStyle = lipgloss.NewStyle().
	Margin(1, 2).
	Padding(0, 1)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(1, 2).
	MarginBottom(1)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// ProgressLabelStyle styles progress bar labels.
var ProgressLabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Width(20)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpPanelStyle creates the help overlay panel.
var HelpPanelStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(Primary).
	Padding(1, 3).
	Background(BgDark)

// LabelStyle and ValueStyle render key/value rows.
var (
	LabelStyle = lipgloss.NewStyle().
			Width(18).
			Foreground(TextMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(TextPrimary)
)

var (
	ErrorTextStyle   = lipgloss.NewStyle().Foreground(Error)
	SuccessTextStyle = lipgloss.NewStyle().Foreground(Success)
	WarningTextStyle = lipgloss.NewStyle().Foreground(Warning)
	InfoTextStyle    = lipgloss.NewStyle().Foreground(Info)
)

// Usage styles, keyed by how much of the limit is consumed.
var (
	UsageLowStyle = lipgloss.NewStyle().
			Foreground(Success)

	UsageMediumStyle = lipgloss.NewStyle().
				Foreground(Warning)

	UsageHighStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)

var ProjectionSafeStyle = lipgloss.NewStyle().
	Foreground(Success)

var ProjectionWarningStyle = lipgloss.NewStyle().
	Foreground(Warning).
	Bold(true)

var ProjectionCriticalStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true)

var ProjectionUnknownStyle = lipgloss.NewStyle().
	Foreground(Subtle)

// UsageStyle returns the style for a consumed percentage.
func UsageStyle(percent float64) lipgloss.Style {
	return StatusStyle(models.StatusFor(percent))
}

// StatusStyle returns the style for a display status.
func StatusStyle(s models.UsageStatus) lipgloss.Style {
	switch s {
	case models.StatusCritical:
		return UsageHighStyle
	case models.StatusWarning:
		return UsageMediumStyle
	default:
		return UsageLowStyle
	}
}

// LevelStyle returns the style for an alert level.
func LevelStyle(l models.AlertLevel) lipgloss.Style {
	switch l {
	case models.LevelCritical:
		return UsageHighStyle
	case models.LevelWarning:
		return UsageMediumStyle
	default:
		return lipgloss.NewStyle().Foreground(TextSecondary)
	}
}

// ProjectionStyle returns the style for a projection status.
func ProjectionStyle(s models.ProjectionStatus) lipgloss.Style {
	switch s {
	case models.ProjectionSafe:
		return ProjectionSafeStyle
	case models.ProjectionWarning:
		return ProjectionWarningStyle
	case models.ProjectionCritical:
		return ProjectionCriticalStyle
	default:
		return ProjectionUnknownStyle
	}
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}
