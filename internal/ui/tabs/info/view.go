package info

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
	"github.com/j-veylop/claude-usage-monitor/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderPlansCard(),
		m.renderAboutCard(),
	)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration and application information")
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

func renderRow(label, value string) string {
	return styles.LabelStyle.Render(label+":") + " " + styles.ValueStyle.Render(value)
}

func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration")}

	if m.config == nil {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	c := m.config
	limit := c.TokenLimit
	if snap, ok := m.state.Snapshot(); ok && snap.TokenLimit > 0 {
		limit = snap.TokenLimit
	}

	rows = append(rows,
		renderRow("Usage logs", c.LogRoot),
		renderRow("Database", orNone(c.DatabasePath)),
		renderRow("Settings", orNone(c.SettingsPath)),
		renderRow("Log file", orNone(c.LogFile)),
		"",
		renderRow("Token limit", components.FormatTokensExact(limit)),
		renderRow("Window", fmt.Sprintf("%d hours", c.WindowHours)),
		renderRow("Thresholds", fmt.Sprintf("warning %.0f%%, critical %.0f%%", c.WarningThreshold, c.CriticalThreshold)),
		renderRow("Cooldown", c.Cooldown.String()),
		renderRow("Refresh", fmt.Sprintf("every %s, debounce %s", c.RefreshInterval, c.DebounceDelay)),
		renderRow("Metrics", orNone(c.MetricsAddr)),
	)

	if m.status != nil {
		watcher := styles.ErrorTextStyle.Render("inactive")
		if m.status.WatcherActive() {
			watcher = styles.SuccessTextStyle.Render("active")
		}
		rows = append(rows,
			"",
			styles.LabelStyle.Render("File watcher:")+" "+watcher,
			renderRow("Next refresh", components.FormatClock(m.status.NextScheduledRefresh())),
		)
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func (m *Model) renderPlansCard() string {
	rows := []string{styles.CardTitleStyle.Render("Plans")}

	active := m.state.Plan()
	for _, p := range config.Plans() {
		info := p.Info()
		marker := "  "
		style := styles.ValueStyle
		if p == active {
			marker = "▸ "
			style = lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
		}
		rows = append(rows, marker+style.Render(fmt.Sprintf("%-22s %14s tokens", info.Description, components.FormatTokensExact(info.TokenLimit))))
	}
	rows = append(rows, "", styles.HelpStyle.Render("Press 'p' to switch plan"))

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAboutCard() string {
	rows := []string{
		styles.CardTitleStyle.Render("About"),
		renderRow("Version", version.GetVersion()),
		renderRow("Build Date", version.GetDate()),
		renderRow("Git Commit", version.GetCommit()),
		renderRow("Go Version", runtime.Version()),
		renderRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
