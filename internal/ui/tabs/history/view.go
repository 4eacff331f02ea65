package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

// View renders the history tab.
func (m *Model) View() string {
	if m.errorMsg != "" {
		return m.frame(fmt.Sprintf("%s %s", styles.ErrorTextStyle.Render("Error:"), m.errorMsg))
	}
	if !m.loaded {
		return m.frame(styles.HelpStyle.Render("Loading history data..."))
	}

	samples := m.state.Samples()
	if len(samples) == 0 && len(m.state.Alerts()) == 0 {
		return m.frame(lipgloss.JoinVertical(lipgloss.Left,
			styles.TitleStyle.Render("History"),
			"",
			styles.HelpStyle.Render("No samples recorded in the current window yet."),
			styles.HelpStyle.Render("Samples appear as the monitor refreshes."),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(samples),
		m.renderUsageChart(samples),
		m.renderDeltas(samples),
		m.renderAlerts(),
	)
	m.viewport.SetContent(content)

	return m.frame(m.viewport.View())
}

func (m *Model) frame(content string) string {
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func cardHeader(icon, title string) string {
	return fmt.Sprintf("%s %s", lipgloss.NewStyle().Foreground(styles.Primary).Render(icon), styles.CardTitleStyle.Render(title))
}

func (m *Model) renderHeader(samples []models.UsageSample) string {
	title := styles.TitleStyle.Render("Window History")

	var subtitle string
	if len(samples) > 0 {
		subtitle = styles.HelpStyle.Render(fmt.Sprintf("%d samples, %s → %s · loaded %s",
			len(samples),
			components.FormatClock(samples[0].Timestamp),
			components.FormatClock(samples[len(samples)-1].Timestamp),
			components.FormatClock(m.lastRefresh),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderUsageChart(samples []models.UsageSample) string {
	cardWidth := m.cardWidth()
	rows := []string{cardHeader("📈", "Usage Over Window"), ""}

	percentages := make([]float64, len(samples))
	for i, s := range samples {
		percentages[i] = s.Percentage
	}

	chart := components.RenderUsageChart(percentages, m.warning, m.critical,
		max(cardWidth-14, 30), 8, "Percent of limit (yellow: warning, red: critical)")
	for line := range strings.SplitSeq(chart, "\n") {
		rows = append(rows, "  "+line)
	}
	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderDeltas(samples []models.UsageSample) string {
	cardWidth := m.cardWidth()
	rows := []string{cardHeader("⚡", "Tokens Per Refresh")}

	totals := make([]float64, len(samples))
	for i, s := range samples {
		totals[i] = float64(s.TotalTokens)
	}
	deltas := components.Deltas(totals)

	if len(deltas) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  Needs at least two samples"))
	} else {
		peak := 0.0
		for _, d := range deltas {
			peak = max(peak, d)
		}
		rows = append(rows,
			"  "+lipgloss.NewStyle().Foreground(styles.Primary).Render(components.RenderSparkline(deltas, cardWidth-12)),
			fmt.Sprintf("  Peak: %s tokens", lipgloss.NewStyle().Bold(true).Render(components.FormatTokensExact(uint64(peak)))),
		)
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAlerts() string {
	cardWidth := m.cardWidth()
	rows := []string{cardHeader("🔔", "Recent Alerts")}

	alerts := m.state.Alerts()
	if len(alerts) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No alerts in the current window"))
	}
	for _, a := range alerts {
		rows = append(rows, renderAlertRow(a))
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderAlertRow(a models.AlertRecord) string {
	kindStyle := styles.WarningTextStyle
	if a.Kind == models.AlertCritical {
		kindStyle = styles.ErrorTextStyle
	}

	outcome := styles.SuccessTextStyle.Render("delivered")
	if !a.Delivered {
		outcome = styles.ErrorTextStyle.Render("failed")
	}

	line := fmt.Sprintf("  %s  %-16s %5.1f%%  %s",
		components.FormatClock(a.At),
		kindStyle.Render(a.Kind.String()),
		a.Percentage,
		outcome,
	)
	if a.Forced {
		line += styles.HelpStyle.Render("  (test)")
	}
	return line
}
