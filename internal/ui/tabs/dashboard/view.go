package dashboard

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

// View renders the dashboard component.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	snap, _ := m.state.Snapshot()
	now := m.now()
	cardWidth := max(m.width-6, 40)

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(snap),
		m.renderUsageCard(snap, now, cardWidth),
		m.renderProjectionCard(m.state.Projection(), cardWidth),
	)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle(snap models.UsageSnapshot) string {
	title := styles.TitleStyle.Render("Token Usage")
	plan := m.state.Plan().Info()
	subtitle := styles.HelpStyle.Render(fmt.Sprintf(
		"Rolling %d-hour window · %s · limit %s",
		snap.WindowHours, plan.Description, components.FormatTokens(snap.TokenLimit),
	))
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func cardHeader(title string) string {
	icon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	return fmt.Sprintf("%s %s", icon, styles.CardTitleStyle.Render(title))
}

func row(label, value string) string {
	return styles.LabelStyle.Render(label) + value
}

func (m *Model) renderUsageCard(snap models.UsageSnapshot, now time.Time, width int) string {
	inner := width - 6
	status := snap.Status()
	level := m.state.Level()

	rows := []string{
		cardHeader("Current Window"),
		m.usageBar.View(m.animation.CurrentPercent, inner),
		"",
		row("Tokens used", styles.ValueStyle.Render(fmt.Sprintf("%s / %s  (%s)",
			components.FormatTokens(snap.TotalTokens),
			components.FormatTokens(snap.TokenLimit),
			components.FormatTokensExact(snap.TotalTokens)))),
		row("Remaining", styles.ValueStyle.Render(components.FormatTokensExact(snap.RemainingTokens))),
		row("Status", styles.StatusStyle(status).Render(string(status))),
		row("Alert level", styles.LevelStyle(level).Render(level.String())),
		"",
	}

	if snap.HasReset() {
		rows = append(rows,
			components.RenderResetBar(snap.TimeUntilReset(now), time.Duration(snap.WindowHours)*time.Hour, "Resets in", inner),
			row("Reset at", styles.ValueStyle.Render(components.FormatClock(snap.ResetAt))),
		)
	} else {
		rows = append(rows, styles.HelpStyle.Render("  No usage in the current window"))
	}

	rows = append(rows, row("Updated", styles.HelpStyle.Render(fmt.Sprintf("%s (%s, %d records in %d files)",
		components.FormatClock(snap.ComputedAt), m.state.Trigger(), snap.RecordCount, snap.FragmentCount))))

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderProjectionCard(p *models.Projection, width int) string {
	rows := []string{cardHeader("Projection")}

	if !p.KnownRate() {
		rows = append(rows, styles.HelpStyle.Render("  Not enough history to estimate a burn rate"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	statusStyle := styles.ProjectionStyle(p.Status)
	rows = append(rows,
		row("Burn rate", styles.ValueStyle.Render(components.FormatRate(p.TokensPerMinute))),
		row("Limit reached", statusStyle.Render(fmt.Sprintf("%s (in %s)",
			components.FormatClock(p.ExhaustsAt), components.FormatCountdown(p.TimeToExhaust)))),
		row("Status", statusStyle.Render(string(p.Status))),
		row("Confidence", styles.HelpStyle.Render(fmt.Sprintf("%s (%d samples)", p.Confidence, p.DataPoints))),
	)

	if p.BeforeReset {
		rows = append(rows, "", styles.WarningTextStyle.Render("  ▲ The limit will be reached before the window resets"))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
