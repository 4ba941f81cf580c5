package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/valentindosimont/keyquery/internal/lookup"
	"github.com/valentindosimont/keyquery/internal/present"
)

// Colors
var (
	colorPrimary   = lipgloss.Color("#00BFFF")
	colorSecondary = lipgloss.Color("#FFD700")
	colorUrgent    = lipgloss.Color("#FF4444")
	colorSuccess   = lipgloss.Color("#44FF44")
	colorWarn      = lipgloss.Color("#FFA500")
	colorMuted     = lipgloss.Color("#666666")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	statStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorUrgent)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(13)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	overlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 2)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(colorPrimary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#000000")).
		Background(colorPrimary).
		Bold(false)
	return s
}

func tierStyle(t present.Tier) lipgloss.Style {
	switch t {
	case present.TierFast:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case present.TierMedium:
		return lipgloss.NewStyle().Foreground(colorWarn)
	default:
		return lipgloss.NewStyle().Foreground(colorUrgent)
	}
}

// View renders the UI
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.fallbackText != "" {
		return m.viewClipboardFallback()
	}
	if m.showHelp {
		return m.viewHelp()
	}
	if m.showHistory {
		return m.viewHistory()
	}

	st := m.session.State()
	innerWidth := m.width - 2

	sections := []string{
		m.viewHeader(innerWidth, st),
		m.tokenInput.View(),
		m.viewNotice(),
	}
	if m.config.Lookup.ShowBalance {
		sections = append(sections, m.viewBalance(st))
	}
	if m.config.Lookup.ShowDetail {
		sections = append(sections, m.viewLogs(innerWidth, st))
	}
	sections = append(sections, m.viewHelpBar(innerWidth))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Width(innerWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) viewHeader(width int, st lookup.State) string {
	title := titleStyle.Render("KEYQUERY")

	var status string
	switch st.Phase {
	case lookup.PhaseFetching:
		status = m.spinner.View() + statStyle.Render(" fetching")
	case lookup.PhaseError:
		status = errorStyle.Render("error")
	case lookup.PhaseSuccess:
		status = statStyle.Render("updated " + st.FetchedAt.Format("15:04:05"))
	default:
		status = mutedStyle.Render("idle")
	}
	host := mutedStyle.Render(m.config.Lookup.BaseURL)

	left := title + "  " + host
	gap := width - lipgloss.Width(left) - lipgloss.Width(status)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + status
}

func (m *Model) viewNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeError {
		return errorStyle.Render(m.notice)
	}
	return statStyle.Render(m.notice)
}

func (m *Model) viewBalance(st lookup.State) string {
	header := sectionHeaderStyle.Render("BALANCE")
	if !st.TokenValid {
		return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, mutedStyle.Render("Look up a token to see its balance")))
	}

	b := m.presenter.Balance(st)
	lines := []string{header}
	for _, l := range b.Lines() {
		lines = append(lines, labelStyle.Render(l[0])+l[1])
	}
	lines = append(lines, helpStyle.Render("[c] copy"))
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) viewLogs(width int, st lookup.State) string {
	header := sectionHeaderStyle.Render("USAGE RECORDS")
	if !st.TokenValid {
		return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, mutedStyle.Render("No records loaded")))
	}
	if st.LogFailed {
		return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, errorStyle.Render("Usage records could not be loaded")))
	}

	totals := mutedStyle.Render(m.presenter.TotalsLine(st.Totals))
	if m.filter != "" || m.filterMode {
		totals += "  " + statStyle.Render(fmt.Sprintf("%d shown", len(m.visible)))
	}

	lines := []string{header, totals}
	if m.filterMode {
		lines = append(lines, m.filterInput.View())
	}
	if len(m.visible) == 0 {
		lines = append(lines, mutedStyle.Render("No usage records"))
	} else {
		lines = append(lines, m.table.View(), m.viewSelected(width-4))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// viewSelected shows the cursor row's use time tier and pricing breakdown
func (m *Model) viewSelected(width int) string {
	row, ok := m.selectedRow()
	if !ok {
		return ""
	}

	useTime := tierStyle(present.SpeedTier(row.UseTime)).Render(fmt.Sprintf("%d s", row.UseTime))
	parts := []string{useTime, present.StreamLabel(row.IsStream)}
	if row.Billable() {
		parts = append([]string{row.ModelName}, parts...)
	} else {
		parts = append([]string{mutedStyle.Render(row.Class.String())}, parts...)
	}
	lines := []string{strings.Join(parts, "  ")}

	if row.Detail != "" {
		for _, l := range strings.Split(row.Detail, "\n") {
			lines = append(lines, mutedStyle.Render(ansi.Truncate(l, width, "…")))
		}
	} else if row.Content != "" {
		lines = append(lines, mutedStyle.Render(ansi.Truncate(row.Content, width, "…")))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewHelpBar(width int) string {
	var help string
	if m.focus == focusInput {
		help = "[Enter] look up  [Tab] records  [Esc] clear  [Ctrl+C] quit"
	} else {
		help = "[↑↓] nav  [1-8] sort  [/] filter  [e] export  [c] copy balance  [y] copy model  [h] history  [?] help  [q] quit"
	}
	help = ansi.Truncate(help, width, "…")
	padding := (width - lipgloss.Width(help)) / 2
	if padding < 1 {
		padding = 1
	}
	return helpStyle.Render(strings.Repeat(" ", padding) + help)
}

func (m *Model) viewHelp() string {
	help := `
              KEYQUERY HELP
──────────────────────────────────────────
TOKEN
  Enter       Look up the entered token
  Tab         Switch between token and records
  Esc         Clear the token field

RECORDS
  ↑/k, ↓/j    Move selection
  1-8         Sort by column, again to reverse
  /           Filter by model or detail
  Esc         Clear filter
  e           Export shown rows as CSV
  y           Copy selected model name

BALANCE
  c           Copy balance summary

GENERAL
  h           Recent lookups
  ?           Toggle help
  q, Ctrl+C   Quit

         Press any key to close
`
	return overlayStyle.Render(help)
}

func (m *Model) viewHistory() string {
	lines := []string{titleStyle.Render("RECENT LOOKUPS")}
	if len(m.historyRows) > 0 {
		lines = append(lines, mutedStyle.Render(present.OutcomeSummary(m.historySum)))
	}
	lines = append(lines, "")
	for _, e := range m.historyRows {
		outcome := e.Outcome
		switch outcome {
		case lookup.OutcomeSuccess.String():
			outcome = statStyle.Render(outcome)
		case lookup.OutcomeFailure.String():
			outcome = errorStyle.Render(outcome)
		}
		lines = append(lines, fmt.Sprintf("%s  %-8s  %s",
			m.presenter.FormatTime(e.StartedAt.Unix()), outcome, formatElapsed(e.Elapsed.Milliseconds())))
	}
	if len(m.historyRows) == 0 {
		lines = append(lines, mutedStyle.Render("No lookups recorded yet"))
	}
	lines = append(lines, "", helpStyle.Render("Press any key to close"))
	return overlayStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewClipboardFallback() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Clipboard unavailable, copy manually:"),
		"",
		m.fallbackText,
		"",
		helpStyle.Render("Press any key to close"),
	)
	return overlayStyle.BorderForeground(colorSecondary).Render(content)
}

func formatElapsed(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
