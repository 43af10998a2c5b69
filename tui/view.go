package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/mediaforge/batchctl/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))

	confirmStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 2)
)

func statusStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.loading {
		return "\n  Loading missions...\n"
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	var body string
	switch m.mode {
	case viewList:
		body = m.renderList()
	case viewDetail:
		body = m.renderDetail()
	}
	b.WriteString(sectionStyle.Width(m.width - 2).Render(body))
	b.WriteString("\n")

	if m.confirm != nil {
		prompt := fmt.Sprintf("%s mission %s? (y/n)", m.confirm.action, shortID(m.confirm.missionID))
		b.WriteString(confirmStyle.Render(prompt))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderHeader() string {
	total := 0
	if m.page != nil {
		total = m.page.Total
	}
	filter := statusFilters[m.filterIdx]
	if filter == "" {
		filter = "all"
	}

	indicator := ""
	if m.refreshing {
		indicator = " ↻"
	}

	header := fmt.Sprintf(" batchctl │ missions: %d │ filter: %s │ page %d%s ",
		total, filter, m.listPage, indicator)
	return headerStyle.Width(m.width).Render(header)
}

func (m Model) renderList() string {
	if m.page == nil || len(m.page.Items) == 0 {
		return dimmedStyle.Render("No missions on this page.")
	}

	var b strings.Builder
	b.WriteString(dimmedStyle.Render(fmt.Sprintf("  %-10s %-28s %-10s %-14s %s", "ID", "NAME", "STATUS", "PROGRESS", "CREATED")))
	b.WriteString("\n")

	for i, ms := range m.page.Items {
		cursor := "  "
		if i == m.selectedRow {
			cursor = selectedStyle.Render("> ")
		}

		progress := fmt.Sprintf("%d/%d", ms.CompletedCount, ms.TotalCount)
		if ms.FailedCount > 0 {
			progress += errorStyle.Render(fmt.Sprintf(" (%d failed)", ms.FailedCount))
		}

		line := fmt.Sprintf("%s%-10s %-28s %s %-14s %s",
			cursor,
			shortID(ms.ID),
			truncate(ms.Name, 28),
			statusStyle(ms.Status.Color()).Render(fmt.Sprintf("%-10s", ms.Status)),
			progress,
			dimmedStyle.Render(humanize.Time(ms.CreatedAt)),
		)
		b.WriteString(line)

		if ms.ScheduledTime != nil && ms.Status == domain.MissionQueued {
			b.WriteString(dimmedStyle.Render(" ⏰ " + ms.ScheduledTime.Format("2006-01-02 15:04")))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderDetail() string {
	if m.detail == nil {
		return dimmedStyle.Render("Loading mission...")
	}

	ms := m.detail.Mission
	var b strings.Builder

	b.WriteString(selectedStyle.Render(ms.Name))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s │ %s │ %s │ %d/%d done, %d failed\n",
		shortID(ms.ID),
		ms.TaskType.Caps().Label,
		statusStyle(ms.Status.Color()).Render(ms.Status.String()),
		ms.CompletedCount, ms.TotalCount, ms.FailedCount))
	if ms.Description != "" {
		b.WriteString(dimmedStyle.Render(ms.Description))
		b.WriteString("\n")
	}
	if !ms.CountsConsistent() {
		b.WriteString(errorStyle.Render("item counts out of sync, awaiting next poll"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.detail.Items) == 0 {
		b.WriteString(dimmedStyle.Render("No items."))
		return b.String()
	}

	now := time.Now()
	for i, item := range m.detail.Items {
		cursor := "  "
		if i == m.selectedRow {
			cursor = selectedStyle.Render("> ")
		}

		line := fmt.Sprintf("%s#%-4d %s %s",
			cursor,
			item.ItemIndex,
			statusStyle(item.Status.Color()).Render(fmt.Sprintf("%-10s", item.Status)),
			truncate(item.InputParams.Prompt, 48),
		)
		b.WriteString(line)

		if item.Retryable() {
			b.WriteString(dimmedStyle.Render(fmt.Sprintf(" retry %d in %s", item.RetryCount, domain.Countdown(*item.NextRetryAt, now))))
		}
		if item.Status == domain.ItemFailed && item.ErrorMessage != "" {
			b.WriteString(" ")
			b.WriteString(errorStyle.Render(truncate(item.ErrorMessage, 40)))
		}
		if item.Status == domain.ItemCompleted && item.ResultURL != "" {
			b.WriteString(" ")
			b.WriteString(dimmedStyle.Render(truncate(item.ResultURL, 40)))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if m.lastErr != nil {
		parts = append(parts, errorStyle.Render("poll failed, showing last data"))
	}
	if m.statusMsg != "" {
		parts = append(parts, m.statusMsg)
	}

	keys := "j/k move · enter open · f filter · n/p page · c cancel · R retry · d delete · o download · q quit"
	if m.mode == viewDetail {
		keys = "j/k move · esc back · c cancel · R retry · d delete · o download · q quit"
	}
	parts = append(parts, dimmedStyle.Render(keys))

	return statusBarStyle.Width(m.width).Render(" " + strings.Join(parts, " │ ") + " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return s[:n-1] + "…"
}
