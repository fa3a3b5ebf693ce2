package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/derwolz/TwitterScraper/pkg/crawler"
)

// View renders the progress panel
func (m *Model) View() string {
	var lines []string

	header := titleStyle.Render("twscraper collect")
	switch {
	case m.finished:
		header += " " + currentStyle.Render("done")
	case m.stopping:
		header += " " + lipgloss.NewStyle().Foreground(orange).Render("stopping after the current request")
	default:
		header += " " + m.spinner.View()
	}
	lines = append(lines, header, "")

	lines = append(lines, fmt.Sprintf("%s %s",
		m.bar.ViewAs(m.percent()),
		valueStyle.Render(fmt.Sprintf("%d/%d", m.position, m.total))))

	if m.current != "" {
		lines = append(lines, labelStyle.Render("Collecting ")+currentStyle.Render("@"+m.current))
	}

	lines = append(lines, "", m.renderCounters())

	if len(m.recent) > 0 {
		lines = append(lines, "", m.renderRecent())
	}

	lines = append(lines, m.renderHelp())
	return panelStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m *Model) renderCounters() string {
	stat := func(label string, v int) string {
		return labelStyle.Render(label+": ") + valueStyle.Render(fmt.Sprintf("%d", v))
	}
	elapsed := time.Since(m.started).Truncate(time.Second)
	return strings.Join([]string{
		stat("ok", m.succeeded),
		stat("skipped", m.skipped),
		stat("failed", m.failed),
		stat("new users", m.newUsers),
		stat("edges", m.edges),
		labelStyle.Render("elapsed: ") + valueStyle.Render(elapsed.String()),
	}, "  ")
}

func (m *Model) renderRecent() string {
	var b strings.Builder
	for i, r := range m.recent {
		style := outcomeStyle(r.Outcome)
		line := fmt.Sprintf("%s @%s %s", outcomeIcon(r.Outcome), r.Username, r.Outcome)
		if r.Outcome == crawler.OutcomeSuccess {
			line += dimStyle.Render(fmt.Sprintf("  %d followings, %d new", r.EdgesStored, r.NewUsers))
		} else if r.Message != "" {
			line += dimStyle.Render("  " + text.Snip(r.Message, 60, "…"))
		}
		b.WriteString(style.Render(line))
		if i < len(m.recent)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Model) renderHelp() string {
	if m.finished {
		return ""
	}
	return "\n" + helpStyle.Render("q stop after the current user")
}
