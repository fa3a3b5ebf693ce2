package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/derwolz/TwitterScraper/pkg/crawler"
)

var (
	cyan   = lipgloss.Color("#00FFFF")
	pink   = lipgloss.Color("#FF10F0")
	green  = lipgloss.Color("#39FF14")
	yellow = lipgloss.Color("#FFFF00")
	orange = lipgloss.Color("#FF6700")
	red    = lipgloss.Color("#FF0000")
	dim    = lipgloss.Color("#8A8A8A")
	dark   = lipgloss.Color("#0A0E27")

	titleStyle   = lipgloss.NewStyle().Background(pink).Foreground(dark).Bold(true).Padding(0, 1)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(pink).Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(yellow)
	currentStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(dim)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).PaddingLeft(1)
)

// outcomeStyle colors a result line by how the collection ended
func outcomeStyle(o crawler.Outcome) lipgloss.Style {
	switch o {
	case crawler.OutcomeSuccess:
		return lipgloss.NewStyle().Foreground(green)
	case crawler.OutcomeSkipped:
		return dimStyle
	case crawler.OutcomeCancelled:
		return lipgloss.NewStyle().Foreground(orange)
	default:
		return lipgloss.NewStyle().Foreground(red).Bold(true)
	}
}

func outcomeIcon(o crawler.Outcome) string {
	switch o {
	case crawler.OutcomeSuccess:
		return "✓"
	case crawler.OutcomeSkipped:
		return "·"
	case crawler.OutcomeCancelled:
		return "!"
	default:
		return "✗"
	}
}
