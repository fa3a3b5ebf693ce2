package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/derwolz/TwitterScraper/pkg/crawler"
)

// StartMsg is sent when the crawler begins a user
type StartMsg struct {
	Position int
	Total    int
	Username string
}

// ResultMsg is sent when a user is done
type ResultMsg struct {
	Position int
	Result   crawler.Result
}

// DoneMsg is sent once the batch returns
type DoneMsg struct {
	Report *crawler.BatchReport
}

// progressMsg converts a crawler progress event into a model message
func progressMsg(p crawler.Progress) tea.Msg {
	if p.Result == nil {
		return StartMsg{Position: p.Position, Total: p.Total, Username: p.Username}
	}
	return ResultMsg{Position: p.Position, Result: *p.Result}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "esc", "ctrl+c":
			if m.finished {
				return m, tea.Quit
			}
			m.stop()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = clamp(msg.Width-24, 10, 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StartMsg:
		m.start(msg.Position, msg.Total, msg.Username)
		return m, nil

	case ResultMsg:
		m.record(msg.Position, msg.Result)
		return m, nil

	case DoneMsg:
		m.finished = true
		m.report = msg.Report
		m.current = ""
		if msg.Report != nil && !msg.Report.Cancelled {
			m.position = m.total
		}
		return m, tea.Quit
	}

	return m, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
