package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/derwolz/TwitterScraper/pkg/crawler"
)

const maxRecent = 8

// Model is the live view of a batch collection
type Model struct {
	spinner spinner.Model
	bar     progress.Model
	cancel  context.CancelFunc

	total    int
	position int
	current  string

	succeeded int
	skipped   int
	failed    int
	newUsers  int
	edges     int

	recent []crawler.Result
	report *crawler.BatchReport

	started  time.Time
	stopping bool
	finished bool
	width    int
}

// NewModel creates a model for a batch of total users. cancel stops the
// batch when the user quits.
func NewModel(total int, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(cyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	if cancel == nil {
		cancel = func() {}
	}
	return Model{
		spinner: s,
		bar:     bar,
		cancel:  cancel,
		total:   total,
		started: time.Now(),
	}
}

func (m *Model) start(position, total int, username string) {
	m.position = position - 1
	m.total = total
	m.current = username
}

func (m *Model) record(position int, r crawler.Result) {
	m.position = position
	m.current = ""

	switch r.Outcome {
	case crawler.OutcomeSuccess:
		m.succeeded++
	case crawler.OutcomeSkipped:
		m.skipped++
	default:
		m.failed++
	}
	m.newUsers += r.NewUsers
	m.edges += r.EdgesStored

	m.recent = append(m.recent, r)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
}

func (m *Model) stop() {
	if m.stopping {
		return
	}
	m.stopping = true
	m.cancel()
}

// percent is the share of the batch already processed
func (m *Model) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.position) / float64(m.total)
}

// Report returns the batch report once the batch has finished
func (m *Model) Report() *crawler.BatchReport {
	return m.report
}
