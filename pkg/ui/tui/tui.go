package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/derwolz/TwitterScraper/pkg/crawler"
)

// TUI shows a live progress panel while a batch runs in another goroutine
type TUI struct {
	program *tea.Program
}

// New creates the view for a batch of total users. Quitting the view calls
// cancel; the program keeps running until Finish is called.
func New(total int, cancel context.CancelFunc, opts ...tea.ProgramOption) *TUI {
	model := NewModel(total, cancel)
	return &TUI{program: tea.NewProgram(&model, opts...)}
}

// Run blocks until the batch finishes or the program fails
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Observe forwards crawler progress; it is safe to pass as Options.OnProgress
func (t *TUI) Observe(p crawler.Progress) {
	t.program.Send(progressMsg(p))
}

// Finish hands the final report to the view, which then exits
func (t *TUI) Finish(report *crawler.BatchReport) {
	t.program.Send(DoneMsg{Report: report})
}
