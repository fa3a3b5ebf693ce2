package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/derwolz/TwitterScraper/pkg/crawler"
)

func TestModel(t *testing.T) {
	cancelled := false
	model := NewModel(3, func() { cancelled = true })

	model.Update(StartMsg{Position: 1, Total: 3, Username: "alice"})
	if model.current != "alice" {
		t.Errorf("Expected current user alice, got %q", model.current)
	}
	if model.position != 0 {
		t.Errorf("Expected position 0 while collecting, got %d", model.position)
	}

	model.Update(ResultMsg{Position: 1, Result: crawler.Result{
		Username: "alice", Outcome: crawler.OutcomeSuccess, NewUsers: 2, EdgesStored: 3,
	}})
	model.Update(ResultMsg{Position: 2, Result: crawler.Result{
		Username: "ghost", Outcome: crawler.OutcomeProfileFetchFailed, Message: "user not found",
	}})

	if model.succeeded != 1 || model.failed != 1 {
		t.Errorf("Expected 1 ok and 1 failed, got %d and %d", model.succeeded, model.failed)
	}
	if model.newUsers != 2 || model.edges != 3 {
		t.Errorf("Expected 2 new users and 3 edges, got %d and %d", model.newUsers, model.edges)
	}
	if model.current != "" {
		t.Errorf("Expected no current user after a result, got %q", model.current)
	}

	view := model.View()
	for _, want := range []string{"2/3", "@alice", "@ghost", "user not found", "3 followings, 2 new"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}

	// quitting stops the batch but waits for it to return
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("Expected quit key to cancel the batch")
	}
	if cmd != nil {
		t.Error("Expected the program to keep running until the batch returns")
	}
	if !strings.Contains(model.View(), "stopping") {
		t.Error("Expected view to show the stopping state")
	}

	report := &crawler.BatchReport{Cancelled: true}
	_, cmd = model.Update(DoneMsg{Report: report})
	if cmd == nil {
		t.Fatal("Expected a quit command once the batch is done")
	}
	if model.Report() != report {
		t.Error("Expected the report to be kept")
	}
	if model.position != 2 {
		t.Errorf("Expected a cancelled batch to keep its position, got %d", model.position)
	}
}

func TestModelKeepsRecentResults(t *testing.T) {
	model := NewModel(20, nil)
	for i := 1; i <= 12; i++ {
		model.Update(ResultMsg{Position: i, Result: crawler.Result{Username: "u", Outcome: crawler.OutcomeSkipped}})
	}
	if len(model.recent) != maxRecent {
		t.Errorf("Expected %d recent results, got %d", maxRecent, len(model.recent))
	}
	if model.skipped != 12 {
		t.Errorf("Expected 12 skipped, got %d", model.skipped)
	}
	if p := model.percent(); p != 0.6 {
		t.Errorf("Expected 60%% progress, got %v", p)
	}
}

func TestProgressMsg(t *testing.T) {
	if _, ok := progressMsg(crawler.Progress{Position: 1, Total: 2, Username: "alice"}).(StartMsg); !ok {
		t.Error("Expected a start message for a progress event without result")
	}
	msg, ok := progressMsg(crawler.Progress{Position: 1, Total: 2, Username: "alice",
		Result: &crawler.Result{Username: "alice", Outcome: crawler.OutcomeSuccess}}).(ResultMsg)
	if !ok || msg.Result.Username != "alice" {
		t.Errorf("Expected a result message for alice, got %#v", msg)
	}
}

func TestTUIRunsUntilFinish(t *testing.T) {
	var out bytes.Buffer
	view := New(1, nil, tea.WithInput(nil), tea.WithOutput(&out), tea.WithoutSignalHandler())

	go func() {
		res := crawler.Result{Username: "alice", Outcome: crawler.OutcomeSuccess}
		view.Observe(crawler.Progress{Position: 1, Total: 1, Username: "alice"})
		view.Observe(crawler.Progress{Position: 1, Total: 1, Username: "alice", Result: &res})
		view.Finish(&crawler.BatchReport{Results: []crawler.Result{res}})
	}()

	done := make(chan error, 1)
	go func() { done <- view.Run() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("TUI did not exit after Finish")
	}
	if !strings.Contains(out.String(), "alice") {
		t.Error("Expected rendered output to mention alice")
	}
}
