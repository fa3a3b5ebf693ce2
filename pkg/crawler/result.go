package crawler

import (
	"time"

	"github.com/derwolz/TwitterScraper/pkg/store"
)

// Outcome classifies how a single collection ended
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeSkipped            Outcome = "skipped"
	OutcomeProfileFetchFailed Outcome = "profile_fetch_failed"
	OutcomePartialFailure     Outcome = "partial_failure"
	// OutcomeCancelled means the context ended mid-entity; no crawl state was written
	OutcomeCancelled Outcome = "cancelled"
)

// Result is the outcome of collecting one user's followings
type Result struct {
	Username string
	Outcome  Outcome
	Message  string

	NewUsers      int
	ExistingUsers int
	EdgesStored   int
	TotalFetched  int
	PagesScraped  int

	// State is the crawl state after the attempt, when one was written or read
	State    *store.CrawlState
	Duration time.Duration
}

// OK reports whether the collection succeeded or was already complete
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeSkipped
}

// BatchReport aggregates the results of a batch run
type BatchReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
	Cancelled  bool

	Succeeded     int
	Skipped       int
	Failed        int
	NewUsers      int
	ExistingUsers int
	EdgesStored   int
}

func (b *BatchReport) add(r Result) {
	b.Results = append(b.Results, r)
	switch r.Outcome {
	case OutcomeSuccess:
		b.Succeeded++
	case OutcomeSkipped:
		b.Skipped++
	default:
		b.Failed++
	}
	b.NewUsers += r.NewUsers
	b.ExistingUsers += r.ExistingUsers
	b.EdgesStored += r.EdgesStored
}

// Failures returns the results that did not succeed
func (b *BatchReport) Failures() []Result {
	var out []Result
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Elapsed is the wall time of the run
func (b *BatchReport) Elapsed() time.Duration {
	return b.FinishedAt.Sub(b.StartedAt)
}
