package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/derwolz/TwitterScraper/pkg/aidetect"
	"github.com/derwolz/TwitterScraper/pkg/auth"
	"github.com/derwolz/TwitterScraper/pkg/crawler"
	"github.com/derwolz/TwitterScraper/pkg/search"
	"github.com/derwolz/TwitterScraper/pkg/store"
)

const bioWidth = 60

// NewTable returns a rounded table that renders to w
func NewTable(w io.Writer) table.Writer {
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	t := table.NewWriter()
	t.SetStyle(style)
	t.SetOutputMirror(w)
	return t
}

func keyValueTable(w io.Writer, title string) table.Writer {
	t := NewTable(w)
	t.SetTitle(title)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func snip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	return text.Snip(s, n, "…")
}

// RenderBatchReport prints one row per collected user and the batch totals
func RenderBatchReport(w io.Writer, r *crawler.BatchReport) {
	t := NewTable(w)
	t.SetTitle("Run " + r.RunID)
	t.AppendHeader(table.Row{"User", "Outcome", "New", "Existing", "Edges", "Fetched", "Pages", "Message"})
	for _, res := range r.Results {
		t.AppendRow(table.Row{
			res.Username,
			outcomeLabel(res.Outcome),
			res.NewUsers,
			res.ExistingUsers,
			res.EdgesStored,
			res.TotalFetched,
			res.PagesScraped,
			snip(res.Message, 50),
		})
	}
	footer := fmt.Sprintf("%d ok, %d skipped, %d failed", r.Succeeded, r.Skipped, r.Failed)
	if r.Cancelled {
		footer += ", cancelled"
	}
	t.AppendFooter(table.Row{footer, r.Elapsed().Round(time.Millisecond).String(),
		r.NewUsers, r.ExistingUsers, r.EdgesStored, "", "", ""})
	t.Render()
}

func outcomeLabel(o crawler.Outcome) string {
	switch o {
	case crawler.OutcomeSuccess:
		return Green(string(o))
	case crawler.OutcomeSkipped:
		return Dim(string(o))
	case crawler.OutcomeCancelled:
		return Yellow(string(o))
	default:
		return Red(string(o))
	}
}

// RenderStats prints the database-wide counts
func RenderStats(w io.Writer, s *store.Stats) {
	t := keyValueTable(w, "Database")
	t.AppendRows([]table.Row{
		{"Users", s.TotalUsers},
		{"Relationships", s.TotalRelationships},
		{"Processed", s.ProcessedUsers},
		{"Unprocessed", s.UnprocessedUsers},
		{"Failed", s.FailedUsers},
		{"Analyzed", s.AnalyzedUsers},
		{"AI-related", s.AIUsers},
	})
	t.Render()
}

// RenderCrawlState prints the crawl state of one user; a nil state is unseen
func RenderCrawlState(w io.Writer, username string, s *store.CrawlState) {
	t := keyValueTable(w, username)
	t.AppendRow(table.Row{"Phase", string(s.Phase())})
	if s != nil {
		scrapedAt := "-"
		if s.ScrapedAt != nil {
			scrapedAt = formatTime(*s.ScrapedAt)
		}
		t.AppendRows([]table.Row{
			{"Followings", s.EdgeCount},
			{"Pages", s.PagesScraped},
			{"Page cap", s.MaxPagesAttempted},
			{"Scraped at", scrapedAt},
			{"Last attempt", formatTime(s.LastAttemptAt)},
		})
		if msg := s.LastError(); msg != "" {
			t.AppendRow(table.Row{"Error", snip(msg, 60)})
		}
	}
	t.Render()
}

// RenderFailedUsers prints users whose last crawl failed
func RenderFailedUsers(w io.Writer, failed []store.FailedUser) {
	t := NewTable(w)
	t.SetTitle("Failed users")
	t.AppendHeader(table.Row{"User", "Last attempt", "Error"})
	for _, f := range failed {
		t.AppendRow(table.Row{f.Username, formatTime(f.LastAttemptAt), snip(f.ErrorMessage, 60)})
	}
	t.Render()
}

// RenderAnalysisSummary prints the AI-related users of an analysis run
func RenderAnalysisSummary(w io.Writer, s *aidetect.Summary) {
	t := NewTable(w)
	t.SetTitle("Bio analysis")
	t.AppendHeader(table.Row{"User", "Keywords", "Bio"})
	for _, r := range s.Results {
		if !r.IsAIRelated {
			continue
		}
		t.AppendRow(table.Row{r.Username, strings.Join(r.Keywords, ", "), snip(r.Bio, bioWidth)})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d analyzed", s.Total),
		fmt.Sprintf("%d AI-related (%.1f%%)", s.AIUsers, s.AIPercentage()),
		fmt.Sprintf("%d failed", s.Failed),
	})
	t.Render()
}

// RenderAIStats prints classification counts and the most frequent keywords
func RenderAIStats(w io.Writer, s *store.AIStats) {
	t := keyValueTable(w, "AI analysis")
	t.AppendRows([]table.Row{
		{"Users", s.TotalUsers},
		{"Analyzed", s.AnalyzedUsers},
		{"AI-related", s.AIUsers},
		{"AI share", fmt.Sprintf("%.1f%%", s.AIPercentage())},
	})
	t.Render()

	if len(s.TopKeywords) == 0 {
		return
	}
	kt := NewTable(w)
	kt.SetTitle("Top keywords")
	kt.AppendHeader(table.Row{"Keyword", "Users"})
	for _, kc := range s.TopKeywords {
		kt.AppendRow(table.Row{kc.Keyword, kc.Count})
	}
	kt.Render()
}

// RenderAIUsers prints classified users with their matched keywords
func RenderAIUsers(w io.Writer, users []store.AIUser) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"User", "Name", "Followers", "Keywords", "Bio"})
	for _, u := range users {
		t.AppendRow(table.Row{u.Username, u.Name, u.Followers,
			strings.Join(u.Keywords, ", "), snip(u.Bio, bioWidth)})
	}
	t.Render()
}

// RenderSearchHits prints search results with their best highlighted fragment
func RenderSearchHits(w io.Writer, hits []search.Hit) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"User", "Name", "Followers", "Score", "Match"})
	for _, h := range hits {
		t.AppendRow(table.Row{h.Username, h.Name, h.Followers,
			fmt.Sprintf("%.3f", h.Score), bestFragment(h.Fragments)})
	}
	t.Render()
}

func bestFragment(fragments map[string][]string) string {
	for _, field := range []string{"Bio", "Name", "Location", "Username"} {
		if f := fragments[field]; len(f) > 0 {
			return strings.Join(strings.Fields(f[0]), " ")
		}
	}
	return ""
}

// RenderCredentials prints stored credentials with their keys masked
func RenderCredentials(w io.Writer, creds []*auth.Credential) {
	t := NewTable(w)
	t.SetTitle("Stored credentials")
	t.AppendHeader(table.Row{"Name", "API key", "Base URL", "Modified"})
	for _, c := range creds {
		s := auth.Sanitize(c)
		t.AppendRow(table.Row{s.Name, s.APIKey, s.BaseURL, formatTime(s.LastModified)})
	}
	t.Render()
}
