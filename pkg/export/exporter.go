// Package export writes the collected graph to flat files: per-user
// following and follower lists, a stats CSV, the next-generation user list
// and the AI-related users report.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/derwolz/TwitterScraper/pkg/logger"
	"github.com/derwolz/TwitterScraper/pkg/storage"
	"github.com/derwolz/TwitterScraper/pkg/store"
)

const (
	FollowingDir = "following"
	FollowersDir = "followers"
	StatsFile    = "stats.csv"
)

var statsHeader = []string{
	"username",
	"reported_following",
	"reported_followers",
	"processed_following",
	"processed_followers",
}

// Store is the read side the exporter needs
type Store interface {
	GetUser(ctx context.Context, username string) (*store.User, error)
	GetFollowings(ctx context.Context, username string) ([]string, error)
	GetFollowers(ctx context.Context, username string) ([]string, error)
	UnprocessedUsers(ctx context.Context) ([]string, error)
	AIUsers(ctx context.Context) ([]store.AIUser, error)
	AIStats(ctx context.Context, topN int) (*store.AIStats, error)
}

// UserStats compares the counts a profile reports with what was collected
type UserStats struct {
	Username           string
	ReportedFollowing  int
	ReportedFollowers  int
	ProcessedFollowing int
	ProcessedFollowers int
}

// Totals summarises an ExportAll run
type Totals struct {
	Users     int
	Following int
	Followers int
	Failed    []string
}

// Exporter writes exports below the output directory of its storage manager
type Exporter struct {
	store  Store
	files  *storage.Manager
	logger logger.Logger
}

// New creates an exporter
func New(st Store, files *storage.Manager, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Exporter{store: st, files: files, logger: log.WithField("component", "export")}
}

// OutputDir returns the directory exports are written to
func (e *Exporter) OutputDir() string {
	return e.files.OutputDir()
}

// ExportUserLists writes following/<user>.txt and followers/<user>.txt and
// returns how many names each holds
func (e *Exporter) ExportUserLists(ctx context.Context, username string) (following, followers int, err error) {
	name := strings.ToLower(strings.TrimSpace(username))

	followingList, err := e.store.GetFollowings(ctx, name)
	if err != nil {
		return 0, 0, fmt.Errorf("export following of %s: %w", name, err)
	}
	if err := e.writeList(FollowingDir+"/"+name+".txt", followingList); err != nil {
		return 0, 0, err
	}

	followersList, err := e.store.GetFollowers(ctx, name)
	if err != nil {
		return 0, 0, fmt.Errorf("export followers of %s: %w", name, err)
	}
	if err := e.writeList(FollowersDir+"/"+name+".txt", followersList); err != nil {
		return 0, 0, err
	}

	e.logger.DebugWithFields("exported user lists", map[string]interface{}{
		"username":  name,
		"following": len(followingList),
		"followers": len(followersList),
	})
	return len(followingList), len(followersList), nil
}

func (e *Exporter) writeList(name string, usernames []string) error {
	sorted := append([]string(nil), usernames...)
	sort.Strings(sorted)
	return e.files.WriteFunc(name, func(w io.Writer) error {
		return writeLines(w, sorted)
	})
}

// UserStats collects reported and processed counts for one user. A user
// without a stored profile reports zero.
func (e *Exporter) UserStats(ctx context.Context, username string) (UserStats, error) {
	name := strings.ToLower(strings.TrimSpace(username))
	stats := UserStats{Username: name}

	u, err := e.store.GetUser(ctx, name)
	if err != nil {
		return stats, err
	}
	if u != nil {
		stats.ReportedFollowing = u.Following
		stats.ReportedFollowers = u.Followers
	}

	following, err := e.store.GetFollowings(ctx, name)
	if err != nil {
		return stats, err
	}
	followers, err := e.store.GetFollowers(ctx, name)
	if err != nil {
		return stats, err
	}
	stats.ProcessedFollowing = len(following)
	stats.ProcessedFollowers = len(followers)
	return stats, nil
}

// WriteStatsCSV writes stats.csv with one row per username, in input order
func (e *Exporter) WriteStatsCSV(ctx context.Context, usernames []string) ([]UserStats, error) {
	rows := make([]UserStats, 0, len(usernames))
	for _, username := range usernames {
		s, err := e.UserStats(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", username, err)
		}
		rows = append(rows, s)
	}

	err := e.files.WriteFunc(StatsFile, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(statsHeader); err != nil {
			return err
		}
		for _, s := range rows {
			record := []string{
				s.Username,
				strconv.Itoa(s.ReportedFollowing),
				strconv.Itoa(s.ReportedFollowers),
				strconv.Itoa(s.ProcessedFollowing),
				strconv.Itoa(s.ProcessedFollowers),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithField("rows", len(rows)).Info("stats CSV written")
	return rows, nil
}

// ExportAll writes the lists of every username and then the stats CSV. A
// user whose lists fail is recorded in Totals.Failed and skipped.
func (e *Exporter) ExportAll(ctx context.Context, usernames []string) (*Totals, error) {
	totals := &Totals{}
	for _, username := range usernames {
		if err := ctx.Err(); err != nil {
			return totals, err
		}
		following, followers, err := e.ExportUserLists(ctx, username)
		if err != nil {
			e.logger.WithError(err).WithField("username", username).Warn("failed to export user lists")
			totals.Failed = append(totals.Failed, username)
			continue
		}
		totals.Users++
		totals.Following += following
		totals.Followers += followers
	}

	if _, err := e.WriteStatsCSV(ctx, usernames); err != nil {
		return totals, err
	}

	e.logger.InfoWithFields("export complete", map[string]interface{}{
		"users":      totals.Users,
		"following":  totals.Following,
		"followers":  totals.Followers,
		"failed":     len(totals.Failed),
		"output_dir": e.files.OutputDir(),
	})
	return totals, nil
}

// WriteNextGen writes every user whose followings were never fetched to
// path, sorted, one per line, and returns them
func (e *Exporter) WriteNextGen(ctx context.Context, path string) ([]string, error) {
	users, err := e.store.UnprocessedUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(users)

	if err := storage.WriteFileAtomic(path, func(w io.Writer) error {
		return writeLines(w, users)
	}); err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"users": len(users),
		"path":  path,
	}).Info("next generation list written")
	return users, nil
}

// WriteAIUsers writes a readable report of AI-related users to path and
// returns how many were listed
func (e *Exporter) WriteAIUsers(ctx context.Context, path string) (int, error) {
	users, err := e.store.AIUsers(ctx)
	if err != nil {
		return 0, err
	}
	stats, err := e.store.AIStats(ctx, 0)
	if err != nil {
		return 0, err
	}

	err = storage.WriteFileAtomic(path, func(w io.Writer) error {
		return writeAIReport(w, users, stats)
	})
	if err != nil {
		return 0, err
	}

	e.logger.WithFields(map[string]interface{}{
		"users": len(users),
		"path":  path,
	}).Info("AI users report written")
	return len(users), nil
}

func writeAIReport(w io.Writer, users []store.AIUser, stats *store.AIStats) error {
	var b strings.Builder
	b.WriteString("AI-Related Users Export\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Analyzed users: %d\n", stats.AnalyzedUsers)
	fmt.Fprintf(&b, "AI users found: %d (%.2f%%)\n\n", len(users), stats.AIPercentage())

	for i, u := range users {
		fmt.Fprintf(&b, "%d. @%s\n", i+1, u.Username)
		if u.Name != "" {
			fmt.Fprintf(&b, "   Name: %s\n", u.Name)
		}
		fmt.Fprintf(&b, "   Bio: %s\n", u.Bio)
		fmt.Fprintf(&b, "   Keywords: %s\n", strings.Join(u.Keywords, ", "))
		fmt.Fprintf(&b, "   Followers: %d\n", u.Followers)
		fmt.Fprintf(&b, "   Following: %d\n\n", u.Following)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// LoadUsernames reads one username per line, trimming whitespace and
// skipping blank lines
func LoadUsernames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open users file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	return names, nil
}
