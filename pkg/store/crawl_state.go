package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Phase is where an entity sits in the crawl lifecycle
type Phase string

const (
	PhaseUnseen   Phase = "unseen"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
)

// CrawlState records whether a user's followings have been fetched
type CrawlState struct {
	Username          string
	Scraped           bool
	ScrapedAt         *time.Time
	EdgeCount         int
	PagesScraped      int
	MaxPagesAttempted int
	IsComplete        bool
	ErrorMessage      *string
	LastAttemptAt     time.Time
}

// Phase derives the lifecycle phase. A nil state is unseen.
func (c *CrawlState) Phase() Phase {
	switch {
	case c == nil || !c.Scraped:
		return PhaseUnseen
	case c.IsComplete:
		return PhaseComplete
	default:
		return PhaseFailed
	}
}

// LastError returns the recorded error message, or ""
func (c *CrawlState) LastError() string {
	if c == nil || c.ErrorMessage == nil {
		return ""
	}
	return *c.ErrorMessage
}

// FailedUser is a user whose last crawl attempt did not complete
type FailedUser struct {
	Username      string
	ErrorMessage  string
	LastAttemptAt time.Time
}

const crawlColumns = `username, followings_scraped, followings_scraped_at, followings_count,
	pages_scraped, max_pages_attempted, is_complete, error_message, last_attempt_at`

// SaveCrawlState overwrites the crawl state of one user. Missing timestamps
// are filled with the current time, and a complete state is always scraped.
func (s *Store) SaveCrawlState(ctx context.Context, state CrawlState) error {
	username := normalize(state.Username)
	if username == "" {
		return errors.New("save crawl state: empty username")
	}

	now := s.now()
	if state.IsComplete {
		state.Scraped = true
	}
	if state.LastAttemptAt.IsZero() {
		state.LastAttemptAt = now
	}
	if state.Scraped && state.ScrapedAt == nil {
		state.ScrapedAt = &now
	}

	var scrapedAt, errMsg sql.NullString
	if state.ScrapedAt != nil {
		scrapedAt = sql.NullString{String: formatTime(*state.ScrapedAt), Valid: true}
	}
	if state.ErrorMessage != nil {
		errMsg = sql.NullString{String: *state.ErrorMessage, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_processing_status (`+crawlColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			followings_scraped = excluded.followings_scraped,
			followings_scraped_at = excluded.followings_scraped_at,
			followings_count = excluded.followings_count,
			pages_scraped = excluded.pages_scraped,
			max_pages_attempted = excluded.max_pages_attempted,
			is_complete = excluded.is_complete,
			error_message = excluded.error_message,
			last_attempt_at = excluded.last_attempt_at`,
		username,
		boolInt(state.Scraped),
		scrapedAt,
		state.EdgeCount,
		state.PagesScraped,
		state.MaxPagesAttempted,
		boolInt(state.IsComplete),
		errMsg,
		formatTime(state.LastAttemptAt),
	)
	if err != nil {
		return fmt.Errorf("save crawl state %s: %w", username, err)
	}
	return nil
}

// GetCrawlState returns the crawl state of a user, or nil if none was recorded
func (s *Store) GetCrawlState(ctx context.Context, username string) (*CrawlState, error) {
	var (
		c                 CrawlState
		scraped, complete int
		scrapedAt, errMsg sql.NullString
		lastAttempt       string
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+crawlColumns+` FROM user_processing_status WHERE username = ?`,
		normalize(username)).Scan(&c.Username, &scraped, &scrapedAt, &c.EdgeCount,
		&c.PagesScraped, &c.MaxPagesAttempted, &complete, &errMsg, &lastAttempt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get crawl state %s: %w", username, err)
	}

	c.Scraped = scraped != 0
	c.IsComplete = complete != 0
	c.ScrapedAt = parseNullTime(scrapedAt)
	if errMsg.Valid {
		msg := errMsg.String
		c.ErrorMessage = &msg
	}
	c.LastAttemptAt = parseTime(lastAttempt)
	return &c, nil
}

// IsFollowingsScraped reports whether a crawl of username was attempted
func (s *Store) IsFollowingsScraped(ctx context.Context, username string) (bool, error) {
	state, err := s.GetCrawlState(ctx, username)
	if err != nil {
		return false, err
	}
	return state != nil && state.Scraped, nil
}

// ResetCrawlState forgets the crawl state of a user, returning it to unseen.
// It reports whether a record was removed.
func (s *Store) ResetCrawlState(ctx context.Context, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_processing_status WHERE username = ?`, normalize(username))
	if err != nil {
		return false, fmt.Errorf("reset crawl state %s: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset crawl state %s: %w", username, err)
	}
	return n > 0, nil
}

// UnprocessedUsers lists stored users whose followings were never fetched
func (s *Store) UnprocessedUsers(ctx context.Context) ([]string, error) {
	names, err := s.usernames(ctx, `
		SELECT u.username FROM users u
		LEFT JOIN user_processing_status ups ON u.username = ups.username
		WHERE ups.followings_scraped IS NULL OR ups.followings_scraped = 0
		ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("unprocessed users: %w", err)
	}
	return names, nil
}

// ProcessedUsers lists users whose followings were fetched completely
func (s *Store) ProcessedUsers(ctx context.Context) ([]string, error) {
	names, err := s.usernames(ctx, `
		SELECT username FROM user_processing_status
		WHERE followings_scraped = 1 AND is_complete = 1
		ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("processed users: %w", err)
	}
	return names, nil
}

// FailedUsers lists users whose last attempt failed with a message
func (s *Store) FailedUsers(ctx context.Context) ([]FailedUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, error_message, last_attempt_at FROM user_processing_status
		WHERE is_complete = 0 AND error_message IS NOT NULL
		ORDER BY last_attempt_at DESC, username`)
	if err != nil {
		return nil, fmt.Errorf("failed users: %w", err)
	}
	defer rows.Close()

	var failed []FailedUser
	for rows.Next() {
		var f FailedUser
		var last string
		if err := rows.Scan(&f.Username, &f.ErrorMessage, &last); err != nil {
			return nil, fmt.Errorf("failed users: %w", err)
		}
		f.LastAttemptAt = parseTime(last)
		failed = append(failed, f)
	}
	return failed, rows.Err()
}
