package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Analysis is the stored classification of one user's bio
type Analysis struct {
	Username     string
	IsAIRelated  bool
	Keywords     []string
	KeywordCount int
	AnalyzedAt   time.Time
	UpdatedAt    time.Time
}

// AIUser is a classified user joined with its profile
type AIUser struct {
	User
	Keywords []string
}

// KeywordCount is how many AI-related users matched a keyword
type KeywordCount struct {
	Keyword string
	Count   int
}

// AIStats summarises the stored classifications
type AIStats struct {
	TotalUsers    int
	AnalyzedUsers int
	AIUsers       int
	TopKeywords   []KeywordCount
}

// AIPercentage is the share of analyzed users classified as AI-related
func (a AIStats) AIPercentage() float64 {
	if a.AnalyzedUsers == 0 {
		return 0
	}
	return float64(a.AIUsers) / float64(a.AnalyzedUsers) * 100
}

// SaveAnalysis stores the classification of one user, keeping the time of
// the first analysis
func (s *Store) SaveAnalysis(ctx context.Context, username string, isAI bool, keywords []string) error {
	name := normalize(username)
	if name == "" {
		return errors.New("save analysis: empty username")
	}
	if keywords == nil {
		keywords = []string{}
	}

	encoded, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", name, err)
	}
	now := formatTime(s.now())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_analysis (username, is_ai_related, found_keywords, keyword_count, analyzed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			is_ai_related = excluded.is_ai_related,
			found_keywords = excluded.found_keywords,
			keyword_count = excluded.keyword_count,
			updated_at = excluded.updated_at`,
		name, boolInt(isAI), string(encoded), len(keywords), now, now)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", name, err)
	}
	return nil
}

// GetAnalysis returns the stored analysis of a user, or nil
func (s *Store) GetAnalysis(ctx context.Context, username string) (*Analysis, error) {
	var (
		a                    Analysis
		isAI                 int
		encoded              string
		analyzedAt, updateAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT username, is_ai_related, found_keywords, keyword_count, analyzed_at, updated_at
		FROM ai_analysis WHERE username = ?`, normalize(username)).
		Scan(&a.Username, &isAI, &encoded, &a.KeywordCount, &analyzedAt, &updateAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", username, err)
	}

	a.IsAIRelated = isAI != 0
	a.Keywords = decodeKeywords(encoded)
	a.AnalyzedAt = parseTime(analyzedAt)
	a.UpdatedAt = parseTime(updateAt)
	return &a, nil
}

func decodeKeywords(encoded string) []string {
	var kws []string
	if err := json.Unmarshal([]byte(encoded), &kws); err != nil {
		return nil
	}
	return kws
}

// AIUsers returns AI-related users with their profiles, most followed first
func (s *Store) AIUsers(ctx context.Context) ([]AIUser, error) {
	return s.classifiedUsers(ctx, 1, 0)
}

// NonAIUsers returns analyzed users not classified as AI-related; limit <= 0 means all
func (s *Store) NonAIUsers(ctx context.Context, limit int) ([]AIUser, error) {
	return s.classifiedUsers(ctx, 0, limit)
}

func (s *Store) classifiedUsers(ctx context.Context, isAI int, limit int) ([]AIUser, error) {
	query := `
		SELECT ` + prefixed("u.", userColumns) + `, a.found_keywords
		FROM ai_analysis a
		JOIN users u ON u.username = a.username
		WHERE a.is_ai_related = ?
		ORDER BY u.followers DESC, u.username`
	args := []any{isAI}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("classified users: %w", err)
	}
	defer rows.Close()

	var out []AIUser
	for rows.Next() {
		var encoded string
		u, err := scanUser(scannerWithExtra{rows, &encoded})
		if err != nil {
			return nil, fmt.Errorf("classified users: %w", err)
		}
		out = append(out, AIUser{User: *u, Keywords: decodeKeywords(encoded)})
	}
	return out, rows.Err()
}

// UnanalyzedUsers returns users with a bio and no stored analysis
func (s *Store) UnanalyzedUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("u.", userColumns)+`
		FROM users u
		LEFT JOIN ai_analysis a ON a.username = u.username
		WHERE a.username IS NULL AND u.bio IS NOT NULL AND u.bio != ''
		ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("unanalyzed users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unanalyzed users: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// AIStats counts classifications and the topN keywords among AI-related users
func (s *Store) AIStats(ctx context.Context, topN int) (*AIStats, error) {
	stats := &AIStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM ai_analysis),
			(SELECT COUNT(*) FROM ai_analysis WHERE is_ai_related = 1)`).
		Scan(&stats.TotalUsers, &stats.AnalyzedUsers, &stats.AIUsers)
	if err != nil {
		return nil, fmt.Errorf("ai stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT found_keywords FROM ai_analysis WHERE is_ai_related = 1`)
	if err != nil {
		return nil, fmt.Errorf("ai stats: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("ai stats: %w", err)
		}
		for _, kw := range decodeKeywords(encoded) {
			counts[kw]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ai stats: %w", err)
	}

	for kw, n := range counts {
		stats.TopKeywords = append(stats.TopKeywords, KeywordCount{Keyword: kw, Count: n})
	}
	sort.Slice(stats.TopKeywords, func(i, j int) bool {
		a, b := stats.TopKeywords[i], stats.TopKeywords[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Keyword < b.Keyword
	})
	if topN > 0 && len(stats.TopKeywords) > topN {
		stats.TopKeywords = stats.TopKeywords[:topN]
	}
	return stats, nil
}

// scannerWithExtra appends extra destinations after the user columns
type scannerWithExtra struct {
	rows  *sql.Rows
	extra *string
}

func (s scannerWithExtra) Scan(dest ...any) error {
	return s.rows.Scan(append(dest, s.extra)...)
}
