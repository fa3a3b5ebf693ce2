package store

import (
	"context"
	"fmt"
	"strings"
)

// Stats are database-wide counts
type Stats struct {
	TotalUsers         int
	TotalRelationships int
	ProcessedUsers     int
	UnprocessedUsers   int
	FailedUsers        int
	AnalyzedUsers      int
	AIUsers            int
}

// Stats collects the counts shown after a run and by the stats command
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM followings),
			(SELECT COUNT(*) FROM user_processing_status WHERE followings_scraped = 1 AND is_complete = 1),
			(SELECT COUNT(*) FROM users u
				LEFT JOIN user_processing_status ups ON u.username = ups.username
				WHERE ups.followings_scraped IS NULL OR ups.followings_scraped = 0),
			(SELECT COUNT(*) FROM user_processing_status WHERE followings_scraped = 1 AND is_complete = 0),
			(SELECT COUNT(*) FROM ai_analysis),
			(SELECT COUNT(*) FROM ai_analysis WHERE is_ai_related = 1)`).
		Scan(&st.TotalUsers, &st.TotalRelationships, &st.ProcessedUsers, &st.UnprocessedUsers,
			&st.FailedUsers, &st.AnalyzedUsers, &st.AIUsers)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}

// prefixed qualifies every column in a comma separated list
func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
