package store

import (
	"context"
	"errors"
	"fmt"
)

// AddFollowing records that follower follows following. It reports false,
// without error, when the edge was already stored.
func (w *writer) AddFollowing(ctx context.Context, follower, following string) (bool, error) {
	src, dst := normalize(follower), normalize(following)
	if src == "" || dst == "" {
		return false, errors.New("add following: empty username")
	}

	res, err := w.q.ExecContext(ctx, `
		INSERT INTO followings (follower_username, following_username, scraped_at)
		VALUES (?, ?, ?)
		ON CONFLICT (follower_username, following_username) DO NOTHING`,
		src, dst, formatTime(w.now()))
	if err != nil {
		return false, fmt.Errorf("add following %s -> %s: %w", src, dst, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add following %s -> %s: %w", src, dst, err)
	}
	return n > 0, nil
}

func (s *Store) AddFollowing(ctx context.Context, follower, following string) (bool, error) {
	return s.writer().AddFollowing(ctx, follower, following)
}

// GetFollowings returns the accounts username follows, in insertion order
func (s *Store) GetFollowings(ctx context.Context, username string) ([]string, error) {
	return s.usernames(ctx, `
		SELECT following_username FROM followings
		WHERE follower_username = ?
		ORDER BY id`, normalize(username))
}

// GetFollowers returns the stored accounts that follow username
func (s *Store) GetFollowers(ctx context.Context, username string) ([]string, error) {
	return s.usernames(ctx, `
		SELECT follower_username FROM followings
		WHERE following_username = ?
		ORDER BY id`, normalize(username))
}

func (s *Store) usernames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
