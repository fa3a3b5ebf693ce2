package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// existsChunk keeps IN (...) lists well under SQLite's variable limit
const existsChunk = 500

// User is a stored profile
type User struct {
	Username         string
	Name             string
	URL              string
	Bio              string
	Location         string
	IsVerified       bool
	VerificationType string
	Followers        int
	Following        int
	PinnedPostLink   string
	CreatedAt        string
	IsAutomated      bool
	MediaCount       int
	StatusesCount    int
	ScrapedAt        time.Time
	UpdatedAt        time.Time
}

const userColumns = `username, name, url, bio, location, is_verified, verification_type,
	followers, following, pinned_post_link, created_at, is_automated,
	media_count, statuses_count, scraped_at, updated_at`

func userArgs(u *User, now string) []any {
	return []any{
		normalize(u.Username),
		u.Name,
		nullString(u.URL),
		u.Bio,
		u.Location,
		boolInt(u.IsVerified),
		nullString(u.VerificationType),
		u.Followers,
		u.Following,
		nullString(u.PinnedPostLink),
		nullString(u.CreatedAt),
		boolInt(u.IsAutomated),
		u.MediaCount,
		u.StatusesCount,
		now,
		now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u                                          User
		name, url, bio, location, vtype, pin, crAt sql.NullString
		verified, automated                        int
		scrapedAt, updatedAt                       string
	)
	err := row.Scan(&u.Username, &name, &url, &bio, &location, &verified, &vtype,
		&u.Followers, &u.Following, &pin, &crAt, &automated,
		&u.MediaCount, &u.StatusesCount, &scrapedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	u.Name = name.String
	u.URL = url.String
	u.Bio = bio.String
	u.Location = location.String
	u.IsVerified = verified != 0
	u.VerificationType = vtype.String
	u.PinnedPostLink = pin.String
	u.CreatedAt = crAt.String
	u.IsAutomated = automated != 0
	u.ScrapedAt = parseTime(scrapedAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// UpsertUser inserts the user or overwrites every attribute of an existing
// row. The first-seen timestamp is kept.
func (w *writer) UpsertUser(ctx context.Context, u *User) error {
	if normalize(u.Username) == "" {
		return errors.New("upsert user: empty username")
	}

	_, err := w.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			bio = excluded.bio,
			location = excluded.location,
			is_verified = excluded.is_verified,
			verification_type = excluded.verification_type,
			followers = excluded.followers,
			following = excluded.following,
			pinned_post_link = excluded.pinned_post_link,
			created_at = excluded.created_at,
			is_automated = excluded.is_automated,
			media_count = excluded.media_count,
			statuses_count = excluded.statuses_count,
			updated_at = excluded.updated_at`,
		userArgs(u, formatTime(w.now()))...)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.Username, err)
	}
	return nil
}

// InsertUserIfAbsent stores the user only when no row exists yet and reports
// whether a row was created
func (w *writer) InsertUserIfAbsent(ctx context.Context, u *User) (bool, error) {
	if normalize(u.Username) == "" {
		return false, errors.New("insert user: empty username")
	}

	res, err := w.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING`,
		userArgs(u, formatTime(w.now()))...)
	if err != nil {
		return false, fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	return n > 0, nil
}

func (s *Store) UpsertUser(ctx context.Context, u *User) error {
	return s.writer().UpsertUser(ctx, u)
}

func (s *Store) InsertUserIfAbsent(ctx context.Context, u *User) (bool, error) {
	return s.writer().InsertUserIfAbsent(ctx, u)
}

// GetUser returns the stored user, or nil if there is none
func (s *Store) GetUser(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, normalize(username))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return u, nil
}

// UserExists reports whether a profile is stored for username
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ? LIMIT 1`, normalize(username)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("user exists %s: %w", username, err)
	}
	return true, nil
}

// UsersExist resolves presence for many usernames at once. The result has
// exactly one entry per input, keyed by the username as given.
func (s *Store) UsersExist(ctx context.Context, usernames []string) (map[string]bool, error) {
	result := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		result[u] = false
	}

	unique := make([]string, 0, len(usernames))
	seen := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		n := normalize(u)
		if _, ok := seen[n]; ok || n == "" {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}

	found := make(map[string]bool, len(unique))
	for start := 0; start < len(unique); start += existsChunk {
		end := min(start+existsChunk, len(unique))
		chunk := unique[start:end]

		args := make([]any, len(chunk))
		for i, n := range chunk {
			args[i] = n
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx, `SELECT username FROM users WHERE username IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("users exist: %w", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return nil, fmt.Errorf("users exist: %w", err)
			}
			found[name] = true
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("users exist: %w", err)
		}
	}

	for _, u := range usernames {
		result[u] = found[normalize(u)]
	}
	return result, nil
}

// ListUsers returns every stored user ordered by username
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
