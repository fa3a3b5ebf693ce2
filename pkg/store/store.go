// Package store persists users, following edges, crawl state and bio
// analysis results in SQLite.
//
// Every username is lowercased before it is written or looked up, so the
// identifier is effectively case-insensitive.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

type options struct {
	busyTimeout int
	mkdirAll    bool
}

// Option customises Open
type Option func(*options)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeout = ms } }

// WithMkdirAll creates the parent directory of the database file
func WithMkdirAll() Option { return func(o *options) { o.mkdirAll = true } }

// Store is the SQLite-backed persistence layer
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and if needed creates) the database at path and applies the schema
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 10_000}
	for _, opt := range opts {
		opt(&o)
	}

	if o.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// pragmas are per connection and the collector is single-threaded
	db.SetMaxOpenConns(1)

	pragmas := []string{
		// edges may point at users that were never fetched
		"PRAGMA foreign_keys = OFF",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Writer is the set of write operations available inside a transaction
type Writer interface {
	UpsertUser(ctx context.Context, u *User) error
	InsertUserIfAbsent(ctx context.Context, u *User) (bool, error)
	AddFollowing(ctx context.Context, follower, following string) (bool, error)
}

type writer struct {
	q   querier
	now func() time.Time
}

func (s *Store) writer() *writer {
	return &writer{q: s.db, now: s.now}
}

// InTx runs fn inside a single transaction. The transaction is rolled back
// if fn returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(w Writer) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&writer{q: tx, now: s.now}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
