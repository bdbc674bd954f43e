package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a phrase does not exist.
var ErrNotFound = errors.New("store: not found")

const (
	flagWildcard = 1 << iota
	flagHomophone
	flagSimplified
	flagAuto
)

// Store is the SQLite user data store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for migration tooling.
func (s *Store) DB() *sql.DB { return s.db }

// AddPhrase stores a user phrase. Adding an existing scheme/code/value
// updates its priority.
func (s *Store) AddPhrase(ctx context.Context, p Phrase) (int64, error) {
	if p.Scheme == "" || p.Code == "" || p.Value == "" {
		return 0, fmt.Errorf("add phrase: scheme, code and value are required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_phrases (scheme, code, value, priority, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (scheme, code, value) DO UPDATE SET priority = excluded.priority`,
		p.Scheme, p.Code, p.Value, boolInt(p.Priority), p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("add phrase: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM user_phrases WHERE scheme = ? AND code = ? AND value = ?",
		p.Scheme, p.Code, p.Value,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get phrase id: %w", err)
	}
	return id, nil
}

// Phrases returns the phrases of scheme, priority phrases first.
func (s *Store) Phrases(ctx context.Context, scheme string) ([]Phrase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scheme, code, value, priority, created_at
		FROM user_phrases WHERE scheme = ?
		ORDER BY priority DESC, id`, scheme)
	if err != nil {
		return nil, fmt.Errorf("query phrases: %w", err)
	}
	defer rows.Close()

	var out []Phrase
	for rows.Next() {
		var p Phrase
		var priority int
		var created int64
		if err := rows.Scan(&p.ID, &p.Scheme, &p.Code, &p.Value, &priority, &created); err != nil {
			return nil, fmt.Errorf("scan phrase: %w", err)
		}
		p.Priority = priority != 0
		p.CreatedAt = time.Unix(0, created)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read phrases: %w", err)
	}
	return out, nil
}

// DeletePhrase removes the phrase with the given id.
func (s *Store) DeletePhrase(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM user_phrases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete phrase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete phrase: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("phrase %d: %w", id, ErrNotFound)
	}
	return nil
}

// RecordCommit appends c to the commit history.
func (s *Store) RecordCommit(ctx context.Context, c Commit) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	flags := 0
	if c.Wildcard {
		flags |= flagWildcard
	}
	if c.Homophone {
		flags |= flagHomophone
	}
	if c.Simplified {
		flags |= flagSimplified
	}
	if c.Auto {
		flags |= flagAuto
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commit_history (scheme, code, text, flags, at_ns)
		VALUES (?, ?, ?, ?, ?)`,
		c.Scheme, c.Code, c.Text, flags, c.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record commit: %w", err)
	}
	return nil
}

// TopCommits returns the n most frequent commits of scheme, most recent
// first among equal counts.
func (s *Store) TopCommits(ctx context.Context, scheme string, n int) ([]CommitCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, text, COUNT(*) AS n, MAX(at_ns) AS last
		FROM commit_history WHERE scheme = ?
		GROUP BY code, text
		ORDER BY n DESC, last DESC
		LIMIT ?`, scheme, n)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	var out []CommitCount
	for rows.Next() {
		var c CommitCount
		var last int64
		if err := rows.Scan(&c.Code, &c.Text, &c.Count, &last); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		c.Last = time.Unix(0, last)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read commits: %w", err)
	}
	return out, nil
}

// PruneCommits deletes history recorded before t and returns the number of
// rows removed.
func (s *Store) PruneCommits(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM commit_history WHERE at_ns < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune commits: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns counts over the whole store.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var first, last sql.NullInt64

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_phrases").Scan(&st.Phrases)
	if err != nil {
		return nil, fmt.Errorf("count phrases: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT text), MIN(at_ns), MAX(at_ns)
		FROM commit_history`,
	).Scan(&st.Commits, &st.DistinctTexts, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("count commits: %w", err)
	}

	if first.Valid {
		t := time.Unix(0, first.Int64)
		st.FirstCommit = &t
	}
	if last.Valid {
		t := time.Unix(0, last.Int64)
		st.LastCommit = &t
	}
	return &st, nil
}

// Schemes returns every scheme that has user phrases.
func (s *Store) Schemes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT scheme FROM user_phrases ORDER BY scheme")
	if err != nil {
		return nil, fmt.Errorf("query schemes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var scheme string
		if err := rows.Scan(&scheme); err != nil {
			return nil, fmt.Errorf("scan scheme: %w", err)
		}
		out = append(out, scheme)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
