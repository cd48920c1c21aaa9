// Package corpus is the sentence corpus the pattern search runs against: a
// SQLite store of segmented sentences plus the tooling to fill it.
package corpus

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrSentenceNotFound is returned by SentenceByID for unknown ids.
var ErrSentenceNotFound = errors.New("sentence not found")

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Sentence is a stored, segmented sentence.
type Sentence struct {
	ID   int64
	Text string
}

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	for _, s := range strings.Split(schemaSQL, ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Store answers phrase queries over the sentence table. It is safe for
// concurrent use.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized connection.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Open opens (creating if needed) the SQLite corpus at path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := InitDB(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return NewStore(conn), nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the connection.
func (s *Store) Close() error { return s.db.Close() }

func limit(max int) int {
	if max <= 0 {
		return -1
	}
	return max
}

// tokenBounded matches a phrase only on whole tokens.
const tokenBounded = `instr(' ' || text || ' ', ' ' || ? || ' ') > 0`

// ExactMatchSentences returns up to max sentences containing phrase as a
// whole-token substring, in insertion order. max <= 0 means no limit.
func (s *Store) ExactMatchSentences(ctx context.Context, phrase string, max int) ([]string, error) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	if phrase == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM sentences WHERE `+tokenBounded+` ORDER BY id LIMIT ?`, phrase, limit(max))
	if err != nil {
		return nil, fmt.Errorf("exact match %q: %w", phrase, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// SentencesWithBoth returns up to max sentences containing both phrases.
func (s *Store) SentencesWithBoth(ctx context.Context, first, second string, max int) ([]Sentence, error) {
	first = strings.Join(strings.Fields(first), " ")
	second = strings.Join(strings.Fields(second), " ")
	if first == "" || second == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text FROM sentences WHERE `+tokenBounded+` AND `+tokenBounded+` ORDER BY id LIMIT ?`,
		first, second, limit(max))
	if err != nil {
		return nil, fmt.Errorf("pair query %q/%q: %w", first, second, err)
	}
	defer rows.Close()
	var out []Sentence
	for rows.Next() {
		var sent Sentence
		if err := rows.Scan(&sent.ID, &sent.Text); err != nil {
			return nil, err
		}
		out = append(out, sent)
	}
	return out, rows.Err()
}

// SentenceByID returns the text of sentence id.
func (s *Store) SentenceByID(ctx context.Context, id int64) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM sentences WHERE id = ?`, id).Scan(&text)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %d", ErrSentenceNotFound, id)
	}
	return text, err
}

// CountSentences returns the corpus size.
func (s *Store) CountSentences(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sentences`).Scan(&n)
	return n, err
}

// AddSentence stores a segmented sentence and returns its id. A sentence
// already in the corpus keeps its original id.
func AddSentence(db DBExecutor, sourceID int64, position int, text string) (int64, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return 0, fmt.Errorf("sentence must be non-empty")
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO sentences (source_id, position, text) VALUES (?, ?, ?)`,
		nullableInt64(sourceID), position, text); err != nil {
		return 0, fmt.Errorf("insert sentence: %w", err)
	}
	var id int64
	if err := db.QueryRow(`SELECT id FROM sentences WHERE text = ?`, text).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// nullableInt64 returns nil for 0 (meaning no source) else the value.
func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
