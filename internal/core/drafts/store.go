// Package drafts persists unsent post text in SQLite so a failed
// submission is recoverable instead of discarded.
package drafts

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"Perch/internal/client"
)

// ErrNotFound is returned when a draft id does not exist.
var ErrNotFound = errors.New("draft not found")

// Draft is one recoverable unsent post.
type Draft struct {
	ID          string
	Text        string
	SpoilerText string
	Visibility  client.Visibility
	Language    string
	InReplyToID string
	CreatedAt   time.Time
}

// Store manages draft persistence in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent read/write behavior
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			id             TEXT PRIMARY KEY,
			text           TEXT NOT NULL,
			spoiler_text   TEXT NOT NULL DEFAULT '',
			visibility     TEXT NOT NULL DEFAULT 'public',
			language       TEXT NOT NULL DEFAULT '',
			in_reply_to_id TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_drafts_created_at
			ON drafts(created_at);
	`)
	return err
}

// Save persists a draft, assigning an id when absent, and returns the id.
func (s *Store) Save(d Draft) (string, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Visibility == "" {
		d.Visibility = client.VisibilityPublic
	}
	_, err := s.db.Exec(`
		INSERT INTO drafts (id, text, spoiler_text, visibility, language, in_reply_to_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			spoiler_text = excluded.spoiler_text,
			visibility = excluded.visibility,
			language = excluded.language,
			in_reply_to_id = excluded.in_reply_to_id`,
		d.ID, d.Text, d.SpoilerText, string(d.Visibility), d.Language, d.InReplyToID)
	if err != nil {
		return "", fmt.Errorf("saving draft: %w", err)
	}
	return d.ID, nil
}

// Get retrieves a draft by id.
func (s *Store) Get(id string) (*Draft, error) {
	row := s.db.QueryRow(`
		SELECT id, text, spoiler_text, visibility, language, in_reply_to_id, created_at
		FROM drafts WHERE id = ?`, id)

	var d Draft
	var visibility string
	if err := row.Scan(&d.ID, &d.Text, &d.SpoilerText, &visibility, &d.Language, &d.InReplyToID, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading draft: %w", err)
	}
	d.Visibility = client.Visibility(visibility)
	return &d, nil
}

// List returns drafts newest first.
func (s *Store) List() ([]Draft, error) {
	rows, err := s.db.Query(`
		SELECT id, text, spoiler_text, visibility, language, in_reply_to_id, created_at
		FROM drafts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		var visibility string
		if err := rows.Scan(&d.ID, &d.Text, &d.SpoilerText, &visibility, &d.Language, &d.InReplyToID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		d.Visibility = client.Visibility(visibility)
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// Delete removes a draft by id. Deleting a missing draft is not an error.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
