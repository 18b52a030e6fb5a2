package draft

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Winstonlu01/Lunori/internal/journal"
)

const schema = `
	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		sessionId TEXT,
		audioFilename TEXT NOT NULL,
		transcript TEXT NOT NULL,
		words INTEGER NOT NULL DEFAULT 0,
		images TEXT,
		source TEXT NOT NULL DEFAULT 'live',
		createdAt REAL NOT NULL,
		updatedAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS drafts_updated ON drafts(updatedAt);
`

// Store is the draft database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lunori", "drafts.sqlite")
}

// Open opens (creating if needed) the database at path with WAL. ":memory:"
// opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces a draft. CreatedAt is kept across updates.
func (s *Store) Put(d Draft) (Draft, error) {
	if d.ID == "" {
		d.ID = d.AudioFilename
	}
	if d.ID == "" || d.AudioFilename == "" {
		return Draft{}, errors.New("put draft: audio filename required")
	}
	if d.Source == "" {
		d.Source = SourceLive
	}

	var images sql.NullString
	if len(d.Images) > 0 {
		data, err := json.Marshal(d.Images)
		if err != nil {
			return Draft{}, fmt.Errorf("marshal images: %w", err)
		}
		images = sql.NullString{String: string(data), Valid: true}
	}

	now := s.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO drafts (id, sessionId, audioFilename, transcript, words, images, source, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sessionId = excluded.sessionId,
			audioFilename = excluded.audioFilename,
			transcript = excluded.transcript,
			words = excluded.words,
			images = excluded.images,
			source = excluded.source,
			updatedAt = excluded.updatedAt
	`, d.ID, nullString(d.SessionID), d.AudioFilename, d.Transcript, d.Words, images,
		string(d.Source), unixFromTime(d.CreatedAt), unixFromTime(d.UpdatedAt))
	if err != nil {
		return Draft{}, fmt.Errorf("put draft: %w", err)
	}
	return s.Get(d.ID)
}

const selectDraft = `
	SELECT id, sessionId, audioFilename, transcript, words, images, source, createdAt, updatedAt
	FROM drafts
`

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(row scanner) (Draft, error) {
	var d Draft
	var sessionID, images sql.NullString
	var source string
	var createdAt, updatedAt float64
	if err := row.Scan(&d.ID, &sessionID, &d.AudioFilename, &d.Transcript, &d.Words,
		&images, &source, &createdAt, &updatedAt); err != nil {
		return Draft{}, err
	}
	d.SessionID = sessionID.String
	d.Source = Source(source)
	d.CreatedAt = timeFromUnix(createdAt)
	d.UpdatedAt = timeFromUnix(updatedAt)
	if images.Valid {
		var imgs []journal.Image
		if err := json.Unmarshal([]byte(images.String), &imgs); err != nil {
			return Draft{}, fmt.Errorf("unmarshal images: %w", err)
		}
		d.Images = imgs
	}
	return d, nil
}

// Get returns one draft. A missing draft is sql.ErrNoRows.
func (s *Store) Get(id string) (Draft, error) {
	d, err := scanDraft(s.db.QueryRow(selectDraft+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Draft{}, err
		}
		return Draft{}, fmt.Errorf("scan draft: %w", err)
	}
	return d, nil
}

// Latest returns the most recently updated draft, or nil when there is none.
func (s *Store) Latest() (*Draft, error) {
	d, err := scanDraft(s.db.QueryRow(selectDraft + ` ORDER BY updatedAt DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	return &d, nil
}

// List returns every draft, newest first.
func (s *Store) List() ([]Draft, error) {
	rows, err := s.db.Query(selectDraft + ` ORDER BY updatedAt DESC`)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	var out []Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
