// Package draft persists the in-progress capture form in a local SQLite
// key-value table, one row per storage key.
package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	_ "modernc.org/sqlite"

	"github.com/a3tai/capture-report/internal/capture"
)

// Key is the storage key of the saved form values.
const Key = "capture-form-values"

const schema = `CREATE TABLE IF NOT EXISTS local_storage (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store keeps the last saved draft.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (creating if needed) the draft database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("draft database path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create draft directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps saves strictly ordered.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create draft table: %w", err)
	}

	log.WithField("path", cleanPath).Debug("draft store opened")
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save overwrites the stored draft.
func (s *Store) Save(ctx context.Context, d capture.Draft) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	value, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		Key, string(value), s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Load returns the stored draft. The boolean is false when nothing was saved.
func (s *Store) Load(ctx context.Context) (capture.Draft, bool, error) {
	if s == nil || s.sqlDB == nil {
		return capture.Draft{}, false, fmt.Errorf("storage is not configured")
	}

	var value string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM local_storage WHERE key = ?`, Key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return capture.Draft{}, false, nil
	}
	if err != nil {
		return capture.Draft{}, false, fmt.Errorf("load draft: %w", err)
	}

	var d capture.Draft
	if err := json.Unmarshal([]byte(value), &d); err != nil {
		return capture.Draft{}, false, fmt.Errorf("decode draft: %w", err)
	}
	return d, true, nil
}

// UpdatedAt returns when the draft was last saved.
func (s *Store) UpdatedAt(ctx context.Context) (time.Time, bool, error) {
	if s == nil || s.sqlDB == nil {
		return time.Time{}, false, fmt.Errorf("storage is not configured")
	}

	var millis int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT updated_at FROM local_storage WHERE key = ?`, Key,
	).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load draft timestamp: %w", err)
	}
	return time.UnixMilli(millis).UTC(), true, nil
}

// Clear removes the stored draft. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, Key); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
