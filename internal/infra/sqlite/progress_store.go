// Package sqlite keeps learner progress in a local SQLite file for
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"training-progress-service/internal/domain"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress_entries (
    learner_id   TEXT NOT NULL,
    progress_key TEXT NOT NULL,
    value        BLOB NOT NULL,
    updated_at   INTEGER NOT NULL,
    PRIMARY KEY (learner_id, progress_key)
);`

// ProgressStore is an app.ProgressStore over SQLite.
type ProgressStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*ProgressStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &ProgressStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *ProgressStore) Close() error {
	return s.db.Close()
}

func (s *ProgressStore) Load(ctx context.Context, learnerID, key string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM progress_entries WHERE learner_id = ? AND progress_key = ?`,
		learnerID, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select progress %s: %w", key, err)
	}
	return raw, nil
}

func (s *ProgressStore) Save(ctx context.Context, learnerID, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO progress_entries (learner_id, progress_key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (learner_id, progress_key) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at`,
		learnerID, key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("upsert progress %s: %w", key, err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}
