// Package sqlite implements the RecordStore on an embedded SQLite
// database via the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nrs-project/notice-crawler/internal/crawler"
)

const schema = `
CREATE TABLE IF NOT EXISTS crawled_records (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    publish_time TEXT,
    source_id TEXT,
    source_name TEXT,
    attachments TEXT,
    synced INTEGER DEFAULT 0,
    created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_crawled_records_url ON crawled_records(url);
`

// Store persists crawl records in a single SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

var _ crawler.RecordStore = (*Store)(nil)

// Open creates the parent directory if needed, opens the database in
// WAL mode and bootstraps the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a record with the given id is already stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM crawled_records WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query record: %w", err)
	}
	return true, nil
}

// Insert stores a record. Concurrent duplicate-identifier writes are
// expected and absorbed: a row with the same id is left untouched.
func (s *Store) Insert(ctx context.Context, record crawler.Record) error {
	var attachments any
	if len(record.Attachments) > 0 {
		payload, err := json.Marshal(record.Attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments: %w", err)
		}
		attachments = string(payload)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO crawled_records
		(id, title, url, publish_time, source_id, source_name, attachments, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`,
		record.ID,
		record.Title,
		record.URL,
		record.PublishTime.UTC().Format(time.RFC3339),
		record.SourceID,
		record.SourceName,
		attachments,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// MarkSynced flags the given records as pushed to the index sink.
func (s *Store) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE crawled_records SET synced = 1 WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("mark synced %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
