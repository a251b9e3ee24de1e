// Package store provides SQLite-backed persistence for roleforge.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// SQLiteStore is a key/value blob store on SQLite.
// Safe for concurrent use; writes are serialized by the mutex.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema holds one row per storage key. revision counts saves per key so
// callers can verify write ordering.
const schema = `
CREATE TABLE IF NOT EXISTS blobs (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    size INTEGER NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1,
    updated_at INTEGER NOT NULL
);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every :memory: connection is its own database; pin the pool to one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load returns the blob stored under key, or nil when absent.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}

// Save writes the blob under key, replacing any previous value.
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, value, size, revision, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			size = excluded.size,
			revision = blobs.revision + 1,
			updated_at = excluded.updated_at
	`, key, data, len(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// BlobInfo describes a stored key without its value.
type BlobInfo struct {
	Key       string `json:"key"`
	Size      int    `json:"size"`
	Revision  int    `json:"revision"`
	UpdatedAt int64  `json:"updatedAt"`
}

// stat returns metadata for key, or nil when absent.
func (s *SQLiteStore) stat(ctx context.Context, key string) (*BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var info BlobInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT key, size, revision, updated_at FROM blobs WHERE key = ?
	`, key).Scan(&info.Key, &info.Size, &info.Revision, &info.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns metadata for every stored key, ordered by key.
func (s *SQLiteStore) List(ctx context.Context) ([]*BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, size, revision, updated_at FROM blobs ORDER BY key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*BlobInfo
	for rows.Next() {
		var info BlobInfo
		if err := rows.Scan(&info.Key, &info.Size, &info.Revision, &info.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &info)
	}
	return out, rows.Err()
}

// Version reports the SQLite library version.
func (s *SQLiteStore) Version(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

// VecVersion reports the bundled sqlite-vec extension version.
func (s *SQLiteStore) VecVersion(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT vec_version()`).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
