// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"mcp-food-resolver/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage, err := NewSQLiteStorageWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

// NewSQLiteStorageWithDB wraps an already opened database and ensures the
// schema exists.
func NewSQLiteStorageWithDB(db *sql.DB) (*SQLiteStorage, error) {
	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS cache_entries (
        key TEXT PRIMARY KEY,
        result TEXT NOT NULL,
        resolved_at_ms INTEGER NOT NULL
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// LoadAll returns every stored entry, expired or not. Rows that fail to
// decode are skipped; the next resolution of that key overwrites them.
func (s *SQLiteStorage) LoadAll(ctx context.Context) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, result, resolved_at_ms FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var (
			key        string
			data       string
			resolvedAt int64
		)
		if err := rows.Scan(&key, &data, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entry, err := decodeEntry(key, []byte(data), resolvedAt)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache entries: %w", err)
	}

	return entries, nil
}

func (s *SQLiteStorage) Put(ctx context.Context, entry models.CacheEntry) error {
	data, err := encodeResult(entry.Result)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO cache_entries (key, result, resolved_at_ms)
        VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            result = excluded.result,
            resolved_at_ms = excluded.resolved_at_ms
        WHERE excluded.resolved_at_ms >= cache_entries.resolved_at_ms
    `
	if _, err := s.db.ExecContext(ctx, query, entry.Key, string(data), entry.ResolvedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("failed to clear cache entries: %w", err)
	}
	return nil
}
