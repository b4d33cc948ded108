// internal/storage/postgres.go
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mcp-food-resolver/internal/models"
)

// PostgresStorage shares one cache table between several resolver
// processes.
type PostgresStorage struct {
	Pool *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, url string) (*PostgresStorage, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := &PostgresStorage{Pool: pool}
	if _, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS food_cache_entries (
            key TEXT PRIMARY KEY,
            result JSONB NOT NULL,
            resolved_at_ms BIGINT NOT NULL
        )
    `); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStorage) Close() error {
	s.Pool.Close()
	return nil
}

func (s *PostgresStorage) LoadAll(ctx context.Context) ([]models.CacheEntry, error) {
	rows, err := s.Pool.Query(ctx, `SELECT key, result, resolved_at_ms FROM food_cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var (
			key        string
			data       []byte
			resolvedAt int64
		)
		if err := rows.Scan(&key, &data, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entry, err := decodeEntry(key, data, resolvedAt)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStorage) Put(ctx context.Context, entry models.CacheEntry) error {
	data, err := encodeResult(entry.Result)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
        INSERT INTO food_cache_entries (key, result, resolved_at_ms)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET result = EXCLUDED.result, resolved_at_ms = EXCLUDED.resolved_at_ms
        WHERE EXCLUDED.resolved_at_ms >= food_cache_entries.resolved_at_ms
    `, entry.Key, data, entry.ResolvedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM food_cache_entries WHERE key = $1`, key)
	return err
}

func (s *PostgresStorage) Clear(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `TRUNCATE food_cache_entries`)
	return err
}
