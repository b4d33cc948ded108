// internal/storage/store.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mcp-food-resolver/internal/models"
)

// Store is the durable key/value facility behind the result cache.
// Implementations must be safe for concurrent use and must never let an
// older entry overwrite a newer one for the same key.
type Store interface {
	LoadAll(ctx context.Context) ([]models.CacheEntry, error)
	Put(ctx context.Context, entry models.CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

func encodeResult(result models.ResolutionResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return data, nil
}

// decodeEntry rebuilds an entry from its stored columns.
func decodeEntry(key string, data []byte, resolvedAtMillis int64) (models.CacheEntry, error) {
	var result models.ResolutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return models.CacheEntry{}, fmt.Errorf("failed to decode entry %s: %w", key, err)
	}
	return models.CacheEntry{
		Key:        key,
		Result:     result,
		ResolvedAt: time.UnixMilli(resolvedAtMillis).UTC(),
	}, nil
}
