// internal/storage/memory.go
package storage

import (
	"context"
	"sync"

	"mcp-food-resolver/internal/models"
)

// MemoryStorage keeps entries for the life of the process only.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]models.CacheEntry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]models.CacheEntry)}
}

func (m *MemoryStorage) LoadAll(_ context.Context) ([]models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CacheEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *MemoryStorage) Put(_ context.Context, entry models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[entry.Key]; ok && cur.ResolvedAt.After(entry.ResolvedAt) {
		return nil
	}
	m.entries[entry.Key] = entry
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]models.CacheEntry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
