// Package cache keeps accepted resolution results in memory, mirrored to a
// durable store, and treats entries older than the validity window as
// misses.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mcp-food-resolver/internal/clock"
	"mcp-food-resolver/internal/models"
	"mcp-food-resolver/internal/storage"
)

const (
	DefaultValidity     = 30 * 24 * time.Hour
	DefaultWriteTimeout = 5 * time.Second
)

type Options struct {
	Validity     time.Duration
	WriteTimeout time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry

	store        storage.Store
	clock        clock.Clock
	validity     time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	// Background writes in flight; idle is closed whenever inflight drops
	// to zero.
	wmu      sync.Mutex
	inflight int
	idle     chan struct{}
}

// New builds a cache over store and loads every unexpired entry from it.
// A load failure is logged and the cache starts empty.
func New(ctx context.Context, store storage.Store, opts Options) *ResultCache {
	if opts.Validity <= 0 {
		opts.Validity = DefaultValidity
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Wall()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &ResultCache{
		entries:      make(map[string]models.CacheEntry),
		store:        store,
		clock:        opts.Clock,
		validity:     opts.Validity,
		writeTimeout: opts.WriteTimeout,
		logger:       opts.Logger.With("component", "cache"),
	}
	c.load(ctx)
	return c
}

func (c *ResultCache) load(ctx context.Context) {
	if c.store == nil {
		return
	}
	stored, err := c.store.LoadAll(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to load cache entries", "error", err)
		return
	}

	now := c.clock.Now()
	dropped := 0
	c.mu.Lock()
	for _, e := range stored {
		if e.Expired(now, c.validity) {
			dropped++
			continue
		}
		if cur, ok := c.entries[e.Key]; ok && cur.ResolvedAt.After(e.ResolvedAt) {
			continue
		}
		c.entries[e.Key] = e
	}
	loaded := len(c.entries)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "cache loaded", "entries", loaded, "expired", dropped)
}

// Get returns the entry for key if it is inside the validity window.
func (c *ResultCache) Get(key string) (models.CacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.Expired(c.clock.Now(), c.validity) {
		return models.CacheEntry{}, false
	}
	e.Result = e.Result.Clone()
	return e, true
}

// Put records result under key with the current time. The durable write runs
// in the background and its failure is only logged.
func (c *ResultCache) Put(key string, result models.ResolutionResult) {
	entry := models.CacheEntry{Key: key, Result: result.Clone(), ResolvedAt: c.clock.Now()}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	c.beginWrite()
	go func() {
		defer c.endWrite()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("cache write panicked", "key", key, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
		defer cancel()
		if err := c.store.Put(ctx, entry); err != nil {
			c.logger.Warn("failed to persist cache entry", "key", key, "error", err)
		}
	}()
}

func (c *ResultCache) beginWrite() {
	c.wmu.Lock()
	if c.inflight == 0 {
		c.idle = make(chan struct{})
	}
	c.inflight++
	c.wmu.Unlock()
}

func (c *ResultCache) endWrite() {
	c.wmu.Lock()
	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
	}
	c.wmu.Unlock()
}

// Flush blocks until every background write started so far has finished or
// ctx is done.
func (c *ResultCache) Flush(ctx context.Context) error {
	c.wmu.Lock()
	if c.inflight == 0 {
		c.wmu.Unlock()
		return nil
	}
	idle := c.idle
	c.wmu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear removes every entry from memory and from the durable store. Pending
// writes are drained first so they cannot resurrect cleared entries.
func (c *ResultCache) Clear(ctx context.Context) error {
	if err := c.Flush(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = make(map[string]models.CacheEntry)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "failed to clear durable cache", "error", err)
		return err
	}
	return nil
}

// Delete removes key from memory and from the durable store. It reports
// whether a valid entry was present.
func (c *ResultCache) Delete(ctx context.Context, key string) (bool, error) {
	if err := c.Flush(ctx); err != nil {
		return false, err
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	found := ok && !e.Expired(c.clock.Now(), c.validity)

	if c.store == nil {
		return found, nil
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "failed to delete durable cache entry", "key", key, "error", err)
		return found, err
	}
	return found, nil
}

// Stats lists the keys currently inside the validity window, sorted.
func (c *ResultCache) Stats() models.CacheStats {
	now := c.clock.Now()
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if !e.Expired(now, c.validity) {
			keys = append(keys, k)
		}
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return models.CacheStats{Size: len(keys), Keys: keys}
}

// Close drains pending writes and closes the durable store.
func (c *ResultCache) Close(ctx context.Context) error {
	if err := c.Flush(ctx); err != nil {
		c.logger.WarnContext(ctx, "cache writes still pending at close", "error", err)
	}
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
