package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"xpost-studio/internal/domain"
)

var _ domain.Cache = (*MemoryCache)(nil)

// memoryEntry хранит значение со своим сроком жизни.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache — процессный кэш поверх expirable LRU.
// Используется, когда REDIS_ADDR не задан, и в тестах.
type MemoryCache struct {
	mu    sync.Mutex
	items *expirable.LRU[string, memoryEntry]
	now   func() time.Time
}

// NewMemory создаёт кэш на size ключей с верхней границей жизни maxTTL.
func NewMemory(size int, maxTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		items: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now:   time.Now,
	}
}

func (c *MemoryCache) lookup(key string) (memoryEntry, bool) {
	entry, ok := c.items.Get(key)
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.items.Remove(key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (c *MemoryCache) store(key string, value []byte, ttl time.Duration) {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.items.Add(key, entry)
}

// Take возвращает значение и удаляет ключ одной операцией.
func (c *MemoryCache) Take(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lookup(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	c.items.Remove(key)
	return entry.value, nil
}

// Set задаёт значение.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value, ttl)
	return nil
}

// Get возвращает значение или domain.ErrCacheMiss.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lookup(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

// Del удаляет ключ.
func (c *MemoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Remove(key)
	return nil
}
