package repositories

import (
	"context"
	"sync"
	"time"
)

type memoryCacheEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCacheRepository - кеш в памяти процесса. Просроченные ключи удаляются при чтении,
// фоновой очистки нет.
type MemoryCacheRepository struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{entries: make(map[string]memoryCacheEntry), now: time.Now}
}

func (r *MemoryCacheRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return "", ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		delete(r.entries, key)
		return "", ErrCacheMiss
	}
	return entry.value, nil
}

func (r *MemoryCacheRepository) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := memoryCacheEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = r.now().Add(expiration)
	}
	r.entries[key] = entry
	return nil
}

func (r *MemoryCacheRepository) Del(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		delete(r.entries, key)
	}
	return nil
}
