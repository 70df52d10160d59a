package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RequestDeduplicator гасит повторные нажатия: один и тот же ключ чата
// принимается не чаще одного раза за ttl.
type RequestDeduplicator struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

func NewRequestDeduplicator() *RequestDeduplicator {
	return &RequestDeduplicator{locks: make(map[string]time.Time), now: time.Now}
}

func (d *RequestDeduplicator) TryAcquire(chatID int64, keySuffix string, ttl time.Duration) bool {
	key := fmt.Sprintf("%d_%s", chatID, keySuffix)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if expiry, exists := d.locks[key]; exists && now.Before(expiry) {
		return false
	}
	d.locks[key] = now.Add(ttl)
	return true
}

func (d *RequestDeduplicator) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.evictExpired()
		}
	}
}

func (d *RequestDeduplicator) evictExpired() {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, expiry := range d.locks {
		if now.After(expiry) {
			delete(d.locks, key)
		}
	}
}
