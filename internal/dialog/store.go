package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repair-tracker/internal/repositories"
)

const sessionKey = "tg_dialog_state:%d"

// SessionStore хранит состояние диалогов по id чата.
type SessionStore interface {
	Load(ctx context.Context, id int64) (Session, error)
	Save(ctx context.Context, session Session) error
	Clear(ctx context.Context, id int64) error
}

// CacheSessionStore кладет сессии в кеш (память процесса или Redis) в виде JSON.
// Сессии в состоянии Idle не хранятся: отсутствие ключа и есть Idle.
type CacheSessionStore struct {
	cache repositories.CacheRepositoryInterface
	ttl   time.Duration
}

func NewCacheSessionStore(cache repositories.CacheRepositoryInterface, ttl time.Duration) *CacheSessionStore {
	return &CacheSessionStore{cache: cache, ttl: ttl}
}

func (s *CacheSessionStore) Load(ctx context.Context, id int64) (Session, error) {
	raw, err := s.cache.Get(ctx, fmt.Sprintf(sessionKey, id))
	if errors.Is(err, repositories.ErrCacheMiss) {
		return NewSession(id), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("чтение сессии %d: %w", id, err)
	}

	session, err := SessionFromJSON(raw)
	if err != nil {
		// битое состояние не должно блокировать чат: начинаем с чистого листа
		_ = s.Clear(ctx, id)
		return NewSession(id), nil
	}
	session.ID = id
	return session, nil
}

func (s *CacheSessionStore) Save(ctx context.Context, session Session) error {
	if session.IsIdle() {
		return s.Clear(ctx, session.ID)
	}
	raw, err := session.ToJSON()
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, fmt.Sprintf(sessionKey, session.ID), raw, s.ttl)
}

func (s *CacheSessionStore) Clear(ctx context.Context, id int64) error {
	return s.cache.Del(ctx, fmt.Sprintf(sessionKey, id))
}
