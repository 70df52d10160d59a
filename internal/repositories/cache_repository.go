package repositories

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss - ключ отсутствует или истек.
var ErrCacheMiss = errors.New("ключ не найден в кеше")

type CacheRepositoryInterface interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}
