package cache

import (
	"context"
	"time"
)

// BytesCache: минимальный кэш байтов с TTL. Ошибки кэша не должны ломать основной сценарий.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
