package progress

import (
	"context"
	"fmt"

	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
)

// RedisBackend stores the slot under one Redis/Dragonfly key.
type RedisBackend struct {
	cache *cache.Cache
	key   string
}

// NewRedisBackend creates a Redis-backed slot.
func NewRedisBackend(c *cache.Cache, key string) (*RedisBackend, error) {
	if c == nil || c.Client == nil {
		return nil, fmt.Errorf("cache client is nil")
	}
	if key == "" {
		return nil, fmt.Errorf("storage key is required")
	}
	return &RedisBackend{cache: c, key: key}, nil
}

func (b *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	return b.cache.GetSlot(ctx, b.key)
}

func (b *RedisBackend) Save(ctx context.Context, data []byte) error {
	return b.cache.SetSlot(ctx, b.key, data)
}

func (b *RedisBackend) HealthCheck(ctx context.Context) error {
	return b.cache.HealthCheck(ctx)
}
