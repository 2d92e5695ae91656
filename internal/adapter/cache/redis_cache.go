package cache

import (
	"context"
	"time"

	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisCache is the best-effort order status cache used by the read path.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (r *RedisCache) SetStatus(ctx context.Context, orderID string, status string) error {
	return r.rdb.Set(ctx, "order:status:"+orderID, status, r.ttl).Err()
}

func (r *RedisCache) GetStatus(ctx context.Context, orderID string) (string, error) {
	val, err := r.rdb.Get(ctx, "order:status:"+orderID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

var _ usecase.OrderCache = (*RedisCache)(nil)
