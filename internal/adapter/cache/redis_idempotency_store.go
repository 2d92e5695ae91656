package cache

import (
	"context"
	"time"

	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore backs both checkout idempotency keys and the
// duplicate-transaction fast path. The durable unique index on tx_hash is the
// source of truth; this only short-circuits obvious replays.
type RedisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *RedisIdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, "idemp:"+scope+":"+key, "1", s.ttl).Result()
}

// Unlock frees a key whose guarded work failed before anything durable
// happened, so the caller's retry is not refused for the rest of the TTL.
func (s *RedisIdempotencyStore) Unlock(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, "idemp:"+scope+":"+key).Err()
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, "idemp:map:"+scope+":"+key, value, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, "idemp:map:"+scope+":"+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	return val, true, err
}

var _ usecase.IdempotencyStore = (*RedisIdempotencyStore)(nil)
