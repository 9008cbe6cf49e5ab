package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores entries in Redis. Entries expire server-side via TTL.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects a backend to the given Redis instance.
func NewRedisBackend(addr, password string, db int) *RedisBackend {
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewRedisBackendFromClient wraps an existing client. Used by tests.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}
	return raw, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Clear deletes all keys under namespace using incremental SCAN, so a large
// namespace never blocks the server the way KEYS would.
func (r *RedisBackend) Clear(ctx context.Context, namespace string) (bool, error) {
	iter := r.client.Scan(ctx, 0, namespace+"*", 0).Iterator()
	cleared := false
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return cleared, fmt.Errorf("cache: redis del: %w", err)
		}
		cleared = true
	}
	if err := iter.Err(); err != nil {
		return cleared, fmt.Errorf("cache: redis scan: %w", err)
	}
	return cleared, nil
}

// Ping verifies connectivity. The composition root calls this at startup to
// fall back to the in-memory backend when Redis is unreachable.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
