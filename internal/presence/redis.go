package presence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend adapts a redis client to the Backend interface. TTL expiry
// is delegated to redis itself.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (b *RedisBackend) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

func (b *RedisBackend) SAdd(ctx context.Context, set, member string) error {
	return b.client.SAdd(ctx, set, member).Err()
}

func (b *RedisBackend) SRem(ctx context.Context, set, member string) error {
	return b.client.SRem(ctx, set, member).Err()
}

func (b *RedisBackend) SMembers(ctx context.Context, set string) ([]string, error) {
	return b.client.SMembers(ctx, set).Result()
}
