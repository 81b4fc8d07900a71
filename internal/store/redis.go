package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

const profileCacheTTL = 5 * time.Minute

// RedisStore handles Redis operations for caching. Presence and pub/sub
// fanout have their own packages; they share the underlying client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate limiter, presence
// store and pub/sub bridge.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func teamCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("team:%s", id)
}

func userCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

// GetCachedTeam returns the cached team profile, or nil on miss. Cache
// errors count as misses; the caller falls through to Postgres.
func (s *RedisStore) GetCachedTeam(ctx context.Context, id uuid.UUID) *models.Team {
	data, err := s.client.Get(ctx, teamCacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var t models.Team
	if err := json.Unmarshal(data, &t); err != nil {
		return nil
	}
	return &t
}

// CacheTeam stores a team profile with the cache TTL. Best effort.
func (s *RedisStore) CacheTeam(ctx context.Context, t *models.Team) {
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	s.client.Set(ctx, teamCacheKey(t.ID), data, profileCacheTTL)
}

// GetCachedUser returns the cached user profile, or nil on miss.
func (s *RedisStore) GetCachedUser(ctx context.Context, id uuid.UUID) *models.User {
	data, err := s.client.Get(ctx, userCacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil
	}
	return &u
}

// CacheUser stores a public user profile with the cache TTL. Best effort.
func (s *RedisStore) CacheUser(ctx context.Context, u *models.User) {
	data, err := json.Marshal(u.PublicProfile())
	if err != nil {
		return
	}
	s.client.Set(ctx, userCacheKey(u.ID), data, profileCacheTTL)
}

// InvalidateTeam drops the cached team profile.
func (s *RedisStore) InvalidateTeam(ctx context.Context, id uuid.UUID) {
	s.client.Del(ctx, teamCacheKey(id))
}

// InvalidateUser drops the cached user profile.
func (s *RedisStore) InvalidateUser(ctx context.Context, id uuid.UUID) {
	s.client.Del(ctx, userCacheKey(id))
}

// InvalidateUsers drops several user profiles at once, e.g. after a team
// roster change.
func (s *RedisStore) InvalidateUsers(ctx context.Context, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userCacheKey(id)
	}
	s.client.Del(ctx, keys...)
}
