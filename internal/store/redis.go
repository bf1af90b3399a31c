// redis.go -- go-redis client for user-record caching and login rate limiting.
//
// Caches the user fields needed for authorization with a short TTL so that
// module handlers do not hit Postgres on every request. If Redis is
// unavailable, callers fall back to Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies connectivity with a ping.
// The single returned client backs both the user cache and the rate limiter.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// RedisStore wraps a Redis client for user-record cache operations.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a cache store sharing the given client's pool.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb}
}

// Close shuts down the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func userKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

// SetUser caches the authorization view of a user with the given TTL.
func (s *RedisStore) SetUser(ctx context.Context, user CachedUser, ttl time.Duration) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling cached user: %w", err)
	}
	if err := s.rdb.Set(ctx, userKey(user.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("caching user: %w", err)
	}
	return nil
}

// GetUser retrieves a cached user record by id.
// Returns ErrCacheMiss when the key is absent.
func (s *RedisStore) GetUser(ctx context.Context, id uuid.UUID) (*CachedUser, error) {
	raw, err := s.rdb.Get(ctx, userKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("fetching cached user: %w", err)
	}

	var cached CachedUser
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("parsing cached user: %w", err)
	}
	return &cached, nil
}

// DeleteUser evicts a cached user record. Call after any role/permission change
// so stale grants do not outlive the TTL.
func (s *RedisStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.rdb.Del(ctx, userKey(id)).Err(); err != nil {
		return fmt.Errorf("evicting cached user: %w", err)
	}
	return nil
}

// RedisRateLimiter tracks attempt counts with lockout, keyed per action+subject.
type RedisRateLimiter struct {
	rdb *redis.Client
}

// NewRedisRateLimiter returns a rate limiter sharing the given client's pool.
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb}
}

// Allow checks whether the action identified by key is within policy and
// records the attempt. Returns ErrRateLimitExceeded when the caller is locked
// out or has just crossed the threshold; any other error is a Redis failure.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, policy RateLimit) error {
	lockKey := fmt.Sprintf("ratelimit:lock:%s", key)
	countKey := fmt.Sprintf("ratelimit:count:%s", key)

	// Existing lockout wins before any counting.
	locked, err := l.rdb.Exists(ctx, lockKey).Result()
	if err != nil {
		return fmt.Errorf("checking lockout: %w", err)
	}
	if locked > 0 {
		return ErrRateLimitExceeded
	}

	count, err := l.rdb.Incr(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("counting attempt: %w", err)
	}
	if count == 1 {
		// First attempt in this window -- start the window clock.
		if err := l.rdb.Expire(ctx, countKey, policy.Window).Err(); err != nil {
			return fmt.Errorf("setting window expiry: %w", err)
		}
	}

	if count > int64(policy.MaxAttempts) {
		// Threshold crossed: lock out and drop the counter.
		pipe := l.rdb.TxPipeline()
		pipe.Set(ctx, lockKey, "1", policy.LockoutTTL)
		pipe.Del(ctx, countKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("recording lockout: %w", err)
		}
		return ErrRateLimitExceeded
	}

	return nil
}

// Reset clears the attempt counter for key. Called after a successful login so
// earlier failed attempts stop counting against the user.
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, fmt.Sprintf("ratelimit:count:%s", key)).Err(); err != nil {
		return fmt.Errorf("resetting attempt counter: %w", err)
	}
	return nil
}
