package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage is a Redis-backed Storage.
// It suits clients that run on servers (SSR, workers) where local disk is
// not durable across deploys.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	closed atomic.Bool
}

// RedisStorageOption configures RedisStorage behavior.
type RedisStorageOption func(*redisStorageConfig)

type redisStorageConfig struct {
	prefix string
	ttl    time.Duration
}

// WithRedisPrefix sets the key prefix.
// Default: "storefront:".
func WithRedisPrefix(prefix string) RedisStorageOption {
	return func(c *redisStorageConfig) {
		c.prefix = prefix
	}
}

// WithRedisTTL expires entries after d. Zero keeps them until removed.
// Default: 0.
func WithRedisTTL(d time.Duration) RedisStorageOption {
	return func(c *redisStorageConfig) {
		c.ttl = d
	}
}

// NewRedisStorage creates a storage on top of client.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) *RedisStorage {
	cfg := &redisStorageConfig{
		prefix: "storefront:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStorage{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}
}

// key returns the Redis key for a storage key.
func (r *RedisStorage) key(k string) string {
	return r.prefix + k
}

// Get returns the value for key.
func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if r.closed.Load() {
		return "", false, ErrStorageClosed{}
	}

	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores value under key.
func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if r.closed.Load() {
		return ErrStorageClosed{}
	}
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

// Remove deletes key.
func (r *RedisStorage) Remove(ctx context.Context, key string) error {
	if r.closed.Load() {
		return ErrStorageClosed{}
	}
	return r.client.Del(ctx, r.key(key)).Err()
}

// SetMany writes all entries in a MULTI/EXEC transaction.
func (r *RedisStorage) SetMany(ctx context.Context, entries map[string]string) error {
	if r.closed.Load() {
		return ErrStorageClosed{}
	}
	if len(entries) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, r.key(k), v, r.ttl)
		}
		return nil
	})
	return err
}

// RemoveMany deletes all keys with a single DEL.
func (r *RedisStorage) RemoveMany(ctx context.Context, keys ...string) error {
	if r.closed.Load() {
		return ErrStorageClosed{}
	}
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.Del(ctx, full...).Err()
}

// Close marks the storage as closed.
// Note: This does not close the underlying Redis client,
// as it may be shared with other components.
func (r *RedisStorage) Close() error {
	r.closed.Store(true)
	return nil
}

// Prefix returns the current key prefix.
func (r *RedisStorage) Prefix() string {
	return r.prefix
}
