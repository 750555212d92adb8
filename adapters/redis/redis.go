// Package redis backs the idempotency and saga stores with Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is not found in Redis.
// This provides a distinct error type compared to the underlying redis.Nil.
var ErrNotFound = errors.New("rediswrapper: key not found")

// DefaultPingTimeout bounds the connectivity check of NewRedisManager.
const DefaultPingTimeout = 5 * time.Second

// Config holds the configuration for the Redis wrapper.
type Config struct {
	Addr     string `mapstructure:"addr"` // e.g., "localhost:6379"
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// KeyPrefix namespaces every key written by the stores.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisManager provides a simplified interface over the go-redis client.
type RedisManager struct {
	client *redis.Client
	prefix string
}

// NewRedisManager creates and initializes a new RedisManager.
// It pings the Redis server to ensure connectivity.
func NewRedisManager(cfg Config) (*RedisManager, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Check the connection
	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close() // Close the client if ping fails
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewRedisManagerFromClient(rdb, cfg.KeyPrefix), nil
}

// NewRedisManagerFromClient wraps an existing client.
func NewRedisManagerFromClient(client *redis.Client, prefix string) *RedisManager {
	return &RedisManager{client: client, prefix: prefix}
}

// Client returns the underlying go-redis client instance for advanced use cases.
func (rw *RedisManager) Client() *redis.Client {
	return rw.client
}

// Close closes the underlying Redis client connection.
func (rw *RedisManager) Close() error {
	if rw.client != nil {
		return rw.client.Close()
	}
	return nil
}

// Key prefixes parts with the manager's namespace.
func (rw *RedisManager) Key(parts ...string) string {
	key := rw.prefix
	for _, p := range parts {
		if key != "" {
			key += ":"
		}
		key += p
	}
	return key
}

// Set stores a value for a key.
// TTL of 0 means the key persists indefinitely.
func (rw *RedisManager) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	err := rw.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// GetBytes retrieves the raw value of a key.
// Returns ErrNotFound if the key does not exist.
func (rw *RedisManager) GetBytes(ctx context.Context, key string) ([]byte, error) {
	val, err := rw.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Exists checks if one or more keys exist.
// Returns the count of existing keys.
func (rw *RedisManager) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	count, err := rw.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check existence for keys: %w", err)
	}
	return count, nil
}
