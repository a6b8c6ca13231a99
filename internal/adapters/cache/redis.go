// Package cache provides a Redis backed search response cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobrunner/tarantula/internal/domain"
)

const (
	defaultPrefix = "tarantula:"
	defaultTTL    = 10 * time.Minute
	scanBatch     = 500
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// RedisCache implements output.ResultCache on top of Redis. Responses are
// stored as JSON under Prefix+key and expire after TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a cache for the given configuration. No connection
// is made until the first command.
func NewRedisCache(cfg RedisConfig, logger *slog.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisCache(client, cfg, logger)
}

func newRedisCache(client *redis.Client, cfg RedisConfig, logger *slog.Logger) *RedisCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get returns the cached response for key. A missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.SearchResponse, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var resp domain.SearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		// A stale encoding is treated as a miss and overwritten later.
		c.logger.Debug("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false, nil
	}
	return &resp, true, nil
}

// Set stores resp under key.
func (c *RedisCache) Set(ctx context.Context, key string, resp *domain.SearchResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Flush deletes every key under the cache prefix.
func (c *RedisCache) Flush(ctx context.Context) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Debug("flushed result cache", "keys", deleted)
	return nil
}

// Ping checks the connection. Used as a health check.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
