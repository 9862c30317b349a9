package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client and key layout.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"ttl"`
	// KeyPrefix is prepended to every "<kind>:<id>" key.
	KeyPrefix string `yaml:"key_prefix"`
}

// NewRedisClient creates a Redis client and pings the server to ensure
// connectivity before returning. The client can be shared by several RedisCache
// tables; the caller owns it and must close it.
func NewRedisClient(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")
	return rdb, nil
}

// RedisCache is a Cache backed by Redis. Values are stored as JSON.
type RedisCache[V any] struct {
	redisClient redis.Cmdable
	logger      zerolog.Logger
	ttl         time.Duration
	prefix      string
}

// NewRedisCache creates a RedisCache over an existing client.
func NewRedisCache[V any](cfg *RedisConfig, client redis.Cmdable, logger zerolog.Logger) (*RedisCache[V], error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisCache[V]{
		redisClient: client,
		logger:      logger.With().Str("component", "RedisCache").Logger(),
		ttl:         cfg.CacheTTL,
		prefix:      cfg.KeyPrefix,
	}, nil
}

func (c *RedisCache[V]) redisKey(key Key) string {
	return c.prefix + key.String()
}

// Get fetches and decodes a value. redis.Nil is reported as a miss.
func (c *RedisCache[V]) Get(ctx context.Context, kind Kind, id snowflake.ID) (V, bool, error) {
	var zero V
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return zero, false, fmt.Errorf("get %s: %w", key, err)
	}

	stringKey := c.redisKey(key)
	cachedData, err := c.redisClient.Get(ctx, stringKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.logger.Debug().Str("key", stringKey).Msg("Redis cache miss.")
			return zero, false, nil
		}
		c.logger.Error().Err(err).Str("key", stringKey).Msg("Unexpected Redis error during get.")
		return zero, false, unavailable("redis get", key, err)
	}

	var value V
	if err := json.Unmarshal(cachedData, &value); err != nil {
		c.logger.Error().Err(err).Str("key", stringKey).Msg("Failed to unmarshal cached data.")
		return zero, false, corrupt("redis decode", key, err)
	}

	c.logger.Debug().Str("key", stringKey).Msg("Redis cache hit.")
	return value, true, nil
}

// Set marshals the value to JSON and stores it with the configured TTL.
func (c *RedisCache[V]) Set(ctx context.Context, kind Kind, id snowflake.ID, value V) error {
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	stringKey := c.redisKey(key)
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := c.redisClient.Set(ctx, stringKey, jsonData, c.ttl).Err(); err != nil {
		c.logger.Error().Err(err).Str("key", stringKey).Msg("Failed to set data in Redis cache.")
		return unavailable("redis set", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (c *RedisCache[V]) Delete(ctx context.Context, kind Kind, id snowflake.ID) error {
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	stringKey := c.redisKey(key)
	if err := c.redisClient.Del(ctx, stringKey).Err(); err != nil {
		c.logger.Error().Err(err).Str("key", stringKey).Msg("Failed to delete data from Redis cache.")
		return unavailable("redis del", key, err)
	}
	return nil
}

// Close is a no-op; the injected client's lifecycle is managed by the caller.
func (c *RedisCache[V]) Close() error {
	return nil
}
