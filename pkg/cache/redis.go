package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Redis is a Store backed by a shared Redis instance. Values are stored as
// JSON; expiry is delegated to Redis TTLs.
//
// Every backend failure is logged, counted, and degraded to the miss/no-op
// return value. Callers never see a Redis outage as an error.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedis creates a Redis-backed store.
func NewRedis(client *redis.Client) *Redis {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &Redis{
		client: client,
		logger: log.With().Str("component", "cache-redis").Logger(),
	}
}

// Get returns the value for key. Values come back as decoded JSON
// (map[string]any, []any, float64, string).
func (r *Redis) Get(ctx context.Context, key string) (any, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.degrade("get", key, err)
		}
		cacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		r.degrade("get", key, err)
		cacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	cacheHits.WithLabelValues("redis").Inc()
	return value, true
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		r.degrade("set", key, err)
		return false
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		r.degrade("set", key, err)
		return false
	}
	return true
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) bool {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.degrade("delete", key, err)
		return false
	}
	return true
}

// Clear removes every key containing pattern via SCAN; an empty pattern
// flushes the database.
func (r *Redis) Clear(ctx context.Context, pattern string) bool {
	if pattern == "" {
		if err := r.client.FlushDB(ctx).Err(); err != nil {
			r.degrade("clear", pattern, err)
			return false
		}
		return true
	}

	iter := r.client.Scan(ctx, 0, "*"+pattern+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				r.degrade("clear", pattern, err)
				return false
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		r.degrade("clear", pattern, err)
		return false
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			r.degrade("clear", pattern, err)
			return false
		}
	}
	return true
}

// Exists reports whether key is present.
func (r *Redis) Exists(ctx context.Context, key string) bool {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		r.degrade("exists", key, err)
		return false
	}
	return n > 0
}

func (r *Redis) degrade(operation, key string, err error) {
	cacheErrors.WithLabelValues("redis", operation).Inc()
	r.logger.Warn().
		Err(err).
		Str("operation", operation).
		Str("key", key).
		Msg("Redis cache operation degraded to miss")
}
