// Package cache is a small Redis read-projection cache for the
// command-center dashboard. When Redis is unreachable the cache is nil
// and every call degrades to a no-op, so the API keeps working without
// it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrMiss is returned when the key is absent or the cache is disabled.
var ErrMiss = errors.New("cache miss")

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to Redis with a short timeout. On failure it returns a
// disabled cache rather than an error.
func New(addr string, ttl time.Duration, logger zerolog.Logger) *Cache {
	c := &Cache{ttl: ttl, logger: logger}
	if addr == "" {
		return c
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis unavailable, caching disabled")
		return c
	}
	c.client = client
	return c
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	if !c.Enabled() {
		return ErrMiss
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache get failed")
		return ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// InvalidateDate drops every projection cached for the date. Called
// after any write to the date's dispatch state.
func (c *Cache) InvalidateDate(ctx context.Context, date string) {
	if !c.Enabled() {
		return
	}
	iter := c.client.Scan(ctx, 0, "dispatch:"+date+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug().Err(err).Str("date", date).Msg("cache scan failed")
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.logger.Debug().Err(err).Str("date", date).Msg("cache invalidate failed")
		}
	}
}

// Key builds the per-date projection key.
func Key(date, view string) string {
	return "dispatch:" + date + ":" + view
}
