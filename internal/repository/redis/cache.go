// Package redisrepo holds the optional Redis-backed read cache, change
// notifications and booking rate limiter. A nil *Cache, *TripEvents or
// *SlidingWindowLimiter is valid and behaves as if Redis were absent.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{rdb: client}
}

// lookup decodes the JSON stored under key. A missing key is not an error.
func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var out T

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return out, false, nil
	case err != nil:
		return out, false, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

func (c *Cache) store(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// GetOrSetJSON returns the cached value under key or loads, stores and returns
// it. Concurrent misses for one key share a single load. Redis failures fall
// through to the loader; the cache never turns a readable store into an error.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return loader(ctx)
	}

	if v, ok, err := lookup[T](ctx, c, key); err == nil && ok {
		return v, nil
	}

	shared, err, _ := c.sf.Do(key, func() (any, error) {
		if v, ok, err := lookup[T](ctx, c, key); err == nil && ok {
			return v, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.store(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return shared.(T), nil
}

func (c *Cache) del(ctx context.Context, keys ...string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// InvalidateTrip drops every cached view a booking or a new trip can change.
func (c *Cache) InvalidateTrip(ctx context.Context, tripID string) error {
	return c.del(ctx, KeyTripList(), KeySeatChart(tripID))
}

func (c *Cache) InvalidatePassenger(ctx context.Context, passengerID string) error {
	return c.del(ctx, KeyPassengerBookings(passengerID))
}
