package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a Store with a short-TTL Redis read-through cache in
// front of Range/Last, for the read API. Writes (Append, EnsureSeries) pass
// straight through uncached; cache misses and a disabled cache behave
// identically other than latency.
type CachedStore struct {
	Store
	client *redis.Client
	ttl    time.Duration
}

// NewCachedStore wraps next with a Redis cache at the given URL and TTL.
func NewCachedStore(next Store, redisURL string, ttl time.Duration) (*CachedStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: connect redis: %w", err)
	}

	return &CachedStore{Store: next, client: client, ttl: ttl}, nil
}

func (c *CachedStore) Close() error {
	return c.client.Close()
}

func (c *CachedStore) Last(ctx context.Context, series string) (Point, bool, error) {
	key := "store:last:" + series
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedPoint
		if json.Unmarshal(raw, &cached) == nil {
			return cached.Point, cached.OK, nil
		}
	}

	pt, ok, err := c.Store.Last(ctx, series)
	if err != nil {
		return pt, ok, err
	}
	if raw, merr := json.Marshal(cachedPoint{Point: pt, OK: ok}); merr == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return pt, ok, nil
}

func (c *CachedStore) Range(ctx context.Context, series string, from, to time.Time) ([]Point, error) {
	key := fmt.Sprintf("store:range:%s:%d:%d", series, from.UnixMilli(), to.UnixMilli())
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var points []Point
		if json.Unmarshal(raw, &points) == nil {
			return points, nil
		}
	}

	points, err := c.Store.Range(ctx, series, from, to)
	if err != nil {
		return nil, err
	}
	if raw, merr := json.Marshal(points); merr == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return points, nil
}

type cachedPoint struct {
	Point Point
	OK    bool
}
