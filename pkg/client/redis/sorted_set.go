package redis

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

// Sorted sets back the time-indexed registries: scores are unix timestamps.

// ZAdd adds members to the sorted set at key, or updates the score of existing
// ones, and returns how many were new.
func (c *Client) ZAdd(ctx context.Context, key string, members ...redis.Z) (int64, error) {
	return do(ctx, c, "ZAdd", key, func() (int64, error) {
		return c.rdb().ZAdd(ctx, key, members...).Result()
	})
}

// ZRem returns how many of members were present.
func (c *Client) ZRem(ctx context.Context, key string, members ...interface{}) (int64, error) {
	return do(ctx, c, "ZRem", key, func() (int64, error) {
		return c.rdb().ZRem(ctx, key, members...).Result()
	})
}

// ZScore returns the score of member; exists is false when it is not in the set.
func (c *Client) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	return lookup(ctx, c, "ZScore", key, func() (float64, error) {
		return c.rdb().ZScore(ctx, key, member).Result()
	})
}

// ZCard returns the number of members of the sorted set at key.
func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	return do(ctx, c, "ZCard", key, func() (int64, error) {
		return c.rdb().ZCard(ctx, key).Result()
	})
}

// ZRangeByScore returns members with min <= score <= max, lowest first.
// count <= 0 returns every match.
func (c *Client) ZRangeByScore(ctx context.Context, key, min, max string, offset, count int64) ([]string, error) {
	by := &redis.ZRangeBy{Min: min, Max: max}
	if count > 0 {
		by.Offset, by.Count = offset, count
	}
	return do(ctx, c, "ZRangeByScore", key, func() ([]string, error) {
		return c.rdb().ZRangeByScore(ctx, key, by).Result()
	})
}

// ZRevRange returns members by rank, highest score first.
func (c *Client) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return do(ctx, c, "ZRevRange", key, func() ([]string, error) {
		return c.rdb().ZRevRange(ctx, key, start, stop).Result()
	})
}

// ZRemRangeByScore removes members with min <= score <= max and returns how many went.
func (c *Client) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	return do(ctx, c, "ZRemRangeByScore", key, func() (int64, error) {
		return c.rdb().ZRemRangeByScore(ctx, key, min, max).Result()
	})
}
