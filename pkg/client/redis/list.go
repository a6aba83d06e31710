package redis

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Lists hold the pending jobs of each queue, oldest at the head.

// RPush appends values to the tail of the list at key and returns its new length.
func (c *Client) RPush(ctx context.Context, key string, values ...interface{}) (int64, error) {
	return do(ctx, c, "RPush", key, func() (int64, error) {
		return c.rdb().RPush(ctx, key, values...).Result()
	})
}

// LRem removes occurrences of value; count 0 removes all of them.
func (c *Client) LRem(ctx context.Context, key string, count int64, value interface{}) (int64, error) {
	return do(ctx, c, "LRem", key, func() (int64, error) {
		return c.rdb().LRem(ctx, key, count, value).Result()
	})
}

// LLen returns the length of the list at key; a missing key has length 0.
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	return do(ctx, c, "LLen", key, func() (int64, error) {
		return c.rdb().LLen(ctx, key).Result()
	})
}

// LRange returns the elements between start and stop inclusive; negative indexes count from the tail.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return do(ctx, c, "LRange", key, func() ([]string, error) {
		return c.rdb().LRange(ctx, key, start, stop).Result()
	})
}

// LPop returns the head of key; exists is false when the list is empty.
func (c *Client) LPop(ctx context.Context, key string) (value string, exists bool, err error) {
	return lookup(ctx, c, "LPop", key, func() (string, error) {
		return c.rdb().LPop(ctx, key).Result()
	})
}

// BLPop pops the head of the first non-empty list among keys, checked in order,
// blocking up to timeout. It returns empty strings and a nil error on timeout.
func (c *Client) BLPop(ctx context.Context, timeout time.Duration, keys ...string) (string, string, error) {
	popped, err := do(ctx, c, "BLPop", "", func() ([]string, error) {
		val, err := c.rdb().BLPop(ctx, timeout, keys...).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil || len(popped) != 2 {
		return "", "", err
	}
	return popped[0], popped[1], nil
}
