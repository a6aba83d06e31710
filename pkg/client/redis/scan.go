package redis

import (
	"context"
	"errors"
)

// ScanOptions narrows a SCAN iteration. Count is a per-step hint and Type an
// optional key type filter (string, list, zset, ...).
type ScanOptions struct {
	Pattern string
	Count   int64
	Type    string
}

// ErrStopScan can be returned by a ScanEach callback to stop early.
var ErrStopScan = errors.New("stop scan")

// ScanEach walks the keyspace with SCAN and hands every non-empty batch to fn.
// Returning ErrStopScan from fn ends the walk without an error. Each step is
// retried on its own, so a transient failure does not restart the walk.
func (c *Client) ScanEach(ctx context.Context, opts *ScanOptions, fn func(keys []string) error) error {
	if opts == nil {
		opts = &ScanOptions{}
	}
	var cursor uint64
	for {
		var (
			batch []string
			next  uint64
		)
		err := c.executeWithRetry(ctx, func() error {
			var err error
			if opts.Type != "" {
				batch, next, err = c.rdb().ScanType(ctx, cursor, opts.Pattern, opts.Count, opts.Type).Result()
			} else {
				batch, next, err = c.rdb().Scan(ctx, cursor, opts.Pattern, opts.Count).Result()
			}
			return err
		}, "Scan")
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				if errors.Is(err, ErrStopScan) {
					return nil
				}
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// ScanAll collects every key matching opts. SCAN may report a key more than
// once; duplicates are dropped.
func (c *Client) ScanAll(ctx context.Context, opts *ScanOptions) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	err := c.ScanEach(ctx, opts, func(batch []string) error {
		for _, k := range batch {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
