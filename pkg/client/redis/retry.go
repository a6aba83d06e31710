package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// SetRetryConfig sets custom retry configuration
func (c *Client) SetRetryConfig(config *RetryConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryConfig = config
}

func (c *Client) currentRetryConfig() *RetryConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retryConfig == nil {
		return DefaultRetryConfig()
	}
	return c.retryConfig
}

// executeWithRetry runs operation, retrying transient connection errors.
func (c *Client) executeWithRetry(ctx context.Context, operation func() error, operationName string) error {
	return c.executeWithRetryAndKey(ctx, operation, operationName, "")
}

// executeWithRetryAndKey is executeWithRetry with the key reported to the
// monitoring hooks.
func (c *Client) executeWithRetryAndKey(ctx context.Context, operation func() error, operationName string, key string) error {
	config := c.currentRetryConfig()
	maxAttempts := config.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := config.Backoff()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		c.trackOperationStart(operationName, key)
		err := operation()
		c.trackOperationEnd(operationName, key, time.Since(start), err)
		if err == nil {
			return nil
		}
		lastErr = err

		if !c.isRetryableError(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		c.trackRetryAttempt(operationName, attempt, err)

		wait := backoff.Next()
		if config.LogRetryAttempt {
			c.logger.Warnf("Redis %s attempt %d/%d failed: %v. Retrying in %v...", operationName, attempt, maxAttempts, err, wait)
		}
		if err := retry.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", maxAttempts, lastErr)
}

// isRetryableError classifies transient connection failures. Anything else,
// including redis.Nil and context errors, is returned to the caller at once.
func (c *Client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, redis.Nil) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Debugf("Redis error is a retryable network timeout: %v", err)
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var sysErr syscall.Errno
		if errors.As(opErr.Err, &sysErr) {
			if sysErr == syscall.ECONNREFUSED || sysErr == syscall.ECONNRESET {
				c.logger.Debugf("Redis error is a retryable syscall error (%s): %v", sysErr.Error(), err)
				return true
			}
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		c.logger.Debugf("Redis error is a retryable EOF: %v", err)
		return true
	}

	return false
}

// do runs cmd under the retry policy and returns its reply.
func do[T any](ctx context.Context, c *Client, op, key string, cmd func() (T, error)) (T, error) {
	var reply T
	err := c.executeWithRetryAndKey(ctx, func() error {
		v, err := cmd()
		if err != nil {
			return err
		}
		reply = v
		return nil
	}, op, key)
	return reply, err
}

// lookup is do for commands that answer redis.Nil when there is nothing to
// return; found reports the difference instead of an error.
func lookup[T any](ctx context.Context, c *Client, op, key string, cmd func() (T, error)) (reply T, found bool, err error) {
	err = c.executeWithRetryAndKey(ctx, func() error {
		v, err := cmd()
		if errors.Is(err, redis.Nil) {
			var zero T
			reply, found = zero, false
			return nil
		}
		if err != nil {
			return err
		}
		reply, found = v, true
		return nil
	}, op, key)
	return reply, found, err
}
