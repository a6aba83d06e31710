package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// Lock errors. errLockBusy never leaves Acquire.
var (
	// ErrLockNotAcquired is returned when releasing a lock this holder does not own.
	ErrLockNotAcquired = errors.New("lock is not held by this holder")
	errLockBusy        = errors.New("lock is held by another holder")
)

// Compare-and-delete so an expired holder cannot release its successor's lock.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Lock is a single-holder lease on a key, identified by a random token.
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration

	attempts int
	delay    time.Duration
}

// LockOption configures a Lock created by NewLock.
type LockOption func(*Lock)

// WithLockRetry makes Acquire try up to attempts times, delay apart, while
// another holder keeps the lock.
func WithLockRetry(attempts int, delay time.Duration) LockOption {
	return func(l *Lock) {
		l.attempts = attempts
		l.delay = delay
	}
}

// NewLock prepares a lock on key that expires after ttl. Nothing is sent to
// Redis until Acquire.
func (c *Client) NewLock(key string, ttl time.Duration, opts ...LockOption) (*Lock, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock %s: ttl must be positive, got %s", key, ttl)
	}
	l := &Lock{client: c, key: key, token: uuid.NewString(), ttl: ttl, attempts: 1}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Lock) tryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return false, errLockBusy
	}
	return true, nil
}

// Acquire reports false without an error when another holder keeps the lock.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	var (
		ok  bool
		err error
	)
	if l.attempts <= 1 || l.delay <= 0 {
		ok, err = l.tryAcquire(ctx)
	} else {
		ok, err = retry.Retry(ctx, func() (bool, error) { return l.tryAcquire(ctx) }, &retry.RetryConfig{
			MaxRetries:    l.attempts,
			InitialDelay:  l.delay,
			MaxDelay:      l.delay,
			BackoffFactor: 1,
			ShouldRetry:   func(err error, _ int) bool { return errors.Is(err, errLockBusy) },
		}, l.client.logger)
	}
	if errors.Is(err, errLockBusy) {
		return false, nil
	}
	return ok, err
}

// Release deletes the lock only if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	res, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return ErrLockNotAcquired
	}
	return nil
}

// Key returns the Redis key backing the lock.
func (l *Lock) Key() string { return l.key }
