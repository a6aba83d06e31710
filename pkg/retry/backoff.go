package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff yields the delays of a RetryConfig: InitialDelay growing by
// BackoffFactor up to MaxDelay, each with up to JitterFactor extra.
// It is not safe for concurrent use.
type Backoff struct {
	cfg  RetryConfig
	base time.Duration
}

func (c *RetryConfig) Backoff() *Backoff {
	return &Backoff{cfg: *c, base: c.InitialDelay}
}

// Next returns the jittered current delay and advances to the next one.
func (b *Backoff) Next() time.Duration {
	d := Jitter(b.base, b.cfg.JitterFactor)
	grown := time.Duration(float64(b.base) * b.cfg.BackoffFactor)
	if b.cfg.MaxDelay > 0 && grown > b.cfg.MaxDelay {
		grown = b.cfg.MaxDelay
	}
	b.base = grown
	return d
}

// Reset starts the sequence over from InitialDelay.
func (b *Backoff) Reset() {
	b.base = b.cfg.InitialDelay
}

// Jitter adds a random delay in [0, factor*d).
func Jitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(factor*float64(d)*rand.Float64())
}

// Sleep waits for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleDelay returns the wait before retry number attempt (1-based) from
// a fixed schedule. Attempts past the end reuse the last entry. An empty
// schedule means no wait.
func ScheduleDelay(schedule []time.Duration, attempt int) time.Duration {
	if len(schedule) == 0 {
		return 0
	}
	idx := min(max(attempt-1, 0), len(schedule)-1)
	return schedule[idx]
}
