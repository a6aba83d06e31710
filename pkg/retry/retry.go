// Package retry runs operations under an exponential backoff policy and
// provides an HTTP client and delay helpers built on the same policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

// RetryConfig is a backoff policy. MaxRetries counts attempts, not retries:
// 1 means the operation runs once.
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	JitterFactor    float64 // extra random delay, as a fraction of the delay
	LogRetryAttempt bool
	// ShouldRetry stops the loop early when it returns false.
	ShouldRetry func(err error, attempt int) bool
	// StatusCodes are the HTTP responses HTTPClient retries.
	StatusCodes []int
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      5,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		JitterFactor:    0.2,
		LogRetryAttempt: true,
		StatusCodes:     []int{429, 500, 502, 503, 504},
	}
}

func (c *RetryConfig) Validate() error {
	switch {
	case c.MaxRetries < 1:
		return errors.New("MaxRetries must be >= 1")
	case c.InitialDelay <= 0:
		return errors.New("InitialDelay must be positive")
	case c.MaxDelay <= 0:
		return errors.New("MaxDelay must be positive")
	case c.BackoffFactor < 1.0:
		return errors.New("BackoffFactor must be >= 1.0")
	case c.JitterFactor < 0 || c.JitterFactor > 1.0:
		return errors.New("JitterFactor must be between 0.0 and 1.0")
	}
	return nil
}

// Retry calls operation until it succeeds, ShouldRetry refuses, the attempts
// run out or ctx ends. A nil config uses DefaultRetryConfig.
func Retry[T any](ctx context.Context, operation func() (T, error), cfg *RetryConfig, logger logging.Logger) (T, error) {
	var zero T
	if cfg == nil {
		cfg = DefaultRetryConfig()
	} else if err := cfg.Validate(); err != nil {
		return zero, fmt.Errorf("invalid retry config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	backoff := cfg.Backoff()
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err, attempt) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := backoff.Next()
		if cfg.LogRetryAttempt {
			logger.Warnf("Attempt %d/%d failed: %v. Retrying in %v...", attempt, cfg.MaxRetries, err, wait)
		}
		if err := Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries, lastErr)
}

// RetryFunc is Retry for operations without a result.
func RetryFunc(ctx context.Context, operation func() error, cfg *RetryConfig, logger logging.Logger) error {
	_, err := Retry(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, cfg, logger)
	return err
}
