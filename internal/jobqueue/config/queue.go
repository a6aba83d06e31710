package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	redisClient "github.com/trigg3rX/triggerx-jobqueue/pkg/client/redis"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

type PriorityConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
}

// QueueConfig is passed by value to every component and never mutated after load.
type QueueConfig struct {
	Redis redisClient.RedisConfig

	// KeyPrefix namespaces every broker key.
	KeyPrefix string

	Priorities map[types.Priority]PriorityConfig

	MaxRetries  int
	RetryDelays []time.Duration

	ResultTTL           time.Duration
	FailureTTL          time.Duration
	WorkerTTL           time.Duration
	MonitoringInterval  time.Duration
	BurstTimeout        time.Duration
	MaintenanceInterval time.Duration

	FailureRateThreshold    float64 // percent
	QueueBackupThreshold    int64
	SlowProcessingThreshold time.Duration
	StaleJobWindow          time.Duration
	ProcessingSampleSize    int
	HistoryRetention        time.Duration
	// AlertRetention bounds how long raised alerts stay listable.
	AlertRetention time.Duration
	// AlertExpiry is the shorter window of alerts that still count against
	// the health score; older alerts remain in history until AlertRetention.
	AlertExpiry time.Duration

	WorkersHigh    int
	WorkersDefault int
	WorkersLow     int
	// WorkersAll counts workers that serve every queue in priority order.
	WorkersAll int
}

const DefaultKeyPrefix = "jobqueue"

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Redis: redisClient.RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		KeyPrefix: DefaultKeyPrefix,
		Priorities: map[types.Priority]PriorityConfig{
			types.PriorityHigh:    {Timeout: 5 * time.Minute, MaxConcurrentJobs: 5},
			types.PriorityDefault: {Timeout: 10 * time.Minute, MaxConcurrentJobs: 3},
			types.PriorityLow:     {Timeout: 30 * time.Minute, MaxConcurrentJobs: 2},
		},
		MaxRetries:              3,
		RetryDelays:             []time.Duration{10 * time.Second, 30 * time.Second, 90 * time.Second},
		ResultTTL:               24 * time.Hour,
		FailureTTL:              7 * 24 * time.Hour,
		WorkerTTL:               420 * time.Second,
		MonitoringInterval:      30 * time.Second,
		BurstTimeout:            5 * time.Second,
		MaintenanceInterval:     15 * time.Second,
		FailureRateThreshold:    20,
		QueueBackupThreshold:    50,
		SlowProcessingThreshold: 300 * time.Second,
		StaleJobWindow:          time.Hour,
		ProcessingSampleSize:    50,
		HistoryRetention:        24 * time.Hour,
		AlertRetention:          24 * time.Hour,
		AlertExpiry:             time.Hour,
		WorkersHigh:             1,
		WorkersDefault:          1,
		WorkersLow:              1,
		WorkersAll:              0,
	}
}

// TimeoutFor returns the job timeout for p, falling back to the default queue.
func (c QueueConfig) TimeoutFor(p types.Priority) time.Duration {
	if pc, ok := c.Priorities[p]; ok && pc.Timeout > 0 {
		return pc.Timeout
	}
	return c.Priorities[types.PriorityDefault].Timeout
}

func (c QueueConfig) MaxConcurrentFor(p types.Priority) int {
	if pc, ok := c.Priorities[p]; ok && pc.MaxConcurrentJobs > 0 {
		return pc.MaxConcurrentJobs
	}
	return 1
}

// RetryDelay is the wait before retry number attempt (1-based).
func (c QueueConfig) RetryDelay(attempt int) time.Duration {
	return retry.ScheduleDelay(c.RetryDelays, attempt)
}

// WorkersFor returns the dedicated worker count of p, capped at MaxConcurrentJobs.
func (c QueueConfig) WorkersFor(p types.Priority) int {
	var n int
	switch p {
	case types.PriorityHigh:
		n = c.WorkersHigh
	case types.PriorityDefault:
		n = c.WorkersDefault
	case types.PriorityLow:
		n = c.WorkersLow
	}
	if limit := c.MaxConcurrentFor(p); n > limit {
		n = limit
	}
	return n
}

func (c QueueConfig) Validate() error {
	var errs []error

	if c.Redis.URL == "" {
		errs = append(errs, errors.New("redis URL is required"))
	}
	if c.KeyPrefix == "" {
		errs = append(errs, errors.New("key prefix is required"))
	}
	for _, p := range types.AllPriorities {
		pc, ok := c.Priorities[p]
		if !ok {
			errs = append(errs, fmt.Errorf("missing settings for queue %s", p))
			continue
		}
		if pc.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("queue %s: timeout must be positive", p))
		}
		if pc.MaxConcurrentJobs < 1 {
			errs = append(errs, fmt.Errorf("queue %s: max concurrent jobs must be >= 1", p))
		}
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries must be >= 0"))
	}
	for i, d := range c.RetryDelays {
		if d < 0 {
			errs = append(errs, fmt.Errorf("retry delay %d is negative", i))
		}
	}

	positive := map[string]time.Duration{
		"result ttl":           c.ResultTTL,
		"failure ttl":          c.FailureTTL,
		"worker ttl":           c.WorkerTTL,
		"monitoring interval":  c.MonitoringInterval,
		"burst timeout":        c.BurstTimeout,
		"maintenance interval": c.MaintenanceInterval,
		"history retention":    c.HistoryRetention,
		"alert retention":      c.AlertRetention,
		"alert expiry":         c.AlertExpiry,
	}
	for _, name := range sortedKeys(positive) {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 100 {
		errs = append(errs, errors.New("failure rate threshold must be between 0 and 100"))
	}
	if c.QueueBackupThreshold < 0 {
		errs = append(errs, errors.New("queue backup threshold must be >= 0"))
	}
	if c.ProcessingSampleSize < 1 {
		errs = append(errs, errors.New("processing sample size must be >= 1"))
	}
	if c.WorkersHigh < 0 || c.WorkersDefault < 0 || c.WorkersLow < 0 || c.WorkersAll < 0 {
		errs = append(errs, errors.New("worker counts must be >= 0"))
	}

	return errors.Join(errs...)
}
