package redis

import (
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// PipelineFunc queues commands on a transactional pipeline.
type PipelineFunc func(pipe redis.Pipeliner) error

// ConnectionSettings tunes the go-redis connection pool and timeouts. Zero
// values fall back to go-redis defaults, or to the client defaults for the
// ping and health timeouts.
type ConnectionSettings struct {
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration // socket reads, including PING; blocking commands extend it themselves
	WriteTimeout time.Duration
	PoolTimeout  time.Duration

	PingTimeout   time.Duration
	HealthTimeout time.Duration
}

// RedisConfig describes how to reach Redis.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection string.
	URL string
	// Password overrides the password embedded in URL when set.
	Password           string
	ConnectionSettings ConnectionSettings
	// Recovery is optional; nil uses DefaultConnectionRecoveryConfig.
	Recovery *ConnectionRecoveryConfig
}

// RetryConfig is an alias for the generic retry configuration
type RetryConfig = retry.RetryConfig

// DefaultRetryConfig returns the per-operation retry policy of the client.
func DefaultRetryConfig() *RetryConfig {
	config := retry.DefaultRetryConfig()
	config.MaxRetries = 3
	config.InitialDelay = 100 * time.Millisecond
	config.MaxDelay = 5 * time.Second
	config.JitterFactor = 0.1
	config.LogRetryAttempt = true
	return config
}

// ConnectionRecoveryConfig defines configuration for connection recovery
type ConnectionRecoveryConfig struct {
	Enabled         bool
	CheckInterval   time.Duration
	MaxRetries      int
	BackoffFactor   float64
	MaxBackoffDelay time.Duration
}

// DefaultConnectionRecoveryConfig checks the connection every 30s and rebuilds
// it with exponential backoff, up to 5 attempts.
func DefaultConnectionRecoveryConfig() *ConnectionRecoveryConfig {
	return &ConnectionRecoveryConfig{
		Enabled:         true,
		CheckInterval:   30 * time.Second,
		MaxRetries:      5,
		BackoffFactor:   2.0,
		MaxBackoffDelay: 5 * time.Minute,
	}
}

// PoolHealthStats holds the statistics of the connection pool.
type PoolHealthStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

// ConnectionStatus represents the current state of the client's connection.
type ConnectionStatus struct {
	IsRecovering     bool            `json:"is_recovering"`
	LastHealthCheck  time.Time       `json:"last_health_check"`
	RecoveryEnabled  bool            `json:"recovery_enabled"`
	RecoveryInterval time.Duration   `json:"recovery_interval"`
	PoolStats        PoolHealthStats `json:"pool_stats"`
}

// HealthCheckResult represents the detailed outcome of a full health check.
type HealthCheckResult struct {
	Ping      PingCheckResult `json:"ping"`
	ReadWrite RoundTripResult `json:"read_write"`
	PoolStats PoolHealthStats `json:"pool_stats"`
	Healthy   bool            `json:"healthy"`
	CheckedAt time.Time       `json:"checked_at"`
}

// PingCheckResult is the outcome of the PING probe.
type PingCheckResult struct {
	Success bool          `json:"success"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// RoundTripResult is the outcome of the scripted SET/GET/DEL probe.
type RoundTripResult struct {
	Success    bool          `json:"success"`
	ValueMatch bool          `json:"value_match"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}
