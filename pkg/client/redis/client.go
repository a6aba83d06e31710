package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

// Client wraps go-redis with per-operation retry, monitoring hooks and
// background connection recovery.
type Client struct {
	connMu      sync.RWMutex
	redisClient *redis.Client

	config RedisConfig
	logger logging.Logger

	mu              sync.Mutex
	retryConfig     *RetryConfig
	recoveryConfig  *ConnectionRecoveryConfig
	isRecovering    bool
	lastHealthCheck time.Time
	monitoringHooks *MonitoringHooks

	metricsMu        sync.Mutex
	operationMetrics map[string]*OperationMetrics

	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewRedisClient connects to Redis and verifies the connection before returning.
func NewRedisClient(logger logging.Logger, config RedisConfig) (*Client, error) {
	opt, err := parseRedisConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis configuration: %w", err)
	}

	recovery := config.Recovery
	if recovery == nil {
		recovery = DefaultConnectionRecoveryConfig()
	}

	c := &Client{
		redisClient:      redis.NewClient(opt),
		config:           config,
		logger:           logger,
		retryConfig:      DefaultRetryConfig(),
		recoveryConfig:   recovery,
		lastHealthCheck:  time.Now(),
		operationMetrics: make(map[string]*OperationMetrics),
		stopCh:           make(chan struct{}),
	}

	if err := c.CheckConnection(context.Background()); err != nil {
		_ = c.redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if recovery.Enabled && recovery.CheckInterval > 0 {
		go c.connectionRecoveryLoop()
	}

	logger.Infof("Successfully connected to Redis at %s", opt.Addr)
	return c, nil
}

func parseRedisConfig(config RedisConfig) (*redis.Options, error) {
	if config.URL == "" {
		return nil, errors.New("redis URL is empty")
	}
	opt, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.Password != "" {
		opt.Password = config.Password
	}
	applyConnectionSettings(opt, config.ConnectionSettings)
	return opt, nil
}

// applyConnectionSettings copies non-zero settings over the go-redis defaults.
func applyConnectionSettings(opt *redis.Options, s ConnectionSettings) {
	if s.PoolSize > 0 {
		opt.PoolSize = s.PoolSize
	}
	if s.MinIdleConns > 0 {
		opt.MinIdleConns = s.MinIdleConns
	}
	if s.MaxRetries != 0 {
		opt.MaxRetries = s.MaxRetries
	}
	if s.DialTimeout > 0 {
		opt.DialTimeout = s.DialTimeout
	}
	if s.ReadTimeout > 0 {
		opt.ReadTimeout = s.ReadTimeout
	}
	if s.WriteTimeout > 0 {
		opt.WriteTimeout = s.WriteTimeout
	}
	if s.PoolTimeout > 0 {
		opt.PoolTimeout = s.PoolTimeout
	}
}

// rdb returns the current go-redis client; recovery may swap it.
func (c *Client) rdb() *redis.Client {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.redisClient
}

// CheckConnection validates the Redis connection
func (c *Client) CheckConnection(ctx context.Context) error {
	timeout := c.config.ConnectionSettings.HealthTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return c.executeWithRetry(ctx, func() error {
		if err := c.rdb().Ping(ctx).Err(); err != nil {
			c.logger.Errorf("Redis connection failed: %v", err)
			return fmt.Errorf("redis connection failed: %w", err)
		}
		return nil
	}, "CheckConnection")
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	timeout := c.config.ConnectionSettings.PingTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := c.executeWithRetry(ctx, func() error {
		return c.rdb().Ping(ctx).Err()
	}, "Ping")

	c.trackConnectionStatus(err == nil, time.Since(start))
	return err
}

// GetWithExists reports a missing key through exists instead of an error.
func (c *Client) GetWithExists(ctx context.Context, key string) (value string, exists bool, err error) {
	return lookup(ctx, c, "GetWithExists", key, func() (string, error) {
		return c.rdb().Get(ctx, key).Result()
	})
}

// MGet returns one entry per key; missing keys are nil.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return do(ctx, c, "MGet", "", func() ([]interface{}, error) {
		return c.rdb().MGet(ctx, keys...).Result()
	})
}

// Set stores value; expiration 0 keeps the key without a TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.executeWithRetryAndKey(ctx, func() error {
		return c.rdb().Set(ctx, key, value, expiration).Err()
	}, "Set", key)
}

// SetNX sets key only if it does not exist and reports whether it was set.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return do(ctx, c, "SetNX", key, func() (bool, error) {
		return c.rdb().SetNX(ctx, key, value, expiration).Result()
	})
}

// Del deletes keys, ignoring the ones that do not exist.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	_, err := c.DelWithCount(ctx, keys...)
	return err
}

// DelWithCount deletes keys and returns how many existed.
func (c *Client) DelWithCount(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return do(ctx, c, "Del", "", func() (int64, error) {
		return c.rdb().Del(ctx, keys...).Result()
	})
}

// Eval runs a Lua script. A nil script reply is returned as (nil, nil).
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	reply, _, err := lookup(ctx, c, "Eval", "", func() (interface{}, error) {
		return c.rdb().Eval(ctx, script, keys, args...).Result()
	})
	return reply, err
}

// TxPipelined runs fn inside MULTI/EXEC.
func (c *Client) TxPipelined(ctx context.Context, fn PipelineFunc) ([]redis.Cmder, error) {
	var cmds []redis.Cmder
	err := c.executeWithRetry(ctx, func() error {
		res, err := c.rdb().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return fn(pipe)
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		cmds = res
		return nil
	}, "TxPipelined")
	return cmds, err
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *redis.Client {
	return c.rdb()
}

// Close stops the recovery loop and closes the connection pool. Safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		err = c.rdb().Close()
	})
	return err
}
