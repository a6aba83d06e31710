package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// connectionRecoveryLoop pings on every CheckInterval until Close.
func (c *Client) connectionRecoveryLoop() {
	c.mu.Lock()
	interval := c.recoveryConfig.CheckInterval
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.checkAndRecoverConnection()
		}
	}
}

// checkAndRecoverConnection starts a recovery when a ping fails and none is running.
func (c *Client) checkAndRecoverConnection() {
	c.mu.Lock()
	if c.isRecovering {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.Ping(context.Background()); err != nil {
		c.mu.Lock()
		if c.isRecovering {
			c.mu.Unlock()
			return
		}
		c.isRecovering = true
		c.mu.Unlock()

		c.logger.Warnf("Redis connection unhealthy, starting recovery: %v", err)
		go c.performConnectionRecovery()
		return
	}

	c.mu.Lock()
	c.lastHealthCheck = time.Now()
	c.mu.Unlock()
}

// performConnectionRecovery rebuilds the client with backoff and reports the
// outcome through the recovery hooks.
func (c *Client) performConnectionRecovery() {
	start := time.Now()
	c.trackRecoveryStart("connection_failed")

	defer func() {
		c.mu.Lock()
		c.isRecovering = false
		c.mu.Unlock()
	}()

	c.mu.Lock()
	config := *c.recoveryConfig
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Infof("Redis connection recovery attempt %d/%d after %v", attempt+1, config.MaxRetries, backoff)
			select {
			case <-time.After(backoff):
			case <-c.stopCh:
				return
			}
			backoff = time.Duration(float64(backoff) * config.BackoffFactor)
			if backoff > config.MaxBackoffDelay {
				backoff = config.MaxBackoffDelay
			}
		}

		if err := c.recreateConnection(); err != nil {
			c.logger.Errorf("Redis connection recovery attempt %d failed: %v", attempt+1, err)
			continue
		}

		if err := c.CheckConnection(context.Background()); err != nil {
			c.logger.Errorf("Redis connection recovery test failed: %v", err)
			continue
		}

		c.logger.Infof("Redis connection recovery successful after %d attempts", attempt+1)
		c.mu.Lock()
		c.lastHealthCheck = time.Now()
		c.mu.Unlock()
		c.trackRecoveryEnd(true, attempt+1, time.Since(start))
		return
	}

	c.logger.Errorf("Redis connection recovery failed after %d attempts", config.MaxRetries)
	c.trackRecoveryEnd(false, config.MaxRetries, time.Since(start))
}

// recreateConnection swaps in a fresh go-redis client and closes the old pool.
// The caller checks the new connection.
func (c *Client) recreateConnection() error {
	opt, err := parseRedisConfig(c.config)
	if err != nil {
		return fmt.Errorf("failed to parse Redis configuration: %w", err)
	}

	c.connMu.Lock()
	old := c.redisClient
	c.redisClient = redis.NewClient(opt)
	c.connMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.logger.Errorf("Failed to close Redis client: %v", err)
		}
	}
	return nil
}

// GetConnectionStatus reports whether a recovery is in progress, when the
// connection was last checked and the current pool statistics.
func (c *Client) GetConnectionStatus() *ConnectionStatus {
	stats := c.rdb().PoolStats()

	c.mu.Lock()
	defer c.mu.Unlock()

	return &ConnectionStatus{
		IsRecovering:     c.isRecovering,
		LastHealthCheck:  c.lastHealthCheck,
		RecoveryEnabled:  c.recoveryConfig.Enabled,
		RecoveryInterval: c.recoveryConfig.CheckInterval,
		PoolStats: PoolHealthStats{
			Hits:       stats.Hits,
			Misses:     stats.Misses,
			Timeouts:   stats.Timeouts,
			TotalConns: stats.TotalConns,
			IdleConns:  stats.IdleConns,
			StaleConns: stats.StaleConns,
		},
	}
}
