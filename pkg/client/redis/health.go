package redis

import (
	"context"
	"fmt"
	"time"
)

const roundTripScript = `
local set_result = redis.call("set", KEYS[1], ARGV[1], "ex", ARGV[2])
if set_result then
	local get_result = redis.call("get", KEYS[1])
	redis.call("del", KEYS[1])
	return get_result
end
return false`

// PerformHealthCheck pings and runs a scripted SET/GET/DEL round trip on a scratch key.
func (c *Client) PerformHealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	result := &HealthCheckResult{}

	start := time.Now()
	pingErr := c.Ping(ctx)
	result.Ping.Latency = time.Since(start)
	result.Ping.Success = pingErr == nil
	if pingErr != nil {
		result.Ping.Error = pingErr.Error()
	}

	testKey := fmt.Sprintf("jobqueue:health_check:%d", time.Now().UnixNano())
	testValue := "health_test_value"

	start = time.Now()
	reply, err := c.Eval(ctx, roundTripScript, []string{testKey}, testValue, 30)
	result.ReadWrite.Latency = time.Since(start)
	if err != nil {
		result.ReadWrite.Error = err.Error()
	} else {
		result.ReadWrite.Success = reply != nil
		result.ReadWrite.ValueMatch = reply == testValue
	}

	stats := c.rdb().PoolStats()
	result.PoolStats = PoolHealthStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}

	result.Healthy = result.Ping.Success && result.ReadWrite.ValueMatch
	result.CheckedAt = time.Now()

	c.mu.Lock()
	c.lastHealthCheck = result.CheckedAt
	c.mu.Unlock()

	return result, nil
}
