package redis

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisClientInterface is the surface the job queue broker depends on.
type RedisClientInterface interface {
	// Connection management
	CheckConnection(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// Strings
	GetWithExists(ctx context.Context, key string) (string, bool, error)
	MGet(ctx context.Context, keys ...string) ([]interface{}, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	DelWithCount(ctx context.Context, keys ...string) (int64, error)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// Lists
	RPush(ctx context.Context, key string, values ...interface{}) (int64, error)
	LRem(ctx context.Context, key string, count int64, value interface{}) (int64, error)
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LPop(ctx context.Context, key string) (string, bool, error)
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) (string, string, error)

	// Sorted sets
	ZAdd(ctx context.Context, key string, members ...redis.Z) (int64, error)
	ZRem(ctx context.Context, key string, members ...interface{}) (int64, error)
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeByScore(ctx context.Context, key, min, max string, offset, count int64) ([]string, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error)

	// Transactions and iteration
	TxPipelined(ctx context.Context, fn PipelineFunc) ([]redis.Cmder, error)
	ScanAll(ctx context.Context, options *ScanOptions) ([]string, error)

	// Locks
	NewLock(key string, ttl time.Duration, opts ...LockOption) (*Lock, error)

	// Health and monitoring
	PerformHealthCheck(ctx context.Context) (*HealthCheckResult, error)
	GetConnectionStatus() *ConnectionStatus
	GetOperationMetrics() map[string]*OperationMetrics
	ResetOperationMetrics()

	// Configuration
	SetMonitoringHooks(hooks *MonitoringHooks)
	SetRetryConfig(config *RetryConfig)

	Client() *redis.Client
}

var _ RedisClientInterface = (*Client)(nil)
