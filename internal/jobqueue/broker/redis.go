package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	redisClient "github.com/trigg3rX/triggerx-jobqueue/pkg/client/redis"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// KEYS: job, from, to. ARGV: id, payload, ttl ms, score, has from, has to.
const transitionScript = `
if ARGV[5] == "1" and redis.call("ZREM", KEYS[2], ARGV[1]) == 0 then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
if ARGV[6] == "1" then
	redis.call("ZADD", KEYS[3], ARGV[4], ARGV[1])
end
return 1`

// KEYS: job, from, pending. ARGV: id, payload, has from.
const requeueScript = `
if ARGV[3] == "1" and redis.call("ZREM", KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2])
redis.call("LREM", KEYS[3], 0, ARGV[1])
redis.call("RPUSH", KEYS[3], ARGV[1])
return 1`

// Redis is the production Broker backed by pkg/client/redis.
type Redis struct {
	client redisClient.RedisClientInterface
	keys   Keys
	logger logging.Logger
}

var (
	_ Broker        = (*Redis)(nil)
	_ HealthChecker = (*Redis)(nil)
)

func NewRedis(client redisClient.RedisClientInterface, prefix string, logger logging.Logger) *Redis {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Redis{
		client: client,
		keys:   NewKeys(prefix),
		logger: logger,
	}
}

// Dial connects to Redis, retrying with backoff per retryConfig (nil uses
// the default schedule). Failure wraps ErrBrokerUnavailable.
func Dial(ctx context.Context, cfg redisClient.RedisConfig, prefix string, retryConfig *retry.RetryConfig, logger logging.Logger) (*Redis, error) {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	client, err := retry.Retry(ctx, func() (*redisClient.Client, error) {
		return redisClient.NewRedisClient(logger, cfg)
	}, retryConfig, logger)
	if err != nil {
		return nil, jobqueue.BrokerError("connect", err)
	}
	return NewRedis(client, prefix, logger), nil
}

// Client exposes the underlying client for health and metrics wiring.
func (r *Redis) Client() redisClient.RedisClientInterface {
	return r.client
}

func (r *Redis) Ping(ctx context.Context) error {
	return jobqueue.BrokerError("ping", r.client.Ping(ctx))
}

// CheckHealth runs the client's ping and write probe and attaches the pool
// and per-operation counters.
func (r *Redis) CheckHealth(ctx context.Context) Health {
	h := Health{Backend: "redis", CheckedAt: time.Now().UTC()}
	result, err := r.client.PerformHealthCheck(ctx)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Healthy = result.Healthy
	h.PingMs = millis(result.Ping.Latency)
	h.RoundTripMs = millis(result.ReadWrite.Latency)
	switch {
	case result.Ping.Error != "":
		h.Error = result.Ping.Error
	case result.ReadWrite.Error != "":
		h.Error = result.ReadWrite.Error
	}

	conn := r.client.GetConnectionStatus()
	h.Recovering = conn.IsRecovering
	h.TotalConns = conn.PoolStats.TotalConns
	h.IdleConns = conn.PoolStats.IdleConns

	ops := r.client.GetOperationMetrics()
	h.Operations = make(map[string]OperationStats, len(ops))
	for name, m := range ops {
		h.Operations[name] = OperationStats{
			Calls:        m.TotalCalls,
			Errors:       m.ErrorCount,
			Retries:      m.RetryCount,
			AvgLatencyMs: millis(m.AverageLatency),
		}
	}
	return h
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) SaveJob(ctx context.Context, rec *types.JobRecord, ttl time.Duration) error {
	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", rec.ID, err)
	}
	return jobqueue.BrokerError("save job", r.client.Set(ctx, r.keys.Job(rec.ID), data, ttl))
}

func (r *Redis) LoadJob(ctx context.Context, id string) (*types.JobRecord, bool, error) {
	data, exists, err := r.client.GetWithExists(ctx, r.keys.Job(id))
	if err != nil {
		return nil, false, jobqueue.BrokerError("load job", err)
	}
	if !exists {
		return nil, false, nil
	}
	rec, err := types.UnmarshalJobRecord([]byte(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return rec, true, nil
}

func (r *Redis) LoadJobs(ctx context.Context, ids []string) ([]*types.JobRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keys.Job(id)
	}
	values, err := r.client.MGet(ctx, keys...)
	if err != nil {
		return nil, jobqueue.BrokerError("load jobs", err)
	}

	recs := make([]*types.JobRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := types.UnmarshalJobRecord([]byte(s))
		if err != nil {
			r.logger.Warnf("Skipping undecodable job record %s: %v", ids[i], err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r *Redis) DeleteJobs(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keys.Job(id)
	}
	return jobqueue.BrokerError("delete jobs", r.client.Del(ctx, keys...))
}

func (r *Redis) Enqueue(ctx context.Context, rec *types.JobRecord) error {
	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", rec.ID, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.keys.Job(rec.ID), data, 0)
		for _, p := range types.AllPriorities {
			pipe.LRem(ctx, r.keys.Queue(p), 0, rec.ID)
			for _, reg := range AllRegistries {
				pipe.ZRem(ctx, r.keys.Registry(p, reg), rec.ID)
			}
		}
		pipe.RPush(ctx, r.keys.Queue(rec.Priority), rec.ID)
		return nil
	})
	return jobqueue.BrokerError("enqueue", err)
}

func (r *Redis) Claim(ctx context.Context, queues []types.Priority, timeout time.Duration) (types.Priority, string, error) {
	if len(queues) == 0 {
		return "", "", nil
	}
	byKey := make(map[string]types.Priority, len(queues))
	keys := make([]string, len(queues))
	for i, p := range queues {
		keys[i] = r.keys.Queue(p)
		byKey[keys[i]] = p
	}

	if timeout <= 0 {
		for i, key := range keys {
			id, ok, err := r.client.LPop(ctx, key)
			if err != nil {
				return "", "", jobqueue.BrokerError("claim", err)
			}
			if ok {
				return queues[i], id, nil
			}
		}
		return "", "", nil
	}

	key, id, err := r.client.BLPop(ctx, timeout, keys...)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", jobqueue.BrokerError("claim", err)
	}
	if id == "" {
		return "", "", nil
	}
	return byKey[key], id, nil
}

func (r *Redis) Transition(ctx context.Context, rec *types.JobRecord, from, to Registry, score float64, ttl time.Duration) (bool, error) {
	data, err := rec.Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to marshal job %s: %w", rec.ID, err)
	}
	jobKey := r.keys.Job(rec.ID)
	keys := []string{jobKey, r.registryKeyOr(rec.Priority, from, jobKey), r.registryKeyOr(rec.Priority, to, jobKey)}
	res, err := r.client.Eval(ctx, transitionScript, keys,
		rec.ID, data, ttl.Milliseconds(), strconv.FormatFloat(score, 'f', -1, 64), flag(from), flag(to))
	if err != nil {
		return false, jobqueue.BrokerError("transition", err)
	}
	return scriptOK(res), nil
}

func (r *Redis) Requeue(ctx context.Context, rec *types.JobRecord, from Registry) (bool, error) {
	data, err := rec.Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to marshal job %s: %w", rec.ID, err)
	}
	jobKey := r.keys.Job(rec.ID)
	keys := []string{jobKey, r.registryKeyOr(rec.Priority, from, jobKey), r.keys.Queue(rec.Priority)}
	res, err := r.client.Eval(ctx, requeueScript, keys, rec.ID, data, flag(from))
	if err != nil {
		return false, jobqueue.BrokerError("requeue", err)
	}
	return scriptOK(res), nil
}

func (r *Redis) RemovePending(ctx context.Context, p types.Priority, id string) (bool, error) {
	removed, err := r.client.LRem(ctx, r.keys.Queue(p), 0, id)
	if err != nil {
		return false, jobqueue.BrokerError("remove pending", err)
	}
	return removed > 0, nil
}

func (r *Redis) ClearPending(ctx context.Context, p types.Priority) ([]string, error) {
	key := r.keys.Queue(p)
	var ids *goredis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		ids = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, jobqueue.BrokerError("clear pending", err)
	}
	return ids.Val(), nil
}

func (r *Redis) PendingCount(ctx context.Context, p types.Priority) (int64, error) {
	n, err := r.client.LLen(ctx, r.keys.Queue(p))
	return n, jobqueue.BrokerError("pending count", err)
}

func (r *Redis) PendingIDs(ctx context.Context, p types.Priority, start, stop int64) ([]string, error) {
	ids, err := r.client.LRange(ctx, r.keys.Queue(p), start, stop)
	return ids, jobqueue.BrokerError("pending ids", err)
}

func (r *Redis) RegistryCount(ctx context.Context, p types.Priority, reg Registry) (int64, error) {
	n, err := r.client.ZCard(ctx, r.keys.Registry(p, reg))
	return n, jobqueue.BrokerError("registry count", err)
}

func (r *Redis) RegistryIDs(ctx context.Context, p types.Priority, reg Registry, limit int64) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	ids, err := r.client.ZRevRange(ctx, r.keys.Registry(p, reg), 0, stop)
	return ids, jobqueue.BrokerError("registry ids", err)
}

func (r *Redis) DueIDs(ctx context.Context, p types.Priority, reg Registry, max float64, limit int64) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.keys.Registry(p, reg), "-inf", strconv.FormatFloat(max, 'f', -1, 64), 0, limit)
	return ids, jobqueue.BrokerError("due ids", err)
}

func (r *Redis) PruneRegistry(ctx context.Context, p types.Priority, reg Registry, max float64) (int64, error) {
	n, err := r.client.ZRemRangeByScore(ctx, r.keys.Registry(p, reg), "-inf", strconv.FormatFloat(max, 'f', -1, 64))
	return n, jobqueue.BrokerError("prune registry", err)
}

func (r *Redis) SaveWorker(ctx context.Context, info types.WorkerInfo, ttl time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal worker %s: %w", info.Name, err)
	}
	return jobqueue.BrokerError("save worker", r.client.Set(ctx, r.keys.Worker(info.Name), data, ttl))
}

func (r *Redis) RemoveWorker(ctx context.Context, name string) error {
	return jobqueue.BrokerError("remove worker", r.client.Del(ctx, r.keys.Worker(name)))
}

func (r *Redis) ListWorkers(ctx context.Context) ([]types.WorkerInfo, error) {
	keys, err := r.client.ScanAll(ctx, &redisClient.ScanOptions{Pattern: r.keys.WorkerPattern(), Count: 100})
	if err != nil {
		return nil, jobqueue.BrokerError("list workers", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := r.client.MGet(ctx, keys...)
	if err != nil {
		return nil, jobqueue.BrokerError("list workers", err)
	}

	workers := make([]types.WorkerInfo, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var info types.WorkerInfo
		if err := json.Unmarshal([]byte(s), &info); err != nil {
			r.logger.Warnf("Skipping undecodable worker record %s: %v", strings.TrimPrefix(keys[i], r.keys.Worker("")), err)
			continue
		}
		workers = append(workers, info)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].Name < workers[j].Name })
	return workers, nil
}

func (r *Redis) AcquireLock(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, bool, error) {
	lock, err := r.client.NewLock(r.keys.Lock(name), ttl)
	if err != nil {
		return nil, false, err
	}
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, false, jobqueue.BrokerError("acquire lock", err)
	}
	if !ok {
		return nil, false, nil
	}
	return lock.Release, true, nil
}

func (r *Redis) registryKeyOr(p types.Priority, reg Registry, fallback string) string {
	if reg == RegistryNone {
		return fallback
	}
	return r.keys.Registry(p, reg)
}

func flag(reg Registry) string {
	if reg == RegistryNone {
		return "0"
	}
	return "1"
}

func scriptOK(res interface{}) bool {
	n, ok := res.(int64)
	return ok && n == 1
}
