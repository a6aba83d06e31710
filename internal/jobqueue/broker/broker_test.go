package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	redisClient "github.com/trigg3rX/triggerx-jobqueue/pkg/client/redis"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

type fixture struct {
	broker  Broker
	advance func(time.Duration)
	stop    func()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemoryFixture(t *testing.T) fixture {
	t.Helper()
	clock := &testClock{now: time.Now()}
	m := NewMemory()
	m.SetClock(clock.Now)
	return fixture{broker: m, advance: clock.Advance, stop: func() {}}
}

func newRedisFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisClient.NewRedisClient(logging.NewNoOpLogger(), redisClient.RedisConfig{
		URL: "redis://" + mr.Addr() + "/0",
		ConnectionSettings: redisClient.ConnectionSettings{
			PoolSize:     5,
			DialTimeout:  time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Recovery: &redisClient.ConnectionRecoveryConfig{Enabled: false},
	})
	require.NoError(t, err)
	return fixture{
		broker:  NewRedis(client, "test", logging.NewNoOpLogger()),
		advance: mr.FastForward,
		stop:    mr.Close,
	}
}

// forEachBroker runs fn against every Broker implementation.
func forEachBroker(t *testing.T, fn func(t *testing.T, f fixture)) {
	t.Helper()
	impls := []struct {
		name string
		make func(*testing.T) fixture
	}{
		{"memory", newMemoryFixture},
		{"redis", newRedisFixture},
	}
	for _, impl := range impls {
		t.Run(impl.name, func(t *testing.T) {
			f := impl.make(t)
			t.Cleanup(func() { _ = f.broker.Close() })
			fn(t, f)
		})
	}
}

func newRecord(id string, p types.Priority) *types.JobRecord {
	now := time.Now().UTC()
	return &types.JobRecord{
		ID:          id,
		FuncName:    "echo",
		Args:        []byte(`{"message":"hi"}`),
		Priority:    p,
		Timeout:     time.Minute,
		MaxRetries:  3,
		RetriesLeft: 3,
		Status:      types.StatusQueued,
		CreatedAt:   now,
		EnqueuedAt:  types.TimePtr(now),
	}
}

func TestBroker_EnqueueAndLoad(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		rec := newRecord("job-1", types.PriorityDefault)
		require.NoError(t, f.broker.Enqueue(ctx, rec))

		got, ok, err := f.broker.LoadJob(ctx, "job-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, types.StatusQueued, got.Status)
		assert.JSONEq(t, `{"message":"hi"}`, string(got.Args))

		n, err := f.broker.PendingCount(ctx, types.PriorityDefault)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, ok, err = f.broker.LoadJob(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBroker_EnqueueSameIDReplacesPendingEntry(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		require.NoError(t, f.broker.Enqueue(ctx, newRecord("dup", types.PriorityLow)))
		require.NoError(t, f.broker.Enqueue(ctx, newRecord("dup", types.PriorityLow)))
		require.NoError(t, f.broker.Enqueue(ctx, newRecord("dup", types.PriorityHigh)))

		low, err := f.broker.PendingCount(ctx, types.PriorityLow)
		require.NoError(t, err)
		high, err := f.broker.PendingIDs(ctx, types.PriorityHigh, 0, -1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), low)
		assert.Equal(t, []string{"dup"}, high)
	})
}

func TestBroker_ClaimOrder(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		require.NoError(t, f.broker.Enqueue(ctx, newRecord("low-1", types.PriorityLow)))
		require.NoError(t, f.broker.Enqueue(ctx, newRecord("default-1", types.PriorityDefault)))
		require.NoError(t, f.broker.Enqueue(ctx, newRecord("high-1", types.PriorityHigh)))
		require.NoError(t, f.broker.Enqueue(ctx, newRecord("high-2", types.PriorityHigh)))

		queues := []types.Priority{types.PriorityHigh, types.PriorityLow}
		var claimed []string
		for {
			p, id, err := f.broker.Claim(ctx, queues, 0)
			require.NoError(t, err)
			if id == "" {
				break
			}
			claimed = append(claimed, string(p)+"/"+id)
		}
		assert.Equal(t, []string{"high/high-1", "high/high-2", "low/low-1"}, claimed)

		n, err := f.broker.PendingCount(ctx, types.PriorityDefault)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "unassigned queue is untouched")
	})
}

func TestBroker_ClaimBlocksUntilPush(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = f.broker.Enqueue(ctx, newRecord("late", types.PriorityDefault))
		}()

		p, id, err := f.broker.Claim(ctx, types.AllPriorities, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, types.PriorityDefault, p)
		assert.Equal(t, "late", id)
	})
}

func TestBroker_ClaimTimeout(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		start := time.Now()
		_, id, err := f.broker.Claim(context.Background(), types.AllPriorities, time.Second)
		require.NoError(t, err)
		assert.Empty(t, id)
		assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
	})
}

func TestBroker_TransitionIsGuarded(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		rec := newRecord("job-t", types.PriorityHigh)
		require.NoError(t, f.broker.Enqueue(ctx, rec))
		_, _, err := f.broker.Claim(ctx, []types.Priority{types.PriorityHigh}, 0)
		require.NoError(t, err)

		rec.Status = types.StatusStarted
		ok, err := f.broker.Transition(ctx, rec, RegistryNone, RegistryStarted, 100, 0)
		require.NoError(t, err)
		assert.True(t, ok)

		rec.Status = types.StatusFinished
		ok, err = f.broker.Transition(ctx, rec, RegistryStarted, RegistryFinished, 200, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		rec.Status = types.StatusFailed
		ok, err = f.broker.Transition(ctx, rec, RegistryStarted, RegistryFailed, 300, time.Hour)
		require.NoError(t, err)
		assert.False(t, ok, "second move out of started must lose")

		got, _, err := f.broker.LoadJob(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusFinished, got.Status)

		started, err := f.broker.RegistryCount(ctx, types.PriorityHigh, RegistryStarted)
		require.NoError(t, err)
		finished, err := f.broker.RegistryCount(ctx, types.PriorityHigh, RegistryFinished)
		require.NoError(t, err)
		failed, err := f.broker.RegistryCount(ctx, types.PriorityHigh, RegistryFailed)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 0}, []int64{started, finished, failed})
	})
}

func TestBroker_RequeueFromFailed(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		for _, id := range []string{"f1", "f2"} {
			rec := newRecord(id, types.PriorityLow)
			rec.Status = types.StatusFailed
			ok, err := f.broker.Transition(ctx, rec, RegistryNone, RegistryFailed, 10, time.Hour)
			require.NoError(t, err)
			require.True(t, ok)
		}

		rec := newRecord("f1", types.PriorityLow)
		ok, err := f.broker.Requeue(ctx, rec, RegistryFailed)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.broker.Requeue(ctx, rec, RegistryFailed)
		require.NoError(t, err)
		assert.False(t, ok)

		ids, err := f.broker.PendingIDs(ctx, types.PriorityLow, 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"f1"}, ids)

		remaining, err := f.broker.RegistryIDs(ctx, types.PriorityLow, RegistryFailed, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"f2"}, remaining)
	})
}

func TestBroker_ClearAndRemovePending(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, f.broker.Enqueue(ctx, newRecord(id, types.PriorityDefault)))
		}

		removed, err := f.broker.RemovePending(ctx, types.PriorityDefault, "b")
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = f.broker.RemovePending(ctx, types.PriorityDefault, "b")
		require.NoError(t, err)
		assert.False(t, removed)

		ids, err := f.broker.ClearPending(ctx, types.PriorityDefault)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids)

		ids, err = f.broker.ClearPending(ctx, types.PriorityDefault)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestBroker_RegistryQueries(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		scores := map[string]float64{"d1": 10, "d2": 20, "d3": 30}
		for id, score := range scores {
			rec := newRecord(id, types.PriorityDefault)
			_, err := f.broker.Transition(ctx, rec, RegistryNone, RegistryDeferred, score, 0)
			require.NoError(t, err)
		}

		newest, err := f.broker.RegistryIDs(ctx, types.PriorityDefault, RegistryDeferred, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"d3", "d2"}, newest)

		due, err := f.broker.DueIDs(ctx, types.PriorityDefault, RegistryDeferred, 20, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1", "d2"}, due)

		due, err = f.broker.DueIDs(ctx, types.PriorityDefault, RegistryDeferred, 100, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1"}, due)

		pruned, err := f.broker.PruneRegistry(ctx, types.PriorityDefault, RegistryDeferred, 15)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pruned)

		n, err := f.broker.RegistryCount(ctx, types.PriorityDefault, RegistryDeferred)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestBroker_JobTTL(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		require.NoError(t, f.broker.SaveJob(ctx, newRecord("short", types.PriorityLow), time.Minute))
		require.NoError(t, f.broker.SaveJob(ctx, newRecord("forever", types.PriorityLow), 0))

		f.advance(2 * time.Minute)

		_, ok, err := f.broker.LoadJob(ctx, "short")
		require.NoError(t, err)
		assert.False(t, ok)

		recs, err := f.broker.LoadJobs(ctx, []string{"short", "forever"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "forever", recs[0].ID)

		require.NoError(t, f.broker.DeleteJobs(ctx, "forever"))
		_, ok, err = f.broker.LoadJob(ctx, "forever")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBroker_Workers(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		now := time.Now().UTC()
		require.NoError(t, f.broker.SaveWorker(ctx, types.WorkerInfo{
			Name: "w-b", Priorities: []types.Priority{types.PriorityLow}, State: types.WorkerIdle, LastHeartbeat: now,
		}, time.Minute))
		require.NoError(t, f.broker.SaveWorker(ctx, types.WorkerInfo{
			Name: "w-a", Priorities: types.AllPriorities, State: types.WorkerBusy, CurrentJobID: "j", LastHeartbeat: now,
		}, 10*time.Minute))

		workers, err := f.broker.ListWorkers(ctx)
		require.NoError(t, err)
		require.Len(t, workers, 2)
		assert.Equal(t, "w-a", workers[0].Name)
		assert.Equal(t, "j", workers[0].CurrentJobID)

		f.advance(2 * time.Minute)
		workers, err = f.broker.ListWorkers(ctx)
		require.NoError(t, err)
		require.Len(t, workers, 1, "expired heartbeat disappears")

		require.NoError(t, f.broker.RemoveWorker(ctx, "w-a"))
		workers, err = f.broker.ListWorkers(ctx)
		require.NoError(t, err)
		assert.Empty(t, workers)
	})
}

func TestBroker_Lock(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		release, ok, err := f.broker.AcquireLock(ctx, "maintenance", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = f.broker.AcquireLock(ctx, "maintenance", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, release(ctx))

		release, ok, err = f.broker.AcquireLock(ctx, "maintenance", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, release(ctx))
	})
}

func TestBroker_ErrorsWrapUnavailable(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		if r, ok := f.broker.(*Redis); ok {
			r.client.SetRetryConfig(&redisClient.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})
		}
		f.stop()
		if _, ok := f.broker.(*Memory); ok {
			require.NoError(t, f.broker.Close())
		}
		err := f.broker.Ping(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, jobqueue.ErrBrokerUnavailable)
	})
}

func TestBroker_CheckHealth(t *testing.T) {
	forEachBroker(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		hc, ok := f.broker.(HealthChecker)
		require.True(t, ok)
		require.NoError(t, f.broker.Enqueue(ctx, newRecord("h1", types.PriorityHigh)))

		h := hc.CheckHealth(ctx)
		assert.True(t, h.Healthy, h.Error)
		assert.Empty(t, h.Error)
		assert.False(t, h.CheckedAt.IsZero())
		if _, isRedis := f.broker.(*Redis); isRedis {
			assert.Equal(t, "redis", h.Backend)
			assert.Contains(t, h.Operations, "Ping")
			assert.Greater(t, h.Operations["Ping"].Calls, int64(0))
		} else {
			assert.Equal(t, "memory", h.Backend)
		}

		f.stop()
		if m, isMemory := f.broker.(*Memory); isMemory {
			require.NoError(t, m.Close())
		}
		if r, isRedis := f.broker.(*Redis); isRedis {
			r.client.SetRetryConfig(&redisClient.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})
		}
		down := hc.CheckHealth(ctx)
		assert.False(t, down.Healthy)
		assert.NotEmpty(t, down.Error)
	})
}

func TestKeys(t *testing.T) {
	k := NewKeys("")
	assert.Equal(t, "jobqueue:queue:high", k.Queue(types.PriorityHigh))
	assert.Equal(t, "jobqueue:registry:low:failed", k.Registry(types.PriorityLow, RegistryFailed))
	assert.Equal(t, "jobqueue:job:abc", k.Job("abc"))
	assert.Equal(t, "jobqueue:worker:*", k.WorkerPattern())
	assert.Equal(t, "custom:lock:maintenance", NewKeys("custom").Lock("maintenance"))
}

func TestScoreRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.WithinDuration(t, now, ScoreTime(Score(now)), time.Microsecond)
}
