package manager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	redisClient "github.com/trigg3rX/triggerx-jobqueue/pkg/client/redis"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

func testConfig() config.QueueConfig {
	cfg := config.DefaultQueueConfig()
	cfg.BurstTimeout = 50 * time.Millisecond
	cfg.WorkerTTL = time.Minute
	cfg.MaintenanceInterval = time.Second
	return cfg
}

func newTestManager(t *testing.T, cfg config.QueueConfig, opts ...Option) (*Manager, *broker.Memory) {
	t.Helper()
	reg := handlers.NewRegistry()
	require.NoError(t, handlers.RegisterBuiltins(reg))
	b := broker.NewMemory()
	opts = append([]Option{WithBroker(b), WithoutMaintenance()}, opts...)
	m := New(cfg, reg, logging.NewNoOpLogger(), opts...)
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { _ = m.Cleanup(context.Background()) })
	return m, b
}

func submitEcho(t *testing.T, m *Manager, id string, p types.Priority) *types.JobRecord {
	t.Helper()
	rec, err := m.Submit(context.Background(), handlers.EchoJob, p, handlers.EchoArgs{Message: id}, WithJobID(id))
	require.NoError(t, err)
	return rec
}

func TestInitialize_Idempotent(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	require.NoError(t, m.Initialize(context.Background()))
	_, err := m.Queue(types.PriorityHigh)
	assert.NoError(t, err)
}

func TestOperationsRequireInitialize(t *testing.T) {
	m := New(testConfig(), handlers.NewRegistry(), nil, WithBroker(broker.NewMemory()))
	ctx := context.Background()

	_, err := m.Submit(ctx, handlers.EchoJob, types.PriorityHigh, nil)
	assert.ErrorIs(t, err, jobqueue.ErrNotInitialized)
	_, _, err = m.GetJob(ctx, "x")
	assert.ErrorIs(t, err, jobqueue.ErrNotInitialized)
	_, err = m.GetQueueStats(ctx)
	assert.ErrorIs(t, err, jobqueue.ErrNotInitialized)
	_, err = m.CreateWorker("w")
	assert.ErrorIs(t, err, jobqueue.ErrNotInitialized)
	_, err = m.BrokerHealth(ctx)
	assert.ErrorIs(t, err, jobqueue.ErrNotInitialized)
	assert.NoError(t, m.Cleanup(ctx), "cleanup before initialize is harmless")
}

func TestBrokerHealth(t *testing.T) {
	m, b := newTestManager(t, testConfig())
	ctx := context.Background()

	h, err := m.BrokerHealth(ctx)
	require.NoError(t, err)
	assert.True(t, h.Healthy)
	assert.Equal(t, "memory", h.Backend)

	require.NoError(t, b.Close())
	h, err = m.BrokerHealth(ctx)
	require.NoError(t, err)
	assert.False(t, h.Healthy)
	assert.Contains(t, h.Error, "closed")
}

func TestInitialize_BrokerUnavailable(t *testing.T) {
	t.Run("unreachable broker", func(t *testing.T) {
		b := broker.NewMemory()
		require.NoError(t, b.Close())
		m := New(testConfig(), nil, nil, WithBroker(b))
		err := m.Initialize(context.Background())
		assert.ErrorIs(t, err, jobqueue.ErrBrokerUnavailable)
	})
	t.Run("unreachable redis", func(t *testing.T) {
		cfg := testConfig()
		cfg.Redis.URL = "redis://127.0.0.1:1/0"
		m := New(cfg, nil, nil, WithDialRetry(&retry.RetryConfig{
			MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1,
		}))
		err := m.Initialize(context.Background())
		assert.ErrorIs(t, err, jobqueue.ErrBrokerUnavailable)
	})
}

func TestEnqueue_StatusIsQueued(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	for _, p := range types.AllPriorities {
		t.Run(string(p), func(t *testing.T) {
			rec := submitEcho(t, m, "job-"+string(p), p)
			status, err := m.GetStatus(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, types.StatusQueued, status)
		})
	}
}

func TestEnqueue_Defaults(t *testing.T) {
	cfg := testConfig()
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()

	rec, err := m.Enqueue(ctx, EnqueueRequest{FuncName: handlers.EchoJob, Priority: types.PriorityLow})
	require.NoError(t, err)
	assert.Regexp(t, `^echo-\d+-[0-9a-f]{8}$`, rec.ID)
	assert.Equal(t, 30*time.Minute, rec.Timeout)
	assert.Equal(t, cfg.MaxRetries, rec.MaxRetries)
	assert.Equal(t, cfg.MaxRetries, rec.RetriesLeft)
	require.NotNil(t, rec.EnqueuedAt)

	rec, err = m.Submit(ctx, handlers.SleepJob, "", handlers.SleepArgs{Seconds: 1}, WithTimeout(time.Second), WithRetries(0))
	require.NoError(t, err)
	assert.Equal(t, types.PriorityDefault, rec.Priority)
	assert.Equal(t, time.Second, rec.Timeout)
	assert.Equal(t, 0, rec.RetriesLeft)
}

func TestEnqueue_Validation(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	negative := -1

	tests := []struct {
		name    string
		req     EnqueueRequest
		wantErr error
	}{
		{"unknown function", EnqueueRequest{FuncName: "nope"}, jobqueue.ErrUnknownFunction},
		{"empty function", EnqueueRequest{}, jobqueue.ErrUnknownFunction},
		{"invalid queue", EnqueueRequest{FuncName: handlers.EchoJob, Priority: "urgent"}, jobqueue.ErrInvalidQueueName},
		{"args not an object", EnqueueRequest{FuncName: handlers.EchoJob, Args: []byte(`[1,2]`)}, nil},
		{"negative retries", EnqueueRequest{FuncName: handlers.EchoJob, Retry: &negative}, nil},
		{"negative timeout", EnqueueRequest{FuncName: handlers.EchoJob, Timeout: -time.Second}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Enqueue(context.Background(), tt.req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestEnqueue_ReusedIDOverwrites(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	submitEcho(t, m, "same", types.PriorityDefault)
	_, err := m.Submit(ctx, handlers.EchoJob, types.PriorityDefault, handlers.EchoArgs{Message: "second"}, WithJobID("same"))
	require.NoError(t, err)

	stats, err := m.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.QueuedJobs)

	rec, ok, err := m.GetJob(ctx, "same")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"message":"second"}`, string(rec.Args))
}

func TestLookups_NotFound(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	_, ok, err := m.GetJob(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := m.GetStatus(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotFound, status)

	_, ok, err = m.GetResult(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	submitEcho(t, m, "pending", types.PriorityHigh)
	_, ok, err = m.GetResult(ctx, "pending")
	require.NoError(t, err)
	assert.False(t, ok, "no result before the job finishes")
}

func TestCancel(t *testing.T) {
	m, b := newTestManager(t, testConfig())
	ctx := context.Background()

	submitEcho(t, m, "queued", types.PriorityDefault)
	ok, err := m.Cancel(ctx, "queued")
	require.NoError(t, err)
	assert.True(t, ok)
	status, err := m.GetStatus(ctx, "queued")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanceled, status)
	n, err := b.PendingCount(ctx, types.PriorityDefault)
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err = m.Cancel(ctx, "queued")
	require.NoError(t, err)
	assert.False(t, ok, "canceled job cannot be canceled again")

	deferred := submitEcho(t, m, "deferred", types.PriorityLow)
	_, err = b.ClearPending(ctx, types.PriorityLow)
	require.NoError(t, err)
	deferred.Status = types.StatusDeferred
	_, err = b.Transition(ctx, deferred, broker.RegistryNone, broker.RegistryDeferred, broker.Score(time.Now().Add(time.Hour)), 0)
	require.NoError(t, err)
	ok, err = m.Cancel(ctx, "deferred")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, b.Registry(types.PriorityLow, broker.RegistryDeferred))

	for _, status := range []types.JobStatus{types.StatusStarted, types.StatusFinished, types.StatusFailed} {
		rec := &types.JobRecord{ID: "job-" + string(status), FuncName: handlers.EchoJob, Priority: types.PriorityHigh, Status: status}
		require.NoError(t, b.SaveJob(ctx, rec, 0))
		ok, err := m.Cancel(ctx, rec.ID)
		require.NoError(t, err)
		assert.False(t, ok, "cancel must refuse %s jobs", status)
	}

	ok, err = m.Cancel(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearQueue_Idempotent(t *testing.T) {
	m, b := newTestManager(t, testConfig())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		submitEcho(t, m, id, types.PriorityHigh)
	}
	failed := &types.JobRecord{ID: "f", Priority: types.PriorityHigh, Status: types.StatusFailed}
	_, err := b.Transition(ctx, failed, broker.RegistryNone, broker.RegistryFailed, broker.Score(time.Now().Add(time.Hour)), time.Hour)
	require.NoError(t, err)

	n, err := m.ClearQueue(ctx, types.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = m.ClearQueue(ctx, types.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, ok, err := m.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "cleared records are deleted")
	assert.Len(t, b.Registry(types.PriorityHigh, broker.RegistryFailed), 1, "registries are untouched")

	_, err = m.ClearQueue(ctx, "urgent")
	assert.ErrorIs(t, err, jobqueue.ErrInvalidQueueName)
}

func TestClearAll(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	for _, p := range types.AllPriorities {
		submitEcho(t, m, "job-"+string(p), p)
	}
	n, err := m.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRequeueFailed(t *testing.T) {
	m, b := newTestManager(t, testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := &types.JobRecord{
			ID:          "failed-" + string(rune('a'+i)),
			FuncName:    handlers.EchoJob,
			Priority:    types.PriorityLow,
			Status:      types.StatusFailed,
			RetriesLeft: 0,
			MaxRetries:  2,
			StartedAt:   types.TimePtr(time.Now()),
			EndedAt:     types.TimePtr(time.Now()),
			Error:       &types.JobError{Kind: types.ErrorKindException, Message: "boom"},
		}
		_, err := b.Transition(ctx, rec, broker.RegistryNone, broker.RegistryFailed, broker.Score(time.Now().Add(time.Hour)), time.Hour)
		require.NoError(t, err)
	}
	before, err := b.PendingCount(ctx, types.PriorityLow)
	require.NoError(t, err)

	n, err := m.RequeueFailed(ctx, types.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	after, err := b.PendingCount(ctx, types.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, before+5, after)
	assert.Empty(t, b.Registry(types.PriorityLow, broker.RegistryFailed))

	rec, _, err := m.GetJob(ctx, "failed-a")
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, rec.Status)
	assert.Nil(t, rec.StartedAt)
	assert.Nil(t, rec.EndedAt)
	assert.Nil(t, rec.Error)
	assert.Equal(t, 0, rec.RetriesLeft, "manual requeue does not restore retry credit")

	n, err = m.RequeueFailed(ctx, types.PriorityLow)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequeueJob(t *testing.T) {
	m, b := newTestManager(t, testConfig())
	ctx := context.Background()

	_, err := m.RequeueJob(ctx, "missing")
	assert.ErrorIs(t, err, jobqueue.ErrJobNotFound)

	submitEcho(t, m, "queued", types.PriorityHigh)
	_, err = m.RequeueJob(ctx, "queued")
	assert.ErrorIs(t, err, jobqueue.ErrInvalidJobState)

	rec := &types.JobRecord{ID: "f", FuncName: handlers.EchoJob, Priority: types.PriorityDefault, Status: types.StatusFailed}
	_, err = b.Transition(ctx, rec, broker.RegistryNone, broker.RegistryFailed, broker.Score(time.Now().Add(time.Hour)), time.Hour)
	require.NoError(t, err)

	got, err := m.RequeueJob(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, got.Status)
	ids, err := b.PendingIDs(ctx, types.PriorityDefault, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, ids)
}

func TestGetQueueStats_NoWorkers(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	submitEcho(t, m, "h", types.PriorityHigh)
	submitEcho(t, m, "d", types.PriorityDefault)
	submitEcho(t, m, "l", types.PriorityLow)

	stats, err := m.GetQueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.QueuedJobs)
	assert.Equal(t, int64(3), stats.TotalJobs)
	require.Len(t, stats.Queues, 3)
	assert.Equal(t, int64(1), stats.Queues["low"].Queued)

	infos, err := m.GetAllQueuesInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, []string{"high", "default", "low"}, []string{infos[0].Name, infos[1].Name, infos[2].Name})
}

func TestWorkerLifecycle(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	w, err := m.CreateWorker("w1", types.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, []types.Priority{types.PriorityHigh}, w.Priorities())

	_, err = m.CreateWorker("w1")
	assert.ErrorIs(t, err, jobqueue.ErrWorkerExists)
	assert.ErrorIs(t, m.StartWorker(ctx, "nope"), jobqueue.ErrWorkerNotFound)
	assert.ErrorIs(t, m.StopWorker(ctx, "nope"), jobqueue.ErrWorkerNotFound)

	require.NoError(t, m.StartWorker(ctx, "w1"))
	require.NoError(t, m.StartWorker(ctx, "w1"), "second start is a warning")

	submitEcho(t, m, "run-me", types.PriorityHigh)
	require.Eventually(t, func() bool {
		status, err := m.GetStatus(ctx, "run-me")
		return err == nil && status == types.StatusFinished
	}, 2*time.Second, 10*time.Millisecond)

	result, ok, err := m.GetResult(ctx, "run-me")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(result), "run-me")

	require.Eventually(t, func() bool {
		workers, err := m.ListWorkers(ctx)
		return err == nil && len(workers) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, m.Workers(), 1)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, m.StopWorker(stopCtx, "w1"))
	assert.Empty(t, m.Workers())
}

func TestCompletedJobsHaveResultXorError(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()

	ok, err := m.Submit(ctx, handlers.EchoJob, types.PriorityDefault, handlers.EchoArgs{Message: "x"}, WithRetries(0))
	require.NoError(t, err)
	bad, err := m.Submit(ctx, handlers.FailJob, types.PriorityDefault, handlers.FailArgs{Message: "nope"}, WithRetries(0))
	require.NoError(t, err)

	w, err := m.CreateWorker("drain", types.PriorityDefault)
	require.NoError(t, err)
	require.NoError(t, w.WorkBurst(ctx))

	for _, id := range []string{ok.ID, bad.ID} {
		rec, found, err := m.GetJob(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, rec.Status.Terminal())
		assert.NotEqual(t, rec.Result == nil, rec.Error == nil, "job %s must carry exactly one of result or error", id)
		if rec.Status == types.StatusFinished {
			assert.NotNil(t, rec.Result)
		} else {
			assert.NotNil(t, rec.Error)
		}
	}
}

func TestTimeoutScenario_RetriesThenFails(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.RetryDelays = []time.Duration{0}
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()

	rec, err := m.Submit(ctx, handlers.SleepJob, types.PriorityHigh, handlers.SleepArgs{Seconds: 5},
		WithJobID("J1"), WithTimeout(200*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 1, rec.RetriesLeft)

	w, err := m.CreateWorker("timeouts", types.PriorityHigh)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, _ = w.RunOnce(ctx)
		_, _ = m.RunMaintenance(ctx)
		status, err := m.GetStatus(ctx, "J1")
		return err == nil && status == types.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	got, _, err := m.GetJob(ctx, "J1")
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, types.ErrorKindTimeout, got.Error.Kind)
	assert.Equal(t, 0, got.RetriesLeft)
	require.Len(t, got.FailureHistory, 1)
	assert.Equal(t, types.ErrorKindTimeout, got.FailureHistory[0].Kind)
	assert.Equal(t, 2, got.Attempts)
}

func TestRunMaintenance(t *testing.T) {
	m, b := newTestManager(t, testConfig())
	ctx := context.Background()
	past := broker.Score(time.Now().Add(-time.Second))
	future := broker.Score(time.Now().Add(time.Hour))

	due := &types.JobRecord{ID: "due", FuncName: handlers.EchoJob, Priority: types.PriorityDefault, Status: types.StatusDeferred, RetriesLeft: 1}
	later := &types.JobRecord{ID: "later", FuncName: handlers.EchoJob, Priority: types.PriorityDefault, Status: types.StatusDeferred, RetriesLeft: 1}
	lost := &types.JobRecord{ID: "lost", FuncName: handlers.EchoJob, Priority: types.PriorityHigh, Status: types.StatusStarted, WorkerName: "gone", Attempts: 1, StartedAt: types.TimePtr(time.Now().Add(-time.Hour))}
	expired := &types.JobRecord{ID: "expired", FuncName: handlers.EchoJob, Priority: types.PriorityLow, Status: types.StatusFinished}

	for _, tc := range []struct {
		rec   *types.JobRecord
		reg   broker.Registry
		score float64
	}{
		{due, broker.RegistryDeferred, past},
		{later, broker.RegistryDeferred, future},
		{lost, broker.RegistryStarted, past},
		{expired, broker.RegistryFinished, past},
	} {
		_, err := b.Transition(ctx, tc.rec, broker.RegistryNone, tc.reg, tc.score, 0)
		require.NoError(t, err)
	}

	report, err := m.RunMaintenance(ctx)
	require.NoError(t, err)
	assert.Equal(t, MaintenanceReport{Promoted: 1, Abandoned: 1, Pruned: 1}, report)

	status, err := m.GetStatus(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, status)
	ids, err := b.PendingIDs(ctx, types.PriorityDefault, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, ids)
	assert.Contains(t, b.Registry(types.PriorityDefault, broker.RegistryDeferred), "later")

	got, _, err := m.GetJob(ctx, "lost")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, types.ErrorKindAbandoned, got.Error.Kind)
	assert.Contains(t, b.Registry(types.PriorityHigh, broker.RegistryFailed), "lost")
	assert.Empty(t, b.Registry(types.PriorityLow, broker.RegistryFinished))
}

func TestRunMaintenance_SkipsWhenLocked(t *testing.T) {
	m, b := newTestManager(t, testConfig())
	ctx := context.Background()

	release, ok, err := b.AcquireLock(ctx, maintenanceLock, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = release(ctx) }()

	report, err := m.RunMaintenance(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
}

func TestScheduledMaintenancePromotesDeferred(t *testing.T) {
	reg := handlers.NewRegistry()
	require.NoError(t, handlers.RegisterBuiltins(reg))
	b := broker.NewMemory()
	m := New(testConfig(), reg, nil, WithBroker(b))
	require.NoError(t, m.Initialize(context.Background()))
	defer func() { _ = m.Cleanup(context.Background()) }()

	rec := &types.JobRecord{ID: "soon", FuncName: handlers.EchoJob, Priority: types.PriorityLow, Status: types.StatusDeferred}
	_, err := b.Transition(context.Background(), rec, broker.RegistryNone, broker.RegistryDeferred, broker.Score(time.Now()), 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := b.PendingCount(context.Background(), types.PriorityLow)
		return err == nil && n == 1
	}, 4*time.Second, 50*time.Millisecond)
}

func TestStartConfiguredWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.WorkersHigh = 2
	cfg.WorkersDefault = 1
	cfg.WorkersLow = 0
	cfg.WorkersAll = 1
	m, _ := newTestManager(t, cfg)

	names, err := m.StartConfiguredWorkers(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, []string{"svc-high-1", "svc-high-2", "svc-default-1", "svc-all-1"}, names)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.StopAllWorkers(ctx))
	assert.Empty(t, m.Workers())
}

func TestCleanup_Idempotent(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()
	_, err := m.CreateWorker("w")
	require.NoError(t, err)
	require.NoError(t, m.StartWorker(ctx, "w"))

	require.NoError(t, m.Cleanup(ctx))
	require.NoError(t, m.Cleanup(ctx))

	_, err = m.GetQueueStats(ctx)
	assert.ErrorIs(t, err, jobqueue.ErrNotInitialized)
}

func TestInitialize_RedisWithHooks(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis = redisClient.RedisConfig{
		URL:      "redis://" + mr.Addr() + "/0",
		Recovery: &redisClient.ConnectionRecoveryConfig{Enabled: false},
	}

	var ops atomic.Int64
	hooks := &redisClient.MonitoringHooks{
		OnOperationEnd: func(string, string, time.Duration, error) { ops.Add(1) },
	}
	reg := handlers.NewRegistry()
	require.NoError(t, handlers.RegisterBuiltins(reg))
	m := New(cfg, reg, nil, WithoutMaintenance(), WithRedisHooks(hooks))
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { _ = m.Cleanup(context.Background()) })

	rec := submitEcho(t, m, "redis-job", types.PriorityHigh)
	got, ok, err := m.GetJob(context.Background(), rec.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.StatusQueued, got.Status)
	assert.Greater(t, ops.Load(), int64(0))
}
