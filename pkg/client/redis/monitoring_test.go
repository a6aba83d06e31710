package redis

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoringHooks_OperationLifecycle(t *testing.T) {
	flushDB(t)
	testClient.ResetOperationMetrics()
	t.Cleanup(func() { testClient.SetMonitoringHooks(nil) })

	var mu sync.Mutex
	var started, ended []string
	var endErrs []error

	testClient.SetMonitoringHooks(&MonitoringHooks{
		OnOperationStart: func(operation, key string) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, operation+":"+key)
		},
		OnOperationEnd: func(operation, key string, duration time.Duration, err error) {
			mu.Lock()
			defer mu.Unlock()
			ended = append(ended, operation+":"+key)
			endErrs = append(endErrs, err)
		},
	})

	ctx := context.Background()
	require.NoError(t, testClient.Set(ctx, "k", "v", 0))
	_, _, err := testClient.GetWithExists(ctx, "k")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Set:k", "GetWithExists:k"}, started)
	assert.Equal(t, []string{"Set:k", "GetWithExists:k"}, ended)
	assert.Equal(t, []error{nil, nil}, endErrs)

	metrics := testClient.GetOperationMetrics()
	require.Contains(t, metrics, "Set")
	assert.Equal(t, int64(1), metrics["Set"].TotalCalls)
	assert.Equal(t, int64(1), metrics["Set"].SuccessCount)
	assert.Zero(t, metrics["Set"].ErrorCount)
}

func TestMonitoringHooks_RetryAttempts(t *testing.T) {
	testClient.ResetOperationMetrics()
	useFastRetry(t, 3)
	t.Cleanup(func() { testClient.SetMonitoringHooks(nil) })

	var mu sync.Mutex
	var attempts []int
	testClient.SetMonitoringHooks(&MonitoringHooks{
		OnRetryAttempt: func(operation string, attempt int, err error) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "flaky", operation)
			assert.ErrorIs(t, err, io.EOF)
			attempts = append(attempts, attempt)
		},
	})

	err := testClient.executeWithRetry(context.Background(), func() error { return io.EOF }, "flaky")
	require.Error(t, err)

	mu.Lock()
	assert.Equal(t, []int{1, 2}, attempts)
	mu.Unlock()

	metrics := testClient.GetOperationMetrics()["flaky"]
	require.NotNil(t, metrics)
	assert.Equal(t, int64(3), metrics.TotalCalls)
	assert.Equal(t, int64(3), metrics.ErrorCount)
	assert.Equal(t, int64(2), metrics.RetryCount)
	assert.ErrorIs(t, metrics.LastError, io.EOF)
}

func TestGetOperationMetrics_ReturnsCopy(t *testing.T) {
	testClient.ResetOperationMetrics()
	require.NoError(t, testClient.Ping(context.Background()))

	snapshot := testClient.GetOperationMetrics()
	snapshot["Ping"].TotalCalls = 1000

	assert.Equal(t, int64(1), testClient.GetOperationMetrics()["Ping"].TotalCalls)
}

func TestMonitoringHooks_ConnectionStatus(t *testing.T) {
	t.Cleanup(func() { testClient.SetMonitoringHooks(nil) })

	var connected bool
	testClient.SetMonitoringHooks(&MonitoringHooks{
		OnConnectionStatus: func(ok bool, latency time.Duration) {
			connected = ok
		},
	})

	require.NoError(t, testClient.Ping(context.Background()))
	assert.True(t, connected)
}
