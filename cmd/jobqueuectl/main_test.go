package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/api"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/manager"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/monitor"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	redisClient "github.com/trigg3rX/triggerx-jobqueue/pkg/client/redis"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// redisCtl runs commands against a miniredis instance. Every command dials
// its own manager, like separate CLI invocations.
func redisCtl(t *testing.T) (*ctl, *bytes.Buffer) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.DefaultQueueConfig()
	cfg.Redis = redisClient.RedisConfig{
		URL:      "redis://" + mr.Addr() + "/0",
		Recovery: &redisClient.ConnectionRecoveryConfig{Enabled: false},
	}

	out := &bytes.Buffer{}
	c := &ctl{
		out: out,
		newManager: func(ctx context.Context, logger logging.Logger) (*manager.Manager, error) {
			reg := handlers.NewRegistry()
			if err := handlers.RegisterBuiltins(reg); err != nil {
				return nil, err
			}
			mgr := manager.New(cfg, reg, logger, manager.WithoutMaintenance())
			if err := mgr.Initialize(ctx); err != nil {
				return nil, err
			}
			return mgr, nil
		},
	}
	return c, out
}

func (c *ctl) run(args ...string) error {
	return c.app().RunContext(context.Background(), append([]string{"jobqueuectl"}, args...))
}

var submittedID = regexp.MustCompile(`job (\S+) to queue`)

func TestTestJobAndInspect(t *testing.T) {
	c, out := redisCtl(t)

	require.NoError(t, c.run("test-job", "--queue", "high", "--message", "ping"))
	m := submittedID.FindStringSubmatch(out.String())
	require.Len(t, m, 2, out.String())
	id := m[1]
	assert.Contains(t, out.String(), "Submitted echo job")
	assert.Contains(t, out.String(), "to queue high")

	out.Reset()
	require.NoError(t, c.run("job", id))
	assert.Contains(t, out.String(), `"id": "`+id+`"`)
	assert.Contains(t, out.String(), `"status": "queued"`)

	out.Reset()
	require.NoError(t, c.run("status"))
	assert.Contains(t, out.String(), "QUEUE")
	assert.Contains(t, out.String(), "high")
	assert.Contains(t, out.String(), "Health:")

	out.Reset()
	require.NoError(t, c.run("workers"))
	assert.Contains(t, out.String(), "No live workers")
}

func TestTestJob_Variants(t *testing.T) {
	c, out := redisCtl(t)

	require.NoError(t, c.run("test-job", "--fail"))
	assert.Contains(t, out.String(), "Submitted fail job")

	out.Reset()
	require.NoError(t, c.run("test-job", "--sleep", "0.5", "--timeout", "5s", "--retries", "0"))
	assert.Contains(t, out.String(), "Submitted sleep job")
	assert.Contains(t, out.String(), "to queue default")

	err := c.run("test-job", "--queue", "urgent")
	assert.ErrorIs(t, err, jobqueue.ErrInvalidQueueName)
}

func TestJob_Errors(t *testing.T) {
	c, _ := redisCtl(t)

	assert.ErrorIs(t, c.run("job", "missing"), jobqueue.ErrJobNotFound)
	assert.EqualError(t, c.run("job"), "job id is required")
}

func TestClear(t *testing.T) {
	c, out := redisCtl(t)
	require.NoError(t, c.run("test-job", "--queue", "low"))
	require.NoError(t, c.run("test-job", "--queue", "low"))

	err := c.run("clear", "--queue", "low")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without --yes")

	out.Reset()
	require.NoError(t, c.run("clear", "--queue", "low", "--yes"))
	assert.Contains(t, out.String(), "Cleared 2 job(s) from queue low")

	assert.ErrorIs(t, c.run("clear", "--queue", "bogus", "--yes"), jobqueue.ErrInvalidQueueName)
}

func TestRequeue_NothingFailed(t *testing.T) {
	c, out := redisCtl(t)

	require.NoError(t, c.run("requeue"))
	assert.Contains(t, out.String(), "Requeued 0 failed job(s)")

	assert.ErrorIs(t, c.run("requeue", "--queue", "nope"), jobqueue.ErrInvalidQueueName)
}

func TestBrokerUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c, _ := redisCtl(t)
	c.newManager = func(ctx context.Context, logger logging.Logger) (*manager.Manager, error) {
		cfg := config.DefaultQueueConfig()
		cfg.Redis = redisClient.RedisConfig{
			URL:      "redis://" + addr + "/0",
			Recovery: &redisClient.ConnectionRecoveryConfig{Enabled: false},
		}
		mgr := manager.New(cfg, handlers.NewRegistry(), logger, manager.WithoutMaintenance(),
			manager.WithDialRetry(&retry.RetryConfig{
				MaxRetries:    1,
				InitialDelay:  time.Millisecond,
				MaxDelay:      time.Millisecond,
				BackoffFactor: 1,
			}))
		if err := mgr.Initialize(ctx); err != nil {
			return nil, err
		}
		return mgr, nil
	}
	assert.Error(t, c.run("status"))
}

// apiCtl serves a real API over a memory broker and points the CLI at it.
func apiCtl(t *testing.T) (*ctl, *bytes.Buffer, *monitor.Monitor, string) {
	t.Helper()
	cfg := config.DefaultQueueConfig()
	reg := handlers.NewRegistry()
	require.NoError(t, handlers.RegisterBuiltins(reg))
	mgr := manager.New(cfg, reg, nil, manager.WithBroker(broker.NewMemory()), manager.WithoutMaintenance())
	require.NoError(t, mgr.Initialize(context.Background()))
	t.Cleanup(func() { _ = mgr.Cleanup(context.Background()) })

	mon := monitor.New(mgr, cfg, nil)
	ts := httptest.NewServer(api.NewServer(mgr, mon, nil, api.Options{}).Handler())
	t.Cleanup(ts.Close)

	out := &bytes.Buffer{}
	c := &ctl{out: out, newManager: func(context.Context, logging.Logger) (*manager.Manager, error) {
		t.Fatal("remote commands must not dial the broker")
		return nil, nil
	}}
	return c, out, mon, ts.URL
}

func TestAlerts_Remote(t *testing.T) {
	c, out, mon, url := apiCtl(t)
	mon.RaiseAlert(context.Background(), types.QueueAlert{Level: types.AlertWarning, QueueName: "high", Message: "queue backing up"})
	mon.RaiseAlert(context.Background(), types.QueueAlert{Level: types.AlertInfo, Message: "just saying"})

	require.NoError(t, c.run("--api", url, "alerts"))
	assert.Contains(t, out.String(), "queue backing up")
	assert.Contains(t, out.String(), "just saying")

	out.Reset()
	require.NoError(t, c.run("--api", url, "alerts", "--level", "warning"))
	assert.Contains(t, out.String(), "queue backing up")
	assert.NotContains(t, out.String(), "just saying")

	out.Reset()
	require.NoError(t, c.run("--api", url, "alerts", "--queue", "low"))
	assert.Contains(t, out.String(), "No alerts")

	assert.Error(t, c.run("--api", url, "alerts", "--level", "loud"))
	assert.Error(t, c.run("--api", url, "alerts", "--hours", "0"))
}

func TestReport_Remote(t *testing.T) {
	c, out, mon, url := apiCtl(t)
	mon.RaiseAlert(context.Background(), types.QueueAlert{Level: types.AlertError, Message: "worker crashed"})

	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, c.run("--api", url, "report", "--hours", "6", "--output", path))
	assert.Contains(t, out.String(), "written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, 6, got["window_hours"])
	assert.Len(t, got["alerts"], 1)

	out.Reset()
	require.NoError(t, c.run("--api", url, "report"))
	assert.Contains(t, out.String(), `"window_hours": 24`)

	assert.Error(t, c.run("--api", url, "report", "--format", "xml"))
}

func TestRemote_InvalidURL(t *testing.T) {
	c, _, _, _ := apiCtl(t)
	assert.Error(t, c.run("--api", "not a url", "alerts"))
}

type fakeStream struct {
	msgs   [][]byte
	cancel context.CancelFunc
}

func (f *fakeStream) ReadMessage(ctx context.Context) ([]byte, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := &fakeStream{
		cancel: cancel,
		msgs: [][]byte{
			[]byte(`{"id":"a1","level":"critical","message":"no workers","queue_name":"high","raised_at":"2026-10-14T08:00:00Z"}`),
			[]byte(`{"id":"a2","level":"info","message":"fyi","raised_at":"2026-10-14T08:00:01Z"}`),
			[]byte(`not json`),
		},
	}
	out := &bytes.Buffer{}
	c := &ctl{out: out}

	require.NoError(t, c.watch(ctx, stream, types.AlertWarning))
	assert.Contains(t, out.String(), "no workers")
	assert.Contains(t, out.String(), "Queue: high")
	assert.NotContains(t, out.String(), "fyi")
	assert.Contains(t, out.String(), "skipping malformed alert")
}

func TestReportFormat(t *testing.T) {
	tests := []struct {
		format, output string
		want           string
		wantErr        bool
	}{
		{"", "", "json", false},
		{"", "out.YML", "yaml", false},
		{"", "out.yaml", "yaml", false},
		{"", "out.txt", "json", false},
		{"yaml", "out.json", "yaml", false},
		{"JSON", "", "json", false},
		{"yml", "", "yaml", false},
		{"csv", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format+"|"+tt.output, func(t *testing.T) {
			got, err := reportFormat(tt.format, tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiagnosticJob(t *testing.T) {
	tests := []struct {
		name  string
		sleep float64
		fail  bool
		want  string
	}{
		{"echo by default", 0, false, handlers.EchoJob},
		{"sleep", 1.5, false, handlers.SleepJob},
		{"fail wins", 1.5, true, handlers.FailJob},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, _ := diagnosticJob(tt.sleep, tt.fail, "m")
			assert.Equal(t, tt.want, fn)
		})
	}
}

func TestAlertStreamURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080":       "ws://localhost:8080/ws/alerts",
		"https://queue.example.com/":  "wss://queue.example.com/ws/alerts",
		"http://gateway/jobqueue?x=1": "ws://gateway/jobqueue/ws/alerts",
	}
	for in, want := range tests {
		a, err := newAPIClient(in, nil)
		require.NoError(t, err)
		assert.Equal(t, want, a.alertStreamURL())
	}
}
