// Package monitor samples queue and worker state, keeps a bounded metrics
// history, raises threshold alerts and derives a health score.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

// Source is the read-only view of the queues the monitor samples. The queue
// manager satisfies it.
type Source interface {
	GetAllQueuesInfo(ctx context.Context) ([]types.QueueInfo, error)
	ListWorkers(ctx context.Context) ([]types.WorkerInfo, error)
	RecentJobs(ctx context.Context, p types.Priority, reg broker.Registry, limit int) ([]*types.JobRecord, error)
}

// AlertHandler is called synchronously for every new alert.
type AlertHandler interface {
	HandleAlert(ctx context.Context, alert types.QueueAlert) error
}

type AlertHandlerFunc func(ctx context.Context, alert types.QueueAlert) error

func (f AlertHandlerFunc) HandleAlert(ctx context.Context, alert types.QueueAlert) error {
	return f(ctx, alert)
}

// Exporter receives every sample, alert and health score, e.g. to publish
// them as Prometheus metrics.
type Exporter interface {
	ObserveQueueMetrics(m types.QueueMetrics)
	ObserveAlert(a types.QueueAlert)
	ObserveHealth(summary HealthSummary)
}

type Option func(*Monitor)

func WithExporter(e Exporter) Option {
	return func(m *Monitor) { m.exporter = e }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

type Monitor struct {
	source   Source
	cfg      config.QueueConfig
	th       Thresholds
	logger   logging.Logger
	exporter Exporter
	now      func() time.Time

	metrics *MetricsStore
	alerts  *AlertStore

	handlersMu sync.RWMutex
	handlers   []AlertHandler

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(source Source, cfg config.QueueConfig, logger logging.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	m := &Monitor{
		source:  source,
		cfg:     cfg,
		th:      thresholdsFrom(cfg),
		logger:  logger.With("component", "queue_monitor"),
		now:     time.Now,
		metrics: NewMetricsStore(),
		alerts:  NewAlertStore(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Metrics() *MetricsStore { return m.metrics }

func (m *Monitor) Alerts() *AlertStore { return m.alerts }

func (m *Monitor) AddAlertHandler(h AlertHandler) {
	if h == nil {
		return
	}
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers = append(m.handlers, h)
}

// CollectMetrics samples every queue, appends the snapshots to the history
// and prunes history older than HistoryRetention.
func (m *Monitor) CollectMetrics(ctx context.Context) ([]types.QueueMetrics, error) {
	infos, err := m.source.GetAllQueuesInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue info: %w", err)
	}
	workers, err := m.source.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}

	now := m.now().UTC()
	out := make([]types.QueueMetrics, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	for i, info := range infos {
		g.Go(func() error {
			qm, err := m.sample(gctx, info, workers, now)
			if err != nil {
				return fmt.Errorf("queue %s: %w", info.Name, err)
			}
			out[i] = qm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, qm := range out {
		m.metrics.Add(qm)
		if m.exporter != nil {
			m.exporter.ObserveQueueMetrics(qm)
		}
	}
	if n := m.metrics.Prune(now.Add(-m.cfg.HistoryRetention)); n > 0 {
		m.logger.Debugf("Pruned %d metric samples", n)
	}
	return out, nil
}

func (m *Monitor) sample(ctx context.Context, info types.QueueInfo, workers []types.WorkerInfo, now time.Time) (types.QueueMetrics, error) {
	qm := types.QueueMetrics{
		QueueName: info.Name,
		Queued:    info.Queued,
		Started:   info.Started,
		Finished:  info.Finished,
		Failed:    info.Failed,
		Deferred:  info.Deferred,
		SampledAt: now,
	}

	if completed := qm.Completed(); completed > 0 {
		qm.SuccessRate = float64(qm.Finished) / float64(completed) * 100
		qm.FailureRate = float64(qm.Failed) / float64(completed) * 100
	}

	finished, err := m.source.RecentJobs(ctx, info.Priority, broker.RegistryFinished, m.cfg.ProcessingSampleSize)
	if err != nil {
		return qm, err
	}
	var total time.Duration
	timed := 0
	for _, rec := range finished {
		if d := rec.ProcessingTime(); d > 0 {
			total += d
			timed++
		}
		if rec.EndedAt != nil && (qm.LastJobFinished == nil || rec.EndedAt.After(*qm.LastJobFinished)) {
			qm.LastJobFinished = types.TimePtr(*rec.EndedAt)
		}
	}
	if timed > 0 {
		qm.AvgProcessingTime = (total / time.Duration(timed)).Seconds()
	}

	failed, err := m.source.RecentJobs(ctx, info.Priority, broker.RegistryFailed, 1)
	if err != nil {
		return qm, err
	}
	if len(failed) > 0 && failed[0].EndedAt != nil {
		qm.LastJobFailed = types.TimePtr(*failed[0].EndedAt)
	}

	for _, w := range workers {
		if !w.Serves(info.Priority) || !w.Fresh(now, m.cfg.WorkerTTL) {
			continue
		}
		switch w.State {
		case types.WorkerBusy:
			qm.ActiveWorkers++
		case types.WorkerIdle:
			qm.IdleWorkers++
		}
	}
	return qm, nil
}

// CheckQueueHealth evaluates the health rules against the latest snapshot of
// every queue. Each tripped rule is stored and handed to every handler.
func (m *Monitor) CheckQueueHealth(ctx context.Context) []types.QueueAlert {
	now := m.now().UTC()
	var raised []types.QueueAlert
	for _, name := range m.metrics.Queues() {
		latest, ok := m.metrics.Latest(name)
		if !ok {
			continue
		}
		for _, a := range evaluate(latest, m.th, now) {
			a.ID = uuid.NewString()
			a.RaisedAt = now
			m.raise(ctx, a)
			raised = append(raised, a)
		}
	}
	return raised
}

// RaiseAlert stores and dispatches an alert raised outside the health rules.
func (m *Monitor) RaiseAlert(ctx context.Context, a types.QueueAlert) types.QueueAlert {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.RaisedAt.IsZero() {
		a.RaisedAt = m.now().UTC()
	}
	m.raise(ctx, a)
	return a
}

func (m *Monitor) raise(ctx context.Context, a types.QueueAlert) {
	m.alerts.Add(a)
	if m.exporter != nil {
		m.exporter.ObserveAlert(a)
	}
	m.logger.Warn("Queue alert raised", "level", a.Level, "queue", a.QueueName, "message", a.Message)

	m.handlersMu.RLock()
	handlers := append([]AlertHandler(nil), m.handlers...)
	m.handlersMu.RUnlock()
	for i, h := range handlers {
		m.dispatch(ctx, i, h, a)
	}
}

func (m *Monitor) dispatch(ctx context.Context, idx int, h AlertHandler, a types.QueueAlert) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("Alert handler %d panicked: %v", idx, r)
		}
	}()
	if err := h.HandleAlert(ctx, a); err != nil {
		m.logger.Errorf("Alert handler %d failed: %v", idx, err)
	}
}

// GetAlerts returns the stored alerts matching f, oldest first.
func (m *Monitor) GetAlerts(f AlertFilter) []types.QueueAlert {
	return m.alerts.Filter(f)
}

// GetMetricsHistory returns the snapshots of queue taken since t.
func (m *Monitor) GetMetricsHistory(queue string, since time.Time) []types.QueueMetrics {
	return m.metrics.Since(queue, since)
}

// PruneAlerts drops alerts older than AlertRetention.
func (m *Monitor) PruneAlerts() int {
	return m.alerts.Prune(m.now().UTC().Add(-m.cfg.AlertRetention))
}

// RunCycle runs one collect, check and prune pass.
func (m *Monitor) RunCycle(ctx context.Context) error {
	if _, err := m.CollectMetrics(ctx); err != nil {
		return err
	}
	m.CheckQueueHealth(ctx)
	if n := m.PruneAlerts(); n > 0 {
		m.logger.Debugf("Pruned %d alerts", n)
	}
	if m.exporter != nil {
		m.exporter.ObserveHealth(m.GetSystemHealthSummary())
	}
	return nil
}

// StartMonitoring runs a cycle immediately and then every interval until
// StopMonitoring is called or ctx ends. A failed cycle is logged and retried
// on the next tick. interval <= 0 uses MonitoringInterval.
func (m *Monitor) StartMonitoring(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = m.cfg.MonitoringInterval
	}
	if interval <= 0 {
		return fmt.Errorf("monitoring interval must be positive")
	}

	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("%w: monitor is already running", jobqueue.ErrAlreadyInitialized)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(loopCtx, interval, m.done)
	m.logger.Infof("Queue monitoring started with interval %s", interval)
	return nil
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := m.RunCycle(ctx); err != nil && ctx.Err() == nil {
			m.logger.Errorf("Monitoring cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// StopMonitoring cancels the loop and waits for the running cycle to end.
func (m *Monitor) StopMonitoring() {
	m.loopMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.loopMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("Queue monitoring stopped")
}

func (m *Monitor) Running() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	return m.cancel != nil
}
