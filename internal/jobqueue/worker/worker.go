// Package worker claims jobs from the broker and executes them one at a time.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

const (
	// errorBackoff is the pause after a failed claim before trying again.
	errorBackoff      = time.Second
	deregisterTimeout = 5 * time.Second
)

type Option func(*Worker)

func WithObserver(o Observer) Option {
	return func(w *Worker) {
		if o != nil {
			w.observer = o
		}
	}
}

// WithHeartbeatInterval overrides the default of WorkerTTL/3.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(w *Worker) { w.heartbeatInterval = d }
}

// Worker claims from its priorities in HIGH > DEFAULT > LOW order and never
// from a queue it is not assigned to.
type Worker struct {
	name       string
	priorities []types.Priority
	broker     broker.Broker
	executor   *Executor
	cfg        config.QueueConfig
	observer   Observer
	logger     logging.Logger

	heartbeatInterval time.Duration

	mu      sync.Mutex
	info    types.WorkerInfo
	running bool
	stopCh  chan struct{}
	stopped sync.Once
	done    chan struct{}
}

// New fails with ErrWorkerStartup when priorities holds no valid queue.
// An empty name is replaced by a generated one.
func New(name string, priorities []types.Priority, b broker.Broker, registry *handlers.Registry, cfg config.QueueConfig, logger logging.Logger, opts ...Option) (*Worker, error) {
	ordered := types.SortByRank(priorities)
	if len(ordered) == 0 {
		return nil, fmt.Errorf("%w: worker %q has no valid queues", jobqueue.ErrWorkerStartup, name)
	}
	if b == nil || registry == nil {
		return nil, fmt.Errorf("%w: broker and handler registry are required", jobqueue.ErrWorkerStartup)
	}
	if name == "" {
		name = GenerateName()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	hostname, _ := os.Hostname()
	w := &Worker{
		name:              name,
		priorities:        ordered,
		broker:            b,
		executor:          NewExecutor(registry),
		cfg:               cfg,
		observer:          nopObserver{},
		logger:            logger.With("component", "worker", "worker", name),
		heartbeatInterval: cfg.WorkerTTL / 3,
		stopCh:            make(chan struct{}),
		done:              make(chan struct{}),
		info: types.WorkerInfo{
			Name:       name,
			Priorities: ordered,
			State:      types.WorkerIdle,
			Hostname:   hostname,
			PID:        os.Getpid(),
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// GenerateName returns "<hostname>-<8 hex>".
func GenerateName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}

func (w *Worker) Name() string { return w.name }

func (w *Worker) Priorities() []types.Priority {
	return append([]types.Priority(nil), w.priorities...)
}

// Info returns a snapshot of the worker's state.
func (w *Worker) Info() types.WorkerInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	info := w.info
	info.Priorities = append([]types.Priority(nil), w.info.Priorities...)
	return info
}

// Done is closed when Work returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stop asks the worker to exit after its current job. It does not wait.
func (w *Worker) Stop() {
	w.stopped.Do(func() { close(w.stopCh) })
}

// Work runs the claim loop until ctx is done or Stop is called. A worker
// runs at most once.
func (w *Worker) Work(ctx context.Context) error {
	return w.run(ctx, false)
}

// WorkBurst processes jobs until a claim comes back empty, then returns.
func (w *Worker) WorkBurst(ctx context.Context) error {
	return w.run(ctx, true)
}

func (w *Worker) run(ctx context.Context, burst bool) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("%w: worker %s is already running", jobqueue.ErrWorkerStartup, w.name)
	}
	w.running = true
	now := time.Now().UTC()
	w.info.StartedAt = now
	w.info.LastHeartbeat = now
	w.info.State = types.WorkerIdle
	w.mu.Unlock()
	defer close(w.done)

	if err := w.heartbeat(ctx); err != nil {
		w.setState(types.WorkerStopped, "")
		return fmt.Errorf("%w: %v", jobqueue.ErrWorkerStartup, err)
	}
	w.logger.Infof("Worker started on queues %v", w.priorities)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	hbDone := make(chan struct{})
	go w.heartbeatLoop(loopCtx, hbDone)

	defer func() {
		cancel()
		<-hbDone
		w.setState(types.WorkerStopped, "")
		dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), deregisterTimeout)
		defer dcancel()
		if err := w.broker.RemoveWorker(dctx, w.name); err != nil {
			w.logger.Warnf("Failed to deregister worker: %v", err)
		}
		w.logger.Info("Worker stopped")
	}()

	for {
		if loopCtx.Err() != nil {
			return nil
		}

		timeout := w.cfg.BurstTimeout
		if burst {
			timeout = 0
		}
		outcome, err := w.runOnce(loopCtx, timeout)
		if err != nil {
			if loopCtx.Err() != nil {
				return nil
			}
			w.logger.Errorf("Work cycle failed: %v", err)
			select {
			case <-loopCtx.Done():
				return nil
			case <-time.After(errorBackoff):
			}
			continue
		}
		if burst && outcome == claimEmpty {
			return nil
		}
	}
}

// RunOnce claims and processes at most one job, blocking up to BurstTimeout
// for one to arrive. It reports whether a job was executed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	outcome, err := w.runOnce(ctx, w.cfg.BurstTimeout)
	return outcome == claimProcessed, err
}

type claimOutcome int

const (
	claimEmpty claimOutcome = iota
	// claimSkipped: an id was popped but its record was gone or no longer queued.
	claimSkipped
	claimProcessed
)

func (w *Worker) runOnce(ctx context.Context, timeout time.Duration) (claimOutcome, error) {
	queue, id, err := w.broker.Claim(ctx, w.priorities, timeout)
	if err != nil {
		return claimEmpty, err
	}
	if id == "" {
		return claimEmpty, nil
	}

	// The claimed job is ours now; finish it even if ctx is canceled.
	jobCtx := context.WithoutCancel(ctx)
	rec, ok, err := w.broker.LoadJob(jobCtx, id)
	if err != nil {
		return claimSkipped, fmt.Errorf("failed to load claimed job %s: %w", id, err)
	}
	if !ok {
		w.logger.Warnf("Claimed job %s from %s has no record, skipping", id, queue)
		return claimSkipped, nil
	}
	if rec.Status != types.StatusQueued {
		w.logger.Warnf("Claimed job %s is %s, skipping", id, rec.Status)
		return claimSkipped, nil
	}

	w.process(jobCtx, rec)
	return claimProcessed, nil
}

func (w *Worker) process(ctx context.Context, rec *types.JobRecord) {
	logger := w.logger.With("job_id", rec.ID, "function", rec.FuncName, "queue", rec.Priority)

	if rec.Timeout <= 0 {
		rec.Timeout = w.cfg.TimeoutFor(rec.Priority)
	}
	start := time.Now().UTC()
	rec.Status = types.StatusStarted
	rec.StartedAt = types.TimePtr(start)
	rec.EndedAt = nil
	rec.ScheduledFor = nil
	rec.Result = nil
	rec.Error = nil
	rec.WorkerName = w.name
	rec.Attempts++

	if _, err := w.broker.Transition(ctx, rec, broker.RegistryNone, broker.RegistryStarted, StartedScore(start, rec.Timeout, w.cfg), 0); err != nil {
		logger.Errorf("Failed to mark job started: %v", err)
	}
	w.setState(types.WorkerBusy, rec.ID)
	defer w.setState(types.WorkerIdle, "")
	w.observer.JobStarted(rec)
	logger.Debugf("Job started (attempt %d)", rec.Attempts)

	result, jobErr := w.executor.Execute(ctx, rec)
	end := time.Now().UTC()
	elapsed := end.Sub(start)

	if jobErr == nil {
		rec.Status = types.StatusFinished
		rec.Result = result
		rec.EndedAt = types.TimePtr(end)
		moved, err := w.broker.Transition(ctx, rec, broker.RegistryStarted, broker.RegistryFinished, FinishedScore(end, w.cfg), w.cfg.ResultTTL)
		switch {
		case err != nil:
			logger.Errorf("Failed to record job result: %v", err)
		case !moved:
			logger.Warn("Job finished after it was no longer registered as started")
		}
		w.count(true)
		w.observer.JobFinished(rec, elapsed)
		logger.Infof("Job finished in %s", elapsed)
		return
	}

	out := ApplyFailure(rec, *jobErr, end, w.cfg)
	moved, err := w.broker.Transition(ctx, rec, broker.RegistryStarted, out.Registry, out.Score, out.TTL)
	switch {
	case err != nil:
		logger.Errorf("Failed to record job failure: %v", err)
	case !moved:
		logger.Warn("Job failed after it was no longer registered as started")
	}
	w.count(false)
	w.observer.JobFailed(rec, elapsed)
	if out.Retried {
		w.observer.JobRetried(rec, out.Delay)
		logger.Warnf("Job failed (%s: %s), retry %d/%d in %s", jobErr.Kind, jobErr.Message, rec.MaxRetries-rec.RetriesLeft, rec.MaxRetries, out.Delay)
		return
	}
	logger.Errorf("Job failed (%s: %s)", jobErr.Kind, jobErr.Message)
}

func (w *Worker) heartbeatLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	interval := w.heartbeatInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.heartbeat(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warnf("Heartbeat failed: %v", err)
			}
		}
	}
}

func (w *Worker) heartbeat(ctx context.Context) error {
	w.mu.Lock()
	w.info.LastHeartbeat = time.Now().UTC()
	info := w.info
	w.mu.Unlock()
	return w.broker.SaveWorker(ctx, info, w.cfg.WorkerTTL)
}

// setState publishes the change right away so monitors see busy workers
// without waiting for the next heartbeat.
func (w *Worker) setState(state types.WorkerState, jobID string) {
	w.mu.Lock()
	w.info.State = state
	w.info.CurrentJobID = jobID
	w.mu.Unlock()
	if state == types.WorkerStopped {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deregisterTimeout)
	defer cancel()
	if err := w.heartbeat(ctx); err != nil {
		w.logger.Debugf("State heartbeat failed: %v", err)
	}
}

func (w *Worker) count(finished bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if finished {
		w.info.JobsFinished++
	} else {
		w.info.JobsFailed++
	}
}
