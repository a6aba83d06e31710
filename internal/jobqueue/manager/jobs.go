package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// EnqueueRequest describes a job to submit. Zero values fall back to the
// queue configuration.
type EnqueueRequest struct {
	FuncName string
	Priority types.Priority
	// Args must be a JSON object, or empty.
	Args    json.RawMessage
	JobID   string
	Timeout time.Duration
	// Retry overrides MaxRetries when set.
	Retry *int
}

// Enqueue stores the job and appends it to its queue. Re-using the id of an
// existing job overwrites that job; callers needing strict idempotency
// supply their own unique ids.
func (m *Manager) Enqueue(ctx context.Context, req EnqueueRequest) (*types.JobRecord, error) {
	b, err := m.active()
	if err != nil {
		return nil, err
	}
	rec, err := m.newRecord(req)
	if err != nil {
		return nil, err
	}
	if err := b.Enqueue(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", rec.ID, err)
	}
	m.observer.JobEnqueued(rec)
	m.logger.Debugf("Enqueued job %s (%s) on %s", rec.ID, rec.FuncName, rec.Priority)
	return rec, nil
}

type SubmitOption func(*EnqueueRequest)

func WithJobID(id string) SubmitOption {
	return func(r *EnqueueRequest) { r.JobID = id }
}

func WithTimeout(d time.Duration) SubmitOption {
	return func(r *EnqueueRequest) { r.Timeout = d }
}

func WithRetries(n int) SubmitOption {
	return func(r *EnqueueRequest) { r.Retry = &n }
}

// Submit encodes args as JSON and enqueues funcName on priority.
func (m *Manager) Submit(ctx context.Context, funcName string, priority types.Priority, args any, opts ...SubmitOption) (*types.JobRecord, error) {
	req := EnqueueRequest{FuncName: funcName, Priority: priority}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job arguments: %w", err)
		}
		req.Args = data
	}
	for _, opt := range opts {
		opt(&req)
	}
	return m.Enqueue(ctx, req)
}

func (m *Manager) newRecord(req EnqueueRequest) (*types.JobRecord, error) {
	p, err := types.ParsePriority(string(req.Priority))
	if err != nil {
		return nil, err
	}
	if req.FuncName == "" {
		return nil, fmt.Errorf("%w: function name is empty", jobqueue.ErrUnknownFunction)
	}
	if m.registry != nil {
		if _, ok := m.registry.Lookup(req.FuncName); !ok {
			return nil, fmt.Errorf("%w: %s", jobqueue.ErrUnknownFunction, req.FuncName)
		}
	}
	if len(req.Args) > 0 {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(req.Args, &obj); err != nil {
			return nil, fmt.Errorf("job arguments must be a JSON object: %w", err)
		}
	}
	if req.Timeout < 0 {
		return nil, fmt.Errorf("job timeout must not be negative")
	}

	retries := m.cfg.MaxRetries
	if req.Retry != nil {
		if *req.Retry < 0 {
			return nil, fmt.Errorf("job retries must not be negative")
		}
		retries = *req.Retry
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = m.cfg.TimeoutFor(p)
	}
	id := req.JobID
	if id == "" {
		id = GenerateJobID(req.FuncName)
	}

	now := time.Now().UTC()
	return &types.JobRecord{
		ID:          id,
		FuncName:    req.FuncName,
		Args:        req.Args,
		Priority:    p,
		Timeout:     timeout,
		MaxRetries:  retries,
		RetriesLeft: retries,
		Status:      types.StatusQueued,
		CreatedAt:   now,
		EnqueuedAt:  types.TimePtr(now),
	}, nil
}

// GenerateJobID returns "<func>-<unix nanos>-<8 hex>".
func GenerateJobID(funcName string) string {
	return fmt.Sprintf("%s-%d-%s", funcName, time.Now().UnixNano(), uuid.NewString()[:8])
}

// GetJob reports a missing job through the bool, never as an error.
func (m *Manager) GetJob(ctx context.Context, id string) (*types.JobRecord, bool, error) {
	b, err := m.active()
	if err != nil {
		return nil, false, err
	}
	return b.LoadJob(ctx, id)
}

// GetStatus returns StatusNotFound for unknown ids.
func (m *Manager) GetStatus(ctx context.Context, id string) (types.JobStatus, error) {
	rec, ok, err := m.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return types.StatusNotFound, nil
	}
	return rec.Status, nil
}

// GetResult reports false unless the job finished.
func (m *Manager) GetResult(ctx context.Context, id string) (json.RawMessage, bool, error) {
	rec, ok, err := m.GetJob(ctx, id)
	if err != nil || !ok || rec.Status != types.StatusFinished {
		return nil, false, err
	}
	return rec.Result, true, nil
}

// Cancel succeeds only for queued and deferred jobs. Running jobs are never
// interrupted.
func (m *Manager) Cancel(ctx context.Context, id string) (bool, error) {
	b, err := m.active()
	if err != nil {
		return false, err
	}
	rec, ok, err := b.LoadJob(ctx, id)
	if err != nil || !ok {
		return false, err
	}

	prev := rec.Status
	now := time.Now().UTC()
	rec.Status = types.StatusCanceled
	rec.EndedAt = types.TimePtr(now)
	rec.ScheduledFor = nil

	switch prev {
	case types.StatusQueued:
		removed, err := b.RemovePending(ctx, rec.Priority, id)
		if err != nil || !removed {
			return false, err
		}
		if err := b.SaveJob(ctx, rec, m.cfg.ResultTTL); err != nil {
			return false, err
		}
	case types.StatusDeferred:
		moved, err := b.Transition(ctx, rec, broker.RegistryDeferred, broker.RegistryNone, 0, m.cfg.ResultTTL)
		if err != nil || !moved {
			return false, err
		}
	default:
		return false, nil
	}

	m.logger.Infof("Canceled job %s (was %s)", id, prev)
	return true, nil
}

// RequeueFailed moves every failed job of p back to its pending list and
// returns how many moved.
func (m *Manager) RequeueFailed(ctx context.Context, p types.Priority) (int, error) {
	q, err := m.Queue(p)
	if err != nil {
		return 0, err
	}
	moved, err := q.RequeueFailed(ctx)
	for _, rec := range moved {
		m.observer.JobRequeued(rec)
	}
	if len(moved) > 0 {
		m.logger.Infof("Requeued %d failed jobs on %s", len(moved), p)
	}
	return len(moved), err
}

// RequeueJob moves one failed job back to its pending list.
func (m *Manager) RequeueJob(ctx context.Context, id string) (*types.JobRecord, error) {
	rec, ok, err := m.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobqueue.ErrJobNotFound, id)
	}
	if rec.Status != types.StatusFailed {
		return nil, fmt.Errorf("%w: job %s is %s", jobqueue.ErrInvalidJobState, id, rec.Status)
	}
	q, err := m.Queue(rec.Priority)
	if err != nil {
		return nil, err
	}
	moved, err := q.requeue(ctx, rec, broker.RegistryFailed)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: job %s is no longer in the failed registry", jobqueue.ErrInvalidJobState, id)
	}
	m.observer.JobRequeued(rec)
	return rec, nil
}

// ClearQueue empties the pending list of p. Registries are not touched.
func (m *Manager) ClearQueue(ctx context.Context, p types.Priority) (int, error) {
	q, err := m.Queue(p)
	if err != nil {
		return 0, err
	}
	n, err := q.Clear(ctx)
	if n > 0 {
		m.logger.Warnf("Cleared %d pending jobs from %s", n, p)
	}
	return n, err
}

// ClearAll empties every pending list and returns the total removed.
func (m *Manager) ClearAll(ctx context.Context) (int, error) {
	total := 0
	for _, p := range types.AllPriorities {
		n, err := m.ClearQueue(ctx, p)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
