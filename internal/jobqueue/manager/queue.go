package manager

import (
	"context"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// Queue is one priority's pending list plus its registries.
type Queue struct {
	priority types.Priority
	broker   broker.Broker
	cfg      config.QueueConfig
}

func newQueue(p types.Priority, b broker.Broker, cfg config.QueueConfig) *Queue {
	return &Queue{priority: p, broker: b, cfg: cfg}
}

func (q *Queue) Name() string { return string(q.priority) }

func (q *Queue) Priority() types.Priority { return q.priority }

func (q *Queue) Timeout() time.Duration { return q.cfg.TimeoutFor(q.priority) }

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.broker.PendingCount(ctx, q.priority)
}

// Info counts the pending list and every registry.
func (q *Queue) Info(ctx context.Context) (types.QueueInfo, error) {
	info := types.QueueInfo{Name: q.Name(), Priority: q.priority}
	var err error
	if info.Queued, err = q.broker.PendingCount(ctx, q.priority); err != nil {
		return info, err
	}
	counts := map[broker.Registry]*int64{
		broker.RegistryStarted:  &info.Started,
		broker.RegistryFinished: &info.Finished,
		broker.RegistryFailed:   &info.Failed,
		broker.RegistryDeferred: &info.Deferred,
	}
	for reg, dst := range counts {
		if *dst, err = q.broker.RegistryCount(ctx, q.priority, reg); err != nil {
			return info, err
		}
	}
	return info, nil
}

// PendingJobs returns up to limit pending records in claim order.
func (q *Queue) PendingJobs(ctx context.Context, limit int64) ([]*types.JobRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	ids, err := q.broker.PendingIDs(ctx, q.priority, 0, stop)
	if err != nil {
		return nil, err
	}
	return q.broker.LoadJobs(ctx, ids)
}

// RegistryJobs returns up to limit records of reg, most recent first.
func (q *Queue) RegistryJobs(ctx context.Context, reg broker.Registry, limit int64) ([]*types.JobRecord, error) {
	ids, err := q.broker.RegistryIDs(ctx, q.priority, reg, limit)
	if err != nil {
		return nil, err
	}
	return q.broker.LoadJobs(ctx, ids)
}

// Clear empties the pending list and deletes the removed records.
func (q *Queue) Clear(ctx context.Context) (int, error) {
	ids, err := q.broker.ClearPending(ctx, q.priority)
	if err != nil {
		return 0, err
	}
	if err := q.broker.DeleteJobs(ctx, ids...); err != nil {
		return len(ids), err
	}
	return len(ids), nil
}

// RequeueFailed moves every failed job back to the pending list without
// touching its retry credit.
func (q *Queue) RequeueFailed(ctx context.Context) ([]*types.JobRecord, error) {
	recs, err := q.RegistryJobs(ctx, broker.RegistryFailed, 0)
	if err != nil {
		return nil, err
	}
	moved := make([]*types.JobRecord, 0, len(recs))
	for _, rec := range recs {
		ok, err := q.requeue(ctx, rec, broker.RegistryFailed)
		if err != nil {
			return moved, err
		}
		if ok {
			moved = append(moved, rec)
		}
	}
	return moved, nil
}

func (q *Queue) requeue(ctx context.Context, rec *types.JobRecord, from broker.Registry) (bool, error) {
	resetForQueue(rec, time.Now())
	return q.broker.Requeue(ctx, rec, from)
}

// resetForQueue clears the outcome of the previous run.
func resetForQueue(rec *types.JobRecord, now time.Time) {
	rec.Status = types.StatusQueued
	rec.EnqueuedAt = types.TimePtr(now)
	rec.StartedAt = nil
	rec.EndedAt = nil
	rec.ScheduledFor = nil
	rec.Result = nil
	rec.Error = nil
	rec.WorkerName = ""
}
