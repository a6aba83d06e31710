package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/worker"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

const maintenanceLock = "maintenance"

// MaintenanceReport counts what one sweep changed.
type MaintenanceReport struct {
	Promoted  int  `json:"promoted"`
	Abandoned int  `json:"abandoned"`
	Pruned    int  `json:"pruned"`
	Skipped   bool `json:"skipped"`
}

// RunMaintenance promotes due deferred jobs, fails started jobs whose
// worker outlived timeout+WorkerTTL, and prunes expired finished and failed
// entries. Only one process sweeps at a time; the others report Skipped.
func (m *Manager) RunMaintenance(ctx context.Context) (MaintenanceReport, error) {
	var report MaintenanceReport
	b, err := m.active()
	if err != nil {
		return report, err
	}

	ttl := 2 * m.cfg.MaintenanceInterval
	if ttl < 10*time.Second {
		ttl = 10 * time.Second
	}
	release, ok, err := b.AcquireLock(ctx, maintenanceLock, ttl)
	if err != nil {
		return report, err
	}
	if !ok {
		report.Skipped = true
		return report, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Debugf("Failed to release maintenance lock: %v", err)
		}
	}()

	now := time.Now().UTC()
	for _, p := range types.AllPriorities {
		promoted, err := m.promoteDeferred(ctx, b, p, now)
		report.Promoted += promoted
		if err != nil {
			return report, err
		}
		abandoned, err := m.failAbandoned(ctx, b, p, now)
		report.Abandoned += abandoned
		if err != nil {
			return report, err
		}
		for _, reg := range []broker.Registry{broker.RegistryFinished, broker.RegistryFailed} {
			n, err := b.PruneRegistry(ctx, p, reg, broker.Score(now))
			report.Pruned += int(n)
			if err != nil {
				return report, err
			}
		}
	}

	if report.Promoted > 0 || report.Abandoned > 0 {
		m.logger.Infof("Maintenance promoted %d deferred and failed %d abandoned jobs", report.Promoted, report.Abandoned)
	}
	return report, nil
}

func (m *Manager) promoteDeferred(ctx context.Context, b broker.Broker, p types.Priority, now time.Time) (int, error) {
	ids, err := b.DueIDs(ctx, p, broker.RegistryDeferred, broker.Score(now), 0)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	recs, err := b.LoadJobs(ctx, ids)
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, rec := range recs {
		resetForQueue(rec, now)
		ok, err := b.Requeue(ctx, rec, broker.RegistryDeferred)
		if err != nil {
			return promoted, err
		}
		if ok {
			promoted++
			m.observer.JobRequeued(rec)
		}
	}
	return promoted, nil
}

func (m *Manager) failAbandoned(ctx context.Context, b broker.Broker, p types.Priority, now time.Time) (int, error) {
	ids, err := b.DueIDs(ctx, p, broker.RegistryStarted, broker.Score(now), 0)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	recs, err := b.LoadJobs(ctx, ids)
	if err != nil {
		return 0, err
	}
	abandoned := 0
	for _, rec := range recs {
		jobErr := types.JobError{
			Kind:    types.ErrorKindAbandoned,
			Type:    "WorkerLost",
			Message: fmt.Sprintf("worker %s stopped reporting while running the job", rec.WorkerName),
			Attempt: rec.Attempts,
			At:      now,
		}
		out := worker.ApplyFailure(rec, jobErr, now, m.cfg)
		ok, err := b.Transition(ctx, rec, broker.RegistryStarted, out.Registry, out.Score, out.TTL)
		if err != nil {
			return abandoned, err
		}
		if ok {
			abandoned++
			m.observer.JobFailed(rec, rec.ProcessingTime())
			m.logger.Warnf("Job %s abandoned by worker %s", rec.ID, rec.WorkerName)
		}
	}
	return abandoned, nil
}

// startMaintenance must be called with mu held.
func (m *Manager) startMaintenance() error {
	c := cron.New(
		cron.WithLogger(cronLogger{m.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{m.logger})),
	)
	spec := fmt.Sprintf("@every %s", m.cfg.MaintenanceInterval)
	ctx := m.baseCtx
	if _, err := c.AddFunc(spec, func() {
		if _, err := m.RunMaintenance(ctx); err != nil && ctx.Err() == nil {
			m.logger.Errorf("Maintenance sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	c.Start()
	m.cron = c
	return nil
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
