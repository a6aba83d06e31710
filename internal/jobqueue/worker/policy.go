package worker

import (
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// Outcome is where a failed attempt goes next.
type Outcome struct {
	Registry broker.Registry
	Score    float64
	TTL      time.Duration
	Retried  bool
	Delay    time.Duration
}

// ApplyFailure records jobErr on rec and decides between a deferred retry
// and the failed registry. Retryable kinds consume one retry credit and wait
// for the backoff delay of the attempt; the error goes to FailureHistory and
// rec.Error stays empty until the final failure.
func ApplyFailure(rec *types.JobRecord, jobErr types.JobError, now time.Time, cfg config.QueueConfig) Outcome {
	now = now.UTC()
	rec.EndedAt = types.TimePtr(now)
	rec.Result = nil

	if jobErr.Kind.Retryable() && rec.RetriesLeft > 0 {
		rec.RetriesLeft--
		attempt := rec.Attempts
		if attempt < 1 {
			attempt = 1
		}
		delay := cfg.RetryDelay(attempt)
		runAt := now.Add(delay)

		rec.FailureHistory = append(rec.FailureHistory, jobErr)
		rec.Error = nil
		rec.Status = types.StatusDeferred
		rec.ScheduledFor = types.TimePtr(runAt)
		return Outcome{
			Registry: broker.RegistryDeferred,
			Score:    broker.Score(runAt),
			Retried:  true,
			Delay:    delay,
		}
	}

	e := jobErr
	rec.Error = &e
	rec.Status = types.StatusFailed
	rec.ScheduledFor = nil
	return Outcome{
		Registry: broker.RegistryFailed,
		Score:    broker.Score(now.Add(cfg.FailureTTL)),
		TTL:      cfg.FailureTTL,
	}
}

// FinishedScore is the registry score of a job that finished at endedAt.
func FinishedScore(endedAt time.Time, cfg config.QueueConfig) float64 {
	return broker.Score(endedAt.Add(cfg.ResultTTL))
}

// StartedScore is the abandonment deadline of a job started at startedAt.
func StartedScore(startedAt time.Time, timeout time.Duration, cfg config.QueueConfig) float64 {
	return broker.Score(startedAt.Add(timeout + cfg.WorkerTTL))
}
