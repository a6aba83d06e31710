// Package broker stores job records, pending lists and state registries.
//
// Every queue owns one FIFO pending list and four registries (started,
// finished, failed, deferred). Registries are scored sets: started entries
// are scored by their abandonment deadline, finished and failed entries by
// their expiry and deferred entries by the time they become due. Moves
// between registries are guarded by removal from the source, so two
// callers racing on the same job cannot both win.
package broker

import (
	"context"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

type Registry string

const (
	// RegistryNone marks a transition without a source or destination set.
	RegistryNone     Registry = ""
	RegistryStarted  Registry = "started"
	RegistryFinished Registry = "finished"
	RegistryFailed   Registry = "failed"
	RegistryDeferred Registry = "deferred"
)

var AllRegistries = []Registry{RegistryStarted, RegistryFinished, RegistryFailed, RegistryDeferred}

// ReleaseFunc gives up a lock obtained from AcquireLock.
type ReleaseFunc func(ctx context.Context) error

type Broker interface {
	Ping(ctx context.Context) error
	Close() error

	// Job records. A ttl of zero keeps the record until it is overwritten
	// with an expiry or deleted.
	SaveJob(ctx context.Context, rec *types.JobRecord, ttl time.Duration) error
	LoadJob(ctx context.Context, id string) (*types.JobRecord, bool, error)
	// LoadJobs skips ids whose record no longer exists.
	LoadJobs(ctx context.Context, ids []string) ([]*types.JobRecord, error)
	DeleteJobs(ctx context.Context, ids ...string) error

	// Enqueue stores rec without expiry, drops the id from every pending
	// list and registry and appends it to the pending list of rec.Priority.
	Enqueue(ctx context.Context, rec *types.JobRecord) error
	// Claim pops the first id available from queues, checked in the given
	// order, waiting up to timeout. A timeout <= 0 does not block. It
	// returns an empty id when nothing was available.
	Claim(ctx context.Context, queues []types.Priority, timeout time.Duration) (types.Priority, string, error)
	// Transition stores rec with ttl and moves its id from one registry of
	// rec.Priority to another. It reports false, changing nothing, when
	// from is set and the id was not in it.
	Transition(ctx context.Context, rec *types.JobRecord, from, to Registry, score float64, ttl time.Duration) (bool, error)
	// Requeue is Transition into the pending list.
	Requeue(ctx context.Context, rec *types.JobRecord, from Registry) (bool, error)
	RemovePending(ctx context.Context, p types.Priority, id string) (bool, error)
	// ClearPending empties the pending list and returns the removed ids.
	ClearPending(ctx context.Context, p types.Priority) ([]string, error)

	PendingCount(ctx context.Context, p types.Priority) (int64, error)
	PendingIDs(ctx context.Context, p types.Priority, start, stop int64) ([]string, error)
	RegistryCount(ctx context.Context, p types.Priority, reg Registry) (int64, error)
	// RegistryIDs returns up to limit ids with the highest score first;
	// limit <= 0 returns all of them.
	RegistryIDs(ctx context.Context, p types.Priority, reg Registry, limit int64) ([]string, error)
	// DueIDs returns up to limit ids scored at or below max, lowest first.
	DueIDs(ctx context.Context, p types.Priority, reg Registry, max float64, limit int64) ([]string, error)
	PruneRegistry(ctx context.Context, p types.Priority, reg Registry, max float64) (int64, error)

	SaveWorker(ctx context.Context, info types.WorkerInfo, ttl time.Duration) error
	RemoveWorker(ctx context.Context, name string) error
	ListWorkers(ctx context.Context) ([]types.WorkerInfo, error)

	// AcquireLock reports false without an error when another holder owns name.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, bool, error)
}

// Score converts t to the float representation used by registries.
func Score(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// ScoreTime is the inverse of Score.
func ScoreTime(score float64) time.Time {
	return time.Unix(0, int64(score*float64(time.Second))).UTC()
}

// Health describes the broker connection at one point in time.
type Health struct {
	Backend     string                    `json:"backend"`
	Healthy     bool                      `json:"healthy"`
	PingMs      float64                   `json:"ping_ms"`
	RoundTripMs float64                   `json:"round_trip_ms,omitempty"`
	Recovering  bool                      `json:"recovering,omitempty"`
	TotalConns  uint32                    `json:"total_conns,omitempty"`
	IdleConns   uint32                    `json:"idle_conns,omitempty"`
	Operations  map[string]OperationStats `json:"operations,omitempty"`
	Error       string                    `json:"error,omitempty"`
	CheckedAt   time.Time                 `json:"checked_at"`
}

type OperationStats struct {
	Calls        int64   `json:"calls"`
	Errors       int64   `json:"errors"`
	Retries      int64   `json:"retries"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// HealthChecker is implemented by brokers that can report more than a ping.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
