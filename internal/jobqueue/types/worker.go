package types

import "time"

type WorkerState string

const (
	WorkerIdle    WorkerState = "idle"
	WorkerBusy    WorkerState = "busy"
	WorkerStopped WorkerState = "stopped"
)

// WorkerInfo is the heartbeat record a worker publishes to the broker.
type WorkerInfo struct {
	Name          string      `json:"name"`
	Priorities    []Priority  `json:"queues"`
	State         WorkerState `json:"state"`
	CurrentJobID  string      `json:"current_job_id,omitempty"`
	Hostname      string      `json:"hostname,omitempty"`
	PID           int         `json:"pid,omitempty"`
	StartedAt     time.Time   `json:"started_at"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	JobsFinished  int64       `json:"jobs_finished"`
	JobsFailed    int64       `json:"jobs_failed"`
}

// Serves reports whether the worker claims from p.
func (w WorkerInfo) Serves(p Priority) bool {
	for _, q := range w.Priorities {
		if q == p {
			return true
		}
	}
	return false
}

// Fresh reports whether the last heartbeat is within ttl of now.
func (w WorkerInfo) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(w.LastHeartbeat) <= ttl
}
