package types

import "time"

// QueueMetrics is a point-in-time snapshot of one queue.
type QueueMetrics struct {
	QueueName         string     `json:"queue_name" yaml:"queue_name"`
	Queued            int64      `json:"queued_jobs" yaml:"queued_jobs"`
	Started           int64      `json:"started_jobs" yaml:"started_jobs"`
	Finished          int64      `json:"finished_jobs" yaml:"finished_jobs"`
	Failed            int64      `json:"failed_jobs" yaml:"failed_jobs"`
	Deferred          int64      `json:"deferred_jobs" yaml:"deferred_jobs"`
	AvgProcessingTime float64    `json:"avg_processing_time" yaml:"avg_processing_time"` // seconds
	SuccessRate       float64    `json:"success_rate" yaml:"success_rate"`               // percent
	FailureRate       float64    `json:"failure_rate" yaml:"failure_rate"`               // percent
	ActiveWorkers     int        `json:"active_workers" yaml:"active_workers"`
	IdleWorkers       int        `json:"idle_workers" yaml:"idle_workers"`
	LastJobFinished   *time.Time `json:"last_job_finished,omitempty" yaml:"last_job_finished,omitempty"`
	LastJobFailed     *time.Time `json:"last_job_failed,omitempty" yaml:"last_job_failed,omitempty"`
	SampledAt         time.Time  `json:"sampled_at" yaml:"sampled_at"`
}

// Completed is finished + failed.
func (m QueueMetrics) Completed() int64 {
	return m.Finished + m.Failed
}

type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertError    AlertLevel = "error"
	AlertCritical AlertLevel = "critical"
)

// Severity orders levels; unknown levels rank below info.
func (l AlertLevel) Severity() int {
	switch l {
	case AlertInfo:
		return 1
	case AlertWarning:
		return 2
	case AlertError:
		return 3
	case AlertCritical:
		return 4
	}
	return 0
}

func ParseAlertLevel(s string) (AlertLevel, bool) {
	l := AlertLevel(s)
	return l, l.Severity() > 0
}

type QueueAlert struct {
	ID         string                 `json:"id" yaml:"id"`
	Level      AlertLevel             `json:"level" yaml:"level"`
	Message    string                 `json:"message" yaml:"message"`
	QueueName  string                 `json:"queue_name,omitempty" yaml:"queue_name,omitempty"`
	JobID      string                 `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	WorkerName string                 `json:"worker_name,omitempty" yaml:"worker_name,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	RaisedAt   time.Time              `json:"raised_at" yaml:"raised_at"`
}
