package monitor

import (
	"fmt"
	"math"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// Thresholds are the limits the health rules compare against.
type Thresholds struct {
	FailureRate    float64
	QueueBackup    int64
	SlowProcessing time.Duration
	StaleJobWindow time.Duration
}

func thresholdsFrom(cfg config.QueueConfig) Thresholds {
	return Thresholds{
		FailureRate:    cfg.FailureRateThreshold,
		QueueBackup:    cfg.QueueBackupThreshold,
		SlowProcessing: cfg.SlowProcessingThreshold,
		StaleJobWindow: cfg.StaleJobWindow,
	}
}

// rule returns an alert without ID or RaisedAt when it trips.
type rule func(m types.QueueMetrics, th Thresholds, now time.Time) (types.QueueAlert, bool)

var healthRules = []rule{
	highFailureRate,
	queueBackup,
	noWorkers,
	slowProcessing,
	staleJobs,
}

func highFailureRate(m types.QueueMetrics, th Thresholds, _ time.Time) (types.QueueAlert, bool) {
	if m.FailureRate <= th.FailureRate {
		return types.QueueAlert{}, false
	}
	return types.QueueAlert{
		Level:     types.AlertWarning,
		Message:   fmt.Sprintf("high failure rate on %s queue: %.1f%%", m.QueueName, m.FailureRate),
		QueueName: m.QueueName,
		Details: map[string]interface{}{
			"failure_rate":  round2(m.FailureRate),
			"threshold":     th.FailureRate,
			"finished_jobs": m.Finished,
			"failed_jobs":   m.Failed,
		},
	}, true
}

func queueBackup(m types.QueueMetrics, th Thresholds, _ time.Time) (types.QueueAlert, bool) {
	if m.Queued <= th.QueueBackup {
		return types.QueueAlert{}, false
	}
	return types.QueueAlert{
		Level:     types.AlertWarning,
		Message:   fmt.Sprintf("queue backup on %s queue: %d jobs waiting", m.QueueName, m.Queued),
		QueueName: m.QueueName,
		Details: map[string]interface{}{
			"queued_jobs": m.Queued,
			"threshold":   th.QueueBackup,
		},
	}, true
}

func noWorkers(m types.QueueMetrics, _ Thresholds, _ time.Time) (types.QueueAlert, bool) {
	if m.ActiveWorkers > 0 || m.IdleWorkers > 0 {
		return types.QueueAlert{}, false
	}
	return types.QueueAlert{
		Level:     types.AlertError,
		Message:   fmt.Sprintf("no workers available for %s queue", m.QueueName),
		QueueName: m.QueueName,
		Details: map[string]interface{}{
			"queued_jobs": m.Queued,
		},
	}, true
}

func slowProcessing(m types.QueueMetrics, th Thresholds, _ time.Time) (types.QueueAlert, bool) {
	if m.AvgProcessingTime <= th.SlowProcessing.Seconds() {
		return types.QueueAlert{}, false
	}
	return types.QueueAlert{
		Level:     types.AlertWarning,
		Message:   fmt.Sprintf("slow processing on %s queue: %.1fs average", m.QueueName, m.AvgProcessingTime),
		QueueName: m.QueueName,
		Details: map[string]interface{}{
			"avg_processing_time": round2(m.AvgProcessingTime),
			"threshold_seconds":   th.SlowProcessing.Seconds(),
		},
	}, true
}

func staleJobs(m types.QueueMetrics, th Thresholds, now time.Time) (types.QueueAlert, bool) {
	if m.Queued == 0 {
		return types.QueueAlert{}, false
	}
	if m.LastJobFinished != nil && now.Sub(*m.LastJobFinished) <= th.StaleJobWindow {
		return types.QueueAlert{}, false
	}
	details := map[string]interface{}{
		"queued_jobs":    m.Queued,
		"window_seconds": th.StaleJobWindow.Seconds(),
	}
	if m.LastJobFinished != nil {
		details["last_job_finished"] = m.LastJobFinished.Format(time.RFC3339)
	}
	return types.QueueAlert{
		Level:     types.AlertWarning,
		Message:   fmt.Sprintf("stale jobs on %s queue: %d queued and none finished in %s", m.QueueName, m.Queued, th.StaleJobWindow),
		QueueName: m.QueueName,
		Details:   details,
	}, true
}

// evaluate runs every rule against m. Rules are independent and may co-fire.
func evaluate(m types.QueueMetrics, th Thresholds, now time.Time) []types.QueueAlert {
	var alerts []types.QueueAlert
	for _, r := range healthRules {
		if a, ok := r(m, th, now); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
