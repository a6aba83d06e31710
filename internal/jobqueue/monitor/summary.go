package monitor

import (
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

const StatusHealthy = "healthy"

var penalties = map[types.AlertLevel]int{
	types.AlertCritical: 20,
	types.AlertError:    10,
	types.AlertWarning:  5,
}

// HealthSummary is derived from the alerts raised within AlertExpiry.
type HealthSummary struct {
	HealthScore      int                           `json:"health_score" yaml:"health_score"`
	Status           string                        `json:"status" yaml:"status"`
	ActiveAlerts     int                           `json:"active_alerts" yaml:"active_alerts"`
	AlertCounts      map[types.AlertLevel]int      `json:"alert_counts" yaml:"alert_counts"`
	Queues           map[string]types.QueueMetrics `json:"queues" yaml:"queues"`
	MonitoringActive bool                          `json:"monitoring_active" yaml:"monitoring_active"`
	GeneratedAt      time.Time                     `json:"generated_at" yaml:"generated_at"`
}

// Critical reports whether the system should be reported as unavailable.
func (s HealthSummary) Critical() bool {
	return s.Status == string(types.AlertCritical)
}

// healthOf scores alerts: 100 minus 20 per critical, 10 per error and 5 per
// warning, floored at 0. Status is the worst of those levels present.
func healthOf(alerts []types.QueueAlert) (score int, status string, counts map[types.AlertLevel]int) {
	counts = map[types.AlertLevel]int{
		types.AlertInfo:     0,
		types.AlertWarning:  0,
		types.AlertError:    0,
		types.AlertCritical: 0,
	}
	score = 100
	worst := types.AlertLevel("")
	for _, a := range alerts {
		counts[a.Level]++
		score -= penalties[a.Level]
		if penalties[a.Level] > 0 && a.Level.Severity() > worst.Severity() {
			worst = a.Level
		}
	}
	if score < 0 {
		score = 0
	}
	status = StatusHealthy
	if worst != "" {
		status = string(worst)
	}
	return score, status, counts
}

// GetSystemHealthSummary scores only alerts younger than AlertExpiry, so a
// queue recovers its score an hour after its last alert by default even though
// the alert is still returned by GetAlerts until AlertRetention.
func (m *Monitor) GetSystemHealthSummary() HealthSummary {
	now := m.now().UTC()
	active := m.alerts.Since(now.Add(-m.cfg.AlertExpiry))
	score, status, counts := healthOf(active)
	return HealthSummary{
		HealthScore:      score,
		Status:           status,
		ActiveAlerts:     len(active),
		AlertCounts:      counts,
		Queues:           m.metrics.LatestAll(),
		MonitoringActive: m.Running(),
		GeneratedAt:      now,
	}
}
