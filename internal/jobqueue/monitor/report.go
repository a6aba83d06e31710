package monitor

import (
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

const defaultReportHours = 24

// QueueTrend is the change between the first and last sample of a window.
type QueueTrend struct {
	Samples                int       `json:"samples" yaml:"samples"`
	From                   time.Time `json:"from" yaml:"from"`
	To                     time.Time `json:"to" yaml:"to"`
	QueuedDelta            int64     `json:"queued_delta" yaml:"queued_delta"`
	FinishedDelta          int64     `json:"finished_delta" yaml:"finished_delta"`
	FailedDelta            int64     `json:"failed_delta" yaml:"failed_delta"`
	AvgProcessingTimeDelta float64   `json:"avg_processing_time_delta" yaml:"avg_processing_time_delta"`
	SuccessRateDelta       float64   `json:"success_rate_delta" yaml:"success_rate_delta"`
}

type PerformanceSummary struct {
	AvgProcessingTime  float64 `json:"avg_processing_time" yaml:"avg_processing_time"`
	AvgSuccessRate     float64 `json:"avg_success_rate" yaml:"avg_success_rate"`
	TotalJobsProcessed int64   `json:"total_jobs_processed" yaml:"total_jobs_processed"`
}

type Report struct {
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	WindowHours int                   `json:"window_hours" yaml:"window_hours"`
	Since       time.Time             `json:"since" yaml:"since"`
	Summary     HealthSummary         `json:"summary" yaml:"summary"`
	Alerts      []types.QueueAlert    `json:"alerts" yaml:"alerts"`
	Trends      map[string]QueueTrend `json:"trends" yaml:"trends"`
	Performance PerformanceSummary    `json:"performance" yaml:"performance"`
}

// GenerateMonitoringReport summarizes the last hours of history. hours <= 0
// means 24.
func (m *Monitor) GenerateMonitoringReport(hours int) Report {
	if hours <= 0 {
		hours = defaultReportHours
	}
	now := m.now().UTC()
	since := now.Add(-time.Duration(hours) * time.Hour)

	report := Report{
		GeneratedAt: now,
		WindowHours: hours,
		Since:       since,
		Summary:     m.GetSystemHealthSummary(),
		Alerts:      m.alerts.Since(since),
		Trends:      make(map[string]QueueTrend),
	}

	var (
		procSum, rateSum     float64
		procCount, rateCount int
	)
	for _, q := range m.metrics.Queues() {
		samples := m.metrics.Since(q, since)
		if len(samples) == 0 {
			continue
		}
		first, last := samples[0], samples[len(samples)-1]
		report.Trends[q] = QueueTrend{
			Samples:                len(samples),
			From:                   first.SampledAt,
			To:                     last.SampledAt,
			QueuedDelta:            last.Queued - first.Queued,
			FinishedDelta:          last.Finished - first.Finished,
			FailedDelta:            last.Failed - first.Failed,
			AvgProcessingTimeDelta: round2(last.AvgProcessingTime - first.AvgProcessingTime),
			SuccessRateDelta:       round2(last.SuccessRate - first.SuccessRate),
		}
		report.Performance.TotalJobsProcessed += last.Completed()

		for _, s := range samples {
			if s.AvgProcessingTime > 0 {
				procSum += s.AvgProcessingTime
				procCount++
			}
			if s.Completed() > 0 {
				rateSum += s.SuccessRate
				rateCount++
			}
		}
	}
	if procCount > 0 {
		report.Performance.AvgProcessingTime = round2(procSum / float64(procCount))
	}
	if rateCount > 0 {
		report.Performance.AvgSuccessRate = round2(rateSum / float64(rateCount))
	}
	return report
}
