package types

// QueueInfo is the per-queue slice of QueueStats.
type QueueInfo struct {
	Name     string   `json:"name"`
	Priority Priority `json:"priority"`
	Queued   int64    `json:"queued"`
	Started  int64    `json:"started"`
	Finished int64    `json:"finished"`
	Failed   int64    `json:"failed"`
	Deferred int64    `json:"deferred"`
}

func (q QueueInfo) Total() int64 {
	return q.Queued + q.Started + q.Finished + q.Failed + q.Deferred
}

// QueueStats aggregates every queue.
type QueueStats struct {
	TotalJobs    int64                `json:"total_jobs"`
	QueuedJobs   int64                `json:"queued_jobs"`
	StartedJobs  int64                `json:"started_jobs"`
	FinishedJobs int64                `json:"finished_jobs"`
	FailedJobs   int64                `json:"failed_jobs"`
	DeferredJobs int64                `json:"deferred_jobs"`
	Queues       map[string]QueueInfo `json:"queues"`
}

// NewQueueStats sums infos into totals.
func NewQueueStats(infos []QueueInfo) QueueStats {
	stats := QueueStats{Queues: make(map[string]QueueInfo, len(infos))}
	for _, q := range infos {
		stats.Queues[q.Name] = q
		stats.QueuedJobs += q.Queued
		stats.StartedJobs += q.Started
		stats.FinishedJobs += q.Finished
		stats.FailedJobs += q.Failed
		stats.DeferredJobs += q.Deferred
		stats.TotalJobs += q.Total()
	}
	return stats
}
