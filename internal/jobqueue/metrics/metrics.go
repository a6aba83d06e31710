// Package metrics publishes job queue activity as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/manager"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/monitor"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	redisClient "github.com/trigg3rX/triggerx-jobqueue/pkg/client/redis"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/metrics"
)

// Metrics implements the manager observer, the monitor exporter and the
// Redis monitoring hooks on one registry.
type Metrics struct {
	JobsEnqueued *prometheus.CounterVec
	JobsStarted  *prometheus.CounterVec
	JobsFinished *prometheus.CounterVec
	JobsFailed   *prometheus.CounterVec
	JobsRetried  *prometheus.CounterVec
	JobsRequeued *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
	RetryDelay   *prometheus.HistogramVec

	QueueJobs          *prometheus.GaugeVec
	QueueSuccessRate   *prometheus.GaugeVec
	QueueAvgProcessing *prometheus.GaugeVec
	Workers            *prometheus.GaugeVec
	HealthScore        prometheus.Gauge
	AlertsRaised       *prometheus.CounterVec

	BrokerOperationDuration *prometheus.HistogramVec
	BrokerRetries           *prometheus.CounterVec
	BrokerConnected         prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	_ manager.Observer = (*Metrics)(nil)
	_ monitor.Exporter = (*Metrics)(nil)
)

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 600, 1800}

func New(collector *metrics.Collector) *Metrics {
	jobs := collector.Subsystem("jobs")
	queues := collector.Subsystem("queue")
	broker := collector.Subsystem("broker")
	api := collector.Subsystem("api")

	return &Metrics{
		JobsEnqueued: jobs.CounterVec("enqueued_total", "Jobs submitted", []string{"queue", "function"}),
		JobsStarted:  jobs.CounterVec("started_total", "Jobs picked up by a worker", []string{"queue", "function"}),
		JobsFinished: jobs.CounterVec("finished_total", "Jobs that returned a result", []string{"queue", "function"}),
		JobsFailed:   jobs.CounterVec("failed_total", "Jobs that failed permanently", []string{"queue", "function", "kind"}),
		JobsRetried:  jobs.CounterVec("retried_total", "Failed attempts scheduled for automatic retry", []string{"queue", "function"}),
		JobsRequeued: jobs.CounterVec("requeued_total", "Jobs moved back to a pending list", []string{"queue"}),
		JobDuration:  jobs.HistogramVec("duration_seconds", "Job execution time", []string{"queue", "function", "status"}, durationBuckets),
		RetryDelay:   jobs.HistogramVec("retry_delay_seconds", "Backoff applied before a retry", []string{"queue"}, []float64{1, 10, 30, 90, 300, 900}),

		QueueJobs:          queues.GaugeVec("jobs", "Jobs per queue and state at the last sample", []string{"queue", "state"}),
		QueueSuccessRate:   queues.GaugeVec("success_rate_percent", "Finished share of completed jobs", []string{"queue"}),
		QueueAvgProcessing: queues.GaugeVec("avg_processing_seconds", "Mean processing time of recent finished jobs", []string{"queue"}),
		Workers:            queues.GaugeVec("workers", "Workers serving the queue by state", []string{"queue", "state"}),
		HealthScore:        queues.Gauge("health_score", "System health score from 0 to 100"),
		AlertsRaised:       queues.CounterVec("alerts_total", "Alerts raised by the monitor", []string{"queue", "level"}),

		BrokerOperationDuration: broker.HistogramVec("operation_duration_seconds", "Redis operation latency", []string{"operation", "status"}, []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}),
		BrokerRetries:           broker.CounterVec("retries_total", "Redis operation retry attempts", []string{"operation"}),
		BrokerConnected:         broker.Gauge("connected", "1 when the last Redis health check succeeded"),

		HTTPRequestsTotal:   api.CounterVec("http_requests_total", "HTTP requests received", []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: api.HistogramVec("http_request_duration_seconds", "HTTP request processing time", []string{"method", "endpoint"}, nil),
	}
}

func (m *Metrics) JobEnqueued(rec *types.JobRecord) {
	m.JobsEnqueued.WithLabelValues(string(rec.Priority), rec.FuncName).Inc()
}

func (m *Metrics) JobRequeued(rec *types.JobRecord) {
	m.JobsRequeued.WithLabelValues(string(rec.Priority)).Inc()
}

func (m *Metrics) JobStarted(rec *types.JobRecord) {
	m.JobsStarted.WithLabelValues(string(rec.Priority), rec.FuncName).Inc()
}

func (m *Metrics) JobFinished(rec *types.JobRecord, elapsed time.Duration) {
	m.JobsFinished.WithLabelValues(string(rec.Priority), rec.FuncName).Inc()
	m.JobDuration.WithLabelValues(string(rec.Priority), rec.FuncName, string(types.StatusFinished)).Observe(elapsed.Seconds())
}

func (m *Metrics) JobFailed(rec *types.JobRecord, elapsed time.Duration) {
	kind := "unknown"
	if rec.Error != nil {
		kind = string(rec.Error.Kind)
	}
	m.JobsFailed.WithLabelValues(string(rec.Priority), rec.FuncName, kind).Inc()
	m.JobDuration.WithLabelValues(string(rec.Priority), rec.FuncName, string(types.StatusFailed)).Observe(elapsed.Seconds())
}

func (m *Metrics) JobRetried(rec *types.JobRecord, delay time.Duration) {
	m.JobsRetried.WithLabelValues(string(rec.Priority), rec.FuncName).Inc()
	m.RetryDelay.WithLabelValues(string(rec.Priority)).Observe(delay.Seconds())
}

func (m *Metrics) ObserveQueueMetrics(qm types.QueueMetrics) {
	q := qm.QueueName
	m.QueueJobs.WithLabelValues(q, string(types.StatusQueued)).Set(float64(qm.Queued))
	m.QueueJobs.WithLabelValues(q, string(types.StatusStarted)).Set(float64(qm.Started))
	m.QueueJobs.WithLabelValues(q, string(types.StatusFinished)).Set(float64(qm.Finished))
	m.QueueJobs.WithLabelValues(q, string(types.StatusFailed)).Set(float64(qm.Failed))
	m.QueueJobs.WithLabelValues(q, string(types.StatusDeferred)).Set(float64(qm.Deferred))
	m.QueueSuccessRate.WithLabelValues(q).Set(qm.SuccessRate)
	m.QueueAvgProcessing.WithLabelValues(q).Set(qm.AvgProcessingTime)
	m.Workers.WithLabelValues(q, string(types.WorkerBusy)).Set(float64(qm.ActiveWorkers))
	m.Workers.WithLabelValues(q, string(types.WorkerIdle)).Set(float64(qm.IdleWorkers))
}

func (m *Metrics) ObserveAlert(a types.QueueAlert) {
	m.AlertsRaised.WithLabelValues(a.QueueName, string(a.Level)).Inc()
}

func (m *Metrics) ObserveHealth(s monitor.HealthSummary) {
	m.HealthScore.Set(float64(s.HealthScore))
}

func (m *Metrics) ObserveHTTP(method, endpoint string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// RedisHooks records broker latency, retries and connectivity.
func (m *Metrics) RedisHooks() *redisClient.MonitoringHooks {
	return &redisClient.MonitoringHooks{
		OnOperationEnd: func(operation, _ string, d time.Duration, err error) {
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.BrokerOperationDuration.WithLabelValues(operation, status).Observe(d.Seconds())
		},
		OnRetryAttempt: func(operation string, _ int, _ error) {
			m.BrokerRetries.WithLabelValues(operation).Inc()
		},
		OnConnectionStatus: func(connected bool, _ time.Duration) {
			if connected {
				m.BrokerConnected.Set(1)
			} else {
				m.BrokerConnected.Set(0)
			}
		},
	}
}
