// Package metrics gives each process its own Prometheus registry, a builder
// for namespaced metrics and a refresh loop for host and runtime gauges.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "jobqueue"

type settings struct {
	namespace       string
	processMetrics  bool
	refreshInterval time.Duration
}

type Option func(*settings)

func WithNamespace(namespace string) Option {
	return func(s *settings) { s.namespace = namespace }
}

// WithCommonMetrics toggles the uptime, memory, CPU and goroutine gauges.
func WithCommonMetrics(enable bool) Option {
	return func(s *settings) { s.processMetrics = enable }
}

// WithSystemMetricsInterval sets how often the process gauges refresh. Zero
// refreshes only once, on Start.
func WithSystemMetricsInterval(interval time.Duration) Option {
	return func(s *settings) { s.refreshInterval = interval }
}

// Collector owns the registry every metric of one process is registered on.
type Collector struct {
	service  string
	settings settings
	registry *prometheus.Registry
	process  *ProcessMetrics
	handler  http.Handler

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      sync.WaitGroup
}

func NewCollector(service string, opts ...Option) *Collector {
	s := settings{
		namespace:       DefaultNamespace,
		processMetrics:  true,
		refreshInterval: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(&s)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c := &Collector{
		service:  service,
		settings: s,
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		stop:     make(chan struct{}),
	}
	if s.processMetrics {
		c.process = newProcessMetrics(c.Subsystem(service))
	}
	return c
}

// Start samples the process gauges and keeps refreshing them until Stop.
func (c *Collector) Start() {
	if c.process == nil {
		return
	}
	c.startOnce.Do(func() {
		c.process.Refresh()
		if c.settings.refreshInterval <= 0 {
			return
		}
		c.done.Add(1)
		go c.refreshLoop(c.settings.refreshInterval)
	})
}

func (c *Collector) refreshLoop(interval time.Duration) {
	defer c.done.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.process.Refresh()
		}
	}
}

// Stop ends the refresh loop. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.done.Wait()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler { return c.handler }

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Namespace() string { return c.settings.namespace }

// Common returns the process gauges, or nil when they are disabled.
func (c *Collector) Common() *ProcessMetrics { return c.process }
