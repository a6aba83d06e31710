package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Builder creates metrics named <namespace>_<subsystem>_<name> and registers
// them on the collector's registry. Registering a name twice panics.
type Builder struct {
	namespace string
	subsystem string
	factory   promauto.Factory
}

func (c *Collector) Subsystem(subsystem string) *Builder {
	return &Builder{
		namespace: c.settings.namespace,
		subsystem: subsystem,
		factory:   promauto.With(c.registry),
	}
}

func (b *Builder) Counter(name, help string) prometheus.Counter {
	return b.factory.NewCounter(prometheus.CounterOpts(b.opts(name, help)))
}

func (b *Builder) CounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return b.factory.NewCounterVec(prometheus.CounterOpts(b.opts(name, help)), labels)
}

func (b *Builder) Gauge(name, help string) prometheus.Gauge {
	return b.factory.NewGauge(prometheus.GaugeOpts(b.opts(name, help)))
}

func (b *Builder) GaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return b.factory.NewGaugeVec(prometheus.GaugeOpts(b.opts(name, help)), labels)
}

// HistogramVec falls back to prometheus.DefBuckets when buckets is nil.
func (b *Builder) HistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	o := b.opts(name, help)
	return b.factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: o.Namespace,
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
		Buckets:   buckets,
	}, labels)
}

func (b *Builder) opts(name, help string) prometheus.Opts {
	return prometheus.Opts{
		Namespace: b.namespace,
		Subsystem: b.subsystem,
		Name:      name,
		Help:      help,
	}
}
