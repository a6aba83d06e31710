package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ProcessMetrics are refreshed by the collector rather than on every scrape,
// so a slow gopsutil call never stalls /metrics.
type ProcessMetrics struct {
	started time.Time

	UptimeSeconds       prometheus.Gauge
	HeapAllocBytes      prometheus.Gauge
	GoroutinesActive    prometheus.Gauge
	GCPauseSeconds      prometheus.Gauge
	SystemMemoryPercent prometheus.Gauge
	CPUUsagePercent     prometheus.Gauge
}

func newProcessMetrics(b *Builder) *ProcessMetrics {
	return &ProcessMetrics{
		started:             time.Now(),
		UptimeSeconds:       b.Gauge("uptime_seconds", "Seconds since the process started"),
		HeapAllocBytes:      b.Gauge("memory_usage_bytes", "Heap bytes allocated and in use"),
		GoroutinesActive:    b.Gauge("goroutines_active", "Goroutines currently running"),
		GCPauseSeconds:      b.Gauge("gc_duration_seconds", "Cumulative GC pause time"),
		SystemMemoryPercent: b.Gauge("system_memory_used_percent", "Host memory in use"),
		CPUUsagePercent:     b.Gauge("cpu_usage_percent", "Host CPU utilization since the previous refresh"),
	}
}

// Refresh samples the runtime and the host. Host readings that fail keep
// their previous value.
func (p *ProcessMetrics) Refresh() {
	p.UptimeSeconds.Set(time.Since(p.started).Seconds())

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	p.HeapAllocBytes.Set(float64(ms.Alloc))
	p.GCPauseSeconds.Set(time.Duration(ms.PauseTotalNs).Seconds())
	p.GoroutinesActive.Set(float64(runtime.NumGoroutine()))

	if vm, err := mem.VirtualMemory(); err == nil {
		p.SystemMemoryPercent.Set(vm.UsedPercent)
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		p.CPUUsagePercent.Set(pct[0])
	}
}
