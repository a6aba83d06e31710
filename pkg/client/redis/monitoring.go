package redis

import "time"

// MonitoringHooks observe every command, retry and recovery of the client.
// The broker feeds them into Prometheus.
type MonitoringHooks struct {
	OnOperationStart   func(operation string, key string)
	OnOperationEnd     func(operation string, key string, duration time.Duration, err error)
	OnConnectionStatus func(connected bool, latency time.Duration)
	OnRecoveryStart    func(reason string)
	OnRecoveryEnd      func(success bool, attempts int, duration time.Duration)
	OnRetryAttempt     func(operation string, attempt int, err error)
}

// OperationMetrics are cumulative counters for one command name.
type OperationMetrics struct {
	TotalCalls     int64
	TotalDuration  time.Duration
	ErrorCount     int64
	LastError      error
	LastErrorTime  time.Time
	SuccessCount   int64
	RetryCount     int64
	AverageLatency time.Duration
}

// SetMonitoringHooks installs callbacks; nil fields are skipped.
func (c *Client) SetMonitoringHooks(hooks *MonitoringHooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.monitoringHooks = hooks
}

// notify calls fn with the installed hooks, outside of any client lock.
func (c *Client) notify(fn func(h *MonitoringHooks)) {
	c.mu.Lock()
	h := c.monitoringHooks
	c.mu.Unlock()
	if h != nil {
		fn(h)
	}
}

// record applies update to the counters of operation.
func (c *Client) record(operation string, update func(m *OperationMetrics)) {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	if c.operationMetrics == nil {
		c.operationMetrics = make(map[string]*OperationMetrics)
	}
	m, ok := c.operationMetrics[operation]
	if !ok {
		m = &OperationMetrics{}
		c.operationMetrics[operation] = m
	}
	update(m)
}

func (c *Client) trackOperationStart(operation, key string) {
	c.notify(func(h *MonitoringHooks) {
		if h.OnOperationStart != nil {
			h.OnOperationStart(operation, key)
		}
	})
}

func (c *Client) trackOperationEnd(operation, key string, duration time.Duration, err error) {
	c.record(operation, func(m *OperationMetrics) {
		m.TotalCalls++
		m.TotalDuration += duration
		m.AverageLatency = m.TotalDuration / time.Duration(m.TotalCalls)
		if err == nil {
			m.SuccessCount++
			return
		}
		m.ErrorCount++
		m.LastError, m.LastErrorTime = err, time.Now()
	})
	c.notify(func(h *MonitoringHooks) {
		if h.OnOperationEnd != nil {
			h.OnOperationEnd(operation, key, duration, err)
		}
	})
}

func (c *Client) trackRetryAttempt(operation string, attempt int, err error) {
	c.record(operation, func(m *OperationMetrics) { m.RetryCount++ })
	c.notify(func(h *MonitoringHooks) {
		if h.OnRetryAttempt != nil {
			h.OnRetryAttempt(operation, attempt, err)
		}
	})
}

func (c *Client) trackConnectionStatus(connected bool, latency time.Duration) {
	c.notify(func(h *MonitoringHooks) {
		if h.OnConnectionStatus != nil {
			h.OnConnectionStatus(connected, latency)
		}
	})
}

func (c *Client) trackRecoveryStart(reason string) {
	c.notify(func(h *MonitoringHooks) {
		if h.OnRecoveryStart != nil {
			h.OnRecoveryStart(reason)
		}
	})
}

func (c *Client) trackRecoveryEnd(success bool, attempts int, duration time.Duration) {
	c.notify(func(h *MonitoringHooks) {
		if h.OnRecoveryEnd != nil {
			h.OnRecoveryEnd(success, attempts, duration)
		}
	})
}

// GetOperationMetrics returns a copy of the per-operation counters.
func (c *Client) GetOperationMetrics() map[string]*OperationMetrics {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()

	result := make(map[string]*OperationMetrics, len(c.operationMetrics))
	for op, m := range c.operationMetrics {
		cp := *m
		result[op] = &cp
	}
	return result
}

// ResetOperationMetrics drops every counter.
func (c *Client) ResetOperationMetrics() {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	c.operationMetrics = make(map[string]*OperationMetrics)
}
