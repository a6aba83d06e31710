package config

import (
	"fmt"
	"os"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the optional YAML overlay. Unset fields keep the
// environment value.
type fileConfig struct {
	Redis *struct {
		URL      string `yaml:"url"`
		Password string `yaml:"password"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	KeyPrefix string `yaml:"key_prefix"`
	Queues    map[string]struct {
		Timeout           string `yaml:"timeout"`
		MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
		Workers           *int   `yaml:"workers"`
	} `yaml:"queues"`
	MaxRetries          *int     `yaml:"max_retries"`
	RetryDelays         []string `yaml:"retry_delays"`
	ResultTTL           string   `yaml:"result_ttl"`
	FailureTTL          string   `yaml:"failure_ttl"`
	WorkerTTL           string   `yaml:"worker_ttl"`
	MonitoringInterval  string   `yaml:"monitoring_interval"`
	BurstTimeout        string   `yaml:"burst_timeout"`
	MaintenanceInterval string   `yaml:"maintenance_interval"`
	WorkersAll          *int     `yaml:"workers_all"`
	Monitoring          *struct {
		FailureRateThreshold    *float64 `yaml:"failure_rate_threshold"`
		QueueBackupThreshold    *int64   `yaml:"queue_backup_threshold"`
		SlowProcessingThreshold string   `yaml:"slow_processing_threshold"`
		StaleJobWindow          string   `yaml:"stale_job_window"`
		ProcessingSampleSize    int      `yaml:"processing_sample_size"`
		HistoryRetention        string   `yaml:"history_retention"`
		AlertRetention          string   `yaml:"alert_retention"`
		AlertExpiry             string   `yaml:"alert_expiry"`
	} `yaml:"monitoring"`
}

func applyFile(q *QueueConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read queue config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse queue config file %s: %w", path, err)
	}
	return fc.apply(q)
}

func (fc fileConfig) apply(q *QueueConfig) error {
	if fc.Redis != nil {
		setString(&q.Redis.URL, fc.Redis.URL)
		setString(&q.Redis.Password, fc.Redis.Password)
		if fc.Redis.PoolSize > 0 {
			q.Redis.ConnectionSettings.PoolSize = fc.Redis.PoolSize
		}
	}
	setString(&q.KeyPrefix, fc.KeyPrefix)

	for name, qc := range fc.Queues {
		p, err := types.ParsePriority(name)
		if err != nil {
			return fmt.Errorf("queues: %w", err)
		}
		pc := q.Priorities[p]
		if err := setDuration(&pc.Timeout, "queues."+name+".timeout", qc.Timeout); err != nil {
			return err
		}
		if qc.MaxConcurrentJobs > 0 {
			pc.MaxConcurrentJobs = qc.MaxConcurrentJobs
		}
		q.Priorities[p] = pc
		if qc.Workers != nil {
			switch p {
			case types.PriorityHigh:
				q.WorkersHigh = *qc.Workers
			case types.PriorityDefault:
				q.WorkersDefault = *qc.Workers
			case types.PriorityLow:
				q.WorkersLow = *qc.Workers
			}
		}
	}

	if fc.MaxRetries != nil {
		q.MaxRetries = *fc.MaxRetries
	}
	if len(fc.RetryDelays) > 0 {
		delays := make([]time.Duration, 0, len(fc.RetryDelays))
		for _, s := range fc.RetryDelays {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("retry_delays: %w", err)
			}
			delays = append(delays, d)
		}
		q.RetryDelays = delays
	}
	if fc.WorkersAll != nil {
		q.WorkersAll = *fc.WorkersAll
	}

	durations := []struct {
		dst  *time.Duration
		name string
		val  string
	}{
		{&q.ResultTTL, "result_ttl", fc.ResultTTL},
		{&q.FailureTTL, "failure_ttl", fc.FailureTTL},
		{&q.WorkerTTL, "worker_ttl", fc.WorkerTTL},
		{&q.MonitoringInterval, "monitoring_interval", fc.MonitoringInterval},
		{&q.BurstTimeout, "burst_timeout", fc.BurstTimeout},
		{&q.MaintenanceInterval, "maintenance_interval", fc.MaintenanceInterval},
	}

	if m := fc.Monitoring; m != nil {
		if m.FailureRateThreshold != nil {
			q.FailureRateThreshold = *m.FailureRateThreshold
		}
		if m.QueueBackupThreshold != nil {
			q.QueueBackupThreshold = *m.QueueBackupThreshold
		}
		if m.ProcessingSampleSize > 0 {
			q.ProcessingSampleSize = m.ProcessingSampleSize
		}
		durations = append(durations, []struct {
			dst  *time.Duration
			name string
			val  string
		}{
			{&q.SlowProcessingThreshold, "monitoring.slow_processing_threshold", m.SlowProcessingThreshold},
			{&q.StaleJobWindow, "monitoring.stale_job_window", m.StaleJobWindow},
			{&q.HistoryRetention, "monitoring.history_retention", m.HistoryRetention},
			{&q.AlertRetention, "monitoring.alert_retention", m.AlertRetention},
			{&q.AlertExpiry, "monitoring.alert_expiry", m.AlertExpiry},
		}...)
	}

	for _, d := range durations {
		if err := setDuration(d.dst, d.name, d.val); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
