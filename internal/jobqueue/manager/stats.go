package manager

import (
	"context"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// GetAllQueuesInfo returns one entry per queue in claim order.
func (m *Manager) GetAllQueuesInfo(ctx context.Context) ([]types.QueueInfo, error) {
	infos := make([]types.QueueInfo, 0, len(types.AllPriorities))
	for _, p := range types.AllPriorities {
		q, err := m.Queue(p)
		if err != nil {
			return nil, err
		}
		info, err := q.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (m *Manager) GetQueueStats(ctx context.Context) (types.QueueStats, error) {
	infos, err := m.GetAllQueuesInfo(ctx)
	if err != nil {
		return types.QueueStats{}, err
	}
	return types.NewQueueStats(infos), nil
}

// RecentJobs returns up to limit records of one registry, most recent first.
func (m *Manager) RecentJobs(ctx context.Context, p types.Priority, reg broker.Registry, limit int) ([]*types.JobRecord, error) {
	q, err := m.Queue(p)
	if err != nil {
		return nil, err
	}
	return q.RegistryJobs(ctx, reg, int64(limit))
}

// PendingJobs returns up to limit pending records of p in claim order.
func (m *Manager) PendingJobs(ctx context.Context, p types.Priority, limit int) ([]*types.JobRecord, error) {
	q, err := m.Queue(p)
	if err != nil {
		return nil, err
	}
	return q.PendingJobs(ctx, int64(limit))
}

// BrokerHealth probes the connected broker. Brokers that do not report
// detailed health are checked with a ping.
func (m *Manager) BrokerHealth(ctx context.Context) (broker.Health, error) {
	b, err := m.active()
	if err != nil {
		return broker.Health{}, err
	}
	if hc, ok := b.(broker.HealthChecker); ok {
		return hc.CheckHealth(ctx), nil
	}
	h := broker.Health{Backend: "unknown", CheckedAt: time.Now().UTC()}
	if err := b.Ping(ctx); err != nil {
		h.Error = err.Error()
		return h, nil
	}
	h.Healthy = true
	return h, nil
}
