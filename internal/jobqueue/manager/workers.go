package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/worker"
)

type workerHandle struct {
	worker  *worker.Worker
	started bool
	err     error
}

// CreateWorker registers a worker without starting it. No priorities means
// every queue.
func (m *Manager) CreateWorker(name string, priorities ...types.Priority) (*worker.Worker, error) {
	b, err := m.active()
	if err != nil {
		return nil, err
	}
	if m.registry == nil {
		return nil, fmt.Errorf("%w: no handler registry configured", jobqueue.ErrWorkerStartup)
	}
	if len(priorities) == 0 {
		priorities = types.AllPriorities
	}
	if name == "" {
		name = worker.GenerateName()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[name]; exists {
		return nil, fmt.Errorf("%w: %s", jobqueue.ErrWorkerExists, name)
	}
	w, err := worker.New(name, priorities, b, m.registry, m.cfg, m.root, worker.WithObserver(m.observer))
	if err != nil {
		return nil, err
	}
	m.workers[name] = &workerHandle{worker: w}
	return w, nil
}

// StartWorker runs a created worker in the background until it is stopped
// or the manager is cleaned up.
func (m *Manager) StartWorker(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return jobqueue.ErrNotInitialized
	}
	h, ok := m.workers[name]
	if !ok {
		return fmt.Errorf("%w: %s", jobqueue.ErrWorkerNotFound, name)
	}
	if h.started {
		m.logger.Warnf("Worker %s already started", name)
		return nil
	}
	h.started = true

	ctx := m.baseCtx
	go func() {
		if err := h.worker.Work(ctx); err != nil {
			m.logger.Errorf("Worker %s exited: %v", name, err)
			m.mu.Lock()
			h.err = err
			m.mu.Unlock()
		}
	}()
	return nil
}

// StopWorker asks the worker to finish its current job and waits for it to
// exit, or for ctx to end.
func (m *Manager) StopWorker(ctx context.Context, name string) error {
	m.mu.Lock()
	h, ok := m.workers[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", jobqueue.ErrWorkerNotFound, name)
	}
	if err := m.stopHandle(ctx, h); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.workers, name)
	m.mu.Unlock()
	return nil
}

func (m *Manager) StopAllWorkers(ctx context.Context) error {
	return m.stopAll(ctx)
}

func (m *Manager) stopAll(ctx context.Context) error {
	m.mu.Lock()
	handles := make(map[string]*workerHandle, len(m.workers))
	for name, h := range m.workers {
		handles[name] = h
	}
	m.mu.Unlock()

	for _, h := range handles {
		h.worker.Stop()
	}
	var errs []error
	for name, h := range handles {
		if err := m.stopHandle(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("worker %s: %w", name, err))
			continue
		}
		m.mu.Lock()
		delete(m.workers, name)
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (m *Manager) stopHandle(ctx context.Context, h *workerHandle) error {
	h.worker.Stop()
	m.mu.RLock()
	started := h.started
	m.mu.RUnlock()
	if !started {
		return nil
	}
	select {
	case <-h.worker.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Workers returns the state of this process's workers sorted by name.
func (m *Manager) Workers() []types.WorkerInfo {
	m.mu.RLock()
	infos := make([]types.WorkerInfo, 0, len(m.workers))
	for _, h := range m.workers {
		infos = append(infos, h.worker.Info())
	}
	m.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ListWorkers returns every worker with a live heartbeat, in any process.
func (m *Manager) ListWorkers(ctx context.Context) ([]types.WorkerInfo, error) {
	b, err := m.active()
	if err != nil {
		return nil, err
	}
	return b.ListWorkers(ctx)
}

// StartConfiguredWorkers creates and starts the per-queue and all-queue
// workers named by the configuration, with names prefixed by prefix.
func (m *Manager) StartConfiguredWorkers(ctx context.Context, prefix string) ([]string, error) {
	type plan struct {
		label      string
		priorities []types.Priority
		count      int
	}
	plans := make([]plan, 0, len(types.AllPriorities)+1)
	for _, p := range types.AllPriorities {
		plans = append(plans, plan{label: string(p), priorities: []types.Priority{p}, count: m.cfg.WorkersFor(p)})
	}
	plans = append(plans, plan{label: "all", priorities: types.AllPriorities, count: m.cfg.WorkersAll})

	var names []string
	for _, pl := range plans {
		for i := 1; i <= pl.count; i++ {
			name := fmt.Sprintf("%s-%s-%d", prefix, pl.label, i)
			if _, err := m.CreateWorker(name, pl.priorities...); err != nil {
				return names, err
			}
			if err := m.StartWorker(ctx, name); err != nil {
				return names, err
			}
			names = append(names, name)
		}
	}
	m.logger.Infof("Started %d workers", len(names))
	return names, nil
}
