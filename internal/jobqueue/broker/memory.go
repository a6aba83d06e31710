package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

type expiring struct {
	data    []byte
	expires time.Time // zero means never
}

func (e expiring) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

// Memory is an in-process Broker for tests and single-binary development.
// Records are stored serialized so callers never share state with it.
type Memory struct {
	mu         sync.Mutex
	jobs       map[string]expiring
	pending    map[types.Priority][]string
	registries map[types.Priority]map[Registry]map[string]float64
	workers    map[string]expiring
	locks      map[string]expiring
	// signal is closed and replaced whenever an id is pushed.
	signal chan struct{}
	closed bool
	now    func() time.Time
}

var (
	_ Broker        = (*Memory)(nil)
	_ HealthChecker = (*Memory)(nil)
)

func NewMemory() *Memory {
	m := &Memory{
		jobs:       make(map[string]expiring),
		pending:    make(map[types.Priority][]string),
		registries: make(map[types.Priority]map[Registry]map[string]float64),
		workers:    make(map[string]expiring),
		locks:      make(map[string]expiring),
		signal:     make(chan struct{}),
		now:        time.Now,
	}
	for _, p := range types.AllPriorities {
		m.registries[p] = make(map[Registry]map[string]float64, len(AllRegistries))
		for _, reg := range AllRegistries {
			m.registries[p][reg] = make(map[string]float64)
		}
	}
	return m
}

// SetClock replaces the time source used for expiry.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return jobqueue.BrokerError("ping", fmt.Errorf("memory broker closed"))
	}
	return nil
}

func (m *Memory) CheckHealth(ctx context.Context) Health {
	start := time.Now()
	err := m.Ping(ctx)
	h := Health{Backend: "memory", Healthy: err == nil, PingMs: millis(time.Since(start)), CheckedAt: m.now().UTC()}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.signal)
	}
	return nil
}

func (m *Memory) SaveJob(_ context.Context, rec *types.JobRecord, ttl time.Duration) error {
	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", rec.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[rec.ID] = m.entry(data, ttl)
	return nil
}

func (m *Memory) LoadJob(_ context.Context, id string) (*types.JobRecord, bool, error) {
	m.mu.Lock()
	e, ok := m.jobs[id]
	now := m.now()
	m.mu.Unlock()
	if !ok || !e.live(now) {
		return nil, false, nil
	}
	rec, err := types.UnmarshalJobRecord(e.data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return rec, true, nil
}

func (m *Memory) LoadJobs(ctx context.Context, ids []string) ([]*types.JobRecord, error) {
	recs := make([]*types.JobRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := m.LoadJob(ctx, id)
		if err != nil {
			continue
		}
		if ok {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (m *Memory) DeleteJobs(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.jobs, id)
	}
	return nil
}

func (m *Memory) Enqueue(_ context.Context, rec *types.JobRecord) error {
	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", rec.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[rec.ID] = m.entry(data, 0)
	for _, p := range types.AllPriorities {
		m.pending[p] = without(m.pending[p], rec.ID)
		for _, reg := range AllRegistries {
			delete(m.registries[p][reg], rec.ID)
		}
	}
	m.push(rec.Priority, rec.ID)
	return nil
}

func (m *Memory) Claim(ctx context.Context, queues []types.Priority, timeout time.Duration) (types.Priority, string, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return "", "", jobqueue.BrokerError("claim", fmt.Errorf("memory broker closed"))
		}
		for _, p := range queues {
			if list := m.pending[p]; len(list) > 0 {
				id := list[0]
				m.pending[p] = list[1:]
				m.mu.Unlock()
				return p, id, nil
			}
		}
		signal := m.signal
		m.mu.Unlock()

		if deadline == nil {
			return "", "", nil
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-deadline:
			return "", "", nil
		case <-signal:
		}
	}
}

func (m *Memory) Transition(_ context.Context, rec *types.JobRecord, from, to Registry, score float64, ttl time.Duration) (bool, error) {
	data, err := rec.Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to marshal job %s: %w", rec.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if from != RegistryNone {
		set := m.registries[rec.Priority][from]
		if _, ok := set[rec.ID]; !ok {
			return false, nil
		}
		delete(set, rec.ID)
	}
	m.jobs[rec.ID] = m.entry(data, ttl)
	if to != RegistryNone {
		m.registries[rec.Priority][to][rec.ID] = score
	}
	return true, nil
}

func (m *Memory) Requeue(_ context.Context, rec *types.JobRecord, from Registry) (bool, error) {
	data, err := rec.Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to marshal job %s: %w", rec.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if from != RegistryNone {
		set := m.registries[rec.Priority][from]
		if _, ok := set[rec.ID]; !ok {
			return false, nil
		}
		delete(set, rec.ID)
	}
	m.jobs[rec.ID] = m.entry(data, 0)
	m.pending[rec.Priority] = without(m.pending[rec.Priority], rec.ID)
	m.push(rec.Priority, rec.ID)
	return true, nil
}

func (m *Memory) RemovePending(_ context.Context, p types.Priority, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.pending[p])
	m.pending[p] = without(m.pending[p], id)
	return len(m.pending[p]) < before, nil
}

func (m *Memory) ClearPending(_ context.Context, p types.Priority) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.pending[p]
	delete(m.pending, p)
	return ids, nil
}

func (m *Memory) PendingCount(_ context.Context, p types.Priority) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pending[p])), nil
}

// PendingIDs follows LRANGE index semantics, including negative indexes.
func (m *Memory) PendingIDs(_ context.Context, p types.Priority, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.pending[p]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return []string{}, nil
	}
	return append([]string(nil), list[start:stop+1]...), nil
}

func (m *Memory) RegistryCount(_ context.Context, p types.Priority, reg Registry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.registries[p][reg])), nil
}

func (m *Memory) RegistryIDs(_ context.Context, p types.Priority, reg Registry, limit int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.sortedIDs(p, reg)
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	if limit > 0 && int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *Memory) DueIDs(_ context.Context, p types.Priority, reg Registry, max float64, limit int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.registries[p][reg]
	var due []string
	for _, id := range m.sortedIDs(p, reg) {
		if set[id] > max {
			break
		}
		due = append(due, id)
		if limit > 0 && int64(len(due)) == limit {
			break
		}
	}
	return due, nil
}

func (m *Memory) PruneRegistry(_ context.Context, p types.Priority, reg Registry, max float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, score := range m.registries[p][reg] {
		if score <= max {
			delete(m.registries[p][reg], id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) SaveWorker(_ context.Context, info types.WorkerInfo, ttl time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal worker %s: %w", info.Name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[info.Name] = m.entry(data, ttl)
	return nil
}

func (m *Memory) RemoveWorker(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workers, name)
	return nil
}

func (m *Memory) ListWorkers(_ context.Context) ([]types.WorkerInfo, error) {
	m.mu.Lock()
	now := m.now()
	entries := make([]expiring, 0, len(m.workers))
	for _, e := range m.workers {
		if e.live(now) {
			entries = append(entries, e)
		}
	}
	m.mu.Unlock()

	workers := make([]types.WorkerInfo, 0, len(entries))
	for _, e := range entries {
		var info types.WorkerInfo
		if err := json.Unmarshal(e.data, &info); err == nil {
			workers = append(workers, info)
		}
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].Name < workers[j].Name })
	return workers, nil
}

func (m *Memory) AcquireLock(_ context.Context, name string, ttl time.Duration) (ReleaseFunc, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.locks[name]; ok && e.live(m.now()) {
		return nil, false, nil
	}
	token := uuid.NewString()
	m.locks[name] = m.entry([]byte(token), ttl)

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if e, ok := m.locks[name]; ok && string(e.data) == token {
			delete(m.locks, name)
			return nil
		}
		return fmt.Errorf("lock %s is not held", name)
	}, true, nil
}

// Registry returns a copy of one registry with scores, for assertions.
func (m *Memory) Registry(p types.Priority, reg Registry) map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.registries[p][reg]))
	for id, score := range m.registries[p][reg] {
		out[id] = score
	}
	return out
}

func (m *Memory) entry(data []byte, ttl time.Duration) expiring {
	e := expiring{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	return e
}

// push must be called with mu held.
func (m *Memory) push(p types.Priority, id string) {
	m.pending[p] = append(m.pending[p], id)
	if !m.closed {
		close(m.signal)
		m.signal = make(chan struct{})
	}
}

// sortedIDs orders a registry by ascending score, then id. mu must be held.
func (m *Memory) sortedIDs(p types.Priority, reg Registry) []string {
	set := m.registries[p][reg]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if set[ids[i]] != set[ids[j]] {
			return set[ids[i]] < set[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

func without(list []string, id string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
