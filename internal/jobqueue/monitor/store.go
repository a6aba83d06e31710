package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// MetricsStore keeps an append-only, time-bounded history of snapshots per
// queue. It is safe for concurrent use.
type MetricsStore struct {
	mu      sync.RWMutex
	history map[string][]types.QueueMetrics
}

func NewMetricsStore() *MetricsStore {
	return &MetricsStore{history: make(map[string][]types.QueueMetrics)}
}

// Add appends m to the history of m.QueueName. Snapshots are expected in
// sampling order.
func (s *MetricsStore) Add(m types.QueueMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[m.QueueName] = append(s.history[m.QueueName], m)
}

func (s *MetricsStore) Latest(queue string) (types.QueueMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[queue]
	if len(h) == 0 {
		return types.QueueMetrics{}, false
	}
	return h[len(h)-1], true
}

// LatestAll returns the most recent snapshot of every queue with history.
func (s *MetricsStore) LatestAll() map[string]types.QueueMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.QueueMetrics, len(s.history))
	for q, h := range s.history {
		if len(h) > 0 {
			out[q] = h[len(h)-1]
		}
	}
	return out
}

// Since returns the snapshots of queue sampled at or after t, oldest first.
func (s *MetricsStore) Since(queue string, t time.Time) []types.QueueMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[queue]
	i := sort.Search(len(h), func(i int) bool { return !h[i].SampledAt.Before(t) })
	out := make([]types.QueueMetrics, len(h)-i)
	copy(out, h[i:])
	return out
}

func (s *MetricsStore) Queues() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.history))
	for q := range s.history {
		names = append(names, q)
	}
	sort.Strings(names)
	return names
}

// Prune drops snapshots sampled before t and returns how many went.
func (s *MetricsStore) Prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for q, h := range s.history {
		i := sort.Search(len(h), func(i int) bool { return !h[i].SampledAt.Before(before) })
		if i == 0 {
			continue
		}
		removed += i
		s.history[q] = append([]types.QueueMetrics(nil), h[i:]...)
	}
	return removed
}

func (s *MetricsStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, h := range s.history {
		n += len(h)
	}
	return n
}

// AlertFilter selects alerts. Zero fields match everything.
type AlertFilter struct {
	Since time.Time
	// Level matches exactly; MinLevel matches that level and above.
	Level    types.AlertLevel
	MinLevel types.AlertLevel
	Queue    string
}

func (f AlertFilter) match(a types.QueueAlert) bool {
	if !f.Since.IsZero() && a.RaisedAt.Before(f.Since) {
		return false
	}
	if f.Level != "" && a.Level != f.Level {
		return false
	}
	if f.MinLevel != "" && a.Level.Severity() < f.MinLevel.Severity() {
		return false
	}
	if f.Queue != "" && a.QueueName != f.Queue {
		return false
	}
	return true
}

// AlertStore keeps raised alerts in raise order. It is safe for concurrent
// use.
type AlertStore struct {
	mu     sync.RWMutex
	alerts []types.QueueAlert
}

func NewAlertStore() *AlertStore {
	return &AlertStore{}
}

func (s *AlertStore) Add(a types.QueueAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
}

// Since returns alerts raised at or after t, oldest first.
func (s *AlertStore) Since(t time.Time) []types.QueueAlert {
	return s.Filter(AlertFilter{Since: t})
}

func (s *AlertStore) Filter(f AlertFilter) []types.QueueAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.QueueAlert, 0)
	for _, a := range s.alerts {
		if f.match(a) {
			out = append(out, a)
		}
	}
	return out
}

// Latest returns up to n of the most recent alerts, newest first.
func (s *AlertStore) Latest(n int) []types.QueueAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.alerts) {
		n = len(s.alerts)
	}
	out := make([]types.QueueAlert, 0, n)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.alerts[i])
	}
	return out
}

// Prune drops alerts raised before t and returns how many went.
func (s *AlertStore) Prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if !a.RaisedAt.Before(before) {
			kept = append(kept, a)
		}
	}
	removed := len(s.alerts) - len(kept)
	for i := len(kept); i < len(s.alerts); i++ {
		s.alerts[i] = types.QueueAlert{}
	}
	s.alerts = kept
	return removed
}

func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
