// Package manager is the entry point for submitting and inspecting jobs and
// for supervising the workers of a process.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/worker"
	redisClient "github.com/trigg3rX/triggerx-jobqueue/pkg/client/redis"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// Observer receives job events from the manager and its workers.
type Observer interface {
	worker.Observer
	JobEnqueued(rec *types.JobRecord)
	JobRequeued(rec *types.JobRecord)
}

type nopObserver struct{}

func (nopObserver) JobStarted(*types.JobRecord)                 {}
func (nopObserver) JobFinished(*types.JobRecord, time.Duration) {}
func (nopObserver) JobFailed(*types.JobRecord, time.Duration)   {}
func (nopObserver) JobRetried(*types.JobRecord, time.Duration)  {}
func (nopObserver) JobEnqueued(*types.JobRecord)                {}
func (nopObserver) JobRequeued(*types.JobRecord)                {}

type Option func(*Manager)

// WithBroker uses b instead of dialing Redis from the configuration.
func WithBroker(b broker.Broker) Option {
	return func(m *Manager) { m.injected = b }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithoutMaintenance skips the scheduled maintenance sweep. RunMaintenance
// can still be called directly.
func WithoutMaintenance() Option {
	return func(m *Manager) { m.maintenance = false }
}

// WithDialRetry sets the backoff used to connect the broker.
func WithDialRetry(cfg *retry.RetryConfig) Option {
	return func(m *Manager) { m.dialRetry = cfg }
}

// WithRedisHooks installs monitoring hooks on the dialed Redis client.
// Injected brokers are left alone.
func WithRedisHooks(h *redisClient.MonitoringHooks) Option {
	return func(m *Manager) { m.redisHooks = h }
}

type Manager struct {
	cfg         config.QueueConfig
	registry    *handlers.Registry
	observer    Observer
	root        logging.Logger
	logger      logging.Logger
	injected    broker.Broker
	maintenance bool
	dialRetry   *retry.RetryConfig
	redisHooks  *redisClient.MonitoringHooks

	mu          sync.RWMutex
	initialized bool
	broker      broker.Broker
	queues      map[types.Priority]*Queue
	workers     map[string]*workerHandle
	cron        *cron.Cron
	baseCtx     context.Context
	cancelBase  context.CancelFunc
}

// New builds an uninitialized manager. registry may be nil in processes
// that only submit and inspect jobs; function names are then not checked.
func New(cfg config.QueueConfig, registry *handlers.Registry, logger logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	m := &Manager{
		cfg:         cfg,
		registry:    registry,
		observer:    nopObserver{},
		root:        logger,
		logger:      logger.With("component", "queue_manager"),
		maintenance: true,
		dialRetry: &retry.RetryConfig{
			MaxRetries:      3,
			InitialDelay:    500 * time.Millisecond,
			MaxDelay:        2 * time.Second,
			BackoffFactor:   2,
			JitterFactor:    0.1,
			LogRetryAttempt: true,
		},
		workers: make(map[string]*workerHandle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize connects and verifies the broker, builds the queues and starts
// the maintenance schedule. Calling it again is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		m.logger.Warn("Queue manager already initialized")
		return nil
	}

	b := m.injected
	if b == nil {
		dialed, err := broker.Dial(ctx, m.cfg.Redis, m.cfg.KeyPrefix, m.dialRetry, m.root)
		if err != nil {
			return err
		}
		if m.redisHooks != nil {
			dialed.Client().SetMonitoringHooks(m.redisHooks)
		}
		b = dialed
	}
	if err := b.Ping(ctx); err != nil {
		if m.injected == nil {
			_ = b.Close()
		}
		return fmt.Errorf("broker is not reachable: %w", jobqueue.BrokerError("initialize", err))
	}

	m.broker = b
	m.queues = make(map[types.Priority]*Queue, len(types.AllPriorities))
	for _, p := range types.AllPriorities {
		m.queues[p] = newQueue(p, b, m.cfg)
	}
	m.baseCtx, m.cancelBase = context.WithCancel(context.Background())

	if m.maintenance {
		if err := m.startMaintenance(); err != nil {
			m.cancelBase()
			return err
		}
	}

	m.initialized = true
	m.logger.Infof("Queue manager initialized with queues %v", types.AllPriorities)
	return nil
}

// Cleanup stops maintenance and every worker, then closes the broker. It is
// safe to call more than once.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = false
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	stopErr := m.stopAll(ctx)
	m.cancelBase()

	m.mu.Lock()
	b := m.broker
	m.broker = nil
	m.mu.Unlock()

	if err := b.Close(); err != nil {
		m.logger.Warnf("Failed to close broker: %v", err)
	}
	m.logger.Info("Queue manager cleaned up")
	return stopErr
}

func (m *Manager) Config() config.QueueConfig {
	return m.cfg
}

// Broker returns the connected broker, or nil before Initialize.
func (m *Manager) Broker() broker.Broker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.broker
}

// Queue returns the queue for p.
func (m *Manager) Queue(p types.Priority) (*Queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return nil, jobqueue.ErrNotInitialized
	}
	q, ok := m.queues[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", jobqueue.ErrInvalidQueueName, p)
	}
	return q, nil
}

func (m *Manager) active() (broker.Broker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return nil, jobqueue.ErrNotInitialized
	}
	return m.broker, nil
}
