// Package notify forwards monitor alerts to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

// Channel delivers one alert to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert types.QueueAlert) error
}

// Notifier fans alerts out to its channels. Alerts below the minimum level
// are ignored and alerts over the rate limit are dropped. It implements the
// monitor's AlertHandler.
type Notifier struct {
	mu       sync.RWMutex
	channels []Channel
	minLevel types.AlertLevel
	limiter  *rate.Limiter
	logger   logging.Logger
	dropped  atomic.Int64
}

// New builds a notifier. perMinute <= 0 disables rate limiting.
func New(minLevel types.AlertLevel, perMinute int, logger logging.Logger, channels ...Channel) *Notifier {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &Notifier{
		channels: channels,
		minLevel: minLevel,
		limiter:  limiter,
		logger:   logger.With("component", "notifier"),
	}
}

func (n *Notifier) Add(ch Channel) {
	if ch == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, ch)
}

func (n *Notifier) Channels() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.channels))
	for _, ch := range n.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Dropped is the number of alerts discarded by the rate limit.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// HandleAlert sends a to every channel. One failing channel does not stop
// the others; their errors are joined.
func (n *Notifier) HandleAlert(ctx context.Context, a types.QueueAlert) error {
	if n.minLevel != "" && a.Level.Severity() < n.minLevel.Severity() {
		return nil
	}
	if !n.limiter.Allow() {
		n.dropped.Add(1)
		n.logger.Warnf("Alert notification rate limit reached, dropping %q", a.Message)
		return nil
	}

	n.mu.RLock()
	channels := append([]Channel(nil), n.channels...)
	n.mu.RUnlock()

	var errs []error
	for _, ch := range channels {
		if err := send(ctx, ch, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func send(ctx context.Context, ch Channel, a types.QueueAlert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return ch.Send(ctx, a)
}

// LogChannel writes alerts to a logger.
type LogChannel struct {
	logger logging.Logger
}

func NewLogChannel(logger logging.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, a types.QueueAlert) error {
	kv := []interface{}{"alert_id", a.ID, "level", a.Level, "queue", a.QueueName}
	for k, v := range a.Details {
		kv = append(kv, k, v)
	}
	switch a.Level {
	case types.AlertCritical, types.AlertError:
		c.logger.Error(a.Message, kv...)
	case types.AlertWarning:
		c.logger.Warn(a.Message, kv...)
	default:
		c.logger.Info(a.Message, kv...)
	}
	return nil
}
