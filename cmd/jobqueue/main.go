package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/api"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/manager"
	jqmetrics "github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/metrics"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/monitor"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/notify"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

type service struct {
	logger    logging.Logger
	collector *metrics.Collector
	manager   *manager.Manager
	monitor   *monitor.Monitor
	hub       *notify.Hub
	server    *api.Server
}

func main() {
	if err := config.Init(); err != nil {
		panic(fmt.Sprintf("Failed to initialize config: %v", err))
	}

	logger, err := logging.NewZapLogger(logging.LoggerConfig{
		ProcessName:   logging.JobQueueProcess,
		IsDevelopment: config.IsDevMode(),
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Shutdown() }()

	logger.Info("Starting job queue service...",
		"mode", config.IsDevMode(),
		"host", config.GetAPIHost(),
		"port", config.GetAPIPort(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := setup(ctx, logger)
	if err != nil {
		logger.Errorf("Failed to start job queue service: %v", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := svc.server.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("Received shutdown signal")
		}
		svc.shutdown()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Job queue service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func setup(ctx context.Context, logger logging.Logger) (*service, error) {
	qcfg := config.GetQueueConfig()

	collector := metrics.NewCollector("server", metrics.WithSystemMetricsInterval(config.GetMetricsUpdateInterval()))
	queueMetrics := jqmetrics.New(collector)

	registry := handlers.NewRegistry()
	if err := handlers.RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("failed to register job handlers: %w", err)
	}

	mgr := manager.New(qcfg, registry, logger,
		manager.WithObserver(queueMetrics),
		manager.WithRedisHooks(queueMetrics.RedisHooks()),
	)
	if err := mgr.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize queue manager: %w", err)
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "jobqueue"
	}
	names, err := mgr.StartConfiguredWorkers(ctx, host)
	if err != nil {
		_ = mgr.Cleanup(context.Background())
		return nil, fmt.Errorf("failed to start workers: %w", err)
	}
	logger.Infof("Started %d workers: %v", len(names), names)

	hub := notify.NewHub(logger)
	notifier := notify.Build(notify.Settings{
		MinLevel:       config.GetAlertMinLevel(),
		RatePerMinute:  config.GetAlertRatePerMinute(),
		TelegramToken:  config.GetTelegramBotToken(),
		TelegramChatID: config.GetTelegramChatID(),
		Email: notify.EmailConfig{
			Host:     config.GetEmailHost(),
			Port:     config.GetEmailPort(),
			User:     config.GetEmailUser(),
			Password: config.GetEmailPassword(),
			From:     config.GetEmailFrom(),
			To:       config.GetAlertEmailTo(),
		},
		WebhookURL: config.GetAlertWebhookURL(),
	}, logger)
	logger.Infof("Alert channels: %v", notifier.Channels())

	mon := monitor.New(mgr, qcfg, logger, monitor.WithExporter(queueMetrics))
	mon.AddAlertHandler(notifier)
	mon.AddAlertHandler(hub)
	if err := mon.StartMonitoring(ctx, qcfg.MonitoringInterval); err != nil {
		_ = mgr.Cleanup(context.Background())
		return nil, fmt.Errorf("failed to start monitoring: %w", err)
	}

	collector.Start()

	server := api.NewServer(mgr, mon, logger, api.Options{
		Addr:        net.JoinHostPort(config.GetAPIHost(), config.GetAPIPort()),
		Metrics:     collector.Handler(),
		AlertStream: hub,
		Observer:    queueMetrics,
		DevMode:     config.IsDevMode(),
	})

	return &service{
		logger:    logger,
		collector: collector,
		manager:   mgr,
		monitor:   mon,
		hub:       hub,
		server:    server,
	}, nil
}

// shutdown stops accepting requests first, then monitoring, then the
// workers, which finish their current job.
func (s *service) shutdown() {
	s.logger.Info("Initiating graceful shutdown...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	s.hub.Close()
	s.monitor.StopMonitoring()
	if err := s.manager.Cleanup(ctx); err != nil {
		s.logger.Error("Queue manager cleanup error", "error", err)
	}
	s.collector.Stop()
}
