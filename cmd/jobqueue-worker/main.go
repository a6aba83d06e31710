package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/manager"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "jobqueue-worker",
		Usage: "Run a standalone job queue worker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "worker name (default WORKER_NAME or <host>-<random>)",
			},
			&cli.StringSliceFlag{
				Name:  "queue",
				Usage: "queue to serve, repeatable (default WORKER_QUEUES or all queues)",
			},
			&cli.BoolFlag{
				Name:  "burst",
				Usage: "drain the queues and exit instead of running until stopped",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	logger, err := logging.NewZapLogger(logging.LoggerConfig{
		ProcessName:   logging.WorkerProcess,
		IsDevelopment: config.IsDevMode(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Shutdown() }()

	name := c.String("name")
	if name == "" {
		name = config.GetWorkerName()
	}
	queues, err := queuesFrom(c.StringSlice("queue"))
	if err != nil {
		return err
	}
	burst := c.Bool("burst")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := handlers.NewRegistry()
	if err := handlers.RegisterBuiltins(registry); err != nil {
		return err
	}
	var opts []manager.Option
	if burst {
		opts = append(opts, manager.WithoutMaintenance())
	}
	mgr := manager.New(config.GetQueueConfig(), registry, logger, opts...)
	if err := mgr.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize queue manager: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mgr.Cleanup(cleanupCtx); err != nil {
			logger.Error("Queue manager cleanup error", "error", err)
		}
	}()

	w, err := mgr.CreateWorker(name, queues...)
	if err != nil {
		return err
	}
	logger.Info("Worker ready", "name", w.Name(), "queues", w.Priorities(), "burst", burst)

	if burst {
		if err := w.WorkBurst(ctx); err != nil {
			return fmt.Errorf("burst run failed: %w", err)
		}
		info := w.Info()
		logger.Infof("Burst finished: %d jobs finished, %d failed", info.JobsFinished, info.JobsFailed)
		return nil
	}

	if err := mgr.StartWorker(ctx, w.Name()); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case <-w.Done():
		logger.Warn("Worker stopped")
	}
	return nil
}

// queuesFrom prefers explicit flags over WORKER_QUEUES. Nil means every queue.
func queuesFrom(names []string) ([]types.Priority, error) {
	if len(names) == 0 {
		return config.GetWorkerQueues(), nil
	}
	ps := make([]types.Priority, 0, len(names))
	for _, n := range names {
		p, err := types.ParsePriority(n)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return types.SortByRank(ps), nil
}
