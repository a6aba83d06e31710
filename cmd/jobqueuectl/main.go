package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/config"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/manager"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/retry"
)

// queueManagerFactory connects a manager for one command. Tests replace it.
type queueManagerFactory func(ctx context.Context, logger logging.Logger) (*manager.Manager, error)

func connectManager(ctx context.Context, logger logging.Logger) (*manager.Manager, error) {
	if err := config.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	registry := handlers.NewRegistry()
	if err := handlers.RegisterBuiltins(registry); err != nil {
		return nil, err
	}
	mgr := manager.New(config.GetQueueConfig(), registry, logger,
		manager.WithoutMaintenance(),
		manager.WithDialRetry(&retry.RetryConfig{
			MaxRetries:    2,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2,
		}),
	)
	if err := mgr.Initialize(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}

type ctl struct {
	out        io.Writer
	newManager queueManagerFactory
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := &ctl{out: os.Stdout, newManager: connectManager}
	err := c.app().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *ctl) app() *cli.App {
	return &cli.App{
		Name:      "jobqueuectl",
		Usage:     "Inspect and administer the job queue",
		Writer:    c.out,
		ErrWriter: c.out,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log to stdout"},
			&cli.StringFlag{
				Name:    "api",
				Usage:   "base URL of the jobqueue service, for alerts, report and watch",
				EnvVars: []string{"JOBQUEUE_API_URL"},
				Value:   "http://localhost:8080",
			},
		},
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			c.statusCommand(),
			c.workersCommand(),
			c.jobCommand(),
			c.testJobCommand(),
			c.requeueCommand(),
			c.clearCommand(),
			c.alertsCommand(),
			c.reportCommand(),
			c.watchCommand(),
		},
	}
}

func loggerFor(cc *cli.Context) logging.Logger {
	if !cc.Bool("verbose") {
		return logging.NewNoOpLogger()
	}
	logger, err := logging.NewZapLogger(logging.LoggerConfig{
		ProcessName:   logging.CtlProcess,
		IsDevelopment: true,
		DisableFile:   true,
	})
	if err != nil {
		return logging.NewNoOpLogger()
	}
	return logger
}

// withManager connects, runs fn and cleans up.
func (c *ctl) withManager(cc *cli.Context, fn func(ctx context.Context, mgr *manager.Manager) error) error {
	ctx := cc.Context
	mgr, err := c.newManager(ctx, loggerFor(cc))
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Cleanup(context.Background()) }()
	return fn(ctx, mgr)
}
