package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/manager"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/monitor"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

var queueFlag = &cli.StringFlag{
	Name:    "queue",
	Aliases: []string{"q"},
	Usage:   "queue name (high, default, low); empty means every queue",
}

func (c *ctl) statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show queue counts, processing rates and health",
		Action: func(cc *cli.Context) error {
			return c.withManager(cc, func(ctx context.Context, mgr *manager.Manager) error {
				stats, err := mgr.GetQueueStats(ctx)
				if err != nil {
					return err
				}
				mon := monitor.New(mgr, mgr.Config(), loggerFor(cc))
				snapshot, err := mon.CollectMetrics(ctx)
				if err != nil {
					return err
				}
				alerts := mon.CheckQueueHealth(ctx)
				printStatus(c.out, stats, snapshot, mon.GetSystemHealthSummary(), alerts)
				return nil
			})
		},
	}
}

func (c *ctl) workersCommand() *cli.Command {
	return &cli.Command{
		Name:  "workers",
		Usage: "List workers with a live heartbeat",
		Action: func(cc *cli.Context) error {
			return c.withManager(cc, func(ctx context.Context, mgr *manager.Manager) error {
				workers, err := mgr.ListWorkers(ctx)
				if err != nil {
					return err
				}
				printWorkers(c.out, workers)
				return nil
			})
		},
	}
}

func (c *ctl) jobCommand() *cli.Command {
	return &cli.Command{
		Name:      "job",
		Usage:     "Show the full record of one job",
		ArgsUsage: "JOB_ID",
		Action: func(cc *cli.Context) error {
			id := cc.Args().First()
			if id == "" {
				return errors.New("job id is required")
			}
			return c.withManager(cc, func(ctx context.Context, mgr *manager.Manager) error {
				rec, ok, err := mgr.GetJob(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", jobqueue.ErrJobNotFound, id)
				}
				return printJSON(c.out, rec)
			})
		},
	}
}

func (c *ctl) testJobCommand() *cli.Command {
	return &cli.Command{
		Name:  "test-job",
		Usage: "Submit a diagnostic job",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "queue", Aliases: []string{"q"}, Value: string(types.PriorityDefault), Usage: "target queue"},
			&cli.Float64Flag{Name: "sleep", Usage: "submit a sleep job of this many seconds"},
			&cli.BoolFlag{Name: "fail", Usage: "submit a job that always fails"},
			&cli.StringFlag{Name: "message", Value: "hello from jobqueuectl", Usage: "message for echo and fail jobs"},
			&cli.DurationFlag{Name: "timeout", Usage: "job timeout, 0 uses the queue default"},
			&cli.IntFlag{Name: "retries", Value: -1, Usage: "retry budget, negative uses the configured default"},
		},
		Action: func(cc *cli.Context) error {
			p, err := types.ParsePriority(cc.String("queue"))
			if err != nil {
				return err
			}
			fn, args := diagnosticJob(cc.Float64("sleep"), cc.Bool("fail"), cc.String("message"))
			var opts []manager.SubmitOption
			if d := cc.Duration("timeout"); d > 0 {
				opts = append(opts, manager.WithTimeout(d))
			}
			if n := cc.Int("retries"); n >= 0 {
				opts = append(opts, manager.WithRetries(n))
			}
			return c.withManager(cc, func(ctx context.Context, mgr *manager.Manager) error {
				rec, err := mgr.Submit(ctx, fn, p, args, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Submitted %s job %s to queue %s\n", rec.FuncName, rec.ID, rec.Priority)
				return nil
			})
		},
	}
}

// diagnosticJob picks the builtin job for the test-job flags. --fail wins
// over --sleep.
func diagnosticJob(sleep float64, fail bool, message string) (string, any) {
	switch {
	case fail:
		return handlers.FailJob, handlers.FailArgs{Message: message}
	case sleep > 0:
		return handlers.SleepJob, handlers.SleepArgs{Seconds: sleep}
	default:
		return handlers.EchoJob, handlers.EchoArgs{Message: message}
	}
}

func (c *ctl) requeueCommand() *cli.Command {
	return &cli.Command{
		Name:      "requeue",
		Usage:     "Move failed jobs back onto their queue, or one job by id",
		ArgsUsage: "[JOB_ID]",
		Flags:     []cli.Flag{queueFlag},
		Action: func(cc *cli.Context) error {
			priorities, err := selectedQueues(cc.String("queue"))
			if err != nil {
				return err
			}
			return c.withManager(cc, func(ctx context.Context, mgr *manager.Manager) error {
				if id := cc.Args().First(); id != "" {
					rec, err := mgr.RequeueJob(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.out, "Requeued job %s to queue %s\n", rec.ID, rec.Priority)
					return nil
				}
				total := 0
				for _, p := range priorities {
					n, err := mgr.RequeueFailed(ctx, p)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.out, "%-8s requeued %d\n", p, n)
					total += n
				}
				fmt.Fprintf(c.out, "Requeued %d failed job(s)\n", total)
				return nil
			})
		},
	}
}

func (c *ctl) clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Drop the pending jobs of a queue",
		Flags: []cli.Flag{
			queueFlag,
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm the deletion"},
		},
		Action: func(cc *cli.Context) error {
			priorities, err := selectedQueues(cc.String("queue"))
			if err != nil {
				return err
			}
			if !cc.Bool("yes") {
				return fmt.Errorf("refusing to clear %s without --yes", describeQueues(cc.String("queue")))
			}
			return c.withManager(cc, func(ctx context.Context, mgr *manager.Manager) error {
				total := 0
				for _, p := range priorities {
					n, err := mgr.ClearQueue(ctx, p)
					if err != nil {
						return err
					}
					total += n
				}
				fmt.Fprintf(c.out, "Cleared %d job(s) from %s\n", total, describeQueues(cc.String("queue")))
				return nil
			})
		},
	}
}

// selectedQueues resolves --queue. Empty selects every queue.
func selectedQueues(name string) ([]types.Priority, error) {
	if name == "" {
		return append([]types.Priority(nil), types.AllPriorities...), nil
	}
	p, err := types.ParsePriority(name)
	if err != nil {
		return nil, err
	}
	return []types.Priority{p}, nil
}

func describeQueues(name string) string {
	if name == "" {
		return "all queues"
	}
	return "queue " + name
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatAge(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return now.Sub(t).Truncate(time.Second).String() + " ago"
}
