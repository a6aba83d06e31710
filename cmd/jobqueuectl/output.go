package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/monitor"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/notify"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printStatus(w io.Writer, stats types.QueueStats, snapshot []types.QueueMetrics, summary monitor.HealthSummary, alerts []types.QueueAlert) {
	tw := newTable(w)
	fmt.Fprintln(tw, "QUEUE\tQUEUED\tSTARTED\tFINISHED\tFAILED\tDEFERRED\tSUCCESS\tAVG TIME\tWORKERS")
	for _, qm := range snapshot {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.1f%%\t%.2fs\t%d busy / %d idle\n",
			qm.QueueName, qm.Queued, qm.Started, qm.Finished, qm.Failed, qm.Deferred,
			qm.SuccessRate, qm.AvgProcessingTime, qm.ActiveWorkers, qm.IdleWorkers)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t%d\t%d\t\t\t\n",
		stats.QueuedJobs, stats.StartedJobs, stats.FinishedJobs, stats.FailedJobs, stats.DeferredJobs)
	_ = tw.Flush()

	fmt.Fprintf(w, "\nHealth: %d/100 (%s)\n", summary.HealthScore, summary.Status)
	for _, a := range alerts {
		fmt.Fprintf(w, "  [%s] %s\n", strings.ToUpper(string(a.Level)), a.Message)
	}
}

func printWorkers(w io.Writer, workers []types.WorkerInfo) {
	if len(workers) == 0 {
		fmt.Fprintln(w, "No live workers")
		return
	}
	now := time.Now()
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tQUEUES\tSTATE\tCURRENT JOB\tFINISHED\tFAILED\tHOST\tHEARTBEAT")
	for _, wi := range workers {
		queues := make([]string, len(wi.Priorities))
		for i, p := range wi.Priorities {
			queues[i] = string(p)
		}
		current := wi.CurrentJobID
		if current == "" {
			current = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			wi.Name, strings.Join(queues, ","), wi.State, current,
			wi.JobsFinished, wi.JobsFailed, wi.Hostname, formatAge(now, wi.LastHeartbeat))
	}
	_ = tw.Flush()
}

func printAlerts(w io.Writer, alerts []types.QueueAlert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "No alerts")
		return
	}
	for _, a := range alerts {
		fmt.Fprintln(w, notify.FormatText(a))
		fmt.Fprintln(w)
	}
}
