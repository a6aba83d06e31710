package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// Subject is a one-line summary used as the e-mail subject.
func Subject(a types.QueueAlert) string {
	return fmt.Sprintf("[%s] jobqueue: %s", strings.ToUpper(string(a.Level)), a.Message)
}

// FormatText renders an alert for chat channels.
func FormatText(a types.QueueAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", levelMark(a.Level), strings.ToUpper(string(a.Level)))
	b.WriteString(a.Message)
	b.WriteByte('\n')
	if a.QueueName != "" {
		fmt.Fprintf(&b, "Queue: %s\n", a.QueueName)
	}
	if a.JobID != "" {
		fmt.Fprintf(&b, "Job: %s\n", a.JobID)
	}
	if a.WorkerName != "" {
		fmt.Fprintf(&b, "Worker: %s\n", a.WorkerName)
	}
	for _, k := range detailKeys(a) {
		fmt.Fprintf(&b, "%s: %v\n", k, a.Details[k])
	}
	fmt.Fprintf(&b, "Raised: %s", a.RaisedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// FormatHTML renders an alert as an e-mail body.
func FormatHTML(a types.QueueAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h3>%s</h3>", html.EscapeString(Subject(a)))
	b.WriteString("<table>")
	row := func(k string, v interface{}) {
		fmt.Fprintf(&b, "<tr><td><b>%s</b></td><td>%s</td></tr>", html.EscapeString(k), html.EscapeString(fmt.Sprint(v)))
	}
	row("Level", a.Level)
	if a.QueueName != "" {
		row("Queue", a.QueueName)
	}
	if a.JobID != "" {
		row("Job", a.JobID)
	}
	if a.WorkerName != "" {
		row("Worker", a.WorkerName)
	}
	for _, k := range detailKeys(a) {
		row(k, a.Details[k])
	}
	row("Raised", a.RaisedAt.UTC().Format(time.RFC3339))
	b.WriteString("</table>")
	return b.String()
}

func detailKeys(a types.QueueAlert) []string {
	keys := make([]string, 0, len(a.Details))
	for k := range a.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func levelMark(l types.AlertLevel) string {
	switch l {
	case types.AlertCritical:
		return "🚨"
	case types.AlertError:
		return "❌"
	case types.AlertWarning:
		return "⚠️"
	}
	return "ℹ️"
}
