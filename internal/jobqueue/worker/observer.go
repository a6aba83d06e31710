package worker

import (
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

// Observer receives job lifecycle events from a worker.
type Observer interface {
	JobStarted(rec *types.JobRecord)
	JobFinished(rec *types.JobRecord, elapsed time.Duration)
	JobFailed(rec *types.JobRecord, elapsed time.Duration)
	JobRetried(rec *types.JobRecord, delay time.Duration)
}

type nopObserver struct{}

func (nopObserver) JobStarted(*types.JobRecord)                 {}
func (nopObserver) JobFinished(*types.JobRecord, time.Duration) {}
func (nopObserver) JobFailed(*types.JobRecord, time.Duration)   {}
func (nopObserver) JobRetried(*types.JobRecord, time.Duration)  {}
