package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/handlers"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

type jobOutcome struct {
	value     any
	err       error
	panicked  bool
	recovered any
	stack     []byte
}

// Executor runs one handler under a hard deadline.
type Executor struct {
	registry *handlers.Registry
}

func NewExecutor(registry *handlers.Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute returns the encoded result, or the error to record. The handler
// context is detached from ctx so a shutting-down worker still lets the
// current job run to completion or timeout. Once the deadline passes the
// executor stops waiting; a handler that ignores its context keeps running
// in the background until it returns.
func (e *Executor) Execute(ctx context.Context, rec *types.JobRecord) (json.RawMessage, *types.JobError) {
	now := time.Now().UTC()
	handler, ok := e.registry.Lookup(rec.FuncName)
	if !ok {
		return nil, &types.JobError{
			Kind:    types.ErrorKindUnknownFunction,
			Type:    "UnknownFunction",
			Message: fmt.Sprintf("%v: %s", jobqueue.ErrUnknownFunction, rec.FuncName),
			Attempt: rec.Attempts,
			At:      now,
		}
	}

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rec.Timeout)
	defer cancel()

	done := make(chan jobOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- jobOutcome{panicked: true, recovered: r, stack: debug.Stack()}
			}
		}()
		v, err := handler(jobCtx, rec.Args)
		done <- jobOutcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return e.settle(jobCtx, rec, out)
	case <-jobCtx.Done():
		return nil, timeoutError(rec)
	}
}

func (e *Executor) settle(jobCtx context.Context, rec *types.JobRecord, out jobOutcome) (json.RawMessage, *types.JobError) {
	now := time.Now().UTC()
	switch {
	case out.panicked:
		return nil, &types.JobError{
			Kind:      types.ErrorKindPanic,
			Type:      fmt.Sprintf("%T", out.recovered),
			Message:   fmt.Sprint(out.recovered),
			Traceback: string(out.stack),
			Attempt:   rec.Attempts,
			At:        now,
		}
	case out.err != nil:
		if errors.Is(out.err, context.DeadlineExceeded) && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(rec)
		}
		execErr := jobqueue.NewJobExecutionError(rec.FuncName, out.err)
		return nil, &types.JobError{
			Kind:    types.ErrorKindException,
			Type:    execErr.Type,
			Message: execErr.Message,
			Attempt: rec.Attempts,
			At:      now,
		}
	}

	data, err := json.Marshal(out.value)
	if err != nil {
		return nil, &types.JobError{
			Kind:    types.ErrorKindException,
			Type:    fmt.Sprintf("%T", err),
			Message: "result is not serializable: " + err.Error(),
			Attempt: rec.Attempts,
			At:      now,
		}
	}
	return data, nil
}

func timeoutError(rec *types.JobRecord) *types.JobError {
	return &types.JobError{
		Kind:    types.ErrorKindTimeout,
		Type:    "JobTimeout",
		Message: fmt.Sprintf("%v after %s", jobqueue.ErrJobTimeout, rec.Timeout),
		Attempt: rec.Attempts,
		At:      time.Now().UTC(),
	}
}
