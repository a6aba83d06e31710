package handlers

import (
	"context"
	"errors"
	"time"
)

// Names of the diagnostic jobs used by the CLI test-job command.
const (
	SleepJob = "sleep"
	EchoJob  = "echo"
	FailJob  = "fail"
)

type SleepArgs struct {
	Seconds float64 `json:"seconds"`
}

type SleepResult struct {
	SleptSeconds float64 `json:"slept_seconds"`
}

type EchoArgs struct {
	Message string `json:"message"`
}

type EchoResult struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type FailArgs struct {
	Message string `json:"message"`
}

// ErrDiagnosticFailure is what the fail job returns.
var ErrDiagnosticFailure = errors.New("diagnostic failure")

// Sleep waits for the requested time or until ctx is done.
func Sleep(ctx context.Context, args SleepArgs) (SleepResult, error) {
	d := time.Duration(args.Seconds * float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return SleepResult{SleptSeconds: args.Seconds}, nil
	case <-ctx.Done():
		return SleepResult{}, ctx.Err()
	}
}

func Echo(_ context.Context, args EchoArgs) (EchoResult, error) {
	return EchoResult{Message: args.Message, At: time.Now().UTC()}, nil
}

func Fail(_ context.Context, args FailArgs) (struct{}, error) {
	if args.Message == "" {
		return struct{}{}, ErrDiagnosticFailure
	}
	return struct{}{}, &DiagnosticError{Message: args.Message}
}

type DiagnosticError struct {
	Message string
}

func (e *DiagnosticError) Error() string {
	return e.Message
}

func (e *DiagnosticError) Unwrap() error {
	return ErrDiagnosticFailure
}

// RegisterBuiltins adds the sleep, echo and fail jobs.
func RegisterBuiltins(r *Registry) error {
	if err := r.Register(SleepJob, Typed(Sleep)); err != nil {
		return err
	}
	if err := r.Register(EchoJob, Typed(Echo)); err != nil {
		return err
	}
	return r.Register(FailJob, Typed(Fail))
}
