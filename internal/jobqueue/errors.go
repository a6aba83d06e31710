// Package jobqueue holds the error taxonomy shared by the job queue packages.
package jobqueue

import (
	"errors"
	"fmt"
)

var (
	ErrBrokerUnavailable  = errors.New("broker unavailable")
	ErrInvalidQueueName   = errors.New("invalid queue name")
	ErrJobNotFound        = errors.New("job not found")
	ErrJobTimeout         = errors.New("job timed out")
	ErrWorkerStartup      = errors.New("worker failed to start")
	ErrWorkerNotFound     = errors.New("worker not found")
	ErrWorkerExists       = errors.New("worker already exists")
	ErrUnknownFunction    = errors.New("unknown job function")
	ErrAlreadyInitialized = errors.New("queue manager already initialized")
	ErrNotInitialized     = errors.New("queue manager not initialized")
	ErrInvalidJobState    = errors.New("job is not in a state that allows this operation")
)

// JobExecutionError wraps an error returned by a job handler.
type JobExecutionError struct {
	FuncName string
	Type     string
	Message  string
	Err      error
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("job function %s failed: %s: %s", e.FuncName, e.Type, e.Message)
}

func (e *JobExecutionError) Unwrap() error {
	return e.Err
}

// NewJobExecutionError records the dynamic type name of err.
func NewJobExecutionError(funcName string, err error) *JobExecutionError {
	return &JobExecutionError{
		FuncName: funcName,
		Type:     fmt.Sprintf("%T", err),
		Message:  err.Error(),
		Err:      err,
	}
}

// BrokerError wraps err so that errors.Is(err, ErrBrokerUnavailable) holds
// while keeping the underlying cause reachable.
func BrokerError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBrokerUnavailable) {
		return err
	}
	return &brokerError{op: op, err: err}
}

type brokerError struct {
	op  string
	err error
}

func (e *brokerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBrokerUnavailable, e.op, e.err)
}

func (e *brokerError) Is(target error) bool {
	return target == ErrBrokerUnavailable
}

func (e *brokerError) Unwrap() error {
	return e.err
}
