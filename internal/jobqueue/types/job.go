package types

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	StatusQueued   JobStatus = "queued"
	StatusStarted  JobStatus = "started"
	StatusFinished JobStatus = "finished"
	StatusFailed   JobStatus = "failed"
	StatusDeferred JobStatus = "deferred"
	StatusCanceled JobStatus = "canceled"
	// StatusNotFound is only ever returned by lookups.
	StatusNotFound JobStatus = "not_found"
)

// Terminal reports statuses a worker never leaves on its own.
func (s JobStatus) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusCanceled
}

type ErrorKind string

const (
	ErrorKindTimeout         ErrorKind = "timeout"
	ErrorKindPanic           ErrorKind = "panic"
	ErrorKindException       ErrorKind = "exception"
	ErrorKindUnknownFunction ErrorKind = "unknown_function"
	ErrorKindAbandoned       ErrorKind = "abandoned"
)

// Retryable reports whether the automatic retry policy applies to the kind.
func (k ErrorKind) Retryable() bool {
	return k != ErrorKindUnknownFunction
}

type JobError struct {
	Kind      ErrorKind `json:"kind"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Traceback string    `json:"traceback,omitempty"`
	Attempt   int       `json:"attempt"`
	At        time.Time `json:"at"`
}

// JobRecord is the persisted unit of work.
type JobRecord struct {
	ID          string          `json:"id"`
	FuncName    string          `json:"function"`
	Args        json.RawMessage `json:"args,omitempty"`
	Priority    Priority        `json:"queue"`
	Timeout     time.Duration   `json:"timeout"`
	MaxRetries  int             `json:"max_retries"`
	RetriesLeft int             `json:"retries_left"`
	Attempts    int             `json:"attempts"`
	Status      JobStatus       `json:"status"`

	CreatedAt    time.Time  `json:"created_at"`
	EnqueuedAt   *time.Time `json:"enqueued_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`

	Result         json.RawMessage `json:"result,omitempty"`
	Error          *JobError       `json:"error,omitempty"`
	FailureHistory []JobError      `json:"failure_history,omitempty"`
	WorkerName     string          `json:"worker_name,omitempty"`
}

// ProcessingTime is EndedAt-StartedAt, or zero when either is unset.
func (j *JobRecord) ProcessingTime() time.Duration {
	if j.StartedAt == nil || j.EndedAt == nil {
		return 0
	}
	return j.EndedAt.Sub(*j.StartedAt)
}

// Clone returns a deep copy so callers can mutate without sharing slices.
func (j *JobRecord) Clone() *JobRecord {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Args = cloneRaw(j.Args)
	cp.Result = cloneRaw(j.Result)
	cp.EnqueuedAt = cloneTime(j.EnqueuedAt)
	cp.StartedAt = cloneTime(j.StartedAt)
	cp.EndedAt = cloneTime(j.EndedAt)
	cp.ScheduledFor = cloneTime(j.ScheduledFor)
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.FailureHistory != nil {
		cp.FailureHistory = append([]JobError(nil), j.FailureHistory...)
	}
	return &cp
}

func (j *JobRecord) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

func UnmarshalJobRecord(data []byte) (*JobRecord, error) {
	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// TimePtr returns a pointer to a UTC copy of t.
func TimePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}
