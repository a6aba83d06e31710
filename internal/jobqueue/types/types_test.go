package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input    string
		expected Priority
		wantErr  bool
	}{
		{"high", PriorityHigh, false},
		{"HIGH", PriorityHigh, false},
		{" low ", PriorityLow, false},
		{"", PriorityDefault, false},
		{"urgent", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePriority(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, jobqueue.ErrInvalidQueueName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestSortByRank(t *testing.T) {
	got := SortByRank([]Priority{PriorityLow, "bogus", PriorityHigh, PriorityLow})
	assert.Equal(t, []Priority{PriorityHigh, PriorityLow}, got)
	assert.Empty(t, SortByRank(nil))
}

func TestJobRecord_CloneIsDeep(t *testing.T) {
	now := time.Now()
	rec := &JobRecord{
		ID:             "j1",
		Args:           json.RawMessage(`{"a":1}`),
		StartedAt:      TimePtr(now),
		Error:          &JobError{Kind: ErrorKindTimeout},
		FailureHistory: []JobError{{Kind: ErrorKindPanic}},
	}

	cp := rec.Clone()
	cp.Args[2] = 'b'
	*cp.StartedAt = now.Add(time.Hour)
	cp.Error.Kind = ErrorKindException
	cp.FailureHistory[0].Kind = ErrorKindException

	assert.Equal(t, `{"a":1}`, string(rec.Args))
	assert.True(t, rec.StartedAt.Equal(now))
	assert.Equal(t, ErrorKindTimeout, rec.Error.Kind)
	assert.Equal(t, ErrorKindPanic, rec.FailureHistory[0].Kind)
	assert.Nil(t, (*JobRecord)(nil).Clone())
}

func TestJobRecord_ProcessingTime(t *testing.T) {
	start := time.Now()
	rec := &JobRecord{StartedAt: TimePtr(start)}
	assert.Zero(t, rec.ProcessingTime())

	rec.EndedAt = TimePtr(start.Add(1500 * time.Millisecond))
	assert.Equal(t, 1500*time.Millisecond, rec.ProcessingTime())
}

func TestJobRecord_JSONShape(t *testing.T) {
	rec := &JobRecord{ID: "j1", FuncName: "echo", Priority: PriorityLow, Status: StatusQueued}
	data, err := rec.Marshal()
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "echo", fields["function"])
	assert.Equal(t, "low", fields["queue"])
	assert.NotContains(t, fields, "result")
	assert.NotContains(t, fields, "error")

	back, err := UnmarshalJobRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, back.ID)
}

func TestAlertLevel_Severity(t *testing.T) {
	assert.Less(t, AlertInfo.Severity(), AlertWarning.Severity())
	assert.Less(t, AlertWarning.Severity(), AlertError.Severity())
	assert.Less(t, AlertError.Severity(), AlertCritical.Severity())

	_, ok := ParseAlertLevel("warning")
	assert.True(t, ok)
	_, ok = ParseAlertLevel("loud")
	assert.False(t, ok)
}

func TestNewQueueStats(t *testing.T) {
	stats := NewQueueStats([]QueueInfo{
		{Name: "high", Queued: 1, Finished: 2},
		{Name: "default", Queued: 1, Failed: 1},
		{Name: "low", Queued: 1, Deferred: 3, Started: 1},
	})

	assert.Equal(t, int64(3), stats.QueuedJobs)
	assert.Equal(t, int64(10), stats.TotalJobs)
	assert.Equal(t, int64(3), stats.DeferredJobs)
	assert.Len(t, stats.Queues, 3)
}

func TestWorkerInfo(t *testing.T) {
	now := time.Now()
	w := WorkerInfo{Priorities: []Priority{PriorityHigh}, LastHeartbeat: now.Add(-time.Minute)}

	assert.True(t, w.Serves(PriorityHigh))
	assert.False(t, w.Serves(PriorityLow))
	assert.True(t, w.Fresh(now, 2*time.Minute))
	assert.False(t, w.Fresh(now, 30*time.Second))
}
