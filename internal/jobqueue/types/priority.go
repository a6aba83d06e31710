package types

import (
	"fmt"
	"strings"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
)

// Priority names a queue. Workers claim from higher priorities first.
type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
	PriorityLow     Priority = "low"
)

// AllPriorities lists queues in claim order.
var AllPriorities = []Priority{PriorityHigh, PriorityDefault, PriorityLow}

func (p Priority) String() string {
	return string(p)
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityDefault, PriorityLow:
		return true
	}
	return false
}

// Rank is 0 for the most urgent queue.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityDefault:
		return 1
	case PriorityLow:
		return 2
	}
	return len(AllPriorities)
}

// ParsePriority accepts queue names case-insensitively; an empty name means default.
func ParsePriority(name string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		return PriorityDefault, nil
	}
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q (expected high, default or low)", jobqueue.ErrInvalidQueueName, name)
	}
	return p, nil
}

// SortByRank orders priorities HIGH > DEFAULT > LOW and drops duplicates and unknown names.
func SortByRank(ps []Priority) []Priority {
	seen := make(map[Priority]bool, len(ps))
	for _, p := range ps {
		if p.Valid() {
			seen[p] = true
		}
	}
	out := make([]Priority, 0, len(seen))
	for _, p := range AllPriorities {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}
