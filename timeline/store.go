// Package timeline is the operator-visible decision feed: an append-only
// log of scheduling decisions plus a websocket fan-out, standing in for
// the visualization dashboard's data source without being the dashboard
// itself.
package timeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watlab/autocontrol/task"
)

// DecisionEvent records one scheduling outcome: a dispatch, a block, or a
// collection. Kind is one of DISPATCH, BLOCKED_DEPENDENCY, BLOCKED_ROUTE,
// BLOCKED_INTERFERENCE, COLLECTED.
type DecisionEvent struct {
	TaskID       uuid.UUID `json:"task_id"`
	SampleNumber *int      `json:"sample_number,omitempty"`
	TaskType     task.Type `json:"task_type"`
	Kind         string    `json:"kind"`
	Timestamp    time.Time `json:"timestamp"`
}

// Store is a bounded, append-only ring of decision events, kept for
// operators to replay why a sample is stuck (spec §9's dependency-gate
// starvation question: watch for a run of BLOCKED_DEPENDENCY events with
// no DISPATCH between them).
type Store struct {
	mu     sync.RWMutex
	events []DecisionEvent
	limit  int
}

// NewStore returns a Store retaining at most limit events, oldest dropped
// first. limit <= 0 means unbounded.
func NewStore(limit int) *Store {
	return &Store{
		events: make([]DecisionEvent, 0),
		limit:  limit,
	}
}

// Decision implements scheduler.Recorder.
func (s *Store) Decision(kind string, t *task.Task) {
	if t == nil {
		return
	}
	e := DecisionEvent{
		TaskID:       t.ID,
		SampleNumber: t.SampleNum,
		TaskType:     t.Type,
		Kind:         kind,
		Timestamp:    time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if s.limit > 0 && len(s.events) > s.limit {
		s.events = s.events[len(s.events)-s.limit:]
	}
}

// EventsForTask returns every recorded event for taskID, oldest first.
func (s *Store) EventsForTask(taskID uuid.UUID) []DecisionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []DecisionEvent
	for _, e := range s.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

// All returns a copy of every retained event, oldest first.
func (s *Store) All() []DecisionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DecisionEvent, len(s.events))
	copy(out, s.events)
	return out
}
