package scheduler

import (
	"github.com/google/uuid"

	"github.com/watlab/autocontrol/task"
)

// taskByID searches scheduled, active, and history for id. Invariant 4
// (spec §8) guarantees a task id is present in exactly one of the three at
// any moment, so the first hit is authoritative.
func (s *Scheduler) taskByID(id uuid.UUID) (*task.Task, error) {
	for _, st := range []interface {
		GetTaskByID(uuid.UUID) (*task.Task, error)
	}{s.scheduled, s.active, s.history} {
		t, err := st.GetTaskByID(id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}
