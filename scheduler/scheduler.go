package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watlab/autocontrol/store"
	"github.com/watlab/autocontrol/task"
)

// ErrNotFound is returned when a task id does not exist in any store.
var ErrNotFound = errors.New("scheduler: task not found")

// Scheduler owns the three task stores, the device registry, and the
// channel-occupancy table; it implements admission, pre-checks, dispatch,
// completion polling, and lifecycle transitions. Grounded on
// original_source/autocontrol/atc.py's autocontrol class.
type Scheduler struct {
	cfg Config

	// schedMu is the scheduler-wide mutex guarding the device registry,
	// channel-occupancy table, and sample-id map (spec §5).
	schedMu  sync.Mutex
	devices  map[string]*registryEntry
	occ      *occupancyTable
	sampleID map[uuid.UUID]int

	pauseMu sync.Mutex
	paused  bool

	scheduled store.TaskStore
	active    store.TaskStore
	history   store.TaskStore

	recorder Recorder
}

// New constructs a Scheduler over the three stores, rebuilding the
// sample-id↔number map from their union (spec §3: "the mapping is rebuilt
// on start-up from the union of scheduled, active, and history stores").
// The device registry always starts empty; devices must re-init after a
// process restart, matching the original's behavior.
func New(scheduled, active, history store.TaskStore, cfg Config, recorder Recorder) (*Scheduler, error) {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	s := &Scheduler{
		cfg:       cfg,
		devices:   make(map[string]*registryEntry),
		occ:       newOccupancyTable(),
		sampleID:  make(map[uuid.UUID]int),
		scheduled: scheduled,
		active:    active,
		history:   history,
		recorder:  recorder,
	}

	for _, st := range []store.TaskStore{scheduled, active, history} {
		all, err := st.GetAll()
		if err != nil {
			return nil, err
		}
		for _, t := range all {
			if t.SampleNum != nil {
				s.sampleID[t.SampleID] = *t.SampleNum
			}
		}
	}
	return s, nil
}

func maxSampleNumber(m map[uuid.UUID]int) int {
	max := 0
	for _, n := range m {
		if n > max {
			max = n
		}
	}
	return max
}

func findSampleID(m map[uuid.UUID]int, number int) (uuid.UUID, bool) {
	for sid, n := range m {
		if n == number {
			return sid, true
		}
	}
	return uuid.Nil, false
}

// QueuePut resolves sample_id/sample_number per spec §4.1, computes
// priority if unset, and enqueues into the scheduled store.
func (s *Scheduler) QueuePut(t *task.Task) (bool, uuid.UUID, int, string, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	s.schedMu.Lock()
	if t.SampleNum == nil && t.SampleID == uuid.Nil {
		one := 1
		t.SampleNum = &one
	}

	switch {
	case t.SampleNum != nil && t.SampleID != uuid.Nil:
		_, sidKnown := s.sampleID[t.SampleID]
		_, numKnown := findSampleID(s.sampleID, *t.SampleNum)
		switch {
		case !sidKnown && !numKnown:
			// both new, accept as-is
		case sidKnown:
			if s.sampleID[t.SampleID] != *t.SampleNum {
				s.schedMu.Unlock()
				return false, uuid.Nil, 0, "task not submitted: sample number and id do not match previous submission", nil
			}
		default:
			s.schedMu.Unlock()
			return false, uuid.Nil, 0, "task not submitted: sample number and id do not match previous submission", nil
		}

	case t.SampleID != uuid.Nil:
		if len(s.sampleID) == 0 {
			one := 1
			t.SampleNum = &one
		} else if n, ok := s.sampleID[t.SampleID]; ok {
			t.SampleNum = &n
		} else {
			n := maxSampleNumber(s.sampleID) + 1
			t.SampleNum = &n
		}

	default:
		// sample_number only (or defaulted to 1 above), no sample_id.
		if sid, ok := findSampleID(s.sampleID, *t.SampleNum); ok {
			t.SampleID = sid
		} else {
			t.SampleID = uuid.New()
		}
	}

	s.sampleID[t.SampleID] = *t.SampleNum
	s.schedMu.Unlock()

	if t.Priority == nil {
		p := computePriority(*t.SampleNum, time.Now())
		t.Priority = &p
	}

	if err := s.scheduled.Put(t); err != nil {
		return false, uuid.Nil, 0, "", err
	}
	return true, t.ID, *t.SampleNum, "task successfully enqueued", nil
}

// QueueCancel removes a task from scheduled (and, if includeActive, from
// active). If dropMaterial, the channel-occupancy slot referencing the
// cancelled task is cleared.
func (s *Scheduler) QueueCancel(taskID uuid.UUID, includeActive, dropMaterial bool) (*task.Task, error) {
	t, err := s.scheduled.GetTaskByID(taskID)
	if err != nil {
		return nil, err
	}
	if t != nil {
		if err := s.scheduled.Remove(taskID); err != nil {
			return nil, err
		}
	} else if includeActive {
		t, err = s.active.GetTaskByID(taskID)
		if err != nil {
			return nil, err
		}
		if t != nil {
			if err := s.active.Remove(taskID); err != nil {
				return nil, err
			}
		}
	}
	if t == nil {
		return nil, nil
	}
	if dropMaterial {
		s.schedMu.Lock()
		s.occ.clearTask(taskID)
		s.schedMu.Unlock()
	}
	return t, nil
}

// Resubmit cancels the existing task (wherever it lives) and re-enqueues
// replacement under the same task id, preserving the original's priority
// (spec S5).
func (s *Scheduler) Resubmit(taskID uuid.UUID, replacement *task.Task) (bool, uuid.UUID, int, string, error) {
	old, err := s.scheduled.GetTaskByID(taskID)
	if err != nil {
		return false, uuid.Nil, 0, "", err
	}
	if old != nil {
		if err := s.scheduled.Remove(taskID); err != nil {
			return false, uuid.Nil, 0, "", err
		}
	} else {
		old, err = s.active.GetTaskByID(taskID)
		if err != nil {
			return false, uuid.Nil, 0, "", err
		}
		if old != nil {
			if err := s.active.Remove(taskID); err != nil {
				return false, uuid.Nil, 0, "", err
			}
		}
	}
	if old == nil {
		return false, uuid.Nil, 0, "task not found", nil
	}

	replacement.ID = taskID
	replacement.Priority = old.Priority
	if replacement.SampleNum == nil {
		replacement.SampleNum = old.SampleNum
	}
	if replacement.SampleID == uuid.Nil {
		replacement.SampleID = old.SampleID
	}
	return s.QueuePut(replacement)
}

// QueueInspect returns a snapshot of the scheduled store.
func (s *Scheduler) QueueInspect() ([]*task.Task, error) {
	return s.scheduled.GetAll()
}

// QueueDepths reports the current size of each store, for metrics export.
func (s *Scheduler) QueueDepths() (scheduled, active, history int, err error) {
	sc, err := s.scheduled.GetAll()
	if err != nil {
		return 0, 0, 0, err
	}
	ac, err := s.active.GetAll()
	if err != nil {
		return 0, 0, 0, err
	}
	hi, err := s.history.GetAll()
	if err != nil {
		return 0, 0, 0, err
	}
	return len(sc), len(ac), len(hi), nil
}

// Reset clears the scheduled and active stores and zeroes the
// channel-occupancy table and sample-id map. History is preserved.
func (s *Scheduler) Reset() error {
	if err := s.scheduled.Clear(); err != nil {
		return err
	}
	if err := s.active.Clear(); err != nil {
		return err
	}
	s.schedMu.Lock()
	s.occ.reset()
	s.sampleID = make(map[uuid.UUID]int)
	s.schedMu.Unlock()
	return nil
}

// Restart performs Reset plus clears the device registry.
func (s *Scheduler) Restart() error {
	if err := s.Reset(); err != nil {
		return err
	}
	s.schedMu.Lock()
	s.devices = make(map[string]*registryEntry)
	s.occ.restart()
	s.schedMu.Unlock()
	return nil
}

// Pause/Resume gate dispatch only; completion polling continues.
func (s *Scheduler) Pause() {
	s.pauseMu.Lock()
	s.paused = true
	s.pauseMu.Unlock()
}

func (s *Scheduler) Resume() {
	s.pauseMu.Lock()
	s.paused = false
	s.pauseMu.Unlock()
}

func (s *Scheduler) IsPaused() bool {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	return s.paused
}

// StatusReport answers the producer-facing "status" query (spec §6).
type StatusReport struct {
	Queue                     string
	SubmissionResponse        string
	SubtasksSubmissionResponse []string
}

// GetStatus locates a task by id in scheduled, active, or history (in that
// order) and reports which queue holds it.
func (s *Scheduler) GetStatus(taskID uuid.UUID) (*StatusReport, error) {
	queues := []struct {
		name string
		st   store.TaskStore
	}{
		{"scheduled", s.scheduled},
		{"active", s.active},
		{"history", s.history},
	}
	for _, q := range queues {
		name, st := q.name, q.st
		t, err := st.GetTaskByID(taskID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		resp := &StatusReport{
			Queue:              name,
			SubmissionResponse: t.MD["submission_response"],
		}
		for _, sub := range t.Tasks {
			resp.SubtasksSubmissionResponse = append(resp.SubtasksSubmissionResponse, sub.MD["submission_response"])
		}
		return resp, nil
	}
	return nil, ErrNotFound
}

func (s *Scheduler) deviceEntry(name string) *registryEntry {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.devices[name]
}
