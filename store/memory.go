package store

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/watlab/autocontrol/task"
)

// MemoryStore is an in-process, mutex-guarded TaskStore. It backs the
// scheduled/active/history queues by default, and stands in for the durable
// backend in all unit tests, grounded on the teacher's map-based
// MemoryStore (control_plane/store/memory.go) generalized from
// agents/jobs/states to tasks.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*task.Task
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[uuid.UUID]*task.Task)}
}

func priorityOf(t *task.Task) float64 {
	if t.Priority == nil {
		return math.Inf(-1)
	}
	return *t.Priority
}

func (s *MemoryStore) Put(t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) Replace(t *task.Task, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[uuid.UUID]*task.Task)
	return nil
}

func (s *MemoryStore) Empty() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks) == 0, nil
}

func (s *MemoryStore) GetAll() ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetTaskByID(id uuid.UUID) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (s *MemoryStore) GetTaskBySampleNumber(sampleNumber int) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*task.Task
	for _, t := range s.tasks {
		if t.SampleNum != nil && *t.SampleNum == sampleNumber {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) GetAndRemoveByPriority(types map[task.Type]bool, remove bool, blocked map[int]bool) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *task.Task
	for _, t := range s.tasks {
		if types != nil && !types[t.Type] {
			continue
		}
		if t.SampleNum != nil && blocked[*t.SampleNum] {
			continue
		}
		if best == nil || priorityOf(t) > priorityOf(best) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	result := best.Clone()
	if remove {
		delete(s.tasks, best.ID)
	}
	return result, nil
}

func (s *MemoryStore) GetLowestSampleNumber() (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := false
	lowest := 0
	for _, t := range s.tasks {
		if t.SampleNum == nil {
			continue
		}
		if !found || *t.SampleNum < lowest {
			lowest = *t.SampleNum
			found = true
		}
	}
	return lowest, found, nil
}

func (s *MemoryStore) FindChannels(sampleNumber *int, device string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[int]bool{}
	var out []int
	for _, t := range s.tasks {
		if sampleNumber != nil {
			if t.SampleNum == nil || *t.SampleNum != *sampleNumber {
				continue
			}
		}
		for _, st := range t.Tasks {
			if device != "" && st.Device != device {
				continue
			}
			if st.Channel != nil && !seen[*st.Channel] {
				seen[*st.Channel] = true
				out = append(out, *st.Channel)
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) FindInterference(candidate *task.Task) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cst := range candidate.Tasks {
		if cst.Channel == nil {
			continue
		}
		for _, t := range s.tasks {
			for _, st := range t.Tasks {
				if st.Device == cst.Device && st.Channel != nil && *st.Channel == *cst.Channel {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func (s *MemoryStore) GetFutureDevices(sampleNumber int, device string, channel *int) ([]DeviceChannel, error) {
	s.mu.RLock()
	var transfers []*task.Task
	for _, t := range s.tasks {
		if t.Type == task.TypeTransfer && t.SampleNum != nil && *t.SampleNum == sampleNumber {
			transfers = append(transfers, t.Clone())
		}
	}
	s.mu.RUnlock()

	if len(transfers) == 0 {
		return nil, nil
	}

	type key struct {
		device  string
		channel int
		has     bool
	}
	seen := map[key]bool{}
	var out []DeviceChannel
	currentDevice := device
	currentChannel := channel

	for _, t := range transfers {
		first := t.First()
		if first == nil || first.Device != currentDevice {
			continue
		}
		if currentChannel != nil && (first.Channel == nil || *first.Channel != *currentChannel) {
			continue
		}
		for _, st := range t.Tasks {
			currentDevice = st.Device
			currentChannel = st.Channel
			k := key{device: st.Device, has: st.Channel != nil}
			if k.has {
				k.channel = *st.Channel
			}
			if !seen[k] {
				seen[k] = true
				out = append(out, DeviceChannel{Device: st.Device, Channel: st.Channel})
			}
		}
	}
	return out, nil
}
