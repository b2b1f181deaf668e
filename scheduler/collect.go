package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/watlab/autocontrol/observability"
	"github.com/watlab/autocontrol/status"
	"github.com/watlab/autocontrol/task"
)

// UpdateActive polls every active task, collecting the ones whose
// sub-tasks have all reached a ready device/channel status. Returns
// whether anything was collected. Grounded on atc.py's check_task /
// post_process_task, spec §4.1.3.
func (s *Scheduler) UpdateActive(ctx context.Context) (bool, error) {
	tasks, err := s.active.GetAll()
	if err != nil {
		return false, err
	}

	collectedAny := false
	for _, t := range tasks {
		done, err := s.allSubTasksDone(ctx, t)
		if err != nil {
			return false, err
		}
		if !done {
			continue
		}

		ok, err := s.postProcessTask(ctx, t)
		if err != nil {
			return false, err
		}
		if !ok {
			if err := s.active.Replace(t, t.ID); err != nil {
				return false, err
			}
			continue
		}

		if err := s.history.Put(t); err != nil {
			return false, err
		}
		if err := s.active.Remove(t.ID); err != nil {
			return false, err
		}
		s.recorder.Decision("COLLECTED", t)
		collectedAny = true
	}
	return collectedAny, nil
}

// allSubTasksDone requires every sub-task's device (and, if named, channel)
// to have returned to up/idle. A transient status-request failure is
// treated as "not yet done" rather than an error, so one flaky instrument
// doesn't abort the whole sweep.
func (s *Scheduler) allSubTasksDone(ctx context.Context, t *task.Task) (bool, error) {
	for i := range t.Tasks {
		st := &t.Tasks[i]
		entry := s.deviceEntry(st.Device)
		if entry == nil {
			return false, nil
		}
		cctx, cancel := context.WithTimeout(ctx, s.cfg.StatusTimeout)
		pollStart := time.Now()
		devStatus, chanStatus, err := entry.device.GetDeviceAndChannelStatus(cctx)
		observability.ObserveDeviceStatusPoll(st.Device, time.Since(pollStart))
		cancel()
		if err != nil {
			return false, nil
		}
		if st.Channel == nil {
			if !devStatus.Ready() {
				return false, nil
			}
			continue
		}
		if *st.Channel < 0 || *st.Channel >= len(chanStatus) || !chanStatus[*st.Channel].Ready() {
			return false, nil
		}
	}
	return true, nil
}

func (s *Scheduler) postProcessTask(ctx context.Context, t *task.Task) (bool, error) {
	switch t.Type {
	case task.TypeMeasure:
		return s.postProcessMeasure(ctx, t)
	case task.TypePrepare:
		return s.postProcessPrepare(t)
	case task.TypeTransfer:
		return s.postProcessTransfer(t)
	case task.TypeInit:
		return s.postProcessInit(t)
	default:
		return true, nil
	}
}

// postProcessMeasure reads back the instrument's data and makes this task
// the occupant of its channel, recording the channel's prior occupant in
// task_history.
func (s *Scheduler) postProcessMeasure(ctx context.Context, t *task.Task) (bool, error) {
	st := t.First()
	if st == nil {
		return true, nil
	}
	entry := s.deviceEntry(st.Device)
	if entry == nil {
		t.MD["submission_response"] = "device no longer registered"
		return false, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.StatusTimeout)
	readStatus, data, err := entry.device.Read(cctx, st.Channel)
	cancel()
	if err != nil || readStatus != status.Success {
		t.MD["submission_response"] = fmt.Sprintf("failed to read measurement data: %v", err)
		return false, nil
	}
	st.MeasurementData = data

	if st.Channel != nil {
		if prior := s.occOccupant(st.Device, *st.Channel); prior != nil {
			t.History = append(t.History, *prior)
		}
		s.occSet(st.Device, *st.Channel, t.ID)
	}
	return true, nil
}

func (s *Scheduler) postProcessPrepare(t *task.Task) (bool, error) {
	st := t.First()
	if st == nil || st.Channel == nil {
		return true, nil
	}
	s.occSet(st.Device, *st.Channel, t.ID)
	return true, nil
}

// postProcessTransfer clears the source slot (recording its prior occupant)
// and claims the destination slot.
func (s *Scheduler) postProcessTransfer(t *task.Task) (bool, error) {
	first := t.First()
	if first != nil && first.Channel != nil {
		if prior := s.occOccupant(first.Device, *first.Channel); prior != nil {
			t.History = append(t.History, *prior)
		}
		s.occClear(first.Device, *first.Channel)
	}
	last := t.Last()
	if last != nil && last.Channel != nil {
		s.occSet(last.Device, *last.Channel, t.ID)
	}
	return true, nil
}

// postProcessInit allocates the device's channel-occupancy array, the
// signal the rest of the scheduler uses to treat the device as ready.
func (s *Scheduler) postProcessInit(t *task.Task) (bool, error) {
	st := t.First()
	if st == nil {
		return true, nil
	}
	entry := s.deviceEntry(st.Device)
	if entry == nil {
		t.MD["submission_response"] = "device no longer registered"
		return false, nil
	}
	s.schedMu.Lock()
	s.occ.initDevice(st.Device, entry.device.NumberOfChannels())
	s.schedMu.Unlock()
	return true, nil
}
