package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/watlab/autocontrol/observability"
	"github.com/watlab/autocontrol/status"
	"github.com/watlab/autocontrol/task"
)

// ExecuteOne makes one dispatch attempt, walking the fixed task-type
// priority bands ({init}, {prepare,transfer,measure,nochannel}, {shutdown})
// and returns whether a task was successfully dispatched to its device(s).
// Grounded on atc.py's queue_execute_one_item.
func (s *Scheduler) ExecuteOne(ctx context.Context) (bool, error) {
	if s.IsPaused() {
		return false, nil
	}

	blocked := map[int]bool{}

	for _, band := range taskTypeBands {
		for {
			t, err := s.scheduled.GetAndRemoveByPriority(band, false, blocked)
			if err != nil {
				return false, err
			}
			if t == nil {
				break
			}

			depBlocked, err := s.dependencyBlocked(t)
			if err != nil {
				return false, err
			}
			if depBlocked {
				s.recorder.Decision("BLOCKED_DEPENDENCY", t)
				return false, nil
			}

			if t.Type != task.TypeInit && t.Type != task.TypeShutdown {
				routeOK, err := s.routeCheckOK(t)
				if err != nil {
					return false, err
				}
				if !routeOK {
					s.recorder.Decision("BLOCKED_ROUTE", t)
					return false, nil
				}
			}

			dispatched, err := s.processTask(ctx, t)
			if err != nil {
				return false, err
			}
			if dispatched {
				s.recorder.Decision("DISPATCH", t)
				return true, nil
			}

			if t.SampleNum != nil {
				blocked[*t.SampleNum] = true
			}
			if err := s.scheduled.Replace(t, t.ID); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// dependencyBlocked reports whether t names a still-scheduled dependency,
// by sample number or by task id.
func (s *Scheduler) dependencyBlocked(t *task.Task) (bool, error) {
	if t.DependencySampleNumber != nil {
		existing, err := s.scheduled.GetTaskBySampleNumber(*t.DependencySampleNumber)
		if err != nil {
			return false, err
		}
		if len(existing) > 0 {
			return true, nil
		}
	}
	if t.DependencyID != nil {
		existing, err := s.scheduled.GetTaskByID(*t.DependencyID)
		if err != nil {
			return false, err
		}
		if existing != nil {
			return true, nil
		}
	}
	return false, nil
}

// processTask runs the per-sub-task pre-submission check, type-specific
// pre-processing, the interference check, and finally dispatches to every
// device. It reports whether the task fully succeeded and was moved to
// active; a false result leaves the task (with updated metadata) for the
// caller to write back via Replace.
func (s *Scheduler) processTask(ctx context.Context, t *task.Task) (bool, error) {
	t.ClearSubmissionResponses()

	if t.Type != task.TypeInit {
		for i := range t.Tasks {
			st := &t.Tasks[i]
			entry := s.deviceEntry(st.Device)
			if entry == nil {
				_, resp := reterror(false, st, i, "device not registered")
				t.MD["submission_response"] = resp
				return false, nil
			}

			cctx, cancel := context.WithTimeout(ctx, s.cfg.StatusTimeout)
			pollStart := time.Now()
			devStatus, chanStatus, err := entry.device.GetDeviceAndChannelStatus(cctx)
			observability.ObserveDeviceStatusPoll(st.Device, time.Since(pollStart))
			cancel()
			if err != nil {
				_, resp := reterror(false, st, i, fmt.Sprintf("status request failed: %v", err))
				t.MD["submission_response"] = resp
				return false, nil
			}
			if !devStatus.Ready() {
				_, resp := reterror(false, st, i, fmt.Sprintf("waiting, device status is %s", devStatus))
				t.MD["submission_response"] = resp
				return false, nil
			}
			if st.Channel != nil {
				if *st.Channel < 0 || *st.Channel >= len(chanStatus) {
					_, resp := reterror(false, st, i, "invalid channel number")
					t.MD["submission_response"] = resp
					return false, nil
				}
				if !chanStatus[*st.Channel].Ready() {
					_, resp := reterror(false, st, i, fmt.Sprintf("waiting, channel status is %s", chanStatus[*st.Channel]))
					t.MD["submission_response"] = resp
					return false, nil
				}
			}
		}
	}

	var ok bool
	var resp string
	switch t.Type {
	case task.TypeInit:
		ok, resp = s.preProcessInit(t)
	case task.TypePrepare:
		ok, resp = s.preProcessPrepare(t)
	case task.TypeMeasure:
		ok, resp = s.preProcessMeasure(t)
	case task.TypeTransfer:
		ok, resp = s.preProcessTransfer(t)
	case task.TypeNoChan, task.TypeShutdown:
		ok, resp = true, "success, no pre-processing required for this task type"
	default:
		ok, resp = false, "unknown task type"
	}
	t.MD["submission_response"] = resp
	if !ok {
		return false, nil
	}

	interferes, err := s.active.FindInterference(t)
	if err != nil {
		return false, err
	}
	if interferes {
		t.MD["submission_response"] = "waiting for ongoing task at device or channel to finish"
		s.recorder.Decision("BLOCKED_INTERFERENCE", t)
		return false, nil
	}

	t.ExecutionStartTime = time.Now()
	allSucceeded := true
	for i := range t.Tasks {
		st := &t.Tasks[i]
		entry := s.deviceEntry(st.Device)
		if st.MD == nil {
			st.MD = map[string]string{}
		}
		if entry == nil {
			st.MD["submission_device_response"] = "device not registered"
			allSucceeded = false
			continue
		}

		dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		devStatus, devResp, err := entry.device.ExecuteTask(dctx, st, t.Type)
		cancel()
		if err != nil {
			st.MD["submission_device_response"] = err.Error()
			allSucceeded = false
			continue
		}
		st.MD["submission_device_response"] = devResp
		if devStatus != status.Success {
			allSucceeded = false
		}
	}

	if !allSucceeded {
		t.MD["submission_response"] = "task failed at instrument, see sub-task responses"
		return false, nil
	}

	t.MD["submission_response"] = "task successfully submitted"
	if err := s.active.Put(t); err != nil {
		return false, err
	}
	if err := s.scheduled.Remove(t.ID); err != nil {
		return false, err
	}
	return true, nil
}
