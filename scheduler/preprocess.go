package scheduler

import (
	"fmt"

	"github.com/watlab/autocontrol/device"
	"github.com/watlab/autocontrol/task"
)

// reterror records resp (suffixed with the owning device and 1-indexed
// sub-task position, as the original's reterror helper does) on the
// sub-task's metadata and returns it alongside ok, unchanged.
func reterror(ok bool, st *task.SubTask, i int, resp string) (bool, string) {
	full := fmt.Sprintf("%s; device: %s.; subtask: %d.", resp, st.Device, i+1)
	if st.MD == nil {
		st.MD = map[string]string{}
	}
	st.MD["submission_response"] = full
	return ok, full
}

// preProcessInit instantiates and registers the device named by the task's
// single sub-task. It does not yet allocate the channel-occupancy array;
// that happens when the init task is collected (§4.1.3).
func (s *Scheduler) preProcessInit(t *task.Task) (bool, string) {
	if len(t.Tasks) != 1 {
		return false, "init requires exactly one sub-task"
	}
	st := t.First()
	kind, ok := device.ParseKind(st.DeviceType)
	if !ok {
		return reterror(false, st, 0, "unknown device type")
	}
	dev := device.New(kind, st.Device, st.DeviceAddress, st.Simulated)
	s.schedMu.Lock()
	s.devices[st.Device] = &registryEntry{
		device:        dev,
		deviceType:    kind,
		deviceAddress: st.DeviceAddress,
		sampleMixing:  st.SampleMixingOrDefault(),
	}
	s.schedMu.Unlock()
	return reterror(true, st, 0, "success")
}

// preProcessPrepare implements the single-sub-task prepare pre-check.
func (s *Scheduler) preProcessPrepare(t *task.Task) (bool, string) {
	if len(t.Tasks) != 1 {
		return false, "prepare requires exactly one sub-task"
	}
	st := t.First()
	if !s.occInitialized(st.Device) {
		return reterror(false, st, 0, "device not initialized")
	}
	if st.Channel != nil {
		return reterror(true, st, 0, "success")
	}
	sampleNumber := 0
	if t.SampleNum != nil {
		sampleNumber = *t.SampleNum
	}
	ok, resp := s.findFreeChannel(st, sampleNumber)
	return reterror(ok, st, 0, resp)
}

// preProcessMeasure implements the single-sub-task measure pre-check.
func (s *Scheduler) preProcessMeasure(t *task.Task) (bool, string) {
	if len(t.Tasks) != 1 {
		return false, "measure requires exactly one sub-task"
	}
	st := t.First()
	sampleNumber := 0
	if t.SampleNum != nil {
		sampleNumber = *t.SampleNum
	}

	if !s.occInitialized(st.Device) {
		return reterror(false, st, 0, "device not initialized")
	}
	if st.Channel != nil && st.NonChannelStorage != nil {
		return reterror(false, st, 0, "channel and non_channel_storage both set")
	}

	if st.Channel != nil {
		size := s.occSize(st.Device)
		if *st.Channel < 0 || *st.Channel >= size {
			return reterror(false, st, 0, "invalid channel number")
		}
		occ := s.occOccupant(st.Device, *st.Channel)
		if occ == nil {
			s.occSet(st.Device, *st.Channel, t.ID)
			return reterror(true, st, 0, "success, created sample on measurement")
		}
		occTask, err := s.taskByID(*occ)
		if err != nil || occTask == nil || occTask.SampleNum == nil || *occTask.SampleNum != sampleNumber {
			return reterror(false, st, 0, "channel holds a different sample")
		}
		return reterror(true, st, 0, "success")
	}

	if st.NonChannelStorage != nil {
		return reterror(true, st, 0, "success")
	}

	ok, resp := s.findSampleChannel(st, sampleNumber)
	return reterror(ok, st, 0, resp)
}

// preProcessTransfer implements the multi-sub-task transfer pre-check: the
// first sub-task locates the sample's current slot (claiming a preset slot
// that is empty); every later sub-task either needs its preset slot empty
// (unless its device is passive) or runs free-channel selection. The
// destination slot itself is claimed when the transfer is collected.
func (s *Scheduler) preProcessTransfer(t *task.Task) (bool, string) {
	if len(t.Tasks) == 0 {
		return false, "transfer requires at least one sub-task"
	}
	sampleNumber := 0
	if t.SampleNum != nil {
		sampleNumber = *t.SampleNum
	}

	first := t.First()
	if entry := s.deviceEntry(first.Device); entry != nil && entry.device.Passive() {
		return reterror(false, first, 0, "first sub-task device must not be passive")
	}

	var lastResp string
	for i := range t.Tasks {
		st := &t.Tasks[i]
		if !s.occInitialized(st.Device) {
			return reterror(false, st, i, "device not initialized")
		}
		if st.Channel != nil && st.NonChannelStorage != nil {
			return reterror(false, st, i, "channel and non_channel_storage both set")
		}

		switch {
		case st.Channel != nil:
			size := s.occSize(st.Device)
			if *st.Channel < 0 || *st.Channel >= size {
				return reterror(false, st, i, "invalid channel number")
			}
			occ := s.occOccupant(st.Device, *st.Channel)
			if i == 0 {
				if occ == nil {
					s.occSet(st.Device, *st.Channel, t.ID)
				} else {
					occTask, err := s.taskByID(*occ)
					if err != nil || occTask == nil || occTask.SampleNum == nil || *occTask.SampleNum != sampleNumber {
						return reterror(false, st, i, "channel holds a different sample")
					}
				}
			} else {
				entry := s.deviceEntry(st.Device)
				if occ != nil && (entry == nil || !entry.device.Passive()) {
					return reterror(false, st, i, "target channel is occupied")
				}
			}
			_, lastResp = reterror(true, st, i, "success")

		case st.NonChannelStorage != nil:
			_, lastResp = reterror(true, st, i, "success")

		default:
			var ok bool
			var resp string
			if i == 0 {
				ok, resp = s.findSampleChannel(st, sampleNumber)
			} else {
				ok, resp = s.findFreeChannel(st, sampleNumber)
			}
			if !ok {
				return reterror(false, st, i, resp)
			}
			_, lastResp = reterror(true, st, i, resp)
		}
	}
	return true, lastResp
}
