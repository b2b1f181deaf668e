package scheduler

import (
	"github.com/watlab/autocontrol/store"
	"github.com/watlab/autocontrol/task"
)

// routeCheckOK implements the sample-mixing route check (spec §4.1 step 2).
// Skipped by the caller for init/shutdown. If no registered device has
// sample_mixing=false the check is a no-op. Otherwise it projects the
// candidate's future device path (following already-queued transfers) and
// rejects if any non-mixing device on that path would have to hold more
// distinct sample_numbers than it has channels, given the lowest
// sample_number currently scheduled.
func (s *Scheduler) routeCheckOK(t *task.Task) (bool, error) {
	s.schedMu.Lock()
	anyNonMixing := false
	for _, e := range s.devices {
		if !e.sampleMixing {
			anyNonMixing = true
			break
		}
	}
	s.schedMu.Unlock()
	if !anyNonMixing {
		return true, nil
	}

	first := t.First()
	if first == nil || t.SampleNum == nil {
		return true, nil
	}

	future, err := s.scheduled.GetFutureDevices(*t.SampleNum, first.Device, first.Channel)
	if err != nil {
		return false, err
	}
	path := append([]store.DeviceChannel{{Device: first.Device, Channel: first.Channel}}, future...)

	lo, ok, err := s.scheduled.GetLowestSampleNumber()
	if err != nil {
		return false, err
	}
	if !ok {
		lo = *t.SampleNum
	}

	for _, hop := range path {
		entry := s.deviceEntry(hop.Device)
		if entry == nil || entry.sampleMixing {
			continue
		}
		if (*t.SampleNum-lo) > (entry.device.NumberOfChannels() - 1) {
			return false, nil
		}
	}
	return true, nil
}
