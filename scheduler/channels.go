package scheduler

import (
	"fmt"

	"github.com/watlab/autocontrol/task"
)

// channelOccupancy returns the free and busy channel sets for a device: the
// intersection of (channels not used by any active task) with (channels
// empty in the occupancy table), except occupancy is ignored for passive
// devices (spec §4.1.2, atc.py get_channel_occupancy).
func (s *Scheduler) channelOccupancy(deviceName string) (free, busy []int, err error) {
	entry := s.deviceEntry(deviceName)
	if entry == nil {
		return nil, nil, fmt.Errorf("scheduler: device %q not registered", deviceName)
	}

	activeBusy, err := s.active.FindChannels(nil, deviceName)
	if err != nil {
		return nil, nil, err
	}
	busySet := map[int]bool{}
	for _, c := range activeBusy {
		busySet[c] = true
	}
	n := entry.device.NumberOfChannels()
	activeFree := map[int]bool{}
	for i := 0; i < n; i++ {
		if !busySet[i] {
			activeFree[i] = true
		}
	}

	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	if entry.device.Passive() || !s.occ.hasDevice(deviceName) {
		for i := 0; i < n; i++ {
			if activeFree[i] {
				free = append(free, i)
			} else {
				busy = append(busy, i)
			}
		}
		return free, busy, nil
	}

	poFree := map[int]bool{}
	for _, c := range s.occ.freeChannels(deviceName) {
		poFree[c] = true
	}
	for i := 0; i < n; i++ {
		if activeFree[i] && poFree[i] {
			free = append(free, i)
		} else {
			busy = append(busy, i)
		}
	}
	return free, busy, nil
}

// findFreeChannel allocates a free channel for a sub-task, honoring the
// device's channel_mode (spec §4.1.2, atc.py find_free_channels).
func (s *Scheduler) findFreeChannel(st *task.SubTask, sampleNumber int) (bool, string) {
	entry := s.deviceEntry(st.Device)
	if entry == nil {
		return false, "device not initialized"
	}

	free, _, err := s.channelOccupancy(st.Device)
	if err != nil {
		return false, err.Error()
	}
	if len(free) == 0 {
		return false, "no free channels available"
	}

	mode := entry.device.ChannelMode()
	if mode == task.ChannelModeNone {
		st.Channel = intPtr(free[0])
		return true, "success"
	}

	histChannels, err := s.history.FindChannels(&sampleNumber, st.Device)
	if err != nil {
		return false, err.Error()
	}
	actChannels, err := s.active.FindChannels(&sampleNumber, st.Device)
	if err != nil {
		return false, err.Error()
	}
	hist := dedupInts(append(histChannels, actChannels...))
	histSet := map[int]bool{}
	for _, c := range hist {
		histSet[c] = true
	}
	freeSet := map[int]bool{}
	for _, c := range free {
		freeSet[c] = true
	}

	switch mode {
	case task.ChannelModeReuse:
		if len(hist) == 0 {
			st.Channel = intPtr(free[0])
			return true, "success"
		}
		for _, c := range hist {
			if freeSet[c] {
				st.Channel = intPtr(c)
				return true, "success"
			}
		}
		st.Channel = intPtr(free[0])
		return true, "success"

	case task.ChannelModeNew:
		for _, c := range free {
			if !histSet[c] {
				st.Channel = intPtr(c)
				return true, "success"
			}
		}
		return false, "no free unused channels"

	default:
		return false, "invalid channel mode"
	}
}

// findOccupiedChannel returns the channel on deviceName whose occupant is a
// task of sampleNumber, preferring the occupant with the highest priority
// when more than one slot matches (spec §4.1.1 measure pre-processing).
func (s *Scheduler) findOccupiedChannel(deviceName string, sampleNumber int) (int, bool) {
	best := -1
	var bestPriority float64
	found := false
	for _, c := range s.occBusyChannels(deviceName) {
		occ := s.occOccupant(deviceName, c)
		if occ == nil {
			continue
		}
		occTask, err := s.taskByID(*occ)
		if err != nil || occTask == nil || occTask.SampleNum == nil || *occTask.SampleNum != sampleNumber {
			continue
		}
		p := 0.0
		if occTask.Priority != nil {
			p = *occTask.Priority
		}
		if !found || p > bestPriority {
			found = true
			bestPriority = p
			best = c
		}
	}
	return best, found
}

// findSampleChannel wraps findOccupiedChannel in the (bool, string) shape
// used by the type-specific pre-processing helpers.
func (s *Scheduler) findSampleChannel(st *task.SubTask, sampleNumber int) (bool, string) {
	ch, ok := s.findOccupiedChannel(st.Device, sampleNumber)
	if !ok {
		return false, "no channel holds this sample"
	}
	st.Channel = intPtr(ch)
	return true, "success"
}

func intPtr(v int) *int {
	return &v
}

func dedupInts(in []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
