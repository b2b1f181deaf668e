package scheduler

import (
	"github.com/google/uuid"

	"github.com/watlab/autocontrol/observability"
)

// occInitialized reports whether a device's channel-occupancy array has
// been allocated, which happens when its init task is collected (not when
// it is dispatched) — so prepare/measure/transfer pre-processing correctly
// waits for init to finish, not merely start.
func (s *Scheduler) occInitialized(name string) bool {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.occ.hasDevice(name)
}

func (s *Scheduler) occSize(name string) int {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.occ.size(name)
}

func (s *Scheduler) occOccupant(name string, channel int) *uuid.UUID {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.occ.occupant(name, channel)
}

func (s *Scheduler) occSet(name string, channel int, id uuid.UUID) {
	s.schedMu.Lock()
	s.occ.set(name, channel, id)
	occupied, total := len(s.occ.busyChannels(name)), s.occ.size(name)
	s.schedMu.Unlock()
	observability.ObserveChannelOccupancy(name, occupied, total)
}

func (s *Scheduler) occClear(name string, channel int) {
	s.schedMu.Lock()
	s.occ.clear(name, channel)
	occupied, total := len(s.occ.busyChannels(name)), s.occ.size(name)
	s.schedMu.Unlock()
	observability.ObserveChannelOccupancy(name, occupied, total)
}

func (s *Scheduler) occBusyChannels(name string) []int {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.occ.busyChannels(name)
}
