package scheduler

import "github.com/google/uuid"

// occupancyTable is the channel-occupancy table: a per-device fixed-length
// array recording which task's sample currently "contains" each physical
// channel, independent of whether the device is busy executing. Slots hold
// a task id rather than a *task.Task to avoid a cyclic reference back into
// the stores (spec §9 design notes).
type occupancyTable struct {
	slots map[string][]*uuid.UUID
}

func newOccupancyTable() *occupancyTable {
	return &occupancyTable{slots: make(map[string][]*uuid.UUID)}
}

// initDevice allocates a fresh, all-empty occupancy array for a device,
// sized to its channel count. Called when an init task is collected.
func (o *occupancyTable) initDevice(name string, numberOfChannels int) {
	o.slots[name] = make([]*uuid.UUID, numberOfChannels)
}

func (o *occupancyTable) hasDevice(name string) bool {
	_, ok := o.slots[name]
	return ok
}

func (o *occupancyTable) size(name string) int {
	return len(o.slots[name])
}

// occupant returns the task id occupying (device, channel), or nil if
// empty or the device/channel is unknown.
func (o *occupancyTable) occupant(name string, channel int) *uuid.UUID {
	slots, ok := o.slots[name]
	if !ok || channel < 0 || channel >= len(slots) {
		return nil
	}
	return slots[channel]
}

func (o *occupancyTable) set(name string, channel int, id uuid.UUID) {
	slots := o.slots[name]
	if channel < 0 || channel >= len(slots) {
		return
	}
	v := id
	slots[channel] = &v
}

func (o *occupancyTable) clear(name string, channel int) {
	slots := o.slots[name]
	if channel < 0 || channel >= len(slots) {
		return
	}
	slots[channel] = nil
}

// freeChannels returns every empty channel index for a device.
func (o *occupancyTable) freeChannels(name string) []int {
	var out []int
	for i, occ := range o.slots[name] {
		if occ == nil {
			out = append(out, i)
		}
	}
	return out
}

// busyChannels returns every occupied channel index for a device.
func (o *occupancyTable) busyChannels(name string) []int {
	var out []int
	for i, occ := range o.slots[name] {
		if occ != nil {
			out = append(out, i)
		}
	}
	return out
}

// clearTask zeroes every slot occupied by taskID across every device,
// reporting whether any slot referenced it. Used by cancel's drop_material.
func (o *occupancyTable) clearTask(taskID uuid.UUID) bool {
	found := false
	for _, slots := range o.slots {
		for i, occ := range slots {
			if occ != nil && *occ == taskID {
				slots[i] = nil
				found = true
			}
		}
	}
	return found
}

func (o *occupancyTable) reset() {
	for name, slots := range o.slots {
		for i := range slots {
			slots[i] = nil
		}
		o.slots[name] = slots
	}
}

func (o *occupancyTable) restart() {
	o.slots = make(map[string][]*uuid.UUID)
}
