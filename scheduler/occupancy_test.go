package scheduler

import (
	"testing"

	"github.com/google/uuid"
)

func TestOccupancyTableFreeAndBusy(t *testing.T) {
	o := newOccupancyTable()
	o.initDevice("qcmd1", 2)

	free := o.freeChannels("qcmd1")
	if len(free) != 2 {
		t.Fatalf("freeChannels = %v, want both channels free", free)
	}

	id := uuid.New()
	o.set("qcmd1", 0, id)
	if got := o.occupant("qcmd1", 0); got == nil || *got != id {
		t.Fatalf("occupant(0) = %v, want %v", got, id)
	}
	if len(o.freeChannels("qcmd1")) != 1 {
		t.Fatalf("expected one free channel after claiming slot 0")
	}
	if len(o.busyChannels("qcmd1")) != 1 {
		t.Fatalf("expected one busy channel after claiming slot 0")
	}

	o.clear("qcmd1", 0)
	if o.occupant("qcmd1", 0) != nil {
		t.Fatalf("slot 0 should be empty after clear")
	}
}

func TestOccupancyTableClearTask(t *testing.T) {
	o := newOccupancyTable()
	o.initDevice("qcmd1", 2)
	o.initDevice("lh1", 1)

	id := uuid.New()
	o.set("qcmd1", 1, id)
	o.set("lh1", 0, id)

	if !o.clearTask(id) {
		t.Fatalf("clearTask should report it found the task")
	}
	if o.occupant("qcmd1", 1) != nil || o.occupant("lh1", 0) != nil {
		t.Fatalf("clearTask should have emptied every slot referencing the task")
	}
	if o.clearTask(id) {
		t.Fatalf("second clearTask for the same id should find nothing")
	}
}

func TestOccupancyTableResetPreservesDevicesRestartDoesNot(t *testing.T) {
	o := newOccupancyTable()
	o.initDevice("qcmd1", 2)
	o.set("qcmd1", 0, uuid.New())

	o.reset()
	if !o.hasDevice("qcmd1") {
		t.Fatalf("reset should preserve device entries")
	}
	if len(o.busyChannels("qcmd1")) != 0 {
		t.Fatalf("reset should clear all slots")
	}

	o.restart()
	if o.hasDevice("qcmd1") {
		t.Fatalf("restart should drop device entries entirely")
	}
}
