package scheduler

import (
	"testing"

	"github.com/google/uuid"

	"github.com/watlab/autocontrol/store"
	"github.com/watlab/autocontrol/task"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(store.NewMemoryStore(), store.NewMemoryStore(), store.NewMemoryStore(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestQueuePutDefaultsSampleNumberAndMintsSampleID(t *testing.T) {
	s := newTestScheduler(t)
	tk := task.New(task.TypeNoChan)
	tk.Tasks = []task.SubTask{task.NewSubTask("dev1")}

	ok, id, num, _, err := s.QueuePut(tk)
	if err != nil || !ok {
		t.Fatalf("QueuePut failed: ok=%v err=%v", ok, err)
	}
	if num != 1 {
		t.Fatalf("sample_number = %d, want 1", num)
	}
	if id == uuid.Nil {
		t.Fatalf("task id should be set")
	}
	if tk.SampleID == uuid.Nil {
		t.Fatalf("sample_id should be minted")
	}
}

func TestQueuePutReusesSampleIDForKnownSampleNumber(t *testing.T) {
	s := newTestScheduler(t)

	first := task.New(task.TypeNoChan)
	first.Tasks = []task.SubTask{task.NewSubTask("dev1")}
	if _, _, _, _, err := s.QueuePut(first); err != nil {
		t.Fatalf("first QueuePut: %v", err)
	}

	second := task.New(task.TypeNoChan)
	second.Tasks = []task.SubTask{task.NewSubTask("dev1")}
	second.SampleNum = first.SampleNum
	if ok, _, num, _, err := s.QueuePut(second); err != nil || !ok {
		t.Fatalf("second QueuePut failed: ok=%v err=%v", ok, err)
	} else if num != *first.SampleNum {
		t.Fatalf("sample_number = %d, want %d", num, *first.SampleNum)
	}
	if second.SampleID != first.SampleID {
		t.Fatalf("second task should have been bound to the same sample_id")
	}
}

func TestQueuePutRejectsMismatchedBijection(t *testing.T) {
	s := newTestScheduler(t)

	first := task.New(task.TypeNoChan)
	first.Tasks = []task.SubTask{task.NewSubTask("dev1")}
	if _, _, _, _, err := s.QueuePut(first); err != nil {
		t.Fatalf("first QueuePut: %v", err)
	}

	other := task.New(task.TypeNoChan)
	other.Tasks = []task.SubTask{task.NewSubTask("dev1")}
	two := 2
	other.SampleNum = &two
	if _, _, _, _, err := s.QueuePut(other); err != nil {
		t.Fatalf("other QueuePut: %v", err)
	}

	conflicting := task.New(task.TypeNoChan)
	conflicting.Tasks = []task.SubTask{task.NewSubTask("dev1")}
	conflicting.SampleNum = first.SampleNum
	conflicting.SampleID = other.SampleID

	ok, _, _, msg, err := s.QueuePut(conflicting)
	if err != nil {
		t.Fatalf("QueuePut error: %v", err)
	}
	if ok {
		t.Fatalf("QueuePut should reject a mismatched sample_id/sample_number pair")
	}
	if msg == "" {
		t.Fatalf("expected a rejection message")
	}
}

func TestQueueCancelWithDropMaterialClearsOccupancy(t *testing.T) {
	s := newTestScheduler(t)
	s.occ.initDevice("qcmd1", 2)

	tk := task.New(task.TypeMeasure)
	tk.Tasks = []task.SubTask{task.NewSubTask("qcmd1")}
	if _, _, _, _, err := s.QueuePut(tk); err != nil {
		t.Fatalf("QueuePut: %v", err)
	}
	s.occ.set("qcmd1", 0, tk.ID)

	got, err := s.QueueCancel(tk.ID, false, true)
	if err != nil {
		t.Fatalf("QueueCancel: %v", err)
	}
	if got == nil || got.ID != tk.ID {
		t.Fatalf("QueueCancel should return the cancelled task")
	}
	if s.occ.occupant("qcmd1", 0) != nil {
		t.Fatalf("drop_material should have cleared the occupied slot")
	}
	if remaining, _ := s.scheduled.GetAll(); len(remaining) != 0 {
		t.Fatalf("cancelled task should no longer be scheduled")
	}
}

func TestResubmitPreservesPriorityAndIdentity(t *testing.T) {
	s := newTestScheduler(t)

	original := task.New(task.TypeMeasure)
	original.Tasks = []task.SubTask{task.NewSubTask("qcmd1")}
	if _, _, _, _, err := s.QueuePut(original); err != nil {
		t.Fatalf("QueuePut: %v", err)
	}
	originalPriority := *original.Priority

	replacement := task.New(task.TypeMeasure)
	replacement.Tasks = []task.SubTask{task.NewSubTask("qcmd1")}

	ok, id, num, _, err := s.Resubmit(original.ID, replacement)
	if err != nil || !ok {
		t.Fatalf("Resubmit failed: ok=%v err=%v", ok, err)
	}
	if id != original.ID {
		t.Fatalf("Resubmit should preserve the task id")
	}
	if num != *original.SampleNum {
		t.Fatalf("Resubmit should preserve the sample_number")
	}
	if replacement.Priority == nil || *replacement.Priority != originalPriority {
		t.Fatalf("Resubmit should preserve the original priority")
	}
}

func TestGetStatusChecksScheduledActiveHistoryInOrder(t *testing.T) {
	s := newTestScheduler(t)

	tk := task.New(task.TypeNoChan)
	tk.Tasks = []task.SubTask{task.NewSubTask("dev1")}
	if _, _, _, _, err := s.QueuePut(tk); err != nil {
		t.Fatalf("QueuePut: %v", err)
	}

	report, err := s.GetStatus(tk.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if report.Queue != "scheduled" {
		t.Fatalf("Queue = %q, want scheduled", report.Queue)
	}

	if _, err := s.GetStatus(uuid.New()); err != ErrNotFound {
		t.Fatalf("GetStatus for unknown id should return ErrNotFound, got %v", err)
	}
}

func TestResetPreservesHistoryRestartClearsDevices(t *testing.T) {
	s := newTestScheduler(t)
	s.devices["qcmd1"] = &registryEntry{sampleMixing: true}
	s.occ.initDevice("qcmd1", 1)

	histTask := task.New(task.TypeMeasure)
	histTask.Tasks = []task.SubTask{task.NewSubTask("qcmd1")}
	if err := s.history.Put(histTask); err != nil {
		t.Fatalf("seed history: %v", err)
	}
	s.occ.set("qcmd1", 0, histTask.ID)

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if all, _ := s.history.GetAll(); len(all) != 1 {
		t.Fatalf("Reset should preserve history")
	}
	if !s.occ.hasDevice("qcmd1") || len(s.occ.busyChannels("qcmd1")) != 0 {
		t.Fatalf("Reset should zero the occupancy table while keeping its per-device arrays")
	}
	if s.deviceEntry("qcmd1") == nil {
		t.Fatalf("Reset should preserve the device registry")
	}

	if err := s.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if s.deviceEntry("qcmd1") != nil {
		t.Fatalf("Restart should clear the device registry")
	}
}
