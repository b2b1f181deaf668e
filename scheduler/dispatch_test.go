package scheduler

import (
	"context"
	"testing"

	"github.com/watlab/autocontrol/device"
	"github.com/watlab/autocontrol/task"
)

func TestDispatchInitAndMeasureHappyPath(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	initSub := task.NewSubTask("qcmd1")
	initSub.DeviceType = "qcmd"
	initSub.Simulated = true
	initSub.NumberOfChans = 1
	initTask := task.New(task.TypeInit)
	initTask.Tasks = []task.SubTask{initSub}
	if _, _, _, _, err := s.QueuePut(initTask); err != nil {
		t.Fatalf("QueuePut init: %v", err)
	}

	dispatched, err := s.ExecuteOne(ctx)
	if err != nil || !dispatched {
		t.Fatalf("ExecuteOne(init) = %v, %v; want true, nil", dispatched, err)
	}
	collected, err := s.UpdateActive(ctx)
	if err != nil || !collected {
		t.Fatalf("UpdateActive(init) = %v, %v; want true, nil", collected, err)
	}
	if !s.occInitialized("qcmd1") {
		t.Fatalf("collecting the init task should allocate the occupancy array")
	}

	measureSub := task.NewSubTask("qcmd1")
	zero := 0
	measureSub.Channel = &zero
	measureTask := task.New(task.TypeMeasure)
	measureTask.Tasks = []task.SubTask{measureSub}
	if _, _, _, _, err := s.QueuePut(measureTask); err != nil {
		t.Fatalf("QueuePut measure: %v", err)
	}

	dispatched, err = s.ExecuteOne(ctx)
	if err != nil || !dispatched {
		t.Fatalf("ExecuteOne(measure) = %v, %v; want true, nil", dispatched, err)
	}
	collected, err = s.UpdateActive(ctx)
	if err != nil || !collected {
		t.Fatalf("UpdateActive(measure) = %v, %v; want true, nil", collected, err)
	}

	report, err := s.GetStatus(measureTask.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if report.Queue != "history" {
		t.Fatalf("Queue = %q, want history", report.Queue)
	}
}

func TestExecuteOneDependencyGatingAbandonsCycle(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	dep := task.New(task.TypeNoChan)
	dep.Tasks = []task.SubTask{task.NewSubTask("devX")}
	if _, _, _, _, err := s.QueuePut(dep); err != nil {
		t.Fatalf("QueuePut dep: %v", err)
	}

	waiting := task.New(task.TypeNoChan)
	waiting.Tasks = []task.SubTask{task.NewSubTask("devX")}
	zero := 0
	waiting.SampleNum = &zero // lower sample number sorts first so it's the one we hit
	depNum := *dep.SampleNum
	waiting.DependencySampleNumber = &depNum
	if _, _, _, _, err := s.QueuePut(waiting); err != nil {
		t.Fatalf("QueuePut waiting: %v", err)
	}

	dispatched, err := s.ExecuteOne(ctx)
	if err != nil {
		t.Fatalf("ExecuteOne error: %v", err)
	}
	if dispatched {
		t.Fatalf("ExecuteOne should not dispatch while the dependency is still scheduled")
	}
	remaining, err := s.scheduled.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("dependency gating should abandon the cycle leaving both tasks scheduled, got %d", len(remaining))
	}
}

func TestRouteCheckBlocksOversubscribedNonMixingDevice(t *testing.T) {
	s := newTestScheduler(t)
	s.devices["qcmd1"] = &registryEntry{
		device:       device.NewQCMD("qcmd1", "", true),
		sampleMixing: false,
	}

	sampleA := task.New(task.TypeMeasure)
	sampleA.Tasks = []task.SubTask{task.NewSubTask("qcmd1")}
	one := 1
	sampleA.SampleNum = &one
	if _, _, _, _, err := s.QueuePut(sampleA); err != nil {
		t.Fatalf("QueuePut sampleA: %v", err)
	}

	sampleB := task.New(task.TypeMeasure)
	sampleB.Tasks = []task.SubTask{task.NewSubTask("qcmd1")}
	two := 2
	sampleB.SampleNum = &two

	ok, err := s.routeCheckOK(sampleB)
	if err != nil {
		t.Fatalf("routeCheckOK error: %v", err)
	}
	if ok {
		t.Fatalf("routeCheckOK should block sample 2 while sample 1 still occupies the single-channel non-mixing device")
	}
}
