package scheduler

import (
	"context"
	"testing"

	"github.com/watlab/autocontrol/status"
	"github.com/watlab/autocontrol/task"
)

// fakeDevice is a minimal device.Device for exercising channel selection
// without going through the HTTP-backed QCMD/liquid-handler/injection
// drivers.
type fakeDevice struct {
	name     string
	channels int
	mode     task.ChannelMode
	passive  bool
}

func (f *fakeDevice) Name() string                 { return f.name }
func (f *fakeDevice) NumberOfChannels() int         { return f.channels }
func (f *fakeDevice) ChannelMode() task.ChannelMode { return f.mode }
func (f *fakeDevice) Passive() bool                 { return f.passive }
func (f *fakeDevice) Simulated() bool               { return true }

func (f *fakeDevice) Init(context.Context, *task.SubTask) (status.Status, string, error) {
	return status.Success, "success", nil
}

func (f *fakeDevice) ExecuteTask(context.Context, *task.SubTask, task.Type) (status.Status, string, error) {
	return status.Success, "success", nil
}

func (f *fakeDevice) GetDeviceAndChannelStatus(context.Context) (status.Status, []status.Status, error) {
	chans := make([]status.Status, f.channels)
	for i := range chans {
		chans[i] = status.Idle
	}
	return status.Up, chans, nil
}

func (f *fakeDevice) Read(context.Context, *int) (status.Status, any, error) {
	return status.Success, nil, nil
}

func TestFindFreeChannelNoneModePicksLowestFree(t *testing.T) {
	s := newTestScheduler(t)
	s.devices["dev1"] = &registryEntry{device: &fakeDevice{name: "dev1", channels: 3, mode: task.ChannelModeNone}, sampleMixing: true}
	s.occ.initDevice("dev1", 3)

	activeTask := task.New(task.TypeMeasure)
	activeSub := task.NewSubTask("dev1")
	zero := 0
	activeSub.Channel = &zero
	activeTask.Tasks = []task.SubTask{activeSub}
	if err := s.active.Put(activeTask); err != nil {
		t.Fatalf("seed active: %v", err)
	}

	st := task.NewSubTask("dev1")
	ok, msg := s.findFreeChannel(&st, 1)
	if !ok {
		t.Fatalf("findFreeChannel failed: %s", msg)
	}
	if st.Channel == nil || *st.Channel != 1 {
		t.Fatalf("expected lowest free channel 1 (0 busy in active), got %v", st.Channel)
	}
}

func TestFindFreeChannelReuseModePrefersHistoryChannel(t *testing.T) {
	s := newTestScheduler(t)
	s.devices["dev1"] = &registryEntry{device: &fakeDevice{name: "dev1", channels: 4, mode: task.ChannelModeReuse}, sampleMixing: true}
	s.occ.initDevice("dev1", 4)

	histTask := task.New(task.TypeMeasure)
	histSub := task.NewSubTask("dev1")
	two := 2
	histSub.Channel = &two
	histTask.Tasks = []task.SubTask{histSub}
	sampleNum := 7
	histTask.SampleNum = &sampleNum
	if err := s.history.Put(histTask); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	st := task.NewSubTask("dev1")
	ok, msg := s.findFreeChannel(&st, sampleNum)
	if !ok {
		t.Fatalf("findFreeChannel failed: %s", msg)
	}
	if st.Channel == nil || *st.Channel != 2 {
		t.Fatalf("expected reuse mode to pick previously used channel 2, got %v", st.Channel)
	}
}

func TestFindFreeChannelNewModeAvoidsHistoryChannel(t *testing.T) {
	s := newTestScheduler(t)
	s.devices["dev1"] = &registryEntry{device: &fakeDevice{name: "dev1", channels: 2, mode: task.ChannelModeNew}, sampleMixing: true}
	s.occ.initDevice("dev1", 2)

	histTask := task.New(task.TypeMeasure)
	histSub := task.NewSubTask("dev1")
	zero := 0
	histSub.Channel = &zero
	histTask.Tasks = []task.SubTask{histSub}
	sampleNum := 9
	histTask.SampleNum = &sampleNum
	if err := s.history.Put(histTask); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	st := task.NewSubTask("dev1")
	ok, msg := s.findFreeChannel(&st, sampleNum)
	if !ok {
		t.Fatalf("findFreeChannel failed: %s", msg)
	}
	if st.Channel == nil || *st.Channel != 1 {
		t.Fatalf("expected new mode to avoid previously used channel 0, got %v", st.Channel)
	}
}

func TestFindFreeChannelFailsWhenNoneFree(t *testing.T) {
	s := newTestScheduler(t)
	s.devices["dev1"] = &registryEntry{device: &fakeDevice{name: "dev1", channels: 1, mode: task.ChannelModeNone}, sampleMixing: true}
	s.occ.initDevice("dev1", 1)
	s.occ.set("dev1", 0, task.New(task.TypeMeasure).ID)

	st := task.NewSubTask("dev1")
	if ok, _ := s.findFreeChannel(&st, 1); ok {
		t.Fatalf("findFreeChannel should fail when every channel is occupied")
	}
}
