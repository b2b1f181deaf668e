package device

import (
	"context"
	"testing"

	"github.com/watlab/autocontrol/status"
	"github.com/watlab/autocontrol/task"
)

func TestQCMDInitSimulatedChannelCount(t *testing.T) {
	d := NewQCMD("qcmd1", "", true)
	st := task.NewSubTask("qcmd1")
	st.NumberOfChans = 3

	got, _, err := d.Init(context.Background(), &st)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if got != status.Success {
		t.Fatalf("Init status = %v, want Success", got)
	}
	if d.NumberOfChannels() != 3 {
		t.Fatalf("NumberOfChannels = %d, want 3", d.NumberOfChannels())
	}
}

func TestQCMDMeasureThenRead(t *testing.T) {
	d := NewQCMD("qcmd1", "", true)
	st := task.NewSubTask("qcmd1")
	if _, _, err := d.Init(context.Background(), &st); err != nil {
		t.Fatalf("Init: %v", err)
	}

	got, _, err := d.ExecuteTask(context.Background(), &st, task.TypeMeasure)
	if err != nil {
		t.Fatalf("measure returned error: %v", err)
	}
	if got != status.Success {
		t.Fatalf("measure status = %v, want Success", got)
	}

	rstatus, data, err := d.Read(context.Background(), nil)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	if rstatus != status.Success {
		t.Fatalf("read status = %v, want Success", rstatus)
	}
	if data == nil {
		t.Fatalf("read returned nil data")
	}
}

func TestInjectionRejectsWrongChannelCountWhenNotSimulated(t *testing.T) {
	d := NewInjection("inj1", "http://instrument.local/inj", false)
	st := task.NewSubTask("inj1")
	st.NumberOfChans = 3

	got, _, err := d.Init(context.Background(), &st)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if got != status.Invalid {
		t.Fatalf("Init status = %v, want Invalid for a non-2-channel request", got)
	}
}

func TestInjectionDefaultsToTwoChannelsSimulated(t *testing.T) {
	d := NewInjection("inj1", "", true)
	st := task.NewSubTask("inj1")

	if _, _, err := d.Init(context.Background(), &st); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if d.NumberOfChannels() != 2 {
		t.Fatalf("NumberOfChannels = %d, want 2", d.NumberOfChannels())
	}
}

func TestLiquidHandlerPrepareAndTransferSimulated(t *testing.T) {
	d := NewLiquidHandler("lh1", "", true)
	st := task.NewSubTask("lh1")
	if _, _, err := d.Init(context.Background(), &st); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if got, _, err := d.ExecuteTask(context.Background(), &st, task.TypePrepare); err != nil || got != status.Success {
		t.Fatalf("prepare = %v, %v, want Success, nil", got, err)
	}
	if got, _, err := d.ExecuteTask(context.Background(), &st, task.TypeTransfer); err != nil || got != status.Success {
		t.Fatalf("transfer = %v, %v, want Success, nil", got, err)
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"qcmd":      KindQCMD,
		"QCMD":      KindQCMD,
		"lh":        KindLiquidHandler,
		"injection": KindInjection,
	}
	for in, want := range cases {
		got, ok := ParseKind(in)
		if !ok || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v, true", in, got, ok, want)
		}
	}
	if _, ok := ParseKind("unknown"); ok {
		t.Fatalf("ParseKind(unknown) should not be recognized")
	}
}
