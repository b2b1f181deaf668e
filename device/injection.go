package device

import (
	"context"
	"time"

	"github.com/watlab/autocontrol/status"
	"github.com/watlab/autocontrol/task"
)

// Injection drives a sample injection valve, which always exposes exactly
// two channels, grounded on
// original_source/autocontrol/device_injection.py.
type Injection struct {
	base
}

// NewInjection returns an Injection device, unconfigured until Init runs.
func NewInjection(name, address string, simulated bool) *Injection {
	return &Injection{base: newBase(name, address, KindInjection, simulated)}
}

func (d *Injection) Init(ctx context.Context, st *task.SubTask) (status.Status, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.channelMode = task.ChannelModeNone
	if d.simulated {
		d.numberOfChans = 2
		return status.Success, "", nil
	}

	if st.NumberOfChans != 0 && st.NumberOfChans != 2 {
		return status.Invalid, "number of channels must be 2 for an injection device", nil
	}
	d.address = st.DeviceAddress
	d.channelMode = st.ChannelMode
	d.numberOfChans = 2
	return status.Success, "", nil
}

func (d *Injection) ExecuteTask(ctx context.Context, st *task.SubTask, taskType task.Type) (status.Status, string, error) {
	switch taskType {
	case task.TypeInit:
		return d.Init(ctx, st)
	case task.TypePrepare:
		return d.prepare(ctx)
	case task.TypeTransfer:
		return d.transfer(ctx)
	case task.TypeNoChan:
		return d.noChannel(ctx, st)
	default:
		return status.Invalid, "injection device does not handle this task type", nil
	}
}

func (d *Injection) prepare(ctx context.Context) (status.Status, string, error) {
	if d.simulated {
		select {
		case <-time.After(simulatedLatency):
		case <-ctx.Done():
			return status.Error, "", ctx.Err()
		}
		return status.Success, "", nil
	}
	devStatus, _, err := d.GetDeviceAndChannelStatus(ctx)
	if err != nil {
		return status.Error, "", err
	}
	if devStatus != status.Up {
		return status.Error, "", nil
	}
	return status.Todo, "", nil
}

func (d *Injection) transfer(ctx context.Context) (status.Status, string, error) {
	if d.simulated {
		select {
		case <-time.After(simulatedLatency):
		case <-ctx.Done():
			return status.Error, "", ctx.Err()
		}
		return status.Success, "", nil
	}
	devStatus, _, err := d.GetDeviceAndChannelStatus(ctx)
	if err != nil {
		return status.Error, "", err
	}
	if devStatus != status.Up {
		return status.Error, "", nil
	}
	return status.Todo, "", nil
}

// noChannel runs a whole-device task that uses no channel, such as a valve
// actuation spanning both channels at once; the caller is responsible for
// marking the entire device busy for its duration.
func (d *Injection) noChannel(ctx context.Context, st *task.SubTask) (status.Status, string, error) {
	if d.simulated {
		return d.Init(ctx, st)
	}
	devStatus, _, err := d.GetDeviceAndChannelStatus(ctx)
	if err != nil {
		return status.Error, "", err
	}
	if devStatus != status.Up {
		return status.Error, "device is not up", nil
	}
	if _, _, err := d.communicate(ctx, "SubmitTask", st.MethodData); err != nil {
		return status.Error, "", err
	}
	return status.Todo, "", nil
}

func (d *Injection) GetDeviceAndChannelStatus(ctx context.Context) (status.Status, []status.Status, error) {
	d.mu.Lock()
	n := d.numberOfChans
	simulated := d.simulated
	d.mu.Unlock()

	if simulated {
		chans := make([]status.Status, n)
		for i := range chans {
			chans[i] = status.Idle
		}
		return status.Idle, chans, nil
	}
	return status.Todo, nil, nil
}

func (d *Injection) Read(ctx context.Context, channel *int) (status.Status, any, error) {
	return status.Invalid, nil, nil
}
