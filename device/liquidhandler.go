package device

import (
	"context"
	"time"

	"github.com/watlab/autocontrol/status"
	"github.com/watlab/autocontrol/task"
)

// LiquidHandler drives a liquid handling robot through init/prepare/transfer
// cycles, grounded on original_source/autocontrol/device_liquid_handler.py.
type LiquidHandler struct {
	base
}

// NewLiquidHandler returns a LiquidHandler device, unconfigured until Init
// runs.
func NewLiquidHandler(name, address string, simulated bool) *LiquidHandler {
	return &LiquidHandler{base: newBase(name, address, KindLiquidHandler, simulated)}
}

func (d *LiquidHandler) Init(ctx context.Context, st *task.SubTask) (status.Status, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.channelMode = task.ChannelModeNone
	if d.simulated {
		d.numberOfChans = initChannelCount(st)
		return status.Success, "", nil
	}

	d.address = st.DeviceAddress
	d.numberOfChans = initChannelCount(st)
	d.channelMode = st.ChannelMode
	return status.Todo, "device initialization not implemented", nil
}

func (d *LiquidHandler) ExecuteTask(ctx context.Context, st *task.SubTask, taskType task.Type) (status.Status, string, error) {
	switch taskType {
	case task.TypeInit:
		return d.Init(ctx, st)
	case task.TypePrepare:
		return d.prepare(ctx)
	case task.TypeTransfer:
		return d.transfer(ctx)
	default:
		return status.Invalid, "liquid handler does not handle this task type", nil
	}
}

func (d *LiquidHandler) prepare(ctx context.Context) (status.Status, string, error) {
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
		return status.Error, "device not up", nil
	}
	if _, _, err := d.communicate(ctx, "start", nil); err != nil {
		return status.Error, "", err
	}
	return status.Todo, "", nil
}

// transfer moves a sample from its source channel to a target device and
// channel on the same route. Marking the target channel busy is the
// scheduler's responsibility (the channel-occupancy table spans devices);
// this device call only drives the physical move.
func (d *LiquidHandler) transfer(ctx context.Context) (status.Status, string, error) {
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
		return status.Error, "device not up", nil
	}
	if _, _, err := d.communicate(ctx, "start", nil); err != nil {
		return status.Error, "", err
	}
	return status.Todo, "", nil
}

func (d *LiquidHandler) GetDeviceAndChannelStatus(ctx context.Context) (status.Status, []status.Status, error) {
	d.mu.Lock()
	n := d.numberOfChans
	simulated := d.simulated
	d.mu.Unlock()

	if simulated {
		chans := make([]status.Status, n)
		for i := range chans {
			chans[i] = status.Idle
		}
		return status.Up, chans, nil
	}
	return status.Todo, nil, nil
}

func (d *LiquidHandler) Read(ctx context.Context, channel *int) (status.Status, any, error) {
	return status.Invalid, nil, nil
}
