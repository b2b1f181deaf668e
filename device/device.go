// Package device defines the instrument-facing contract the scheduler
// dispatches sub-tasks through, and the small set of concrete device kinds
// (QCM-D, liquid handler, injection) that implement it over HTTP.
package device

import (
	"context"

	"github.com/watlab/autocontrol/status"
	"github.com/watlab/autocontrol/task"
)

// Kind names a device type a producer can request at init time.
type Kind string

const (
	KindQCMD          Kind = "qcmd"
	KindLiquidHandler Kind = "lh"
	KindInjection     Kind = "injection"
)

// ParseKind recognizes a device_type string in all-lowercase or
// all-uppercase spelling, matching the original autocontrol's acceptance
// of both 'qcmd' and 'QCMD' style spellings; mixed-case spellings are not
// recognized.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "qcmd", "QCMD":
		return KindQCMD, true
	case "lh", "LH":
		return KindLiquidHandler, true
	case "injection", "INJECTION":
		return KindInjection, true
	default:
		return "", false
	}
}

// Device is the uniform vtable every instrument driver implements. The
// scheduler never knows about QCMD vs. liquid handler vs. injection beyond
// this interface.
type Device interface {
	// Name is the device name it was registered under.
	Name() string

	// NumberOfChannels reports how many channels this device instance has,
	// fixed at Init time.
	NumberOfChannels() int

	// ChannelMode reports the channel-selection discipline the device
	// requires for subsequent tasks (empty, "reuse", or "new").
	ChannelMode() task.ChannelMode

	// Passive reports whether this device's channel occupancy is tracked
	// only via active tasks, never via the physical channel-occupancy
	// table (used for devices with no real exclusive-channel hardware
	// state, e.g. dummies in a test harness).
	Passive() bool

	// Simulated reports whether this instance short-circuits instrument
	// I/O with canned success responses.
	Simulated() bool

	// Init configures the device from an init sub-task.
	Init(ctx context.Context, st *task.SubTask) (status.Status, string, error)

	// ExecuteTask routes a sub-task to the handler for its task type.
	ExecuteTask(ctx context.Context, st *task.SubTask, taskType task.Type) (status.Status, string, error)

	// GetDeviceAndChannelStatus reports device status independent of
	// channels, plus per-channel status for every channel the device has.
	GetDeviceAndChannelStatus(ctx context.Context) (status.Status, []status.Status, error)

	// Read retrieves collected data for a channel (or the whole device,
	// when channel is nil), used after a measurement finishes.
	Read(ctx context.Context, channel *int) (status.Status, any, error)
}
