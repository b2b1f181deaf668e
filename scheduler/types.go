// Package scheduler implements the scheduling and channel-allocation core:
// priority dispatch, sample-to-channel binding, interference detection,
// route-planning against sample-mixing devices, dependency gating, and the
// scheduled/active/history lifecycle.
package scheduler

import (
	"time"

	"github.com/watlab/autocontrol/device"
	"github.com/watlab/autocontrol/task"
)

// Config tunes the parts of the scheduler the original left as constants.
type Config struct {
	// StatusTimeout bounds a get-device-and-channel-status round trip.
	StatusTimeout time.Duration
	// DispatchTimeout bounds an execute_task round trip.
	DispatchTimeout time.Duration
	// SleepShort/SleepLong are the Driver's cooperative-loop intervals.
	SleepShort time.Duration
	SleepLong  time.Duration
}

// DefaultConfig matches spec: 100ms/5s driver cadence, generous device
// timeouts (teacher: 5s dispatch in jobs.go).
func DefaultConfig() Config {
	return Config{
		StatusTimeout:   3 * time.Second,
		DispatchTimeout: 5 * time.Second,
		SleepShort:      100 * time.Millisecond,
		SleepLong:       5 * time.Second,
	}
}

// registryEntry is the device registry record §3 describes: produced by an
// init task, keyed by device name.
type registryEntry struct {
	device        device.Device
	deviceType    device.Kind
	deviceAddress string
	sampleMixing  bool
}

// Recorder observes scheduling decisions for metrics/timeline sinks. Both
// are optional; a nil Recorder means no observability hooks fire. Kept as
// a small interface here (rather than importing observability/timeline
// directly) to avoid a dependency cycle, matching the teacher's habit of
// taking narrow interfaces at its package boundaries.
type Recorder interface {
	// Decision is called once per dispatch/collection outcome, e.g.
	// "DISPATCH", "BLOCKED_DEPENDENCY", "BLOCKED_ROUTE",
	// "BLOCKED_INTERFERENCE", "COLLECTED".
	Decision(kind string, t *task.Task)
}

// noopRecorder discards every decision.
type noopRecorder struct{}

func (noopRecorder) Decision(string, *task.Task) {}

// taskTypeBands is the fixed priority-band order execute_one walks: init
// alone, then the four body types together, then shutdown last.
var taskTypeBands = []map[task.Type]bool{
	{task.TypeInit: true},
	{
		task.TypePrepare:  true,
		task.TypeTransfer: true,
		task.TypeMeasure:  true,
		task.TypeNoChan:   true,
	},
	{task.TypeShutdown: true},
}
