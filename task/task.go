// Package task defines the submitted unit of work (Task) and its
// instrument-facing steps (SubTask) that flow through the scheduler.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates the task-type priority bands the scheduler dispatches
// in: {init} > {prepare, transfer, measure, nochannel} > {shutdown}.
type Type string

const (
	TypeNone     Type = "none"
	TypeInit     Type = "init"
	TypePrepare  Type = "prepare"
	TypeTransfer Type = "transfer"
	TypeMeasure  Type = "measure"
	TypeNoChan   Type = "nochannel"
	TypeShutdown Type = "shutdown"
)

// ChannelMode controls how a device picks a free channel for a sample that
// has no pinned channel.
type ChannelMode string

const (
	ChannelModeNone  ChannelMode = ""      // any free channel, lowest-numbered
	ChannelModeReuse ChannelMode = "reuse" // prefer a channel this sample already used
	ChannelModeNew   ChannelMode = "new"   // require a channel this sample has not used
)

// SubTask is the instrument-facing unit of a Task. Every Task has at least
// one; transfers have two or more, one per device on the route.
type SubTask struct {
	ID         uuid.UUID         `json:"id"`
	Device     string            `json:"device"`
	Channel    *int              `json:"channel,omitempty"`
	MethodData map[string]any    `json:"method_data,omitempty"`
	MD         map[string]string `json:"md"`

	// Init-only fields.
	DeviceType    string      `json:"device_type,omitempty"`
	DeviceAddress string      `json:"device_address,omitempty"`
	ChannelMode   ChannelMode `json:"channel_mode,omitempty"`
	NumberOfChans int         `json:"number_of_channels,omitempty"`
	Simulated     bool        `json:"simulated,omitempty"`
	// SampleMixing is nil when the producer didn't set it, which per spec
	// means true (mixing allowed); use SampleMixingOrDefault to read it.
	SampleMixing *bool `json:"sample_mixing,omitempty"`

	// Measure-only.
	AcquisitionTime *float64 `json:"acquisition_time,omitempty"`
	MeasurementData any      `json:"measurement_data,omitempty"`

	// Transfer-only: when set, this sub-task uses no device channel.
	NonChannelStorage *string `json:"non_channel_storage,omitempty"`
}

// NewSubTask returns a SubTask with a fresh id and maps initialized.
// SampleMixing is left nil (defaults to true per spec, see
// SampleMixingOrDefault) so a literal SubTask{} built without this
// constructor defaults identically.
func NewSubTask(device string) SubTask {
	return SubTask{
		ID:     uuid.New(),
		Device: device,
		MD:     map[string]string{},
	}
}

// SampleMixingOrDefault returns SampleMixing if the producer set it, else
// true — spec.md's documented default.
func (st *SubTask) SampleMixingOrDefault() bool {
	if st.SampleMixing == nil {
		return true
	}
	return *st.SampleMixing
}

// Task is the top-level unit submitted by a producer.
type Task struct {
	ID        uuid.UUID         `json:"id"`
	SampleID  uuid.UUID         `json:"sample_id"`
	SampleNum *int              `json:"sample_number,omitempty"`
	Priority  *float64          `json:"priority,omitempty"`
	Type      Type              `json:"task_type"`
	Tasks     []SubTask         `json:"tasks"`
	History   []uuid.UUID       `json:"task_history"`
	MD        map[string]string `json:"md"`

	DependencyID             *uuid.UUID `json:"dependency_id,omitempty"`
	DependencySampleNumber   *int       `json:"dependency_sample_number,omitempty"`
	ExecutionStartTime       time.Time  `json:"execution_start_time,omitempty"`
	WaitForQueueToEmpty      bool       `json:"wait_for_queue_to_empty,omitempty"`
}

// New returns a Task with a fresh id and initialized collections.
func New(typ Type) *Task {
	return &Task{
		ID:      uuid.New(),
		Type:    typ,
		Tasks:   nil,
		History: nil,
		MD:      map[string]string{},
	}
}

// First returns the first sub-task, the common case for everything but
// transfers.
func (t *Task) First() *SubTask {
	if len(t.Tasks) == 0 {
		return nil
	}
	return &t.Tasks[0]
}

// Last returns the final sub-task on a (possibly multi-hop) route.
func (t *Task) Last() *SubTask {
	if len(t.Tasks) == 0 {
		return nil
	}
	return &t.Tasks[len(t.Tasks)-1]
}

// ClearSubmissionResponses resets the per-run md fields process_task always
// clears before re-evaluating a task (spec §7).
func (t *Task) ClearSubmissionResponses() {
	if t.MD == nil {
		t.MD = map[string]string{}
	}
	t.MD["submission_response"] = ""
	for i := range t.Tasks {
		if t.Tasks[i].MD == nil {
			t.Tasks[i].MD = map[string]string{}
		}
		t.Tasks[i].MD["submission_response"] = ""
	}
}

// Clone returns a deep-enough copy safe to mutate independently of the
// stored original (stores must never hand back aliased tasks).
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Tasks = make([]SubTask, len(t.Tasks))
	copy(cp.Tasks, t.Tasks)
	for i := range cp.Tasks {
		cp.Tasks[i].MD = cloneStringMap(t.Tasks[i].MD)
		cp.Tasks[i].MethodData = cloneAnyMap(t.Tasks[i].MethodData)
		if t.Tasks[i].Channel != nil {
			c := *t.Tasks[i].Channel
			cp.Tasks[i].Channel = &c
		}
	}
	cp.History = append([]uuid.UUID(nil), t.History...)
	cp.MD = cloneStringMap(t.MD)
	if t.SampleNum != nil {
		n := *t.SampleNum
		cp.SampleNum = &n
	}
	if t.Priority != nil {
		p := *t.Priority
		cp.Priority = &p
	}
	if t.DependencyID != nil {
		d := *t.DependencyID
		cp.DependencyID = &d
	}
	if t.DependencySampleNumber != nil {
		d := *t.DependencySampleNumber
		cp.DependencySampleNumber = &d
	}
	return &cp
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
