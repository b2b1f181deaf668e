// Package store holds the durable, queryable containers backing the
// scheduler's three task queues (scheduled, active, history).
package store

import (
	"github.com/google/uuid"

	"github.com/watlab/autocontrol/task"
)

// DeviceChannel names one hop of a sample's projected route through the
// device network.
type DeviceChannel struct {
	Device  string
	Channel *int
}

// TaskStore is a durable, thread-safe container of tasks keyed by task id,
// supporting the priority-ordered and interference queries the scheduler
// core needs. Each of the scheduled/active/history queues is a separate
// TaskStore instance.
type TaskStore interface {
	Put(t *task.Task) error
	Remove(id uuid.UUID) error
	Replace(t *task.Task, id uuid.UUID) error
	Clear() error
	Empty() (bool, error)

	GetAll() ([]*task.Task, error)
	GetTaskByID(id uuid.UUID) (*task.Task, error)
	GetTaskBySampleNumber(sampleNumber int) ([]*task.Task, error)

	// GetAndRemoveByPriority returns the highest-priority task whose type is
	// in types (nil means any type) and whose sample number is not in
	// blocked. If remove is true the task is deleted from the store.
	GetAndRemoveByPriority(types map[task.Type]bool, remove bool, blocked map[int]bool) (*task.Task, error)

	GetLowestSampleNumber() (int, bool, error)

	// FindChannels returns the union of channels used by stored sub-tasks,
	// optionally filtered by sample number and/or device name.
	FindChannels(sampleNumber *int, device string) ([]int, error)

	// FindInterference reports whether any sub-task of t collides on
	// (device, channel) with a sub-task of a stored task.
	FindInterference(t *task.Task) (bool, error)

	// GetFutureDevices walks stored transfer tasks to project the
	// downstream device path of a sample currently at (device, channel).
	GetFutureDevices(sampleNumber int, device string, channel *int) ([]DeviceChannel, error)
}
