// Package status defines the closed execution-state vocabulary shared by
// devices, channels, and scheduler requests.
package status

import "strings"

// Status is the closed set of execution-state tags used uniformly across
// device, channel, and request outcomes.
type Status int

const (
	Success Status = iota
	Error
	Warning
	Busy
	Invalid
	Todo
	Idle
	Up
	Down
)

var names = [...]string{
	"success", "error", "warning", "busy", "invalid", "todo", "idle", "up", "down",
}

func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(names) {
		return "unknown"
	}
	return names[s]
}

// Ready reports whether a status indicates the device or channel can accept
// new work: up or idle, nothing else.
func (s Status) Ready() bool {
	return s == Up || s == Idle
}

// Parse converts a string (case-insensitive) into a Status. The second
// return value is false if the string isn't a recognized status.
func Parse(s string) (Status, bool) {
	ls := strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == ls {
			return Status(i), true
		}
	}
	return Invalid, false
}
