// Package observability exposes the scheduler's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/watlab/autocontrol/task"
)

var (
	// QueueDepth tracks pending task counts per store (scheduled, active,
	// history).
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "autocontrol_queue_depth",
		Help: "Current number of tasks held in each scheduler store",
	}, []string{"store"})

	// SchedulerDecisions counts dispatch/block/collect outcomes by kind and
	// task type.
	SchedulerDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autocontrol_scheduler_decisions_total",
		Help: "Total scheduling decisions by kind",
	}, []string{"kind", "task_type"})

	// ChannelOccupancy tracks the fraction of a device's channels currently
	// claimed.
	ChannelOccupancy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "autocontrol_channel_occupancy_ratio",
		Help: "Fraction of a device's channels currently occupied",
	}, []string{"device"})

	// DeviceStatusPollLatency tracks get-device-and-channel-status round
	// trip time.
	DeviceStatusPollLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autocontrol_device_status_poll_seconds",
		Help:    "Latency of device/channel status polls",
		Buckets: prometheus.DefBuckets,
	}, []string{"device"})

	// DependencyGateStalls counts ExecuteOne cycles abandoned because the
	// first eligible task in a priority band was blocked on a dependency.
	DependencyGateStalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autocontrol_dependency_gate_stalls_total",
		Help: "Dispatch cycles abandoned by dependency gating",
	})

	// RedisLatency tracks idempotency-store round trip latency when backed
	// by Redis.
	RedisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autocontrol_idempotency_redis_roundtrip_seconds",
		Help:    "Idempotency store Redis round trip latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})
)

// MetricsRecorder implements scheduler.Recorder by updating the package's
// Prometheus collectors; it carries no state of its own.
type MetricsRecorder struct{}

// Decision records a scheduling outcome and, for the dependency-gating
// case, the dedicated stall counter spec §9 calls for.
func (MetricsRecorder) Decision(kind string, t *task.Task) {
	if t == nil {
		return
	}
	SchedulerDecisions.WithLabelValues(kind, string(t.Type)).Inc()
	if kind == "BLOCKED_DEPENDENCY" {
		DependencyGateStalls.Inc()
	}
}

// ObserveChannelOccupancy records the current occupied/total ratio for a
// device, called by the scheduler whenever it touches the occupancy
// table.
func ObserveChannelOccupancy(device string, occupied, total int) {
	if total <= 0 {
		return
	}
	ChannelOccupancy.WithLabelValues(device).Set(float64(occupied) / float64(total))
}

// ObserveQueueDepths records the current size of each store, meant to be
// called on Driver's cooperative-loop cadence.
func ObserveQueueDepths(scheduled, active, history int) {
	QueueDepth.WithLabelValues("scheduled").Set(float64(scheduled))
	QueueDepth.WithLabelValues("active").Set(float64(active))
	QueueDepth.WithLabelValues("history").Set(float64(history))
}

// ObserveDeviceStatusPoll records a GetDeviceAndChannelStatus round trip's
// latency, called by the scheduler at every status-poll call site.
func ObserveDeviceStatusPoll(device string, d time.Duration) {
	DeviceStatusPollLatency.WithLabelValues(device).Observe(d.Seconds())
}
