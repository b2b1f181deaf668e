package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/watlab/autocontrol/observability"
)

// Driver runs the scheduler's cooperative single-threaded loop: collect
// finished active tasks before attempting a new dispatch, and back off to
// a longer sleep whenever a tick does nothing. Grounded on server.py's
// background_task loop and the teacher's ticker-driven reconciliation
// loops (control_plane/reconciler.go, control_plane/main.go), generalized
// to the two-speed sleep_short/sleep_long cadence this spec calls for in
// place of the original's single fixed sleep.
type Driver struct {
	sched *Scheduler
}

// NewDriver wraps a Scheduler with a driver loop.
func NewDriver(sched *Scheduler) *Driver {
	return &Driver{sched: sched}
}

// Run blocks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := d.tick(ctx)
		timer.Reset(next)
	}
}

// tick runs one collect-then-dispatch step and returns how long to sleep
// before the next one.
func (d *Driver) tick(ctx context.Context) time.Duration {
	if scheduled, active, history, err := d.sched.QueueDepths(); err == nil {
		observability.ObserveQueueDepths(scheduled, active, history)
	}

	collected, err := d.sched.UpdateActive(ctx)
	if err != nil {
		log.Printf("scheduler: update_active failed: %v", err)
		return d.sched.cfg.SleepLong
	}
	if collected {
		return d.sched.cfg.SleepShort
	}

	if d.sched.IsPaused() {
		return d.sched.cfg.SleepLong
	}

	dispatched, err := d.sched.ExecuteOne(ctx)
	if err != nil {
		log.Printf("scheduler: execute_one failed: %v", err)
		return d.sched.cfg.SleepLong
	}
	if dispatched {
		return d.sched.cfg.SleepShort
	}
	return d.sched.cfg.SleepLong
}
