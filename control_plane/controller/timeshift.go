package controller

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/campuscast/campuscast/control_plane/observability"
	"github.com/campuscast/campuscast/control_plane/store"
)

// applyQueueShiftLocked runs when the channel transitions to idle. Every
// queued schedule is pushed forward by the duration a REALTIME-or-higher
// task occupied the channel, so the original inter-schedule spacing survives
// the interruption instead of collapsing into a burst the moment the channel
// frees.
//
// Called with c.mu held.
func (c *Controller) applyQueueShiftLocked() {
	if c.pauseStart.IsZero() {
		return
	}

	now := c.now()
	delta := now.Sub(c.pauseStart)
	c.pauseStart = time.Time{}

	if delta <= 0 || len(c.queue) == 0 {
		// Zero shift is a no-op on both the queue and the store.
		return
	}

	log.Printf("[Controller] Applying time shift: +%v to %d schedules", delta, len(c.queue))

	shifts := make([]store.ScheduleShift, 0, len(c.queue))
	for _, t := range c.queue {
		t.ScheduledTime = t.ScheduledTime.Add(delta)
	}

	// Relative order is preserved by the uniform shift, but the head-inserted
	// INTERRUPTED task may sort differently now; stable sort restores the
	// invariant.
	sort.SliceStable(c.queue, func(i, j int) bool {
		return c.queue[i].ScheduledTime.Before(c.queue[j].ScheduledTime)
	})

	for _, t := range c.queue {
		local := t.ScheduledTime.In(time.Local)
		shifts = append(shifts, store.ScheduleShift{
			ID:   t.ID,
			Date: local.Format("2006-01-02"),
			Time: local.Format("15:04"),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	if err := c.store.BatchShiftSchedules(ctx, shifts); err != nil {
		log.Printf("[Controller] Time shift batch write failed (suppressed): %v", err)
		observability.StoreWriteFailures.WithLabelValues("schedule_shift").Inc()
	} else {
		log.Printf("[Controller] Persisted shift for %d schedules", len(shifts))
	}

	observability.TimeShiftSeconds.Observe(delta.Seconds())

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, "schedule.timeshift", map[string]interface{}{
			"delta_seconds": delta.Seconds(),
			"shifted":       len(shifts),
		}); err != nil {
			log.Printf("[Controller] Event publish failed (suppressed): %v", err)
		}
	}
}
