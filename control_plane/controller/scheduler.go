package controller

import (
	"context"
	"log"
	"time"

	"github.com/campuscast/campuscast/control_plane/observability"
)

// Start launches the scheduler loop: a single background goroutine that
// wakes every tick and, while the channel is idle, promotes the earliest due
// schedule. The loop re-acquires the controller lock on every tick and never
// sleeps while holding it.
func (c *Controller) Start() {
	c.wg.Add(1)
	go c.schedulerLoop()
}

// Shutdown stops the scheduler loop at the next tick boundary. In-flight
// requests complete normally.
func (c *Controller) Shutdown() {
	close(c.stopCh)
	c.wg.Wait()
	log.Println("[Scheduler] Loop stopped")
}

func (c *Controller) schedulerLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	log.Printf("[Scheduler] Loop started (tick=%v)", c.tick)

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			start := time.Now()
			c.promoteDue()
			observability.SchedulerTickDuration.Observe(time.Since(start).Seconds())
		}
	}
}

// promoteDue pops the queue head if the channel is idle and the head is due.
// It deliberately does not skip ahead: an INTERRUPTED task re-queued at the
// head resumes before anything behind it.
func (c *Controller) promoteDue() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return // busy
	}
	if len(c.queue) == 0 {
		return
	}

	head := c.queue[0]
	if head.ScheduledTime.After(c.now()) {
		return // head not due yet
	}

	c.queue = c.queue[1:]
	observability.QueueDepth.Set(float64(len(c.queue)))

	// The schedule may have been edited while queued; it plays at its own tier.
	head.Priority = PrioritySchedule

	logDecision(ArbitrationDecision{
		Decision: "PROMOTE",
		TaskID:   head.ID, Kind: string(head.Kind), Priority: int(head.Priority),
	})
	observability.SchedulesPromoted.Inc()

	// Best-effort: the schedule document flips to Completed so the dashboard
	// stops listing it as pending.
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()
	if err := c.store.MarkScheduleCompleted(ctx, head.ID); err != nil {
		log.Printf("[Scheduler] Failed to mark schedule %s completed (suppressed): %v", head.ID, err)
		observability.StoreWriteFailures.WithLabelValues("schedule_completed").Inc()
	}

	c.startLocked(head)
}
