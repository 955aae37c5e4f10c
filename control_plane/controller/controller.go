package controller

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/campuscast/campuscast/control_plane/observability"
	"github.com/campuscast/campuscast/control_plane/store"
	"github.com/campuscast/campuscast/control_plane/streaming"
)

// Controller is the playback arbitration controller: the single authority
// deciding which task owns the PA output channel at any moment. All state
// mutation happens inside one critical section; the lock is non-reentrant,
// so no exported method may call another exported method.
type Controller struct {
	mu sync.Mutex

	current       *Task
	queue         []*Task // schedules only, sorted by ScheduledTime
	emergencyMode bool
	pauseStart    time.Time // zero = no shift pending

	store     store.Store
	publisher streaming.Publisher

	// onTransition is nudged (non-blocking) after every published transition
	// so the WebSocket hub can push immediately instead of waiting a tick.
	onTransition func()

	now          func() time.Time
	tick         time.Duration
	writeTimeout time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Config holds controller tuning knobs.
type Config struct {
	// Tick is the scheduler loop cadence.
	Tick time.Duration
	// StoreWriteTimeout bounds every document write issued under the lock.
	StoreWriteTimeout time.Duration
}

// DefaultConfig returns the reference cadence and write bound.
func DefaultConfig() Config {
	return Config{
		Tick:              1 * time.Second,
		StoreWriteTimeout: 3 * time.Second,
	}
}

// New constructs the controller. It does not start the scheduler loop and
// does not touch the store; call ResetState and Start once wiring is done.
func New(s store.Store, pub streaming.Publisher, cfg Config) *Controller {
	if cfg.Tick <= 0 {
		cfg.Tick = 1 * time.Second
	}
	if cfg.StoreWriteTimeout <= 0 {
		cfg.StoreWriteTimeout = 3 * time.Second
	}
	return &Controller{
		store:        s,
		publisher:    pub,
		now:          time.Now,
		tick:         cfg.Tick,
		writeTimeout: cfg.StoreWriteTimeout,
		stopCh:       make(chan struct{}),
	}
}

// SetTransitionHook registers the post-transition nudge. Must be called
// before Start.
func (c *Controller) SetTransitionHook(fn func()) {
	c.onTransition = fn
}

// ResetState unconditionally publishes IDLE. Called once at startup, before
// the server accepts requests, so the state document never carries a stale
// task from a previous run.
func (c *Controller) ResetState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishLocked(nil, PriorityIdle, ModeIdle)
	log.Println("[Controller] State reset to IDLE")
}

// ArbitrationDecision is a structured log record for controller actions.
type ArbitrationDecision struct {
	Component string      `json:"component"`
	Decision  string      `json:"decision"` // START, QUEUE, PREEMPT, PROMOTE, STOP, REJECT_*
	TaskID    string      `json:"task_id"`
	Kind      string      `json:"kind"`
	Priority  int         `json:"priority"`
	Reason    string      `json:"reason,omitempty"`
	Metadata  interface{} `json:"metadata,omitempty"`
}

func logDecision(d ArbitrationDecision) {
	d.Component = "controller"
	bytes, _ := json.Marshal(d)
	log.Println(string(bytes))

	observability.ArbiterDecisions.WithLabelValues(d.Kind, d.Decision).Inc()
}

// Request admits a new task. Returns true if the task was started or queued.
// The new state has been published before Request returns.
func (c *Controller) Request(t *Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 1. Emergency latch: nothing below EMERGENCY gets in.
	if c.emergencyMode && t.Priority < PriorityEmergency {
		logDecision(ArbitrationDecision{
			Decision: "REJECT_EMERGENCY",
			TaskID:   t.ID, Kind: string(t.Kind), Priority: int(t.Priority),
			Reason: "emergency active",
		})
		return false
	}

	// 2. Schedules always queue; the scheduler loop promotes them when due.
	if t.Kind == KindSchedule {
		c.enqueueLocked(t)
		logDecision(ArbitrationDecision{
			Decision: "QUEUE",
			TaskID:   t.ID, Kind: string(t.Kind), Priority: int(t.Priority),
			Metadata: map[string]int{"queue_depth": len(c.queue)},
		})
		return true
	}

	// 3. Priority check. Equal-priority background requests swap tracks.
	currentPri := PriorityIdle
	if c.current != nil {
		currentPri = c.current.Priority
	}
	backgroundSwap := t.Priority == currentPri && currentPri == PriorityBackground

	if t.Priority > currentPri || backgroundSwap {
		c.preemptLocked()
		c.startLocked(t)
		return true
	}

	logDecision(ArbitrationDecision{
		Decision: "REJECT_BUSY",
		TaskID:   t.ID, Kind: string(t.Kind), Priority: int(t.Priority),
		Reason:   "lower or equal priority",
		Metadata: map[string]int{"current_priority": int(currentPri)},
	})
	return false
}

// Stop stops the currently playing task. Silent no-op when nothing plays,
// when the id does not match, or when a realtime task is addressed without
// an id (anti-zombie: a stale client must not kill a newer session).
func (c *Controller) Stop(id string, kindHint Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}

	if id != "" && c.current.ID != id {
		logDecision(ArbitrationDecision{
			Decision: "REJECT_STOP",
			TaskID:   id, Kind: string(kindHint),
			Reason:   "id mismatch",
			Metadata: map[string]string{"current_id": c.current.ID},
		})
		return
	}

	if id == "" && (c.current.Kind == KindVoice || c.current.Kind == KindText) {
		logDecision(ArbitrationDecision{
			Decision: "REJECT_STOP",
			Kind:     string(kindHint),
			Reason:   "missing task id for realtime task",
		})
		return
	}

	stopped := c.current
	stopped.Status = StatusCompleted

	if stopped.Priority == PriorityEmergency {
		c.emergencyMode = false
		observability.EmergencyActive.Set(0)
	}

	c.current = nil
	logDecision(ArbitrationDecision{
		Decision: "STOP",
		TaskID:   stopped.ID, Kind: string(stopped.Kind), Priority: int(stopped.Priority),
	})

	c.publishLocked(nil, PriorityIdle, ModeIdle)

	// The channel just went idle: give stolen time back to the queue.
	c.applyQueueShiftLocked()
}

// Remove drops any queued task with the given id. The current task is never
// affected.
func (c *Controller) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.queue[:0]
	for _, t := range c.queue {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	c.queue = kept
	observability.QueueDepth.Set(float64(len(c.queue)))
}

// Snapshot returns a copy of the queued tasks in queue order.
func (c *Controller) Snapshot() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Task, len(c.queue))
	for i, t := range c.queue {
		result[i] = *t
	}
	return result
}

// Current returns a copy of the playing task, or nil when idle.
func (c *Controller) Current() *Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	taskCopy := *c.current
	return &taskCopy
}

// ActiveEmergencyUser returns the user that activated the running emergency
// broadcast. The HTTP layer uses it to enforce owner-only deactivation.
func (c *Controller) ActiveEmergencyUser() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.Priority == PriorityEmergency {
		return c.current.Payload["user"], true
	}
	return "", false
}

// --- internal, all called with c.mu held ---

func (c *Controller) enqueueLocked(t *Task) {
	c.queue = append(c.queue, t)
	sort.SliceStable(c.queue, func(i, j int) bool {
		return c.queue[i].ScheduledTime.Before(c.queue[j].ScheduledTime)
	})
	observability.QueueDepth.Set(float64(len(c.queue)))
}

// preemptLocked displaces the current task, if any. Schedules are soft
// stopped and re-queued at the head; realtime and background tasks are
// killed outright.
func (c *Controller) preemptLocked() {
	if c.current == nil {
		return
	}

	displaced := c.current
	switch displaced.Kind {
	case KindSchedule:
		displaced.Status = StatusInterrupted
		// Head insert, ignoring sort order: the next promotion pops it.
		c.queue = append([]*Task{displaced}, c.queue...)
		observability.QueueDepth.Set(float64(len(c.queue)))
		logDecision(ArbitrationDecision{
			Decision: "PREEMPT",
			TaskID:   displaced.ID, Kind: string(displaced.Kind), Priority: int(displaced.Priority),
			Reason: "soft: re-queued at head",
		})
	default:
		displaced.Status = StatusCompleted
		logDecision(ArbitrationDecision{
			Decision: "PREEMPT",
			TaskID:   displaced.ID, Kind: string(displaced.Kind), Priority: int(displaced.Priority),
			Reason: "hard: discarded",
		})
	}

	c.current = nil
}

func (c *Controller) startLocked(t *Task) {
	c.current = t
	t.Status = StatusPlaying

	// Queued schedules lose this window; remember when the theft began.
	if t.Priority >= PriorityRealtime && c.pauseStart.IsZero() {
		c.pauseStart = c.now()
		log.Printf("[Controller] Time shift tracking started at %s", c.pauseStart.Format(time.RFC3339))
	}

	if t.Kind == KindEmergency {
		c.emergencyMode = true
		observability.EmergencyActive.Set(1)
	}

	mode := t.Kind.Mode()
	logDecision(ArbitrationDecision{
		Decision: "START",
		TaskID:   t.ID, Kind: string(t.Kind), Priority: int(t.Priority),
		Metadata: map[string]string{"mode": string(mode)},
	})

	c.publishLocked(t, t.Priority, mode)
}

// publishLocked writes the state document and emits the transition event.
// Both are best-effort: the in-memory transition is authoritative, the
// channel is a physical resource and its state must match reality even when
// persistence lags.
func (c *Controller) publishLocked(t *Task, priority Priority, mode Mode) {
	var activeTask json.RawMessage
	if t != nil {
		data, err := json.Marshal(t.doc())
		if err != nil {
			log.Printf("[Controller] Failed to serialize task %s: %v", t.ID, err)
		} else {
			activeTask = data
		}
	}

	state := &store.SystemState{
		ActiveTask: activeTask,
		Priority:   int(priority),
		Mode:       string(mode),
		Timestamp:  c.now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	if err := c.store.SetSystemState(ctx, state); err != nil {
		log.Printf("[Controller] State write failed (suppressed): %v", err)
		observability.StoreWriteFailures.WithLabelValues("system_state").Inc()
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, "playback.state", state); err != nil {
			log.Printf("[Controller] Event publish failed (suppressed): %v", err)
		}
	}

	observability.PlaybackTransitions.WithLabelValues(string(mode)).Inc()

	if c.onTransition != nil {
		c.onTransition()
	}
}
