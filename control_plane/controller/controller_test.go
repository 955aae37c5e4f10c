package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campuscast/campuscast/control_plane/store"
)

// recordingStore wraps MemoryStore and records batch shift writes.
type recordingStore struct {
	*store.MemoryStore
	mu         sync.Mutex
	shiftCalls int
	lastShifts []store.ScheduleShift
}

func (r *recordingStore) BatchShiftSchedules(ctx context.Context, shifts []store.ScheduleShift) error {
	r.mu.Lock()
	r.shiftCalls++
	r.lastShifts = append([]store.ScheduleShift(nil), shifts...)
	r.mu.Unlock()
	return r.MemoryStore.BatchShiftSchedules(ctx, shifts)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestController(s store.Store) (*Controller, *fakeClock) {
	c := New(s, nil, DefaultConfig())
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)}
	c.now = clock.Now
	return c, clock
}

func voiceTask(id string) *Task {
	return NewTask(id, KindVoice, PriorityRealtime, map[string]string{"user": "operator"})
}

func scheduleTaskAt(id string, at time.Time) *Task {
	t := NewTask(id, KindSchedule, PrioritySchedule, map[string]string{"message": "announcement"})
	t.ScheduledTime = at
	return t
}

func TestVoiceStartsOnIdleChannel(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	if !c.Request(voiceTask("v1")) {
		t.Fatal("Expected voice broadcast to start on idle channel")
	}

	current := c.Current()
	if current == nil || current.ID != "v1" {
		t.Fatalf("Expected v1 playing, got %+v", current)
	}
	if current.Status != StatusPlaying {
		t.Errorf("Expected status PLAYING, got %d", current.Status)
	}
}

func TestEqualPriorityRealtimeRejected(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	c.Request(voiceTask("v1"))
	if c.Request(voiceTask("v2")) {
		t.Error("Expected second realtime broadcast to be rejected")
	}
	if current := c.Current(); current.ID != "v1" {
		t.Errorf("Expected v1 still playing, got %s", current.ID)
	}
}

func TestEmergencyPreemptsVoice(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	voice := voiceTask("v1")
	c.Request(voice)

	emergency := NewTask("e1", KindEmergency, PriorityEmergency, map[string]string{"user": "chief"})
	if !c.Request(emergency) {
		t.Fatal("Expected emergency to preempt voice")
	}

	if voice.Status != StatusCompleted {
		t.Errorf("Expected displaced voice task COMPLETED, got %d", voice.Status)
	}
	current := c.Current()
	if current.Kind != KindEmergency {
		t.Errorf("Expected emergency playing, got %s", current.Kind)
	}
}

func TestEmergencyLatchBlocksEverythingBelow(t *testing.T) {
	c, clock := newTestController(store.NewMemoryStore())

	c.Request(NewTask("e1", KindEmergency, PriorityEmergency, nil))

	if c.Request(voiceTask("v1")) {
		t.Error("Expected voice rejected during emergency")
	}
	if c.Request(NewTask("b1", KindBackground, PriorityBackground, nil)) {
		t.Error("Expected background rejected during emergency")
	}
	if c.Request(scheduleTaskAt("s1", clock.Now())) {
		t.Error("Expected schedule rejected during emergency")
	}
}

func TestEmergencyStopClearsLatch(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	c.Request(NewTask("e1", KindEmergency, PriorityEmergency, nil))
	c.Stop("", KindEmergency)

	if c.Current() != nil {
		t.Fatal("Expected idle channel after emergency stop")
	}
	if !c.Request(voiceTask("v1")) {
		t.Error("Expected voice accepted once the latch is cleared")
	}
}

func TestScheduleQueuesWhileBusy(t *testing.T) {
	c, clock := newTestController(store.NewMemoryStore())

	c.Request(voiceTask("v1"))
	if !c.Request(scheduleTaskAt("s1", clock.Now().Add(time.Minute))) {
		t.Fatal("Expected schedule to queue while channel is busy")
	}

	if current := c.Current(); current.ID != "v1" {
		t.Errorf("Expected v1 still playing, got %s", current.ID)
	}
	if queue := c.Snapshot(); len(queue) != 1 || queue[0].ID != "s1" {
		t.Errorf("Expected s1 queued, got %+v", queue)
	}
}

func TestQueueOrderedByScheduledTime(t *testing.T) {
	c, clock := newTestController(store.NewMemoryStore())
	base := clock.Now()

	c.Request(scheduleTaskAt("late", base.Add(30*time.Minute)))
	c.Request(scheduleTaskAt("early", base.Add(10*time.Minute)))
	c.Request(scheduleTaskAt("middle", base.Add(20*time.Minute)))

	queue := c.Snapshot()
	want := []string{"early", "middle", "late"}
	for i, id := range want {
		if queue[i].ID != id {
			t.Errorf("Queue position %d: expected %s, got %s", i, id, queue[i].ID)
		}
	}
}

func TestPromoteDueStartsHead(t *testing.T) {
	s := store.NewMemoryStore()
	s.CreateSchedule(context.Background(), &store.Schedule{ID: "s1", Status: "Pending"})
	c, clock := newTestController(s)

	c.Request(scheduleTaskAt("s1", clock.Now().Add(10*time.Second)))

	c.promoteDue()
	if c.Current() != nil {
		t.Fatal("Expected no promotion before the head is due")
	}

	clock.Advance(10 * time.Second)
	c.promoteDue()

	current := c.Current()
	if current == nil || current.ID != "s1" {
		t.Fatalf("Expected s1 promoted, got %+v", current)
	}
	if current.Priority != PrioritySchedule {
		t.Errorf("Expected promoted priority %d, got %d", PrioritySchedule, current.Priority)
	}
	if len(c.Snapshot()) != 0 {
		t.Error("Expected empty queue after promotion")
	}

	doc, err := s.GetSchedule(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSchedule failed: %v", err)
	}
	if doc.Status != "Completed" {
		t.Errorf("Expected schedule document marked Completed, got %s", doc.Status)
	}
}

func TestPromoteDueSkipsWhileBusy(t *testing.T) {
	c, clock := newTestController(store.NewMemoryStore())

	c.Request(voiceTask("v1"))
	c.Request(scheduleTaskAt("s1", clock.Now()))

	c.promoteDue()
	if current := c.Current(); current.ID != "v1" {
		t.Errorf("Expected v1 still playing, got %s", current.ID)
	}
	if len(c.Snapshot()) != 1 {
		t.Error("Expected schedule still queued while channel is busy")
	}
}

func TestInterruptedScheduleResumesFirst(t *testing.T) {
	s := store.NewMemoryStore()
	s.CreateSchedule(context.Background(), &store.Schedule{ID: "s1", Status: "Pending"})
	s.CreateSchedule(context.Background(), &store.Schedule{ID: "s2", Status: "Pending"})
	c, clock := newTestController(s)

	c.Request(scheduleTaskAt("s1", clock.Now()))
	c.Request(scheduleTaskAt("s2", clock.Now().Add(5*time.Minute)))
	c.promoteDue()

	// Live broadcast cuts in mid-announcement.
	if !c.Request(voiceTask("v1")) {
		t.Fatal("Expected voice to preempt the playing schedule")
	}

	queue := c.Snapshot()
	if queue[0].ID != "s1" || queue[0].Status != StatusInterrupted {
		t.Fatalf("Expected interrupted s1 at queue head, got %+v", queue)
	}

	clock.Advance(20 * time.Second)
	c.Stop("v1", KindVoice)

	c.promoteDue()
	current := c.Current()
	if current == nil || current.ID != "s1" {
		t.Fatalf("Expected interrupted s1 to resume first, got %+v", current)
	}
}

func TestTimeShiftOnIdleTransition(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.CreateSchedule(context.Background(), &store.Schedule{ID: "s1", Status: "Pending"})
	mem.CreateSchedule(context.Background(), &store.Schedule{ID: "s2", Status: "Pending"})
	rec := &recordingStore{MemoryStore: mem}
	c, clock := newTestController(rec)

	base := clock.Now()
	c.Request(scheduleTaskAt("s1", base.Add(10*time.Minute)))
	c.Request(scheduleTaskAt("s2", base.Add(20*time.Minute)))

	c.Request(voiceTask("v1"))
	clock.Advance(150 * time.Second)
	c.Stop("v1", KindVoice)

	queue := c.Snapshot()
	if got, want := queue[0].ScheduledTime, base.Add(10*time.Minute+150*time.Second); !got.Equal(want) {
		t.Errorf("s1 scheduled time: expected %v, got %v", want, got)
	}
	if got, want := queue[1].ScheduledTime, base.Add(20*time.Minute+150*time.Second); !got.Equal(want) {
		t.Errorf("s2 scheduled time: expected %v, got %v", want, got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.shiftCalls != 1 {
		t.Fatalf("Expected 1 batch shift write, got %d", rec.shiftCalls)
	}
	wantTime := base.Add(10*time.Minute + 150*time.Second).In(time.Local)
	if rec.lastShifts[0].ID != "s1" || rec.lastShifts[0].Time != wantTime.Format("15:04") {
		t.Errorf("Unexpected first shift entry: %+v", rec.lastShifts[0])
	}
	if rec.lastShifts[0].Date != wantTime.Format("2006-01-02") {
		t.Errorf("Unexpected shift date: %s", rec.lastShifts[0].Date)
	}

	c.mu.Lock()
	if !c.pauseStart.IsZero() {
		t.Error("Expected pause tracking cleared after shift")
	}
	c.mu.Unlock()
}

func TestTimeShiftZeroDeltaIsNoop(t *testing.T) {
	rec := &recordingStore{MemoryStore: store.NewMemoryStore()}
	c, clock := newTestController(rec)

	c.Request(scheduleTaskAt("s1", clock.Now().Add(10*time.Minute)))
	c.Request(voiceTask("v1"))
	c.Stop("v1", KindVoice) // clock never advanced

	queue := c.Snapshot()
	if got, want := queue[0].ScheduledTime, clock.Now().Add(10*time.Minute); !got.Equal(want) {
		t.Errorf("Expected scheduled time unchanged, got %v", got)
	}
	rec.mu.Lock()
	if rec.shiftCalls != 0 {
		t.Errorf("Expected no batch shift write for zero delta, got %d", rec.shiftCalls)
	}
	rec.mu.Unlock()
}

func TestBackgroundDoesNotArmTimeShift(t *testing.T) {
	rec := &recordingStore{MemoryStore: store.NewMemoryStore()}
	c, clock := newTestController(rec)

	c.Request(scheduleTaskAt("s1", clock.Now().Add(10*time.Minute)))
	c.Request(NewTask("b1", KindBackground, PriorityBackground, nil))
	clock.Advance(time.Minute)
	c.Stop("b1", KindBackground)

	rec.mu.Lock()
	if rec.shiftCalls != 0 {
		t.Errorf("Expected no shift after background playback, got %d writes", rec.shiftCalls)
	}
	rec.mu.Unlock()
}

func TestBackgroundSwap(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	first := NewTask("b1", KindBackground, PriorityBackground, map[string]string{"track": "morning"})
	c.Request(first)

	second := NewTask("b2", KindBackground, PriorityBackground, map[string]string{"track": "afternoon"})
	if !c.Request(second) {
		t.Fatal("Expected equal-priority background request to swap tracks")
	}

	if first.Status != StatusCompleted {
		t.Errorf("Expected displaced track COMPLETED, got %d", first.Status)
	}
	if current := c.Current(); current.ID != "b2" {
		t.Errorf("Expected b2 playing, got %s", current.ID)
	}
}

func TestBackgroundRejectedWhileRealtimePlays(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	c.Request(voiceTask("v1"))
	if c.Request(NewTask("b1", KindBackground, PriorityBackground, nil)) {
		t.Error("Expected background rejected while a broadcast plays")
	}
}

func TestStopRejectsMissingIDForRealtime(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	c.Request(voiceTask("v1"))
	c.Stop("", KindVoice)

	if current := c.Current(); current == nil || current.ID != "v1" {
		t.Error("Expected id-less stop of a realtime task to be ignored")
	}
}

func TestStopRejectsIDMismatch(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	c.Request(voiceTask("v1"))
	c.Stop("stale-id", KindVoice)

	if current := c.Current(); current == nil || current.ID != "v1" {
		t.Error("Expected mismatched stop to be ignored")
	}

	c.Stop("v1", KindVoice)
	if c.Current() != nil {
		t.Error("Expected matching stop to succeed")
	}
}

func TestStopBackgroundWithoutID(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	c.Request(NewTask("b1", KindBackground, PriorityBackground, nil))
	c.Stop("", KindBackground)

	if c.Current() != nil {
		t.Error("Expected id-less stop to halt background playback")
	}
}

func TestRemoveDropsQueuedTask(t *testing.T) {
	c, clock := newTestController(store.NewMemoryStore())

	c.Request(scheduleTaskAt("s1", clock.Now().Add(10*time.Minute)))
	c.Request(scheduleTaskAt("s2", clock.Now().Add(20*time.Minute)))

	c.Remove("s1")

	queue := c.Snapshot()
	if len(queue) != 1 || queue[0].ID != "s2" {
		t.Errorf("Expected only s2 queued, got %+v", queue)
	}
}

func TestResetStatePublishesIdle(t *testing.T) {
	s := store.NewMemoryStore()
	c, _ := newTestController(s)

	c.ResetState()

	state, err := s.GetSystemState(context.Background())
	if err != nil {
		t.Fatalf("GetSystemState failed: %v", err)
	}
	if state.Mode != string(ModeIdle) {
		t.Errorf("Expected mode IDLE, got %s", state.Mode)
	}
	if state.Priority != int(PriorityIdle) {
		t.Errorf("Expected priority 0, got %d", state.Priority)
	}
	if state.ActiveTask != nil {
		t.Errorf("Expected null active task, got %s", state.ActiveTask)
	}
}

func TestActiveEmergencyUser(t *testing.T) {
	c, _ := newTestController(store.NewMemoryStore())

	if _, active := c.ActiveEmergencyUser(); active {
		t.Error("Expected no emergency owner on idle channel")
	}

	c.Request(NewTask("e1", KindEmergency, PriorityEmergency, map[string]string{"user": "chief"}))

	user, active := c.ActiveEmergencyUser()
	if !active || user != "chief" {
		t.Errorf("Expected owner 'chief', got %q (active=%v)", user, active)
	}
}

func TestSchedulerLoopPromotesWithinTick(t *testing.T) {
	s := store.NewMemoryStore()
	s.CreateSchedule(context.Background(), &store.Schedule{ID: "s1", Status: "Pending"})
	c := New(s, nil, Config{Tick: 10 * time.Millisecond})

	c.Request(scheduleTaskAt("s1", time.Now()))

	c.Start()
	defer c.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if current := c.Current(); current != nil && current.ID == "s1" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Scheduler loop never promoted the due schedule")
}
