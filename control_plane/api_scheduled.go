package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/campuscast/campuscast/control_plane/controller"
	"github.com/campuscast/campuscast/control_plane/store"
)

// ScheduleRequest is the body of the schedule create/update calls.
type ScheduleRequest struct {
	Message string `json:"message"`
	Date    string `json:"date"` // YYYY-MM-DD
	Time    string `json:"time"` // HH:MM
	Repeat  string `json:"repeat,omitempty"`
	Zones   string `json:"zones,omitempty"`
	Type    string `json:"type"` // "text" or "voice"
	Audio   string `json:"audio,omitempty"`
	User    string `json:"user,omitempty"`
}

// parseScheduleTime validates the date/time pair and resolves it in the
// server's local zone, matching how the time shift rewrites documents.
func parseScheduleTime(date, clock string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
}

func validateScheduleRequest(req *ScheduleRequest) (time.Time, error) {
	if req.Message == "" && req.Audio == "" {
		return time.Time{}, fmt.Errorf("message or audio is required")
	}
	if req.Type != "text" && req.Type != "voice" {
		return time.Time{}, fmt.Errorf("type must be 'text' or 'voice'")
	}
	if req.Date == "" || req.Time == "" {
		return time.Time{}, fmt.Errorf("date and time are required")
	}
	at, err := parseScheduleTime(req.Date, req.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time: expected YYYY-MM-DD and HH:MM")
	}
	return at, nil
}

// scheduleTask builds the controller task mirroring a schedule document.
func scheduleTask(sched *store.Schedule, at time.Time) *controller.Task {
	task := controller.NewTask(sched.ID, controller.KindSchedule, controller.PrioritySchedule, map[string]string{
		"user":    sched.User,
		"message": sched.Message,
		"zones":   sched.Zones,
		"type":    sched.Type,
		"audio":   sched.Audio,
		"repeat":  sched.Repeat,
	})
	task.ScheduledTime = at
	return task
}

func (a *API) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate fully before any mutation.
	at, err := validateScheduleRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ok := userFor(r, req.User)
	if !ok {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	sched := &store.Schedule{
		ID:        uuid.New().String(),
		Message:   req.Message,
		Date:      req.Date,
		Time:      req.Time,
		Repeat:    req.Repeat,
		Zones:     req.Zones,
		Type:      req.Type,
		Audio:     req.Audio,
		User:      user,
		Status:    "Pending",
		CreatedAt: time.Now(),
	}

	if err := a.store.CreateSchedule(r.Context(), sched); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}

	a.controller.Request(scheduleTask(sched, at))

	a.addLog(r, user, "Schedule", "Created", fmt.Sprintf("Scheduled for %s %s", req.Date, req.Time))
	writeJSON(w, http.StatusCreated, sched)
}

func (a *API) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := a.store.ListSchedules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch schedules")
		return
	}
	if schedules == nil {
		schedules = []*store.Schedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (a *API) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := a.store.GetSchedule(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch schedule")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (a *API) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	at, err := validateScheduleRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := a.store.GetSchedule(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch schedule")
		return
	}

	user, _ := userFor(r, req.User)
	if user == "" {
		user = existing.User
	}

	updated := &store.Schedule{
		ID:        id,
		Message:   req.Message,
		Date:      req.Date,
		Time:      req.Time,
		Repeat:    req.Repeat,
		Zones:     req.Zones,
		Type:      req.Type,
		Audio:     req.Audio,
		User:      user,
		Status:    "Pending",
		CreatedAt: existing.CreatedAt,
	}

	if err := a.store.UpdateSchedule(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}

	// Re-sort the queue around the edited entry.
	a.controller.Remove(id)
	a.controller.Request(scheduleTask(updated, at))

	a.addLog(r, user, "Schedule", "Updated", fmt.Sprintf("Rescheduled to %s %s", req.Date, req.Time))
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := a.store.DeleteSchedule(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}

	// Drop it from the queue, and stop it if it is the one playing.
	a.controller.Remove(id)
	a.controller.Stop(id, controller.KindSchedule)

	user, _ := userFor(r, "")
	a.addLog(r, user, "Schedule", "Deleted", "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
