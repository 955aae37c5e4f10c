package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/campuscast/campuscast/control_plane/auth"
	"github.com/campuscast/campuscast/control_plane/controller"
	"github.com/campuscast/campuscast/control_plane/middleware"
	"github.com/campuscast/campuscast/control_plane/store"
)

// EmergencyRequest is the body of the emergency activate/deactivate calls.
type EmergencyRequest struct {
	User string `json:"user"`
}

func (a *API) handleEmergencyActivate(w http.ResponseWriter, r *http.Request) {
	if !a.emergencyLimiter.Allow() {
		a.writeRateLimitError(w, "emergency")
		return
	}

	var req EmergencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok := userFor(r, req.User)
	if !ok {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	task := controller.NewTask("", controller.KindEmergency, controller.PriorityEmergency, map[string]string{
		"user": user,
	})

	if !a.controller.Request(task) {
		// Only another emergency can hold the channel at this point.
		writeError(w, http.StatusConflict, "emergency broadcast already active")
		return
	}

	a.recordEmergencyEvent(r, user, "ACTIVATED")
	a.addLog(r, user, "Emergency", "Started", "Emergency broadcast activated")
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": task.ID, "status": "emergency_active"})
}

func (a *API) handleEmergencyDeactivate(w http.ResponseWriter, r *http.Request) {
	if !a.emergencyLimiter.Allow() {
		a.writeRateLimitError(w, "emergency")
		return
	}

	var req EmergencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok := userFor(r, req.User)
	if !ok {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	owner, active := a.controller.ActiveEmergencyUser()
	if !active {
		writeError(w, http.StatusConflict, "no emergency broadcast active")
		return
	}

	// Only the activating user or an admin may stand down.
	role, _ := middleware.GetRoleFromContext(r.Context())
	if user != owner && role != auth.RoleAdmin {
		writeError(w, http.StatusForbidden, "only the activating user or an admin can deactivate")
		return
	}

	a.controller.Stop("", controller.KindEmergency)

	a.recordEmergencyEvent(r, user, "DEACTIVATED")
	a.addLog(r, user, "Emergency", "Stopped", "Emergency broadcast deactivated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (a *API) handleEmergencyStatus(w http.ResponseWriter, r *http.Request) {
	state, err := a.store.GetEmergencyState(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, &store.EmergencyState{History: []store.EmergencyEvent{}})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch emergency state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// recordEmergencyEvent prepends a toggle event to the emergency history
// document. Best-effort, like the audit log.
func (a *API) recordEmergencyEvent(r *http.Request, user, action string) {
	state, err := a.store.GetEmergencyState(r.Context())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[API] Failed to read emergency state (suppressed): %v", err)
		return
	}
	if state == nil {
		state = &store.EmergencyState{}
	}

	state.Active = action == "ACTIVATED"
	state.History = append([]store.EmergencyEvent{{
		ID:     uuid.New().String(),
		Action: action,
		Time:   time.Now().Format(time.RFC3339),
		User:   user,
	}}, state.History...)

	// Keep the dashboard history bounded.
	if len(state.History) > 100 {
		state.History = state.History[:100]
	}

	if err := a.store.SetEmergencyState(r.Context(), state); err != nil {
		log.Printf("[API] Failed to write emergency state (suppressed): %v", err)
	}
}
