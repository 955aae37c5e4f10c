package main

import (
	"errors"
	"net/http"

	"github.com/campuscast/campuscast/control_plane/controller"
	"github.com/campuscast/campuscast/control_plane/store"
)

// StartBroadcastRequest is the body of POST /realtime/start.
type StartBroadcastRequest struct {
	ID      string `json:"id,omitempty"`
	User    string `json:"user"`
	Type    string `json:"type"` // "voice" or "text"
	Details string `json:"details,omitempty"`
	Zones   string `json:"zones,omitempty"`
}

// StopBroadcastRequest is the body of POST /realtime/stop.
type StopBroadcastRequest struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

func realtimeKind(t string) (controller.Kind, bool) {
	switch t {
	case "voice":
		return controller.KindVoice, true
	case "text":
		return controller.KindText, true
	default:
		return "", false
	}
}

func logTypeFor(kind controller.Kind) string {
	if kind == controller.KindVoice {
		return "Voice"
	}
	return "Text"
}

func (a *API) handleRealtimeStart(w http.ResponseWriter, r *http.Request) {
	if !a.realtimeLimiter.Allow() {
		a.writeRateLimitError(w, "realtime")
		return
	}

	var req StartBroadcastRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok := userFor(r, req.User)
	if !ok {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	kind, ok := realtimeKind(req.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, "type must be 'voice' or 'text'")
		return
	}

	task := controller.NewTask(req.ID, kind, controller.PriorityRealtime, map[string]string{
		"user":    user,
		"details": req.Details,
		"zones":   req.Zones,
	})

	if !a.controller.Request(task) {
		writeError(w, http.StatusConflict, "broadcast denied: channel busy or emergency active")
		return
	}

	a.addLog(r, user, logTypeFor(kind), "Started", req.Details)
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": task.ID, "status": "broadcasting"})
}

func (a *API) handleRealtimeStop(w http.ResponseWriter, r *http.Request) {
	var req StopBroadcastRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, _ := realtimeKind(req.Type)
	a.controller.Stop(req.ID, kind)

	user, _ := userFor(r, "")
	a.addLog(r, user, logTypeFor(kind), "Stopped", "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (a *API) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.store.ListLogs(r.Context(), a.cfg.LogListLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch logs")
		return
	}
	if logs == nil {
		logs = []*store.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *API) handleUpdateLog(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Action  string `json:"action,omitempty"`
		Details string `json:"details,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := a.store.UpdateLog(r.Context(), id, req.Action, req.Details); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *API) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := a.store.DeleteLog(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
