package main

import (
	"net/http"

	"github.com/campuscast/campuscast/control_plane/controller"
)

// AudioRequest is the body of the background music start/stop calls.
type AudioRequest struct {
	ID    string `json:"id,omitempty"`
	User  string `json:"user,omitempty"`
	Track string `json:"track,omitempty"`
	Zones string `json:"zones,omitempty"`
}

func (a *API) handleAudioStart(w http.ResponseWriter, r *http.Request) {
	var req AudioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok := userFor(r, req.User)
	if !ok {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	task := controller.NewTask(req.ID, controller.KindBackground, controller.PriorityBackground, map[string]string{
		"user":  user,
		"track": req.Track,
		"zones": req.Zones,
	})

	// An equal-priority background request swaps the track; anything higher
	// on the channel rejects it.
	if !a.controller.Request(task) {
		writeError(w, http.StatusConflict, "channel busy with a higher-priority broadcast")
		return
	}

	a.addLog(r, user, "Music", "Started", req.Track)
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": task.ID, "status": "playing"})
}

func (a *API) handleAudioStop(w http.ResponseWriter, r *http.Request) {
	var req AudioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a.controller.Stop(req.ID, controller.KindBackground)

	user, _ := userFor(r, req.User)
	a.addLog(r, user, "Music", "Stopped", "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}
