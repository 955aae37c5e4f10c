package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/campuscast/campuscast/control_plane/store"
)

func (a *API) handleSystemState(w http.ResponseWriter, r *http.Request) {
	state, err := a.store.GetSystemState(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The store has never been written; report the live view instead.
			writeJSON(w, http.StatusOK, a.stateFrame())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch system state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) handleSystemQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queue":     a.controller.Snapshot(),
		"timestamp": time.Now(),
	})
}
