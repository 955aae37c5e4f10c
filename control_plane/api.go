package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/campuscast/campuscast/control_plane/config"
	"github.com/campuscast/campuscast/control_plane/controller"
	"github.com/campuscast/campuscast/control_plane/middleware"
	"github.com/campuscast/campuscast/control_plane/observability"
	"github.com/campuscast/campuscast/control_plane/store"
)

// API wires the HTTP handlers to the controller and the document store.
type API struct {
	cfg        config.Config
	store      store.Store
	controller *controller.Controller
	wsHub      *StateHub

	// Storm protection
	realtimeLimiter  *rate.Limiter
	emergencyLimiter *rate.Limiter
}

func NewAPI(cfg config.Config, s store.Store, c *controller.Controller) *API {
	api := &API{
		cfg:        cfg,
		store:      s,
		controller: c,
		// Allow 10 realtime starts/sec, burst 20
		realtimeLimiter: rate.NewLimiter(rate.Limit(10), 20),
		// Allow 2 emergency toggles/sec, burst 5
		emergencyLimiter: rate.NewLimiter(rate.Limit(2), 5),
	}

	api.wsHub = NewStateHub(api.stateFrame)

	return api
}

// stateFrame builds the payload pushed to WebSocket clients: the current
// task, derived mode, and the queue.
func (a *API) stateFrame() interface{} {
	current := a.controller.Current()
	mode := controller.ModeIdle
	priority := controller.PriorityIdle
	if current != nil {
		mode = current.Kind.Mode()
		priority = current.Priority
	}
	return map[string]interface{}{
		"active_task": current,
		"mode":        mode,
		"priority":    int(priority),
		"queue":       a.controller.Snapshot(),
		"timestamp":   time.Now(),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRateLimitError writes a 429 with a jittered Retry-After.
func (a *API) writeRateLimitError(w http.ResponseWriter, endpoint string) {
	observability.APIRateLimited.WithLabelValues(endpoint).Inc()

	// Jitter: 1s base + 0-1000ms random
	retryAfter := 1000 + rand.Intn(1000)
	w.Header().Set("Retry-After", time.Duration(retryAfter*int(time.Millisecond)).Round(time.Second).String())
	writeError(w, http.StatusTooManyRequests, "too many requests (storm protection active)")
}

// decodeBody parses a JSON request body into dst with a 1 MiB size cap.
func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(dst)
}

// userFor resolves the acting user: the authenticated identity wins, the
// request body value is the fallback when auth is disabled.
func userFor(r *http.Request, bodyUser string) (string, bool) {
	if user, err := middleware.GetUserFromContext(r.Context()); err == nil && user != "" {
		return user, true
	}
	if bodyUser != "" {
		return bodyUser, true
	}
	return "", false
}

// addLog records a broadcast audit entry. Best-effort: the action already
// happened; a logging fault must not fail the request.
func (a *API) addLog(r *http.Request, user, logType, action, details string) {
	entry := store.NewLogEntry(user, logType, action, details)
	if err := a.store.AddLog(r.Context(), entry); err != nil {
		log.Printf("[API] Failed to write log entry (suppressed): %v", err)
		observability.StoreWriteFailures.WithLabelValues("log").Inc()
	}
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
