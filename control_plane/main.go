package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campuscast/campuscast/control_plane/config"
	"github.com/campuscast/campuscast/control_plane/controller"
	"github.com/campuscast/campuscast/control_plane/middleware"
	"github.com/campuscast/campuscast/control_plane/store"
	"github.com/campuscast/campuscast/control_plane/streaming"
)

func buildStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.PostgresDSN)
	case "redis":
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "", "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, errors.New("unknown store backend: " + cfg.StoreBackend)
	}
}

// replayPendingSchedules re-enqueues Pending schedule documents after a
// restart. The controller never reconstructs its own queue; admission goes
// through the normal arbitration path.
func replayPendingSchedules(ctx context.Context, s store.Store, c *controller.Controller) {
	schedules, err := s.ListSchedules(ctx)
	if err != nil {
		log.Printf("[Startup] Failed to list schedules for replay: %v", err)
		return
	}

	replayed := 0
	for _, sched := range schedules {
		if sched.Status != "Pending" {
			continue
		}
		at, err := parseScheduleTime(sched.Date, sched.Time)
		if err != nil {
			log.Printf("[Startup] Skipping schedule %s: bad date/time %q %q", sched.ID, sched.Date, sched.Time)
			continue
		}
		if c.Request(scheduleTask(sched, at)) {
			replayed++
		}
	}
	log.Printf("[Startup] Replayed %d pending schedule(s)", replayed)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect store backend %q: %v", cfg.StoreBackend, err)
	}
	log.Printf("Using %s store backend", cfg.StoreBackend)

	publisher := streaming.NewLogPublisher()
	defer publisher.Close()

	ctrl := controller.New(s, publisher, controller.Config{
		Tick:              cfg.SchedulerTick,
		StoreWriteTimeout: cfg.StoreWriteTimeout,
	})

	api := NewAPI(cfg, s, ctrl)
	ctrl.SetTransitionHook(api.wsHub.Notify)

	// The channel is a physical resource: after a restart nothing is playing,
	// whatever the last run left in the state document.
	ctrl.ResetState()

	if cfg.ReplayPendingSchedules {
		replayPendingSchedules(ctx, s, ctrl)
	}

	ctrl.Start()
	go api.wsHub.Run(ctx)

	// protect wraps a handler with bearer auth unless auth is disabled.
	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.AuthDisabled {
			return h
		}
		return middleware.AuthMiddleware(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /realtime/start", protect(api.handleRealtimeStart))
	mux.Handle("POST /realtime/stop", protect(api.handleRealtimeStop))
	mux.Handle("GET /realtime/logs", protect(api.handleListLogs))
	mux.Handle("PUT /realtime/logs/{id}", protect(api.handleUpdateLog))
	mux.Handle("DELETE /realtime/logs/{id}", protect(api.handleDeleteLog))

	mux.Handle("POST /emergency/activate", protect(api.handleEmergencyActivate))
	mux.Handle("POST /emergency/deactivate", protect(api.handleEmergencyDeactivate))
	mux.Handle("GET /emergency", protect(api.handleEmergencyStatus))

	mux.Handle("POST /scheduled", protect(api.handleCreateSchedule))
	mux.Handle("GET /scheduled", protect(api.handleListSchedules))
	mux.Handle("GET /scheduled/{id}", protect(api.handleGetSchedule))
	mux.Handle("PUT /scheduled/{id}", protect(api.handleUpdateSchedule))
	mux.Handle("DELETE /scheduled/{id}", protect(api.handleDeleteSchedule))

	mux.Handle("POST /audio/start", protect(api.handleAudioStart))
	mux.Handle("POST /audio/stop", protect(api.handleAudioStop))

	mux.Handle("GET /system/state", protect(api.handleSystemState))
	mux.Handle("GET /system/queue", protect(api.handleSystemQueue))

	mux.HandleFunc("GET /health", api.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /ws/state", protect(api.handleStateStream))

	// Wrap all routes with CORS middleware for frontend access
	handler := middleware.CORSMiddleware(mux)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("PA control plane listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	ctrl.Shutdown()
	log.Println("PA control plane stopped")
}
