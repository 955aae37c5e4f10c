package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlaybackTransitions counts published state transitions by mode.
	PlaybackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pa_playback_transitions_total",
		Help: "Total number of published playback state transitions",
	}, []string{"mode"})

	// ArbiterDecisions counts admission decisions made by the controller.
	ArbiterDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pa_arbiter_decisions_total",
		Help: "Total number of arbitration decisions made",
	}, []string{"kind", "decision"})

	// QueueDepth tracks the number of pending schedules in the queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pa_schedule_queue_depth",
		Help: "Current number of schedules waiting in the controller queue",
	})

	// EmergencyActive reports whether the emergency latch is set.
	EmergencyActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pa_emergency_active",
		Help: "Emergency latch state (1 = active, 0 = inactive)",
	})

	// SchedulerTickDuration tracks the duration of scheduler loop ticks.
	SchedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pa_scheduler_tick_duration_seconds",
		Help:    "Duration of one scheduler loop tick",
		Buckets: prometheus.DefBuckets,
	})

	// SchedulesPromoted counts schedules promoted to playback by the loop.
	SchedulesPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pa_schedules_promoted_total",
		Help: "Total number of queued schedules promoted to playback",
	})

	// TimeShiftSeconds tracks the size of applied queue time shifts.
	TimeShiftSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pa_time_shift_seconds",
		Help:    "Duration stolen from the schedule queue per applied time shift",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
	})

	// StoreWriteFailures counts suppressed document store write failures.
	StoreWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pa_store_write_failures_total",
		Help: "Document store write failures (logged and suppressed, best-effort)",
	}, []string{"op"})

	// APIRateLimited tracks API requests rejected by rate limiters.
	APIRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pa_api_rate_limited_total",
		Help: "API requests rejected by rate limiter (storm protection)",
	}, []string{"endpoint"})

	// WSClients tracks the number of connected state stream clients.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pa_ws_clients",
		Help: "Current number of connected WebSocket state stream clients",
	})

	// RedisLatency tracks Redis operation roundtrip latency.
	RedisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pa_redis_roundtrip_latency_seconds",
		Help:    "Redis document operation latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
	})
)
