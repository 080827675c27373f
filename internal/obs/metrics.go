// Copyright 2025 James Ross
package obs

import (
	"fmt"
	"net/http"

	"github.com/flyingrobots/pigtrack/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_ticks_total",
		Help: "Total number of Engine.Tick calls run by the detector",
	})
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_tick_duration_seconds",
		Help:    "Histogram of Engine.Tick durations",
		Buckets: prometheus.DefBuckets,
	})
	NotificationsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_enqueued_total",
		Help: "Total number of notifications inserted into the outbox, by type",
	}, []string{"notif_type"})
	NotificationsDedupSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dedup_skipped_total",
		Help: "Total number of enqueue attempts that hit an existing dedup key, by type",
	}, []string{"notif_type"})
	NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notifications successfully delivered",
	})
	NotificationsRetried = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_retried_total",
		Help: "Total number of notification delivery attempts that failed and were retried",
	})
	NotificationsDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dead_lettered_total",
		Help: "Total number of notifications that exhausted their retry budget",
	})
	OutboxBacklog = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outbox_backlog",
		Help: "Current number of outbox rows in a given status",
	}, []string{"status"})
	CircuitBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "0 Closed, 1 HalfOpen, 2 Open",
	})
	CircuitBreakerTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "circuit_breaker_trips_total",
		Help: "Count of times the circuit breaker transitioned to Open",
	})
	StaleClaimsReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stale_claims_reclaimed_total",
		Help: "Total number of SENDING rows moved back to RETRY by the reclaim sweep",
	})
	ActivePigs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_pigs",
		Help: "Number of pigs the detector considered active in its last lookback window",
	})
)

func init() {
	prometheus.MustRegister(
		TicksProcessed, TickDuration,
		NotificationsEnqueued, NotificationsDedupSkipped,
		NotificationsSent, NotificationsRetried, NotificationsDeadLettered,
		OutboxBacklog, CircuitBreakerState, CircuitBreakerTrips,
		StaleClaimsReclaimed, ActivePigs,
	)
}

// StartMetricsServer exposes /metrics and returns a server for controlled shutdown.
// Retained for compatibility; StartHTTPServer also registers health endpoints.
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
