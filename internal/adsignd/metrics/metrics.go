// Package metrics holds the Prometheus collectors exported by adsignd
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsign_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsign_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Domain counters updated from the service layer
var (
	// Registrations counts self-registrations by result
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsign_registrations_total",
			Help: "Display self-registrations by result",
		},
		[]string{"result"},
	)

	// RegistrationRetries counts identifier collisions retried during registration
	RegistrationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adsign_registration_retries_total",
		Help: "Identifier or token collisions retried during registration",
	})

	// Decisions counts resolved connection requests by outcome
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsign_connection_request_decisions_total",
			Help: "Resolved connection requests by outcome",
		},
		[]string{"outcome"},
	)

	// Heartbeats counts device heartbeats by result
	Heartbeats = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsign_heartbeats_total",
			Help: "Device heartbeats by result",
		},
		[]string{"result"},
	)

	// SweptDisplays counts rejected displays removed by retention
	SweptDisplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adsign_retention_displays_deleted_total",
		Help: "Rejected, unassigned displays deleted by the retention sweeper",
	})

	// ConnectedDisplays is the number of open display websockets
	ConnectedDisplays = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adsign_websocket_connections",
		Help: "Open display websocket connections",
	})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency labelled by chi route
// pattern, which keeps ids and tokens out of label values
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
