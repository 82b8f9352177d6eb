package observability

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RideTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridedash", Name: "ride_transitions_total", Help: "Ride lifecycle transitions applied"},
		[]string{"transition"},
	)
	RideTransitionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ridedash", Name: "ride_transition_conflicts_total", Help: "Transitions rejected because the ride already moved on"},
	)
	ConnectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: "ridedash", Name: "connected_sessions", Help: "Currently connected WebSocket sessions"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridedash", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridedash",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// Middleware records request counts and latency for every route. The chi
// wrapper keeps Hijacker and Flusher reachable, which the WebSocket upgrade
// on /ws depends on.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			// Hijacked connections never call WriteHeader
			code = http.StatusOK
		}
		status := strconv.Itoa(code)
		HTTPRequestsTotal.WithLabelValues(r.Method, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
	})
}
