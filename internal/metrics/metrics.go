// Package metrics provides Prometheus instrumentation for the settlement engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RoundsTotal counts settlement rounds executed.
	RoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enermatch_rounds_total",
		Help: "Total number of settlement rounds executed",
	})

	// RoundDuration tracks full pipeline latency per round.
	RoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enermatch_round_duration_seconds",
		Help:    "Settlement round duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// MatchesTotal counts committed matches across all rounds.
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enermatch_matches_total",
		Help: "Total number of committed producer-consumer matches",
	})

	// TransfersTotal counts emitted transfer instructions by direction.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enermatch_transfers_total",
		Help: "Total transfer instructions emitted",
	}, []string{"direction"})

	// SettlementSkips counts matches dropped because a source record or
	// rate went missing between matching and settlement.
	SettlementSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enermatch_settlement_skips_total",
		Help: "Matches skipped during settlement due to missing data",
	})

	// BookSize tracks the current number of records per book side.
	BookSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "enermatch_book_size",
		Help: "Number of records currently in each order book",
	}, []string{"side"})

	// IngestRejections counts listings rejected at ingestion by reason.
	IngestRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enermatch_ingest_rejections_total",
		Help: "Listings rejected at ingestion",
	}, []string{"side", "reason"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enermatch_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enermatch_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "enermatch_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
