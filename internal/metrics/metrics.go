// Package metrics provides Prometheus instrumentation for the
// settlement engine.
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
	// MarketsCreated counts markets initialized.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paribook_markets_created_total",
		Help: "Total number of markets created",
	})

	// BetsPlaced counts accepted bets, partitioned by side.
	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paribook_bets_placed_total",
		Help: "Total number of bets accepted",
	}, []string{"outcome"})

	// BetsRejected counts bets rejected by guards (phase, auth, limits,
	// arithmetic).
	BetsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paribook_bets_rejected_total",
		Help: "Bets rejected by validation or limits",
	})

	// ClaimsPaid counts successful winnings claims.
	ClaimsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paribook_claims_paid_total",
		Help: "Total number of winning claims paid out",
	})

	// ClaimValue accumulates currency units paid to winners.
	ClaimValue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paribook_claim_value_units_total",
		Help: "Cumulative currency units paid out to winners",
	})

	// OpenMarkets tracks the number of unresolved markets.
	OpenMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paribook_open_markets",
		Help: "Number of markets not yet resolved",
	})

	// EscrowHeld tracks the currency units currently held across all
	// market escrows.
	EscrowHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paribook_escrow_held_units",
		Help: "Currency units currently held in market escrow",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paribook_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paribook_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paribook_http_request_duration_seconds",
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

		// Use the request path for the path label; routes here carry
		// fixed-width hex IDs, cardinality stays manageable.
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
