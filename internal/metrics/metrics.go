// Package metrics provides Prometheus instrumentation for the venue engine.
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
	// TradesTotal counts confirmed crosses.
	TradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zeroday_trades_total",
		Help: "Total number of confirmed trades",
	})

	// LiquidationsTotal counts force-closed positions.
	LiquidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zeroday_liquidations_total",
		Help: "Total number of liquidations",
	})

	// OrdersPlacedTotal counts admitted orders by side.
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeroday_orders_placed_total",
		Help: "Total number of orders admitted to the book",
	}, []string{"side"})

	// OrdersExpiredTotal counts orders discarded as expired at the head.
	OrdersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zeroday_orders_expired_total",
		Help: "Orders discarded as expired at match time",
	})

	// SettlementFailuresTotal counts transient propagation failures.
	SettlementFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeroday_settlement_failures_total",
		Help: "Transient failures propagating to the authoritative ledger",
	}, []string{"op"})

	// SweepDuration tracks how long matching/liquidation sweeps take.
	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zeroday_sweep_duration_seconds",
		Help:    "Duration of matching and liquidation sweeps",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"kind"})

	// RestingOrders tracks the current book depth per side.
	RestingOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zeroday_resting_orders",
		Help: "Number of resting orders per side",
	}, []string{"side"})

	// RejectionsTotal counts caller-correctable rejections by kind.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeroday_rejections_total",
		Help: "Rejected operations by rejection kind",
	}, []string{"kind"})

	// WebSocketClients tracks connected event-stream clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zeroday_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeroday_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zeroday_http_request_duration_seconds",
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
