// Package metrics provides Prometheus instrumentation for the margin engine.
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
	// LiquidationRuns counts liquidation runs by terminal status.
	LiquidationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txp_liquidation_runs_total",
		Help: "Liquidation runs by terminal status",
	}, []string{"status"})

	// PositionsLiquidated counts positions forcibly closed.
	PositionsLiquidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txp_positions_liquidated_total",
		Help: "Positions forcibly closed",
	})

	// PositionFailures counts per-position closure failures inside runs.
	PositionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txp_liquidation_position_failures_total",
		Help: "Per-position closure failures inside liquidation runs",
	})

	// LiquidationSlippage observes the amplified slippage applied per closure.
	LiquidationSlippage = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "txp_liquidation_slippage_percent",
		Help:    "Amplified slippage percent applied per forced closure",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// CarryChargesApplied counts carry-cost charges by asset class.
	CarryChargesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txp_carry_charges_total",
		Help: "Carry-cost charges applied, by asset class",
	}, []string{"class"})

	// CarryAccrualFailures counts skipped positions during accrual cycles.
	CarryAccrualFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "txp_carry_accrual_failures_total",
		Help: "Positions skipped during carry-cost accrual",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "txp_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "txp_http_request_duration_seconds",
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

		// Use the raw path for the label; the route surface is small and
		// fixed, so cardinality stays bounded.
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
