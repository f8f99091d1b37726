// Package metrics provides Prometheus instrumentation for the portfolio engine.
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
	// TradesTotal counts sandbox trades executed, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_trades_total",
		Help: "Total number of sandbox trades executed",
	}, []string{"side"})

	// TradeRejections counts trades rejected by business rules.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_trade_rejections_total",
		Help: "Trades rejected before any mutation",
	}, []string{"reason"})

	// PriceRefreshesTotal counts price-cache refresh batches.
	PriceRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_price_refreshes_total",
		Help: "Price cache refresh batches, by trigger",
	}, []string{"mode"}) // "stale" or "force"

	// CacheLookupsTotal counts per-symbol staleness decisions.
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_price_cache_lookups_total",
		Help: "Per-symbol cache lookups, by outcome",
	}, []string{"outcome"}) // "fresh" or "stale"

	// ProviderLatency tracks market-data provider round-trip time.
	ProviderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "folio_provider_latency_seconds",
		Help:    "Market-data provider batch call latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ProviderErrorsTotal counts failed provider batches (after retries).
	ProviderErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_provider_errors_total",
		Help: "Market-data provider batch failures",
	})

	// HoldingsRecalculated counts holdings written during ledger replay.
	HoldingsRecalculated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_holdings_recalculated_total",
		Help: "Holding rows created, updated, or deleted by replay",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// WebSocketClients tracks connected quote-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "folio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})
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
