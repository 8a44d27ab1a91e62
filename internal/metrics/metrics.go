// Package metrics exposes Prometheus instrumentation for mcphub.
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

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

const (
	FileUpload   = "upload"
	FileDelete   = "delete"
	FileDownload = "download"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcphub_requests_total",
		Help: "Total HTTP requests by method, route, and response status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcphub_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	reconcileActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcphub_reconcile_actions_total",
		Help: "Corrective actions taken while reconciling persisted servers with live clients, by action and result.",
	}, []string{"action", "result"})

	clientConnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcphub_client_connects_total",
		Help: "MCP client connection attempts by result.",
	}, []string{"result"})

	clientPingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcphub_client_pings_total",
		Help: "MCP client health pings by result.",
	}, []string{"result"})

	liveClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcphub_live_clients",
		Help: "Number of live MCP clients by status.",
	}, []string{"status"})

	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcphub_file_operations_total",
		Help: "File storage operations by operation and result.",
	}, []string{"operation", "result"})
)

// Middleware records per-request metrics, labelled by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordReconcileAction records the outcome of a single reconciliation action.
func RecordReconcileAction(action string, success bool) {
	reconcileActionsTotal.WithLabelValues(action, result(success)).Inc()
}

// RecordConnect records an MCP client connection attempt.
func RecordConnect(success bool) {
	clientConnectsTotal.WithLabelValues(result(success)).Inc()
}

// RecordPing records an MCP client health ping.
func RecordPing(success bool) {
	clientPingsTotal.WithLabelValues(result(success)).Inc()
}

// SetLiveClients sets the live client gauge for a given status.
func SetLiveClients(status string, count float64) {
	liveClients.WithLabelValues(status).Set(count)
}

// RecordFileOperation records a file storage operation.
func RecordFileOperation(operation string, success bool) {
	filesTotal.WithLabelValues(operation, result(success)).Inc()
}

func result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}
