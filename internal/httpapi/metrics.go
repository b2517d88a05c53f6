package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// metricsStore owns its registry so tests can start from zero.
type metricsStore struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	appErrors    *prometheus.CounterVec
	removed      *prometheus.CounterVec
}

func newMetricsStore() *metricsStore {
	m := &metricsStore{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domainrouter_http_requests_total",
			Help: "HTTP requests by route pattern and status.",
		}, []string{"pattern", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "domainrouter_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pattern"}),
		appErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domainrouter_app_errors_total",
			Help: "Application errors returned to clients.",
		}, []string{"stage", "code"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domainrouter_entries_removed_total",
			Help: "Entries dropped by the reducer, by family and reason.",
		}, []string{"family", "reason"}),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.appErrors, m.removed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

var metrics = newMetricsStore()

func metricsIncRequest(pattern string, status int, dur time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	if pattern == "" {
		pattern = "(unknown)"
	}
	metrics.httpRequests.WithLabelValues(pattern, strconv.Itoa(status)).Inc()
	metrics.httpDuration.WithLabelValues(pattern).Observe(dur.Seconds())
}

func metricsIncAppError(stage, code string) {
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}
	metrics.appErrors.WithLabelValues(stage, code).Inc()
}

func metricsAddRemoved(records []model.Removal) {
	for _, r := range records {
		metrics.removed.WithLabelValues(string(r.Family), string(r.Reason)).Inc()
	}
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
