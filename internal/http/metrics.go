package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
)

const metricsNamespace = "prasthav"

// metrics owns the Prometheus registry for one server.
type metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	dbQueryDuration  *prometheus.HistogramVec
	dbQueryErrors    *prometheus.CounterVec
	externalDuration *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	workspaces       prometheus.GaugeFunc
}

func newMetrics(liveWorkspaces func() float64) *metrics {
	registry := prometheus.NewRegistry()
	m := &metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled by this app.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests currently served by this app.",
		}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "db_query_duration_seconds",
			Help:      "Session store query duration by connector/operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"connector", "operation"}),
		dbQueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "db_query_errors_total",
			Help:      "Session store query errors by connector/operation.",
		}, []string{"connector", "operation"}),
		externalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "external_call_duration_seconds",
			Help:      "DPR backend call duration by target/operation.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"target", "operation"}),
		externalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "external_call_errors_total",
			Help:      "DPR backend call errors by target/operation/kind.",
		}, []string{"target", "operation", "kind"}),
	}
	if liveWorkspaces == nil {
		liveWorkspaces = func() float64 { return 0 }
	}
	m.workspaces = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "workspaces",
		Help:      "Signed-in workspaces held in memory.",
	}, liveWorkspaces)

	registry.MustRegister(
		m.httpRequests, m.httpDuration, m.inFlight,
		m.dbQueryDuration, m.dbQueryErrors,
		m.externalDuration, m.externalErrors,
		m.workspaces,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

func (m *metrics) recordHTTPMetric(method, path string, status int, durationSeconds float64) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.httpDuration.WithLabelValues(method, path, code).Observe(durationSeconds)
}

func (m *metrics) recordDBQuery(connector, operation string, durationSeconds float64, err error) {
	if connector == "" || operation == "" {
		return
	}
	m.dbQueryDuration.WithLabelValues(connector, operation).Observe(durationSeconds)
	if err != nil {
		m.dbQueryErrors.WithLabelValues(connector, operation).Inc()
	}
}

func (m *metrics) recordExternalProbe(target, operation string, durationSeconds float64, err error) {
	if target == "" || operation == "" {
		return
	}
	m.externalDuration.WithLabelValues(target, operation).Observe(durationSeconds)
	if err != nil {
		kind := dpr.KindTransport.String()
		var de *dpr.Error
		if errors.As(err, &de) {
			kind = de.Kind.String()
		}
		m.externalErrors.WithLabelValues(target, operation, kind).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func observabilityMiddleware(m *metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.recordHTTPMetric(r.Method, normalizeMetricPath(r.URL.Path), rec.status, time.Since(start).Seconds())
	})
}

// normalizeMetricPath folds job ids out of route labels.
func normalizeMetricPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/app/evaluate/"):
		return "/app/evaluate/{jobId}"
	case strings.HasPrefix(path, "/app/dpr/") && strings.HasSuffix(path, "/delete"):
		return "/app/dpr/{jobId}/delete"
	default:
		return path
	}
}

// meteredBackend records every DPR API call as an external probe.
type meteredBackend struct {
	next    dprBackend
	metrics *metrics
}

const dprTarget = "dpr_api"

func (b *meteredBackend) observe(op dpr.Op, start time.Time, err error) {
	b.metrics.recordExternalProbe(dprTarget, string(op), time.Since(start).Seconds(), err)
}

func (b *meteredBackend) List(ctx context.Context) ([]dpr.Job, error) {
	start := time.Now()
	jobs, err := b.next.List(ctx)
	b.observe(dpr.OpList, start, err)
	return jobs, err
}

func (b *meteredBackend) Submit(ctx context.Context, filename string, content io.Reader) (string, error) {
	start := time.Now()
	jobID, err := b.next.Submit(ctx, filename, content)
	b.observe(dpr.OpUpload, start, err)
	return jobID, err
}

func (b *meteredBackend) Status(ctx context.Context, jobID string) (*dpr.StatusResponse, error) {
	start := time.Now()
	resp, err := b.next.Status(ctx, jobID)
	b.observe(dpr.OpStatus, start, err)
	return resp, err
}

func (b *meteredBackend) Remove(ctx context.Context, jobID string) (string, error) {
	start := time.Now()
	msg, err := b.next.Remove(ctx, jobID)
	b.observe(dpr.OpDelete, start, err)
	return msg, err
}

func (b *meteredBackend) Enabled() bool {
	return b.next.Enabled()
}

func (b *meteredBackend) Endpoint() string {
	return b.next.Endpoint()
}
