package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal            *prometheus.CounterVec
	queryDuration         *prometheus.HistogramVec
	queryCandidates       *prometheus.HistogramVec
	queryConfidence       *prometheus.HistogramVec
	strategyFailuresTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanewise",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lanewise",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lanewise",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanewise",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered knowledge-base queries by outcome.",
		},
		[]string{"service", "outcome"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lanewise",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	queryCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lanewise",
			Subsystem: "query",
			Name:      "fused_candidates",
			Help:      "Distribution of fused candidates per query.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		},
		[]string{"service"},
	)
	queryConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lanewise",
			Subsystem: "query",
			Name:      "confidence",
			Help:      "Distribution of answer confidence scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"service"},
	)
	strategyFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanewise",
			Subsystem: "query",
			Name:      "strategy_failures_total",
			Help:      "Total degraded retrieval strategies by name.",
		},
		[]string{"service", "strategy"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryDuration,
		queryCandidates,
		queryConfidence,
		strategyFailuresTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		queryTotal:            queryTotal,
		queryDuration:         queryDuration,
		queryCandidates:       queryCandidates,
		queryConfidence:       queryConfidence,
		strategyFailuresTotal: strategyFailuresTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses per-resource path segments so label cardinality
// stays bounded.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/kb/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/v1/kb/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return "/v1/kb/{kb_id}"
	}
	return "/v1/kb/{kb_id}/" + parts[1]
}

// QueryRecorder binds the engine's observation hook to this registry for
// one service label.
type QueryRecorder struct {
	metrics *HTTPServerMetrics
	service string
}

func (m *HTTPServerMetrics) QueryRecorder(service string) *QueryRecorder {
	return &QueryRecorder{metrics: m, service: service}
}

func (r *QueryRecorder) ObserveQuery(outcome string, duration time.Duration, fusedCandidates int, confidence float64) {
	if outcome == "" {
		outcome = "unknown"
	}
	r.metrics.queryTotal.WithLabelValues(r.service, outcome).Inc()
	r.metrics.queryDuration.WithLabelValues(r.service, outcome).Observe(duration.Seconds())
	r.metrics.queryCandidates.WithLabelValues(r.service).Observe(float64(fusedCandidates))
	if confidence > 0 {
		r.metrics.queryConfidence.WithLabelValues(r.service).Observe(confidence)
	}
}

func (r *QueryRecorder) StrategyFailure(strategy string) {
	if strategy == "" {
		strategy = "unknown"
	}
	r.metrics.strategyFailuresTotal.WithLabelValues(r.service, strategy).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
