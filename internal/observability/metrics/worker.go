package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the ingestion pipeline: how many documents were
// processed, how long extraction plus indexing took, and how long a
// document sat on the queue before a worker picked it up.
type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),
		processTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanewise",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Documents processed by the ingestion pipeline, by status.",
		}, []string{"service", "status"}),
		processDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lanewise",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "End-to-end pipeline duration per document, by status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "status"}),
		processInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "lanewise",
			Subsystem:   "worker",
			Name:        "document_process_in_flight",
			Help:        "Documents currently moving through the pipeline.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		queueLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lanewise",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"service"}),
	}

	m.registry.MustRegister(m.processTotal, m.processDuration, m.processInFlight, m.queueLag)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

// ObserveQueueLag ignores negative lag from clock skew between the api
// node that stamped CreatedAt and the worker node.
func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
