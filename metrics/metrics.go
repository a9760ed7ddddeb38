package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the service collectors on its own registry so tests can
// build as many as they like.
type Recorder struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	recordingsActive prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webforge",
			Name:      "proxy_requests_total",
			Help:      "Proxied requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webforge",
			Name:      "proxy_request_duration_seconds",
			Help:      "Time spent serving proxied requests, provider call included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		recordingsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webforge",
			Name:      "recordings_active",
			Help:      "Recording sessions currently holding a device.",
		}),
	}
	r.registry.MustRegister(r.requests, r.latency, r.recordingsActive)
	return r
}

// ObserveRequest records one proxied call. Outcome is "ok" or an error kind.
func (r *Recorder) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(endpoint, outcome).Inc()
	r.latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (r *Recorder) RecordingStarted() {
	if r != nil {
		r.recordingsActive.Inc()
	}
}

func (r *Recorder) RecordingStopped() {
	if r != nil {
		r.recordingsActive.Dec()
	}
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
