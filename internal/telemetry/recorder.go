package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const namespace = "tts"

// Recorder holds the adapter's Prometheus collectors. They live in a
// private registry so several recorders can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	cache    *prometheus.CounterVec
}

// NewRecorder registers the synthesis and cache collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synthesis_requests_total",
				Help:      "Synthesis requests by provider and outcome",
			},
			[]string{"provider", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_duration_seconds",
				Help:      "Wall time of synthesis requests",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"provider"},
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synthesis_bytes_total",
				Help:      "Audio bytes produced per provider",
			},
			[]string{"provider"},
		),
		cache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Synthesis cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveSynthesis implements tts.Observer. An empty reason counts as "ok".
func (r *Recorder) ObserveSynthesis(provider tts.ProviderID, reason tts.Reason, n int64, elapsed time.Duration) {
	status := "ok"
	if reason != "" {
		status = string(reason)
	}
	p := string(provider)
	if p == "" {
		p = "unknown"
	}
	r.requests.WithLabelValues(p, status).Inc()
	r.duration.WithLabelValues(p).Observe(elapsed.Seconds())
	if n > 0 {
		r.bytes.WithLabelValues(p).Add(float64(n))
	}
}

// ObserveCache counts a cache lookup.
func (r *Recorder) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
