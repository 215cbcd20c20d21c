// Package metrics holds the telemetry backends. Every backend satisfies the
// recorder interfaces declared by core, prediction and weather so cmd/api
// can pick one from configuration.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raincheck/internal/types"
)

// Prometheus records into a private registry exposed through Handler.
type Prometheus struct {
	registry *prometheus.Registry

	requestLatency *prometheus.HistogramVec
	requestCount   *prometheus.CounterVec
	predictions    *prometheus.CounterVec
	probability    *prometheus.HistogramVec
	weatherFetches *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	modelsLoaded   prometheus.Gauge
}

// NewPrometheus registers the raincheck collectors under namespace, plus the
// Go runtime and process collectors.
func NewPrometheus(namespace string) *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	ns := promNamespace(namespace)

	return &Prometheus{
		registry: registry,
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint", "status"}),
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "api_requests_total",
			Help:      "HTTP requests by route pattern and status",
		}, []string{"method", "endpoint", "status"}),
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "predictions_total",
			Help:      "Predictions served by stadium and confidence tier",
		}, []string{"stadium", "confidence"}),
		probability: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "prediction_probability",
			Help:      "Distribution of cancellation probabilities",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}, []string{"stadium"}),
		weatherFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "weather_fetches_total",
			Help:      "Upstream weather fetches by source and outcome",
		}, []string{"source", "outcome"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "weather_cache_lookups_total",
			Help:      "Weather cache lookups by source and outcome",
		}, []string{"source", "outcome"}),
		modelsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "models_loaded",
			Help:      "Stadium models currently held by the registry",
		}),
	}
}

// RecordRequest implements core.MetricsCollector.
func (p *Prometheus) RecordRequest(method, endpoint, status string, duration time.Duration) {
	p.requestLatency.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	p.requestCount.WithLabelValues(method, endpoint, status).Inc()
}

// RecordPrediction implements prediction.MetricsRecorder.
func (p *Prometheus) RecordPrediction(stadiumID string, confidence types.Confidence, probability float64) {
	p.predictions.WithLabelValues(stadiumID, string(confidence)).Inc()
	p.probability.WithLabelValues(stadiumID).Observe(probability)
}

// RecordWeatherFetch implements weather.FetchRecorder.
func (p *Prometheus) RecordWeatherFetch(source types.DataSource, ok bool) {
	p.weatherFetches.WithLabelValues(string(source), fetchOutcome(ok)).Inc()
}

// RecordWeatherCache implements weather.CacheRecorder.
func (p *Prometheus) RecordWeatherCache(source types.DataSource, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	p.cacheLookups.WithLabelValues(string(source), outcome).Inc()
}

// SetModelsLoaded publishes the registry size.
func (p *Prometheus) SetModelsLoaded(n int) {
	p.modelsLoaded.Set(float64(n))
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the text exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func fetchOutcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// promNamespace lowercases a CloudWatch style namespace ("RainCheck") into
// a metric prefix ("raincheck").
func promNamespace(ns string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, ns)
}
