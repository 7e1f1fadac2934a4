// Package metrics records per-provider LLM call metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Observation is one completed provider call.
type Observation struct {
	Provider         string
	Model            string
	Purpose          string
	PromptTokens     int
	CompletionTokens int
	Success          bool
	ErrorType        string
	Duration         time.Duration
}

// Recorder records LLM call metrics.
type Recorder interface {
	ObserveRequest(obs Observation)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// Nop returns a recorder that discards everything.
func Nop() Recorder {
	return NoopRecorder{}
}

// ObserveRequest does nothing.
func (NoopRecorder) ObserveRequest(Observation) {}

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the LLM collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by provider, model, purpose and status",
			},
			[]string{"provider", "model", "purpose", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"provider", "model", "purpose", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "purpose"},
		),
	}
}

// ObserveRequest implements Recorder.
func (p *PrometheusRecorder) ObserveRequest(obs Observation) {
	status := "success"
	if !obs.Success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(obs.Provider, obs.Model, obs.Purpose, status, obs.ErrorType).Inc()

	if obs.Success {
		p.tokensTotal.WithLabelValues(obs.Provider, obs.Model, obs.Purpose, "prompt").Add(float64(obs.PromptTokens))
		p.tokensTotal.WithLabelValues(obs.Provider, obs.Model, obs.Purpose, "completion").Add(float64(obs.CompletionTokens))
	}
	p.requestDuration.WithLabelValues(obs.Provider, obs.Model, obs.Purpose).Observe(obs.Duration.Seconds())
}
