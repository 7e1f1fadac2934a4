// Package metrics holds the service-level Prometheus collectors and a small
// query client for reading LLM usage back out of a Prometheus server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes.
const (
	OutcomeUpdated   = "updated"
	OutcomeNoChange  = "no_change"
	OutcomeFailed    = "failed"
	OutcomePanicked  = "panicked"
	MutationApplied  = "applied"
	MutationSkipped  = "skipped"
	TurnOK           = "ok"
	TurnNoAnswer     = "no_answer"
	TurnProviderFail = "provider_failed"
)

// Service groups the counters the interview pipeline updates.
type Service struct {
	evaluations *prometheus.CounterVec
	mutations   *prometheus.CounterVec
	turns       *prometheus.CounterVec
	planParses  *prometheus.CounterVec
}

// Gauges supplies live values sampled at scrape time.
type Gauges struct {
	Sessions func() int // plans held by the store
	InFlight func() int // evaluation passes still running
}

// NewService registers the service collectors on reg.
func NewService(reg prometheus.Registerer, gauges Gauges) *Service {
	factory := promauto.With(reg)

	if gauges.Sessions != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "interviewer_sessions",
			Help: "Number of interview plans held in memory",
		}, func() float64 { return float64(gauges.Sessions()) })
	}
	if gauges.InFlight != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "interviewer_evaluations_in_flight",
			Help: "Background evaluation passes currently running",
		}, func() float64 { return float64(gauges.InFlight()) })
	}

	return &Service{
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewer_evaluations_total",
			Help: "Completed evaluation passes by outcome",
		}, []string{"outcome"}),
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewer_mutations_total",
			Help: "Plan mutation operations by tool and result",
		}, []string{"tool", "result"}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewer_turns_total",
			Help: "Chat turns by outcome",
		}, []string{"outcome"}),
		planParses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewer_plan_generations_total",
			Help: "Plan generation attempts by result",
		}, []string{"result"}),
	}
}

// Nil-receiver calls are no-ops so components can run without metrics.

// Evaluation counts one finished evaluation pass.
func (s *Service) Evaluation(outcome string) {
	if s == nil {
		return
	}
	s.evaluations.WithLabelValues(outcome).Inc()
}

// Mutation counts one mutation operation.
func (s *Service) Mutation(tool, result string) {
	if s == nil {
		return
	}
	s.mutations.WithLabelValues(tool, result).Inc()
}

// Turn counts one chat turn.
func (s *Service) Turn(outcome string) {
	if s == nil {
		return
	}
	s.turns.WithLabelValues(outcome).Inc()
}

// PlanGeneration counts one plan generation attempt.
func (s *Service) PlanGeneration(ok bool) {
	if s == nil {
		return
	}
	result := "parsed"
	if !ok {
		result = "parse_failed"
	}
	s.planParses.WithLabelValues(result).Inc()
}
