// Package evaluation runs the background pass that reads the latest turns of an
// interview and mutates the session's plan through the mutation tools.
package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"interviewer/pkg/gateway"
	"interviewer/pkg/journal"
	"interviewer/pkg/llm"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/mutation"
	"interviewer/pkg/plan"
	"interviewer/pkg/store"
	"interviewer/pkg/templates"
)

// Evaluation standards by difficulty band.
const (
	StandardLenient = "Extremely Lenient: Accept almost any answer, give high scores easily."
	StandardNormal  = "Standard: Expect clear, correct answers. Deduct points for vagueness."
	StandardStrict  = "Hardcore/Hell: Demanding perfection. If the answer is not deep/specific enough, " +
		"DO NOT mark as complete. Instead, use modify_pending_item to ask a harder follow-up."
)

// Directive closes every evaluation prompt.
const Directive = "Analyze the above conversation and update the plan immediately. Call tools now."

const (
	DefaultWindow  = 4
	DefaultTimeout = 30 * time.Second
)

// Completer is the part of the gateway the evaluator needs.
type Completer interface {
	Execute(ctx context.Context, messages []llm.CompletionMessage, tools []llm.ToolDefinition, opts ...gateway.Option) (gateway.Result, error)
}

// Recorder persists applied and skipped operations. *journal.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, entries []journal.Entry) error
}

// Request is one evaluation pass over a session.
type Request struct {
	SessionKey string
	History    []llm.CompletionMessage
	ResumeText string
	Plan       plan.Plan
	Scenario   string
	Difficulty int
}

// Result reports what a pass did. Err is informational; Evaluate never fails.
// Updated counts item mutations only; a pass that just completes the interview
// still commits the plan but leaves Updated false.
type Result struct {
	Updated     bool
	Complete    bool
	FinalResult *plan.FinalResult
	Applied     int
	Skipped     int
	Provider    string
	Err         error
}

// Evaluator turns a conversation window into plan mutations.
type Evaluator struct {
	gateway     Completer
	store       store.Store
	renderer    *templates.Renderer
	applier     *mutation.Applier
	journal     Recorder
	metrics     *metrics.Service
	logger      *logx.Logger
	window      int
	temperature float32
	timeout     time.Duration
}

// Config wires an Evaluator. Journal and Metrics may be nil.
type Config struct {
	Gateway     Completer
	Store       store.Store
	Renderer    *templates.Renderer
	Repair      mutation.ScoreRepair
	Journal     Recorder
	Metrics     *metrics.Service
	Window      int
	Temperature float32
	Timeout     time.Duration // per provider attempt, not per pass
}

// New builds an Evaluator, filling unset numeric fields with defaults.
func New(cfg Config) (*Evaluator, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("evaluation: gateway is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("evaluation: store is required")
	}
	if cfg.Renderer == nil {
		r, err := templates.NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("evaluation: load templates: %w", err)
		}
		cfg.Renderer = r
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = llm.TemperatureDeterministic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Evaluator{
		gateway:     cfg.Gateway,
		store:       cfg.Store,
		renderer:    cfg.Renderer,
		applier:     mutation.NewApplier(cfg.Repair),
		journal:     cfg.Journal,
		metrics:     cfg.Metrics,
		logger:      logx.NewLogger("evaluation"),
		window:      cfg.Window,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// StandardFor maps a 1-10 difficulty onto its evaluation standard.
func StandardFor(difficulty int) string {
	switch {
	case difficulty <= 3:
		return StandardLenient
	case difficulty >= 8:
		return StandardStrict
	default:
		return StandardNormal
	}
}

// Evaluate runs one pass and commits the mutated plan when anything changed. It never
// returns an error and never panics; failures are logged and reported in Result.Err.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (res Result) {
	ctx = logx.WithSessionKey(ctx, req.SessionKey)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluation panic for session %s: %v", req.SessionKey, r)
			e.metrics.Evaluation(metrics.OutcomePanicked)
			res = Result{Err: fmt.Errorf("evaluation panic: %v", r)}
		}
	}()

	messages, err := e.buildMessages(&req)
	if err != nil {
		e.logger.Error("evaluation prompt for session %s: %v", req.SessionKey, err)
		e.metrics.Evaluation(metrics.OutcomeFailed)
		return Result{Err: err}
	}

	out, err := e.gateway.Execute(llm.WithPurpose(ctx, "evaluation"), messages, mutation.Tools(),
		gateway.WithTemperature(e.temperature), gateway.WithAttemptTimeout(e.timeout))
	if err != nil {
		e.logger.Warn("evaluation for session %s failed: %v", req.SessionKey, err)
		e.metrics.Evaluation(metrics.OutcomeFailed)
		return Result{Err: err}
	}
	if out.Kind != gateway.ResultToolCalls {
		logx.Debug(ctx, "evaluation", "no tool calls from %s", out.Provider)
		e.metrics.Evaluation(metrics.OutcomeNoChange)
		return Result{Provider: out.Provider}
	}

	outcome := e.applier.Apply(&req.Plan, out.ToolCalls)
	res = Result{
		Complete:    outcome.Complete,
		FinalResult: outcome.FinalResult,
		Applied:     len(outcome.Applied),
		Skipped:     len(outcome.Skipped),
		Provider:    out.Provider,
	}
	for _, s := range outcome.Skipped {
		e.logger.Warn("session %s: skipped %s: %s", req.SessionKey, s.Call.Name, s.Reason)
	}

	if outcome.Changed {
		e.store.Put(req.SessionKey, outcome.Plan)
		res.Updated = outcome.Updates > 0
		e.logger.Info("session %s: plan updated by %s (%d applied, %d skipped, complete=%t)",
			req.SessionKey, out.Provider, res.Applied, res.Skipped, res.Complete)
		e.metrics.Evaluation(metrics.OutcomeUpdated)
	} else {
		e.metrics.Evaluation(metrics.OutcomeNoChange)
	}

	e.record(ctx, req.SessionKey, out.Provider, &outcome)
	return res
}

func (e *Evaluator) buildMessages(req *Request) ([]llm.CompletionMessage, error) {
	system, err := e.renderer.Render(templates.EvaluatorTemplate, templates.EvaluatorData{
		Difficulty: req.Difficulty,
		Standard:   StandardFor(req.Difficulty),
		Plan:       req.Plan.Render(plan.StyleEvaluation),
		Pending:    strings.Join(req.Plan.PendingDigest(), ", "),
	})
	if err != nil {
		return nil, err
	}

	history := make([]llm.CompletionMessage, 0, len(req.History))
	for _, m := range req.History {
		if m.Role != llm.RoleSystem {
			history = append(history, m)
		}
	}
	if len(history) > e.window {
		history = history[len(history)-e.window:]
	}

	messages := make([]llm.CompletionMessage, 0, len(history)+2)
	messages = append(messages, llm.NewSystemMessage(system))
	messages = append(messages, history...)
	messages = append(messages, llm.NewUserMessage(Directive))
	return messages, nil
}

func (e *Evaluator) record(ctx context.Context, sessionKey, provider string, outcome *mutation.Outcome) {
	for _, op := range outcome.Applied {
		e.metrics.Mutation(op.Tool(), metrics.MutationApplied)
	}
	for i := range outcome.Skipped {
		e.metrics.Mutation(outcome.Skipped[i].Call.Name, metrics.MutationSkipped)
	}
	if e.journal == nil || (len(outcome.Applied) == 0 && len(outcome.Skipped) == 0) {
		return
	}

	passID := uuid.NewString()
	entries := make([]journal.Entry, 0, len(outcome.Applied)+len(outcome.Skipped))
	for _, op := range outcome.Applied {
		entries = append(entries, journal.Entry{
			SessionKey: sessionKey,
			PassID:     passID,
			Tool:       op.Tool(),
			Target:     op.Target(),
			Result:     journal.ResultApplied,
			Provider:   provider,
		})
	}
	for i := range outcome.Skipped {
		s := &outcome.Skipped[i]
		entries = append(entries, journal.Entry{
			SessionKey: sessionKey,
			PassID:     passID,
			Tool:       s.Call.Name,
			Result:     journal.ResultSkipped,
			Reason:     s.Reason,
			Arguments:  string(s.Call.Arguments),
			Provider:   provider,
		})
	}
	if err := e.journal.Record(ctx, entries); err != nil {
		e.logger.Warn("session %s: journal write failed: %v", sessionKey, err)
	}
}
