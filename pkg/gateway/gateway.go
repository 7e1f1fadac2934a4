// Package gateway sends a conversation to an ordered list of LLM providers and
// returns the first successful answer.
//
// Every call starts over at the first provider; there is no memory of earlier
// failures and no retry of a provider within a call. Each attempt is bounded by
// the provider's own timeout, so the worst case for one call is the sum of the
// per-provider timeouts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"interviewer/pkg/llm"
	"interviewer/pkg/llmerrors"
	"interviewer/pkg/logx"
)

// ErrAllProvidersFailed is matched by the error Execute returns when no provider answered.
var ErrAllProvidersFailed = errors.New("all AI models failed")

// ErrNoProviders is returned by New for an empty chain.
var ErrNoProviders = errors.New("gateway: at least one provider is required")

// ResultKind tags which field of a Result is meaningful.
type ResultKind int

const (
	// ResultText carries a plain-text reply.
	ResultText ResultKind = iota
	// ResultToolCalls carries one or more tool invocations.
	ResultToolCalls
)

func (k ResultKind) String() string {
	if k == ResultToolCalls {
		return "tool_calls"
	}
	return "text"
}

// Result is the answer of the first provider that succeeded.
type Result struct {
	Kind      ResultKind
	Text      string
	ToolCalls []llm.ToolCall
	Provider  string
	Usage     llm.Usage
}

// Provider is one entry of the fallback chain.
type Provider struct {
	Name   string
	Client llm.LLMClient
	Extra  map[string]any // provider-specific request body fields
}

// Attempt records one failed provider call.
type Attempt struct {
	Provider string
	Err      error
	Duration time.Duration
}

// ExhaustedError reports that no provider answered. Providers reached after the
// caller's context ended are listed in NotAttempted, not in Attempts.
type ExhaustedError struct {
	Attempts     []Attempt
	NotAttempted []string
	Cause        error // the caller's context error, when that cut the chain short
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("All AI models failed. No provider attempted: %v", e.Cause)
		}
		return ErrAllProvidersFailed.Error()
	}
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("All AI models failed. Last error: %s: %v", last.Provider, last.Err)
}

// Is makes errors.Is(err, ErrAllProvidersFailed) hold.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Unwrap exposes the last provider error, or the context error when nothing was attempted.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return e.Cause
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Last returns the final provider's error.
func (e *ExhaustedError) Last() error {
	return e.Unwrap()
}

type call struct {
	req            llm.CompletionRequest
	attemptTimeout time.Duration
}

// Option adjusts a single Execute call.
type Option func(*call)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *call) { c.req.Temperature = t }
}

// WithMaxTokens overrides the completion token limit.
func WithMaxTokens(n int) Option {
	return func(c *call) {
		if n > 0 {
			c.req.MaxTokens = n
		}
	}
}

// WithAttemptTimeout bounds each provider attempt of the call by d, on top of
// the provider's own timeout. A timed-out attempt falls through to the next provider.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *call) { c.attemptTimeout = d }
}

// Defaults are applied to every request before per-call options.
type Defaults struct {
	Temperature float32
	MaxTokens   int
}

// Gateway executes requests against an ordered provider chain.
type Gateway struct {
	providers []Provider
	defaults  Defaults
	logger    *logx.Logger
}

// New builds a gateway over providers in fallback order.
func New(providers []Provider, defaults Defaults) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = llm.DefaultMaxTokens
	}
	return &Gateway{
		providers: append([]Provider(nil), providers...),
		defaults:  defaults,
		logger:    logx.NewLogger("gateway"),
	}, nil
}

// Providers returns the configured provider names in order.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.providers))
	for i := range g.providers {
		names[i] = g.providers[i].Name
	}
	return names
}

// Execute sends messages, plus tools when non-empty, to each provider in order
// until one succeeds. Tool choice is "auto" whenever tools are offered.
func (g *Gateway) Execute(ctx context.Context, messages []llm.CompletionMessage, tools []llm.ToolDefinition, opts ...Option) (Result, error) {
	c := call{req: llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   g.defaults.MaxTokens,
		Temperature: g.defaults.Temperature,
	}}
	if len(tools) > 0 {
		c.req.Tools = tools
		c.req.ToolChoice = llm.ToolChoiceAuto
	}
	for _, opt := range opts {
		opt(&c)
	}

	exhausted := &ExhaustedError{}
	for i := range g.providers {
		p := &g.providers[i]
		if err := ctx.Err(); err != nil {
			exhausted.Cause = err
			for _, rest := range g.providers[i:] {
				exhausted.NotAttempted = append(exhausted.NotAttempted, rest.Name)
			}
			break
		}

		attemptReq := c.req
		attemptReq.Extra = p.Extra

		start := time.Now()
		resp, err := g.attempt(ctx, p, attemptReq, c.attemptTimeout)
		elapsed := time.Since(start)
		if err != nil {
			g.logger.Warn("provider %s (%s) failed after %s: [%s] %v",
				p.Name, p.Client.GetModelName(), elapsed.Round(time.Millisecond), llmerrors.TypeOf(err), err)
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Provider: p.Name, Err: err, Duration: elapsed})
			continue
		}

		logx.Debug(ctx, "gateway", "provider %s answered in %s (%d tool calls)",
			p.Name, elapsed.Round(time.Millisecond), len(resp.ToolCalls))
		return toResult(p.Name, &resp), nil
	}

	g.logger.Error("%s", summarize(exhausted))
	return Result{}, exhausted
}

func (g *Gateway) attempt(ctx context.Context, p *Provider, req llm.CompletionRequest, timeout time.Duration) (llm.CompletionResponse, error) {
	if timeout <= 0 {
		return p.Client.Complete(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Client.Complete(attemptCtx, req)
}

func toResult(provider string, resp *llm.CompletionResponse) Result {
	res := Result{Provider: provider, Usage: resp.Usage, Text: resp.Content}
	if len(resp.ToolCalls) > 0 {
		res.Kind = ResultToolCalls
		res.ToolCalls = resp.ToolCalls
	}
	return res
}

func summarize(e *ExhaustedError) string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s=%s", a.Provider, llmerrors.TypeOf(a.Err))
	}
	msg := fmt.Sprintf("all %d providers failed (%s)", len(e.Attempts), strings.Join(parts, ", "))
	if len(e.NotAttempted) > 0 {
		msg += fmt.Sprintf("; not attempted after %v: %s", e.Cause, strings.Join(e.NotAttempted, ", "))
	}
	return msg
}
