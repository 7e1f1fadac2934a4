package metrics

import (
	"context"
	"strings"
	"time"

	"interviewer/pkg/llm"
	"interviewer/pkg/llmerrors"
	"interviewer/pkg/logx"
	"interviewer/pkg/utils"
)

// UsageExtractor returns token usage for a completed call.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor trusts provider-reported usage and falls back to tiktoken counts.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		return resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}

	var prompt strings.Builder
	for i := range req.Messages {
		prompt.WriteString(req.Messages[i].Content)
		prompt.WriteByte('\n')
	}
	completion := resp.Content
	for i := range resp.ToolCalls {
		completion += string(resp.ToolCalls[i].Arguments)
	}
	return utils.CountTokensSimple(prompt.String()), utils.CountTokensSimple(completion)
}

// Middleware records latency, token usage and outcome of each call made through the
// named provider. logger may be nil.
func Middleware(recorder Recorder, provider string, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}
	if recorder == nil {
		recorder = Nop()
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				obs := Observation{
					Provider: provider,
					Model:    next.GetModelName(),
					Purpose:  llm.PurposeFrom(ctx),
					Success:  err == nil,
					Duration: duration,
				}
				if err == nil {
					obs.PromptTokens, obs.CompletionTokens = usageExtractor(req, resp)
				} else {
					obs.ErrorType = llmerrors.TypeOf(err).String()
				}
				recorder.ObserveRequest(obs)

				if logger != nil {
					logger.Debug("LLM request: provider=%s model=%s purpose=%s tokens=%d+%d success=%t duration=%dms",
						obs.Provider, obs.Model, obs.Purpose, obs.PromptTokens, obs.CompletionTokens, obs.Success, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			next.GetModelName,
		)
	}
}
