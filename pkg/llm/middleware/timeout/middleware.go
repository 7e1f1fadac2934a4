// Package timeout bounds each LLM call with a deadline.
package timeout

import (
	"context"
	"time"

	"interviewer/pkg/llm"
)

// Middleware gives every Complete call its own deadline of duration. A non-positive
// duration leaves calls unbounded.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		if duration <= 0 {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Complete(timeoutCtx, req)
			},
			next.GetModelName,
		)
	}
}
