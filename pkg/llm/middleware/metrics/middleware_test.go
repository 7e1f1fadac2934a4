package metrics

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/llm"
	"interviewer/pkg/llmerrors"
)

type fakeClient struct {
	resp llm.CompletionResponse
	err  error
}

func (f *fakeClient) Complete(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
	return f.resp, f.err
}

func (f *fakeClient) GetModelName() string { return "glm" }

type captureRecorder struct{ obs []Observation }

func (c *captureRecorder) ObserveRequest(obs Observation) { c.obs = append(c.obs, obs) }

func TestMiddlewareRecordsSuccess(t *testing.T) {
	rec := &captureRecorder{}
	client := llm.Chain(&fakeClient{resp: llm.CompletionResponse{
		Content: "hi",
		Usage:   llm.Usage{PromptTokens: 12, CompletionTokens: 3},
	}}, Middleware(rec, "primary", nil, nil))

	ctx := llm.WithPurpose(context.Background(), "chat")
	_, err := client.Complete(ctx, llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("q")}))
	require.NoError(t, err)

	require.Len(t, rec.obs, 1)
	obs := rec.obs[0]
	assert.Equal(t, "primary", obs.Provider)
	assert.Equal(t, "glm", obs.Model)
	assert.Equal(t, "chat", obs.Purpose)
	assert.True(t, obs.Success)
	assert.Equal(t, 12, obs.PromptTokens)
	assert.Equal(t, 3, obs.CompletionTokens)
}

func TestMiddlewareRecordsClassifiedFailure(t *testing.T) {
	rec := &captureRecorder{}
	client := llm.Chain(&fakeClient{err: llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeRateLimit, 429, "slow down")},
		Middleware(rec, "secondary", nil, nil))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	require.Len(t, rec.obs, 1)
	assert.False(t, rec.obs[0].Success)
	assert.Equal(t, "rate_limit", rec.obs[0].ErrorType)
	assert.Equal(t, "unknown", rec.obs[0].Purpose)
}

func TestDefaultUsageExtractorCountsWhenProviderSilent(t *testing.T) {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewSystemMessage(strings.Repeat("plan ", 40))})
	resp := llm.CompletionResponse{ToolCalls: []llm.ToolCall{{Name: "complete_interview", Arguments: json.RawMessage(`{"final_score":80,"summary":"good"}`)}}}

	prompt, completion := DefaultUsageExtractor(req, resp)
	assert.Positive(t, prompt)
	assert.Positive(t, completion)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveRequest(Observation{Provider: "p", Model: "m", Purpose: "evaluation", Success: true, PromptTokens: 10, CompletionTokens: 4})
	rec.ObserveRequest(Observation{Provider: "p", Model: "m", Purpose: "evaluation", ErrorType: "transient"})

	assert.InDelta(t, 1, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("p", "m", "evaluation", "success", "")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("p", "m", "evaluation", "error", "transient")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("p", "m", "evaluation", "prompt")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(rec.requestDuration))
}
