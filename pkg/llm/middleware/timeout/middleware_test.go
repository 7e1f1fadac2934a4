package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/llm"
)

type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	<-ctx.Done()
	return llm.CompletionResponse{}, ctx.Err()
}

func (blockingClient) GetModelName() string { return "slow" }

type quickClient struct{ deadline time.Time }

func (q *quickClient) Complete(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	q.deadline, _ = ctx.Deadline()
	return llm.CompletionResponse{Content: "ok"}, nil
}

func (*quickClient) GetModelName() string { return "quick" }

func TestTimeoutCancelsSlowCalls(t *testing.T) {
	client := llm.Chain(blockingClient{}, Middleware(20*time.Millisecond))

	start := time.Now()
	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "slow", client.GetModelName())
}

func TestTimeoutSetsDeadline(t *testing.T) {
	inner := &quickClient{}
	client := llm.Chain(inner, Middleware(time.Minute))

	resp, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.False(t, inner.deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Minute), inner.deadline, 5*time.Second)
}

func TestZeroDurationIsPassThrough(t *testing.T) {
	inner := &quickClient{}
	client := llm.Chain(inner, Middleware(0))
	assert.Same(t, llm.LLMClient(inner), client)
}
