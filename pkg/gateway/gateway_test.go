package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/config"
	"interviewer/pkg/llm"
	"interviewer/pkg/llmerrors"
	"interviewer/pkg/testkit"
)

func userMessages() []llm.CompletionMessage {
	return []llm.CompletionMessage{llm.NewUserMessage("hello")}
}

func TestExecuteFallsBackToNextProvider(t *testing.T) {
	a := testkit.NewFailingClient("model-a", llmerrors.NewError(llmerrors.ErrorTypeTransient, "upstream 503"))
	b := testkit.NewMockLLMClient("model-b", testkit.TextResponse("from B"))
	c := testkit.NewMockLLMClient("model-c", testkit.TextResponse("from C"))

	gw, err := New([]Provider{{Name: "A", Client: a}, {Name: "B", Client: b}, {Name: "C", Client: c}}, Defaults{Temperature: 0.3})
	require.NoError(t, err)

	res, err := gw.Execute(context.Background(), userMessages(), nil)
	require.NoError(t, err)
	assert.Equal(t, ResultText, res.Kind)
	assert.Equal(t, "from B", res.Text)
	assert.Equal(t, "B", res.Provider)
	assert.Equal(t, 1, a.CallCount())
	assert.Equal(t, 1, b.CallCount())
	assert.Equal(t, 0, c.CallCount(), "no attempt after a success")
}

func TestExecuteExhaustedMentionsLastProvider(t *testing.T) {
	a := testkit.NewFailingClient("model-a", errors.New("a exploded"))
	b := testkit.NewFailingClient("model-b", errors.New("b timed out"))

	gw, err := New([]Provider{{Name: "A", Client: a}, {Name: "B", Client: b}}, Defaults{})
	require.NoError(t, err)

	_, err = gw.Execute(context.Background(), userMessages(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "B")
	assert.Contains(t, err.Error(), "b timed out")

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, "A", exhausted.Attempts[0].Provider)
	assert.EqualError(t, exhausted.Last(), "b timed out")
}

func TestExecuteRestartsAtFirstProvider(t *testing.T) {
	a := testkit.NewFailingClient("model-a", errors.New("down"))
	b := testkit.NewMockLLMClient("model-b", testkit.TextResponse("ok"))
	gw, err := New([]Provider{{Name: "A", Client: a}, {Name: "B", Client: b}}, Defaults{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := gw.Execute(context.Background(), userMessages(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, a.CallCount())
}

func TestExecuteToolMode(t *testing.T) {
	call := testkit.Call("mark_item_complete", `{"item_id":"1","score":80,"evaluation":"good","suggestion":"none"}`)
	client := testkit.NewMockLLMClient("model", testkit.ToolResponse(call))
	gw, err := New([]Provider{{Name: "P", Client: client, Extra: map[string]any{"enable_thinking": false}}},
		Defaults{Temperature: 0.3, MaxTokens: 1000})
	require.NoError(t, err)

	tools := []llm.ToolDefinition{{Name: "mark_item_complete"}}
	res, err := gw.Execute(context.Background(), userMessages(), tools, WithTemperature(0.01), WithMaxTokens(200))
	require.NoError(t, err)
	assert.Equal(t, ResultToolCalls, res.Kind)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, call.Arguments, res.ToolCalls[0].Arguments)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.01, calls[0].Temperature, 1e-6)
	assert.Equal(t, 200, calls[0].MaxTokens)
	assert.Equal(t, llm.ToolChoiceAuto, calls[0].ToolChoice)
	assert.Equal(t, false, calls[0].Extra["enable_thinking"])
}

func TestExecuteStopsOnCanceledContext(t *testing.T) {
	a := testkit.NewMockLLMClient("model-a")
	gw, err := New([]Provider{{Name: "A", Client: a}}, Defaults{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gw.Execute(ctx, userMessages(), nil)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.CallCount())

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Empty(t, exhausted.Attempts)
	assert.Equal(t, []string{"A"}, exhausted.NotAttempted)
}

func hangingClient(model string) *testkit.MockLLMClient {
	c := testkit.NewMockLLMClient(model)
	c.CompleteFunc = func(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		<-ctx.Done()
		return llm.CompletionResponse{}, ctx.Err()
	}
	return c
}

func TestExecuteAttemptTimeoutFallsThrough(t *testing.T) {
	a := hangingClient("model-a")
	b := testkit.NewMockLLMClient("model-b", testkit.TextResponse("from B"))
	gw, err := New([]Provider{{Name: "A", Client: a}, {Name: "B", Client: b}}, Defaults{})
	require.NoError(t, err)

	res, err := gw.Execute(context.Background(), userMessages(), nil, WithAttemptTimeout(50*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "B", res.Provider)
	assert.Equal(t, 1, a.CallCount())
	assert.Equal(t, 1, b.CallCount())
}

func TestExecuteCallerDeadlineListsSkippedProviders(t *testing.T) {
	a := hangingClient("model-a")
	b := testkit.NewMockLLMClient("model-b", testkit.TextResponse("from B"))
	gw, err := New([]Provider{{Name: "A", Client: a}, {Name: "B", Client: b}}, Defaults{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = gw.Execute(ctx, userMessages(), nil)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 1)
	assert.Equal(t, "A", exhausted.Attempts[0].Provider)
	assert.Equal(t, []string{"B"}, exhausted.NotAttempted)
	assert.Contains(t, err.Error(), "A:")
	assert.NotContains(t, err.Error(), "B:")
	assert.Equal(t, 0, b.CallCount())
}

func TestNewRejectsEmptyChain(t *testing.T) {
	_, err := New(nil, Defaults{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestFromConfigAgainstFakeServers(t *testing.T) {
	failing := testkit.NewOpenAIServer(testkit.OpenAIReply{Status: 500})
	defer failing.Close()
	healthy := testkit.NewOpenAIServer(testkit.OpenAIReply{Content: "hi there"})
	defer healthy.Close()

	cfg := config.Default()
	cfg.Gateway.Timeout = 5 * time.Second
	cfg.Providers = []config.ProviderConfig{
		{Name: "primary", Kind: config.ProviderOpenAI, Model: "glm", BaseURL: failing.BaseURL(), APIKey: "k"},
		{Name: "secondary", Kind: config.ProviderOpenAI, Model: "qwen", BaseURL: healthy.BaseURL(), APIKey: "k"},
	}
	require.NoError(t, cfg.Validate())

	gw, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "secondary"}, gw.Providers())

	res, err := gw.Execute(context.Background(), userMessages(), nil)
	require.NoError(t, err)
	assert.Equal(t, "secondary", res.Provider)
	assert.Equal(t, "hi there", res.Text)
	assert.Len(t, failing.Requests(), 1)
}

func TestNewClientRejectsUnknownKind(t *testing.T) {
	_, err := NewClient(&config.ProviderConfig{Kind: "bedrock", Model: "m"})
	assert.Error(t, err)
}
