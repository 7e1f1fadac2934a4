package testkit

import (
	"context"
	"sync"

	"interviewer/pkg/llm"
)

// MockLLMClient is a scripted llm.LLMClient that records every request.
type MockLLMClient struct {
	Model string

	// CompleteFunc overrides the scripted responses when set.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error)

	mu        sync.Mutex
	responses []llm.CompletionResponse
	errs      []error
	calls     []llm.CompletionRequest
}

// NewMockLLMClient returns a client that answers with responses in order, repeating the last.
func NewMockLLMClient(model string, responses ...llm.CompletionResponse) *MockLLMClient {
	return &MockLLMClient{Model: model, responses: responses}
}

// NewFailingClient returns a client whose every call fails with err.
func NewFailingClient(model string, err error) *MockLLMClient {
	return &MockLLMClient{Model: model, errs: []error{err}}
}

// Complete implements llm.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, req)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err
	}
	if len(m.errs) > 0 {
		return llm.CompletionResponse{}, m.errs[min(idx, len(m.errs)-1)]
	}
	if len(m.responses) == 0 {
		return llm.CompletionResponse{Content: "mock response", StopReason: "stop"}, nil
	}
	return m.responses[min(idx, len(m.responses)-1)], nil
}

// GetModelName implements llm.LLMClient.
func (m *MockLLMClient) GetModelName() string {
	return m.Model
}

// Calls returns the requests received so far.
func (m *MockLLMClient) Calls() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.CompletionRequest(nil), m.calls...)
}

// CallCount returns the number of Complete calls.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// TextResponse is a plain assistant reply.
func TextResponse(text string) llm.CompletionResponse {
	return llm.CompletionResponse{Content: text, StopReason: "stop"}
}

// ToolResponse is a reply carrying only tool calls.
func ToolResponse(calls ...llm.ToolCall) llm.CompletionResponse {
	return llm.CompletionResponse{ToolCalls: calls, StopReason: "tool_calls"}
}

// Call builds a tool call with literal JSON arguments.
func Call(name, args string) llm.ToolCall {
	return llm.ToolCall{ID: "call_" + name, Name: name, Arguments: []byte(args)}
}
