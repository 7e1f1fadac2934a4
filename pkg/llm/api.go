// Package llm provides provider-neutral types and the client interface used to talk to
// chat-completion models.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the candidate.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the interviewer model.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// DefaultMaxTokens is the completion budget when a request does not set one.
	DefaultMaxTokens = 4096

	// TemperatureDefault is used for conversational replies and plan generation.
	TemperatureDefault = 0.3

	// TemperatureDeterministic is used for evaluation passes, which should be repeatable.
	TemperatureDeterministic = 0.01

	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto = "auto"
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole `json:"role"`
	Content string         `json:"content"`
}

// Property describes one tool parameter in JSON-schema terms.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
}

// InputSchema is the object schema of a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition declares a callable tool to the model.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ToolCall is one tool invocation returned by the model. Arguments are kept verbatim
// so callers can decode them strictly.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// CompletionRequest represents a request to generate a completion.
//
//nolint:govet // fieldalignment: logical grouping preferred
type CompletionRequest struct {
	Messages    []CompletionMessage
	Tools       []ToolDefinition
	ToolChoice  string
	MaxTokens   int
	Temperature float32
	// Extra is merged into the provider request body where the provider supports it.
	Extra map[string]any
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	ToolCalls  []ToolCall
	Content    string
	StopReason string
	Usage      Usage
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // established name
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this client.
	GetModelName() string
}

// NewCompletionRequest creates a new completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}

// ParseRole maps a wire role name onto a CompletionRole.
func ParseRole(role string) (CompletionRole, error) {
	switch CompletionRole(role) {
	case RoleSystem, RoleUser, RoleAssistant:
		return CompletionRole(role), nil
	default:
		return "", fmt.Errorf("unknown message role %q", role)
	}
}

// SchemaMap renders a tool's input schema as a generic JSON-schema map, the shape most
// provider SDKs accept for function parameters.
func (t *ToolDefinition) SchemaMap() map[string]any {
	properties := make(map[string]any, len(t.InputSchema.Properties))
	for name := range t.InputSchema.Properties {
		prop := t.InputSchema.Properties[name]
		properties[name] = PropertySchema(&prop)
	}
	required := t.InputSchema.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// PropertySchema recursively converts a Property to a JSON-schema map.
func PropertySchema(prop *Property) map[string]any {
	schema := map[string]any{"type": prop.Type}
	if prop.Description != "" {
		schema["description"] = prop.Description
	}
	if len(prop.Enum) > 0 {
		schema["enum"] = prop.Enum
	}
	if prop.Type == "array" && prop.Items != nil {
		schema["items"] = PropertySchema(prop.Items)
	}
	if prop.Type == "object" && prop.Properties != nil {
		properties := make(map[string]any, len(prop.Properties))
		for name, child := range prop.Properties {
			if child != nil {
				properties[name] = PropertySchema(child)
			}
		}
		schema["properties"] = properties
	}
	return schema
}

type purposeKey struct{}

// WithPurpose tags ctx with what a call is for ("chat", "evaluation", "plan"), used
// as a metrics label.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the purpose set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return "unknown"
}
