// Package ollama adapts a local Ollama server to llm.LLMClient, letting a
// self-hosted model sit at the end of the fallback chain.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"interviewer/pkg/llm"
	"interviewer/pkg/llmerrors"
)

// DefaultHost is used when no base URL is configured.
const DefaultHost = "http://localhost:11434"

// Client wraps the Ollama API client.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates a client for model served at hostURL.
func NewClient(hostURL, model string) (*Client, error) {
	if hostURL == "" {
		hostURL = DefaultHost
	}
	parsed, err := url.Parse(hostURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", hostURL, err)
	}
	return &Client{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}, nil
}

// Complete implements llm.LLMClient. Extra entries are merged into the model options.
//
//nolint:gocritic // value request matches interface
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]api.Message, len(in.Messages))
	for i := range in.Messages {
		messages[i] = api.Message{Role: string(in.Messages[i].Role), Content: in.Messages[i].Content}
	}

	options := map[string]any{"temperature": in.Temperature}
	if in.MaxTokens > 0 {
		options["num_predict"] = in.MaxTokens
	}
	for k, v := range in.Extra {
		options[k] = v
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
	if len(in.Tools) > 0 {
		req.Tools = convertTools(in.Tools)
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	out := llm.CompletionResponse{
		Content:    response.Message.Content,
		StopReason: response.DoneReason,
		Usage: llm.Usage{
			PromptTokens:     response.PromptEvalCount,
			CompletionTokens: response.EvalCount,
		},
	}
	for i := range response.Message.ToolCalls {
		call := &response.Message.ToolCalls[i]
		args, err := json.Marshal(call.Function.Arguments)
		if err != nil {
			return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "failed to encode tool arguments")
		}
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{ID: id, Name: call.Function.Name, Arguments: args})
	}
	return out, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

func convertTools(defs []llm.ToolDefinition) api.Tools {
	tools := make(api.Tools, len(defs))
	for i := range defs {
		def := &defs[i]
		properties := api.NewToolPropertiesMap()
		for name := range def.InputSchema.Properties {
			prop := def.InputSchema.Properties[name]
			properties.Set(name, convertProperty(&prop))
		}
		schemaType := def.InputSchema.Type
		if schemaType == "" {
			schemaType = "object"
		}
		tools[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       schemaType,
					Properties: properties,
					Required:   def.InputSchema.Required,
				},
			},
		}
	}
	return tools
}

func convertProperty(prop *llm.Property) api.ToolProperty {
	out := api.ToolProperty{
		Type:        api.PropertyType{prop.Type},
		Description: prop.Description,
	}
	if len(prop.Enum) > 0 {
		out.Enum = make([]any, len(prop.Enum))
		for i, v := range prop.Enum {
			out.Enum[i] = v
		}
	}
	if prop.Items != nil {
		out.Items = convertProperty(prop.Items)
	}
	return out
}

func classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llmerrors.FromStatus(statusErr.StatusCode, err)
	}
	return llmerrors.Classify(err)
}
