// Package testkit provides fakes shared by package tests: scripted LLM clients, an
// OpenAI-compatible HTTP server, and plan fixtures.
package testkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"interviewer/pkg/llm"
)

// OpenAIReply scripts one chat completions response.
type OpenAIReply struct {
	Status    int // non-zero and not 200 produces an API error
	Content   string
	ToolCalls []llm.ToolCall
}

// ChatRequest is the decoded body of a chat completions call.
type ChatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Type     string `json:"type"`
		Function struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		} `json:"function"`
	} `json:"tools"`
	ToolChoice  any      `json:"tool_choice"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	Raw         map[string]any
}

// OpenAIServer emulates the chat completions and audio transcriptions endpoints.
// Replies are served in order; the last one repeats once the script runs out.
type OpenAIServer struct {
	*httptest.Server

	mu         sync.Mutex
	replies    []OpenAIReply
	served     int
	requests   []ChatRequest
	transcript string
}

// NewOpenAIServer starts a server scripted with replies.
func NewOpenAIServer(replies ...OpenAIReply) *OpenAIServer {
	s := &OpenAIServer{replies: replies, transcript: "mock transcript"}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// BaseURL is the value to configure as a provider base URL.
func (s *OpenAIServer) BaseURL() string {
	return s.URL + "/v1/"
}

// SetTranscript sets the text returned by the transcriptions endpoint.
func (s *OpenAIServer) SetTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = text
}

// Requests returns the chat requests received so far.
func (s *OpenAIServer) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.requests...)
}

func (s *OpenAIServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		s.handleChat(w, r)
	case strings.HasSuffix(r.URL.Path, "/audio/transcriptions"):
		s.mu.Lock()
		text := s.transcript
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"text": text})
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (s *OpenAIServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	data, _ := json.Marshal(raw)
	var req ChatRequest
	_ = json.Unmarshal(data, &req)
	req.Raw = raw

	s.mu.Lock()
	s.requests = append(s.requests, req)
	reply := OpenAIReply{Content: "ok"}
	if len(s.replies) > 0 {
		idx := s.served
		if idx >= len(s.replies) {
			idx = len(s.replies) - 1
		}
		reply = s.replies[idx]
	}
	s.served++
	s.mu.Unlock()

	if reply.Status != 0 && reply.Status != http.StatusOK {
		writeJSON(w, reply.Status, map[string]any{
			"error": map[string]any{
				"message": fmt.Sprintf("mock failure %d", reply.Status),
				"type":    "server_error",
			},
		})
		return
	}

	message := map[string]any{"role": "assistant", "content": reply.Content}
	finish := "stop"
	if len(reply.ToolCalls) > 0 {
		calls := make([]map[string]any, len(reply.ToolCalls))
		for i, tc := range reply.ToolCalls {
			id := tc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			calls[i] = map[string]any{
				"id":   id,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": string(tc.Arguments),
				},
			}
		}
		message["tool_calls"] = calls
		finish = "tool_calls"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "chatcmpl-mock12345",
		"object":  "chat.completion",
		"created": 1699999999,
		"model":   req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       message,
			"finish_reason": finish,
		}},
		"usage": map[string]any{
			"prompt_tokens":     50,
			"completion_tokens": 10,
			"total_tokens":      60,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
