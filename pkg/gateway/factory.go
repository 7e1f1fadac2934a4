package gateway

import (
	"fmt"

	"interviewer/pkg/config"
	"interviewer/pkg/llm"
	"interviewer/pkg/llm/middleware/metrics"
	"interviewer/pkg/llm/middleware/timeout"
	"interviewer/pkg/llm/providers/anthropic"
	"interviewer/pkg/llm/providers/google"
	"interviewer/pkg/llm/providers/ollama"
	"interviewer/pkg/llm/providers/openaicompat"
	"interviewer/pkg/logx"
)

// NewClient creates the raw client for one configured provider.
func NewClient(pc *config.ProviderConfig) (llm.LLMClient, error) {
	switch pc.Kind {
	case config.ProviderOpenAI, "":
		return openaicompat.NewClient(pc.APIKey, pc.BaseURL, pc.Model), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(pc.APIKey, pc.BaseURL, pc.Model), nil
	case config.ProviderGoogle:
		return google.NewClient(pc.APIKey, pc.BaseURL, pc.Model), nil
	case config.ProviderOllama:
		return ollama.NewClient(pc.BaseURL, pc.Model)
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", pc.Kind)
	}
}

// FromConfig builds the fallback chain described by cfg. Each client is wrapped
// as Metrics -> Timeout -> raw client, so a timed-out attempt is still recorded.
func FromConfig(cfg *config.Config, recorder metrics.Recorder) (*Gateway, error) {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	logger := logx.NewLogger("gateway")

	providers := make([]Provider, 0, len(cfg.Providers))
	for i := range cfg.Providers {
		pc := &cfg.Providers[i]
		raw, err := NewClient(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		client := llm.Chain(raw,
			metrics.Middleware(recorder, pc.Name, nil, logger.Sub(pc.Name)),
			timeout.Middleware(cfg.Gateway.Timeout),
		)
		providers = append(providers, Provider{Name: pc.Name, Client: client, Extra: pc.Extra})
		logger.Info("provider %d: %s (%s, model %s)", i+1, pc.Name, pc.Kind, pc.Model)
	}

	return New(providers, Defaults{
		Temperature: float32(cfg.Gateway.Temperature),
		MaxTokens:   cfg.Gateway.MaxTokens,
	})
}
