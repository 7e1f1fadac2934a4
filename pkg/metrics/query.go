package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ProviderUsage is the aggregated LLM usage of one provider.
type ProviderUsage struct {
	Provider         string `json:"provider"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
	Requests         int64  `json:"requests"`
	Failures         int64  `json:"failures"`
}

// QueryService reads aggregated LLM metrics from a Prometheus server that scrapes this service.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a query client for the Prometheus server at prometheusURL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// UsageByProvider returns token and request totals per provider, sorted by name.
func (q *QueryService) UsageByProvider(ctx context.Context) ([]ProviderUsage, error) {
	byProvider := make(map[string]*ProviderUsage)
	get := func(name string) *ProviderUsage {
		u, ok := byProvider[name]
		if !ok {
			u = &ProviderUsage{Provider: name}
			byProvider[name] = u
		}
		return u
	}

	queries := []struct {
		expr  string
		apply func(u *ProviderUsage, v int64)
	}{
		{`sum by (provider) (llm_tokens_total{type="prompt"})`, func(u *ProviderUsage, v int64) { u.PromptTokens = v }},
		{`sum by (provider) (llm_tokens_total{type="completion"})`, func(u *ProviderUsage, v int64) { u.CompletionTokens = v }},
		{`sum by (provider) (llm_requests_total)`, func(u *ProviderUsage, v int64) { u.Requests = v }},
		{`sum by (provider) (llm_requests_total{status="error"})`, func(u *ProviderUsage, v int64) { u.Failures = v }},
	}

	for _, query := range queries {
		result, _, err := q.queryAPI.Query(ctx, query.expr, time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to query %q: %w", query.expr, err)
		}
		vector, ok := result.(model.Vector)
		if !ok {
			continue
		}
		for _, sample := range vector {
			provider := string(sample.Metric["provider"])
			query.apply(get(provider), int64(sample.Value))
		}
	}

	out := make([]ProviderUsage, 0, len(byProvider))
	for _, u := range byProvider {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}
