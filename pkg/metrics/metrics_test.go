package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sessions := 3
	svc := NewService(reg, Gauges{
		Sessions: func() int { return sessions },
		InFlight: func() int { return 1 },
	})

	svc.Evaluation(OutcomeUpdated)
	svc.Evaluation(OutcomeUpdated)
	svc.Mutation("mark_item_complete", MutationApplied)
	svc.Turn(TurnOK)
	svc.PlanGeneration(false)

	assert.InDelta(t, 2, testutil.ToFloat64(svc.evaluations.WithLabelValues(OutcomeUpdated)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(svc.mutations.WithLabelValues("mark_item_complete", MutationApplied)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(svc.planParses.WithLabelValues("parse_failed")), 0)

	expected := `
# HELP interviewer_sessions Number of interview plans held in memory
# TYPE interviewer_sessions gauge
interviewer_sessions 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "interviewer_sessions"))
}

func TestNilServiceIsNoop(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() {
		svc.Evaluation(OutcomeFailed)
		svc.Mutation("x", MutationSkipped)
		svc.Turn(TurnOK)
		svc.PlanGeneration(true)
	})
}

func TestUsageByProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		query := r.Form.Get("query")

		value := "0"
		switch {
		case strings.Contains(query, `type="prompt"`):
			value = "1200"
		case strings.Contains(query, `type="completion"`):
			value = "300"
		case strings.Contains(query, `status="error"`):
			value = "2"
		case strings.Contains(query, "llm_requests_total"):
			value = "10"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"resultType": "vector",
				"result": []map[string]any{{
					"metric": map[string]string{"provider": "primary"},
					"value":  []any{1700000000.0, value},
				}},
			},
		})
	}))
	defer srv.Close()

	q, err := NewQueryService(srv.URL)
	require.NoError(t, err)

	usage, err := q.UsageByProvider(context.Background())
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, ProviderUsage{
		Provider:         "primary",
		PromptTokens:     1200,
		CompletionTokens: 300,
		TotalTokens:      1500,
		Requests:         10,
		Failures:         2,
	}, usage[0])
}
