package testkit

import (
	"interviewer/pkg/plan"
)

// SamplePlan returns a two-section plan with three pending items: 1, 2 and 3.
func SamplePlan() *plan.Plan {
	return &plan.Plan{
		Summary: "Backend engineer, Go and distributed systems",
		Sections: []plan.Section{
			{
				Title: "Introduction",
				Items: []plan.Item{
					{ID: "1", Content: "Ask the candidate to introduce themselves", Status: plan.StatusPending},
				},
			},
			{
				Title: "Technical",
				Items: []plan.Item{
					{ID: "2", Content: "Discuss a concurrency bug they fixed", Status: plan.StatusPending},
					{ID: "3", Content: "Explain how they would shard a cache", Status: plan.StatusPending},
				},
			},
		},
		InitialGreeting: "Hello, welcome to the interview.",
	}
}

// SamplePlanJSON is SamplePlan as a model would return it inside a fenced block.
const SamplePlanJSON = "Here is the plan:\n```json\n" + `{
  "summary": "Backend engineer, Go and distributed systems",
  "sections": [
    {"title": "Introduction", "items": [
      {"id": "1", "content": "Ask the candidate to introduce themselves", "status": "pending"}
    ]},
    {"title": "Technical", "items": [
      {"id": "2", "content": "Discuss a concurrency bug they fixed", "status": "pending"},
      {"id": "3", "content": "Explain how they would shard a cache", "status": "pending"}
    ]}
  ],
  "initial_greeting": "Hello, welcome to the interview."
}` + "\n```"
