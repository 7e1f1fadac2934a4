// Package mutation is the closed set of plan mutations the evaluator model may issue,
// their strict decoding from tool calls, and their application to a plan.
package mutation

import "interviewer/pkg/llm"

// Tool names as exposed to the model.
const (
	ToolMarkItemComplete  = "mark_item_complete"
	ToolModifyPendingItem = "modify_pending_item"
	ToolInsertFollowup    = "insert_followup_question"
	ToolCompleteInterview = "complete_interview"
)

// Scores and final scores are integers in [MinScore, MaxScore].
const (
	MinScore = 0
	MaxScore = 100
)

// Tools returns the definitions offered to the evaluator model.
func Tools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolMarkItemComplete,
			Description: "Mark an interview item as COMPLETED after the candidate answered. Rate their answer quality.",
			InputSchema: llm.InputSchema{
				Type: "object",
				Properties: map[string]llm.Property{
					"item_id":    {Type: "string", Description: "ID of the completed item (e.g. '1', '2')"},
					"score":      {Type: "integer", Description: "Score 0-100. If the answer is acceptable, score MUST be 60+. Only score <60 for refusal or complete failure."},
					"evaluation": {Type: "string", Description: "Evaluation of the candidate's answer: what they did well or poorly"},
					"suggestion": {Type: "string", Description: "How the candidate could have answered better"},
				},
				Required: []string{"item_id", "score", "evaluation", "suggestion"},
			},
		},
		{
			Name:        ToolModifyPendingItem,
			Description: "Modify an UNCOMPLETED item to optimize the question based on conversation context.",
			InputSchema: llm.InputSchema{
				Type: "object",
				Properties: map[string]llm.Property{
					"item_id":     {Type: "string", Description: "ID of the pending item to modify"},
					"new_content": {Type: "string", Description: "Updated question text optimized for this candidate"},
				},
				Required: []string{"item_id", "new_content"},
			},
		},
		{
			Name:        ToolInsertFollowup,
			Description: "Insert a NEW follow-up question immediately after an item. Use this to dig deeper or challenge the candidate.",
			InputSchema: llm.InputSchema{
				Type: "object",
				Properties: map[string]llm.Property{
					"after_item_id": {Type: "string", Description: "ID of the item to insert AFTER (e.g. '2')"},
					"new_id":        {Type: "string", Description: "New unused ID for the inserted item (e.g. '2.1')"},
					"content":       {Type: "string", Description: "The follow-up question text"},
				},
				Required: []string{"after_item_id", "new_id", "content"},
			},
		},
		{
			Name:        ToolCompleteInterview,
			Description: "Call this ONLY when ALL items are marked as done to end the interview.",
			InputSchema: llm.InputSchema{
				Type: "object",
				Properties: map[string]llm.Property{
					"final_score": {Type: "integer", Description: "Overall interview score 0-100"},
					"summary":     {Type: "string", Description: "Final evaluation summary of the candidate"},
				},
				Required: []string{"final_score", "summary"},
			},
		},
	}
}
