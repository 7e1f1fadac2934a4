package mutation

import (
	"interviewer/pkg/llm"
	"interviewer/pkg/plan"
)

// Skip records a tool call that was not applied and why.
type Skip struct {
	Call   llm.ToolCall
	Reason string
	Err    error
}

// Outcome is the result of applying a batch of tool calls to a plan.
type Outcome struct {
	// Plan is the mutated copy; the input plan is never modified.
	Plan plan.Plan
	// Applied holds every operation that took effect, in call order.
	Applied []Operation
	Skipped []Skip
	// Updates counts applied item mutations, excluding complete_interview.
	Updates     int
	Complete    bool
	FinalResult *plan.FinalResult
	// Changed is true when the result should be committed.
	Changed bool
}

// Applier applies tool calls with a given score repair rule.
type Applier struct {
	Repair ScoreRepair
}

// NewApplier returns an Applier using repair.
func NewApplier(repair ScoreRepair) *Applier {
	return &Applier{Repair: repair}
}

// Apply clones p and applies calls in order. A call that fails to parse or whose
// precondition does not hold is skipped and recorded; the rest of the batch proceeds.
func (a *Applier) Apply(p *plan.Plan, calls []llm.ToolCall) Outcome {
	out := Outcome{Plan: p.Clone()}

	for _, call := range calls {
		parsed := Parse(call)
		if parsed.Failure != nil {
			out.Skipped = append(out.Skipped, Skip{Call: call, Reason: parsed.Failure.Reason, Err: parsed.Failure})
			continue
		}
		if err := parsed.Op.apply(&out.Plan, a.Repair); err != nil {
			out.Skipped = append(out.Skipped, Skip{Call: call, Reason: err.Error(), Err: err})
			continue
		}
		out.Applied = append(out.Applied, parsed.Op)
		if _, ok := parsed.Op.(CompleteInterview); ok {
			out.Complete = true
		} else {
			out.Updates++
		}
	}

	out.FinalResult = out.Plan.FinalResult
	out.Changed = out.Updates > 0 || out.Complete
	return out
}

// Apply applies calls with the default score repair rule.
func Apply(p *plan.Plan, calls []llm.ToolCall) Outcome {
	return NewApplier(DefaultScoreRepair()).Apply(p, calls)
}
