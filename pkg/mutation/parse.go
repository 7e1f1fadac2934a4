package mutation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"interviewer/pkg/llm"
	"interviewer/pkg/plan"
)

// ParseFailure is a tool call that could not be decoded into an operation.
type ParseFailure struct {
	Tool   string
	Raw    string
	Reason string
}

func (f *ParseFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Tool, f.Reason)
}

// Parsed is the result of decoding one tool call: exactly one of Op or Failure is set.
type Parsed struct {
	Op      Operation
	Failure *ParseFailure
}

// Parse strictly decodes a tool call. Extra argument keys are tolerated; every
// required key must be present with the right type. Item ids may be strings or numbers.
func Parse(call llm.ToolCall) Parsed {
	args, err := decodeArgs(call.Arguments)
	if err != nil {
		return failed(call, err.Error())
	}

	var op Operation
	switch call.Name {
	case ToolMarkItemComplete:
		var m MarkItemComplete
		if err = first(
			idArg(args, "item_id", &m.ItemID),
			scoreArg(args, "score", &m.Score),
			stringArg(args, "evaluation", &m.Evaluation),
			stringArg(args, "suggestion", &m.Suggestion),
		); err == nil {
			op = m
		}
	case ToolModifyPendingItem:
		var m ModifyPendingItem
		if err = first(
			idArg(args, "item_id", &m.ItemID),
			stringArg(args, "new_content", &m.NewContent),
		); err == nil {
			op = m
		}
	case ToolInsertFollowup:
		var m InsertFollowup
		if err = first(
			idArg(args, "after_item_id", &m.AfterItemID),
			idArg(args, "new_id", &m.NewID),
			stringArg(args, "content", &m.Content),
		); err == nil {
			op = m
		}
	case ToolCompleteInterview:
		var m CompleteInterview
		if err = first(
			scoreArg(args, "final_score", &m.FinalScore),
			stringArg(args, "summary", &m.Summary),
		); err == nil {
			op = m
		}
	default:
		return failed(call, "unknown tool")
	}

	if err != nil {
		return failed(call, err.Error())
	}
	return Parsed{Op: op}
}

func decodeArgs(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]json.RawMessage{}
	}
	return args, nil
}

func first(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func lookup(args map[string]json.RawMessage, key string) (json.RawMessage, error) {
	v, ok := args[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

func idArg(args map[string]json.RawMessage, key string, dst *string) error {
	v, err := lookup(args, key)
	if err != nil {
		return err
	}
	id, err := plan.DecodeID(v)
	if err != nil {
		return fmt.Errorf("argument %q: %v", key, err)
	}
	if id == "" {
		return fmt.Errorf("argument %q is empty", key)
	}
	*dst = id
	return nil
}

func stringArg(args map[string]json.RawMessage, key string, dst *string) error {
	v, err := lookup(args, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("argument %q must be a string", key)
	}
	return nil
}

// scoreArg accepts any JSON number with an integral value in [MinScore, MaxScore]
// (85 and 85.0 alike).
func scoreArg(args map[string]json.RawMessage, key string, dst *int) error {
	v, err := lookup(args, key)
	if err != nil {
		return err
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return fmt.Errorf("argument %q must be an integer", key)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("argument %q must be an integer, got %v", key, f)
	}
	if f < MinScore || f > MaxScore {
		return fmt.Errorf("argument %q must be %d-%d, got %v", key, MinScore, MaxScore, f)
	}
	*dst = int(f)
	return nil
}

func failed(call llm.ToolCall, reason string) Parsed {
	return Parsed{Failure: &ParseFailure{Tool: call.Name, Raw: string(call.Arguments), Reason: reason}}
}
