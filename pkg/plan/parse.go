package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ParseFailure describes model output that could not be turned into a valid Plan.
// Raw is kept so callers can surface what the model actually said.
type ParseFailure struct {
	Raw    string
	Reason string
}

func (f *ParseFailure) Error() string {
	return "plan parse failed: " + f.Reason
}

// ParseResult is either a valid Plan or a failure, never a partially valid plan.
type ParseResult struct {
	Plan    *Plan
	Failure *ParseFailure
}

// OK reports whether parsing produced a plan.
func (r ParseResult) OK() bool {
	return r.Plan != nil
}

// Err returns the failure as an error, or nil.
func (r ParseResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON pulls the JSON payload out of model text: a ```json fenced block if
// present, otherwise the span from the first '{' to the last '}'.
func ExtractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := bareObject.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// Parse decodes model output into a Plan and validates it. Missing item status
// defaults to pending.
func Parse(raw string) ParseResult {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return fail(raw, "no JSON object found in response")
	}

	var p Plan
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		// Models sometimes emit raw newlines inside strings.
		if err2 := json.Unmarshal([]byte(strings.ReplaceAll(payload, "\n", "")), &p); err2 != nil {
			return fail(raw, fmt.Sprintf("invalid JSON: %v", err))
		}
	}

	if err := p.normalize(); err != nil {
		return fail(raw, err.Error())
	}
	return ParseResult{Plan: &p}
}

// DecodeSnapshot decodes a plan sent back by a client. An empty or "{}" body yields an
// empty plan; a body with sections must validate.
func DecodeSnapshot(data []byte) (Plan, error) {
	var p Plan
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if !p.HasSections() {
		return Plan{}, nil
	}
	if err := p.normalize(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Validate checks the structural invariants of a plan.
func (p *Plan) Validate() error {
	clone := p.Clone()
	return clone.normalize()
}

func (p *Plan) normalize() error {
	if len(p.Sections) == 0 {
		return errors.New("plan has no sections")
	}
	seen := make(map[string]bool)
	for si := range p.Sections {
		sec := &p.Sections[si]
		if len(sec.Items) == 0 {
			return fmt.Errorf("section %d (%q) has no items", si, sec.Title)
		}
		for ii := range sec.Items {
			item := &sec.Items[ii]
			item.ID = strings.TrimSpace(item.ID)
			if item.ID == "" {
				return fmt.Errorf("section %d item %d has an empty id", si, ii)
			}
			if seen[item.ID] {
				return fmt.Errorf("duplicate item id %q", item.ID)
			}
			seen[item.ID] = true
			if strings.TrimSpace(item.Content) == "" {
				return fmt.Errorf("item %q has empty content", item.ID)
			}
			switch item.Status {
			case "":
				item.Status = StatusPending
			case StatusPending, StatusDone:
			default:
				return fmt.Errorf("item %q has unknown status %q", item.ID, item.Status)
			}
		}
	}
	if p.FinalResult != nil && !p.InterviewComplete {
		return errors.New("final_result present on an incomplete interview")
	}
	return nil
}

func fail(raw, reason string) ParseResult {
	return ParseResult{Failure: &ParseFailure{Raw: raw, Reason: reason}}
}
