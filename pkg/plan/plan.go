// Package plan defines the interview plan: ordered sections of question items that are
// consumed and mutated turn by turn.
//
// Plans are values. Everything that crosses a goroutine or store boundary is a Clone,
// so a Plan held by a caller is never mutated underneath it.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a plan item. Done is terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Plan is the structured interview agenda for one session.
type Plan struct {
	Summary           string       `json:"summary"`
	Sections          []Section    `json:"sections"`
	InitialGreeting   string       `json:"initial_greeting,omitempty"`
	InterviewComplete bool         `json:"interview_complete"`
	FinalResult       *FinalResult `json:"final_result,omitempty"`
}

// Section is a titled phase of the interview.
type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Item is one question or topic.
type Item struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Status     Status `json:"status"`
	Score      *int   `json:"score,omitempty"`
	Evaluation string `json:"evaluation,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Locked     bool   `json:"locked,omitempty"`
	IsFollowup bool   `json:"is_followup,omitempty"`
}

// FinalResult is the overall verdict recorded when the interview completes.
type FinalResult struct {
	FinalScore int    `json:"final_score"`
	Summary    string `json:"summary"`
}

// Position locates an item inside a plan.
type Position struct {
	Section int
	Item    int
}

// Counts summarises progress through a plan.
type Counts struct {
	Done    int `json:"done"`
	Pending int `json:"pending"`
	Total   int `json:"total"`
}

// IsDone reports whether the item has been completed.
func (it *Item) IsDone() bool {
	return it.Status == StatusDone
}

// Clone returns a deep copy sharing no memory with p.
func (p *Plan) Clone() Plan {
	out := Plan{
		Summary:           p.Summary,
		InitialGreeting:   p.InitialGreeting,
		InterviewComplete: p.InterviewComplete,
	}
	if p.FinalResult != nil {
		fr := *p.FinalResult
		out.FinalResult = &fr
	}
	if p.Sections != nil {
		out.Sections = make([]Section, len(p.Sections))
		for i := range p.Sections {
			out.Sections[i] = p.Sections[i].clone()
		}
	}
	return out
}

func (s *Section) clone() Section {
	out := Section{Title: s.Title}
	if s.Items != nil {
		out.Items = make([]Item, len(s.Items))
		for i := range s.Items {
			out.Items[i] = s.Items[i]
			if s.Items[i].Score != nil {
				score := *s.Items[i].Score
				out.Items[i].Score = &score
			}
		}
	}
	return out
}

// HasSections reports whether the plan carries any agenda at all.
func (p *Plan) HasSections() bool {
	return len(p.Sections) > 0
}

// NextPending returns the first item, in section then item order, that is not done.
// This is the only rule for choosing the next question.
func (p *Plan) NextPending() (*Item, bool) {
	for si := range p.Sections {
		for ii := range p.Sections[si].Items {
			if item := &p.Sections[si].Items[ii]; !item.IsDone() {
				return item, true
			}
		}
	}
	return nil, false
}

// FindItem returns the item with id and its position.
func (p *Plan) FindItem(id string) (*Item, Position, bool) {
	for si := range p.Sections {
		for ii := range p.Sections[si].Items {
			if p.Sections[si].Items[ii].ID == id {
				return &p.Sections[si].Items[ii], Position{Section: si, Item: ii}, true
			}
		}
	}
	return nil, Position{}, false
}

// HasItem reports whether any section contains id.
func (p *Plan) HasItem(id string) bool {
	_, _, ok := p.FindItem(id)
	return ok
}

// InsertAfter places item immediately after pos within the same section.
func (p *Plan) InsertAfter(pos Position, item Item) {
	items := p.Sections[pos.Section].Items
	items = append(items, Item{})
	copy(items[pos.Item+2:], items[pos.Item+1:])
	items[pos.Item+1] = item
	p.Sections[pos.Section].Items = items
}

// Counts tallies done and pending items.
func (p *Plan) Counts() Counts {
	var c Counts
	for si := range p.Sections {
		for ii := range p.Sections[si].Items {
			c.Total++
			if p.Sections[si].Items[ii].IsDone() {
				c.Done++
			} else {
				c.Pending++
			}
		}
	}
	return c
}

// AllDone reports whether every item is done. An empty plan is not done.
func (p *Plan) AllDone() bool {
	c := p.Counts()
	return c.Total > 0 && c.Pending == 0
}

// UnmarshalJSON accepts item ids written as JSON numbers as well as strings.
func (it *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(it)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.ID) == 0 {
		it.ID = ""
		return nil
	}
	id, err := DecodeID(aux.ID)
	if err != nil {
		return err
	}
	it.ID = id
	return nil
}

// DecodeID normalises an id given as a JSON string or number to its string form.
func DecodeID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("id is missing")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("id: %w", err)
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("id must be a string or number: %s", trimmed)
	}
	return n.String(), nil
}
