package mutation

import (
	"errors"
	"fmt"
	"strings"

	"interviewer/pkg/plan"
)

var (
	// ErrItemNotFound means the referenced item id is not in the plan.
	ErrItemNotFound = errors.New("item not found")
	// ErrItemDone means the item is completed and locked against further changes.
	ErrItemDone = errors.New("item already completed")
	// ErrDuplicateID means an insertion reused an id already present in the plan.
	ErrDuplicateID = errors.New("item id already in use")
	// ErrEmptyContent means a question text was blank.
	ErrEmptyContent = errors.New("content cannot be empty")
)

// Operation is one decoded plan mutation. The set is closed: MarkItemComplete,
// ModifyPendingItem, InsertFollowup and CompleteInterview.
type Operation interface {
	// Tool returns the tool name the operation was decoded from.
	Tool() string
	// Target returns the item id the operation addresses, if any.
	Target() string

	apply(p *plan.Plan, repair ScoreRepair) error
}

// MarkItemComplete records a graded answer and locks the item.
type MarkItemComplete struct {
	ItemID     string
	Score      int
	Evaluation string
	Suggestion string
}

func (MarkItemComplete) Tool() string     { return ToolMarkItemComplete }
func (m MarkItemComplete) Target() string { return m.ItemID }

func (m MarkItemComplete) apply(p *plan.Plan, repair ScoreRepair) error {
	item, _, ok := p.FindItem(m.ItemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, m.ItemID)
	}
	if item.IsDone() || item.Locked {
		return fmt.Errorf("%w: %s", ErrItemDone, m.ItemID)
	}
	score := repair.Apply(m.Score, m.Evaluation)
	item.Status = plan.StatusDone
	item.Locked = true
	item.Score = &score
	item.Evaluation = m.Evaluation
	item.Suggestion = m.Suggestion
	return nil
}

// ModifyPendingItem rewrites the text of a question not yet asked.
type ModifyPendingItem struct {
	ItemID     string
	NewContent string
}

func (ModifyPendingItem) Tool() string     { return ToolModifyPendingItem }
func (m ModifyPendingItem) Target() string { return m.ItemID }

func (m ModifyPendingItem) apply(p *plan.Plan, _ ScoreRepair) error {
	if strings.TrimSpace(m.NewContent) == "" {
		return ErrEmptyContent
	}
	item, _, ok := p.FindItem(m.ItemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, m.ItemID)
	}
	if item.IsDone() || item.Locked {
		return fmt.Errorf("%w: %s", ErrItemDone, m.ItemID)
	}
	item.Content = m.NewContent
	return nil
}

// InsertFollowup adds a pending follow-up question directly after an anchor item.
// Repeated insertions after the same anchor each land right after it, so the most
// recent one is asked first.
type InsertFollowup struct {
	AfterItemID string
	NewID       string
	Content     string
}

func (InsertFollowup) Tool() string     { return ToolInsertFollowup }
func (m InsertFollowup) Target() string { return m.NewID }

func (m InsertFollowup) apply(p *plan.Plan, _ ScoreRepair) error {
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	_, pos, ok := p.FindItem(m.AfterItemID)
	if !ok {
		return fmt.Errorf("%w: anchor %s", ErrItemNotFound, m.AfterItemID)
	}
	if p.HasItem(m.NewID) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, m.NewID)
	}
	p.InsertAfter(pos, plan.Item{
		ID:         m.NewID,
		Content:    m.Content,
		Status:     plan.StatusPending,
		IsFollowup: true,
	})
	return nil
}

// CompleteInterview ends the interview. Only the first final result is kept.
type CompleteInterview struct {
	FinalScore int
	Summary    string
}

func (CompleteInterview) Tool() string   { return ToolCompleteInterview }
func (CompleteInterview) Target() string { return "" }

func (m CompleteInterview) apply(p *plan.Plan, _ ScoreRepair) error {
	p.InterviewComplete = true
	if p.FinalResult == nil {
		p.FinalResult = &plan.FinalResult{FinalScore: m.FinalScore, Summary: m.Summary}
	}
	return nil
}
