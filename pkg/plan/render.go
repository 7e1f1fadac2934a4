package plan

import (
	"fmt"
	"strings"
)

// Style selects how a plan is rendered into a prompt.
type Style int

const (
	// StyleChecklist is the compact [x]/[ ] listing shown to the interviewer persona.
	StyleChecklist Style = iota
	// StyleEvaluation is the detailed listing with scores shown to the evaluator.
	StyleEvaluation
)

// PendingContentLimit caps item content in the pending digest, in runes.
const PendingContentLimit = 40

// Render writes the plan as plain text for inclusion in a prompt.
func (p *Plan) Render(style Style) string {
	var b strings.Builder
	for si := range p.Sections {
		sec := &p.Sections[si]
		switch style {
		case StyleEvaluation:
			fmt.Fprintf(&b, "\n## %s:\n", sec.Title)
		default:
			fmt.Fprintf(&b, "- %s:\n", sec.Title)
		}
		for ii := range sec.Items {
			item := &sec.Items[ii]
			switch style {
			case StyleEvaluation:
				if item.IsDone() {
					fmt.Fprintf(&b, "  [DONE] (ID: %s) %s - Score: %s\n", item.ID, item.Content, scoreText(item.Score))
				} else {
					fmt.Fprintf(&b, "  [PENDING] (ID: %s) %s\n", item.ID, item.Content)
				}
			default:
				mark := "[ ]"
				if item.IsDone() {
					mark = "[x]"
				}
				fmt.Fprintf(&b, "  %s (ID: %s) %s\n", mark, item.ID, item.Content)
			}
		}
	}
	return b.String()
}

// PendingDigest lists pending items as "ID <id>: <content>" with content truncated to
// PendingContentLimit runes.
func (p *Plan) PendingDigest() []string {
	var out []string
	for si := range p.Sections {
		for ii := range p.Sections[si].Items {
			item := &p.Sections[si].Items[ii]
			if item.IsDone() {
				continue
			}
			out = append(out, fmt.Sprintf("ID %s: %s", item.ID, Truncate(item.Content, PendingContentLimit)))
		}
	}
	return out
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func scoreText(score *int) string {
	if score == nil {
		return "N/A"
	}
	return fmt.Sprint(*score)
}
