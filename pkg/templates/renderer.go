// Package templates renders the prompts sent to the model and holds the
// scenario catalogue the prompts are built from.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed *.tpl.md scenarios.yaml
var templateFS embed.FS

// Name identifies an embedded prompt template.
type Name string

const (
	// EvaluatorTemplate is the system prompt of the background plan evaluator.
	EvaluatorTemplate Name = "evaluator.tpl.md"
	// ChatTemplate is the interviewer system prompt for a chat turn.
	ChatTemplate Name = "chat.tpl.md"
	// PlanTemplate is the system prompt for plan generation.
	PlanTemplate Name = "plan.tpl.md"
	// PlanRequestTemplate is the user message for plan generation.
	PlanRequestTemplate Name = "plan_request.tpl.md"
	// OpeningTemplate is the system prompt for the opening line.
	OpeningTemplate Name = "opening.tpl.md"
)

// EvaluatorData fills EvaluatorTemplate.
type EvaluatorData struct {
	Difficulty int
	Standard   string
	Plan       string
	Pending    string
}

// ChatData fills ChatTemplate.
type ChatData struct {
	ScenarioPrompt string
	Difficulty     int
	PresetName     string
	Style          string
	Tone           string
	PlanStatus     string
	Summary        string
	ClosingLine    string
	AllDone        bool // every plan item is checked
}

// PlanData fills PlanTemplate and PlanRequestTemplate.
type PlanData struct {
	ScenarioPrompt string
	ScenarioName   string
	Role           string
	Language       string
	ResumeText     string
	QuestionPack   string // compact JSON rendering of a question pack, optional
}

// OpeningData fills OpeningTemplate.
type OpeningData struct {
	ScenarioPrompt string
	Role           string
	FirstQuestion  string
	Context        string
}

// Renderer holds the parsed templates.
type Renderer struct {
	templates map[Name]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[Name]*template.Template)}

	for _, name := range []Name{EvaluatorTemplate, ChatTemplate, PlanTemplate, PlanRequestTemplate, OpeningTemplate} {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render executes the named template with data.
func (r *Renderer) Render(name Name, data any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
