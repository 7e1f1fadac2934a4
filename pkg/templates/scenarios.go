package templates

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// Scenario is one interview setting: who the interviewer plays and what they ask about.
type Scenario struct {
	ID          string   `yaml:"id" json:"id"`
	Category    string   `yaml:"category" json:"category"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Role        string   `yaml:"role" json:"role"`
	Language    string   `yaml:"language,omitempty" json:"language,omitempty"`
	FocusAreas  []string `yaml:"focus_areas" json:"focus_areas"`
	Prompt      string   `yaml:"prompt" json:"-"`
}

// Catalogue is the set of known scenarios.
type Catalogue struct {
	Default            string     `yaml:"default"`
	CommonInstructions string     `yaml:"common_instructions"`
	Scenarios          []Scenario `yaml:"scenarios"`

	byID map[string]int
}

//nolint:gochecknoglobals // parsed once from the embedded file
var (
	catalogueOnce sync.Once
	catalogue     *Catalogue
	catalogueErr  error
)

// ParseCatalogue decodes and validates a scenario catalogue.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse scenario catalogue: %w", err)
	}
	if len(c.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario catalogue is empty")
	}
	c.byID = make(map[string]int, len(c.Scenarios))
	for i := range c.Scenarios {
		s := &c.Scenarios[i]
		if s.ID == "" || s.Role == "" {
			return nil, fmt.Errorf("scenario #%d: id and role are required", i)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		c.byID[s.ID] = i
	}
	if _, ok := c.byID[c.Default]; !ok {
		return nil, fmt.Errorf("default scenario %q is not in the catalogue", c.Default)
	}
	return &c, nil
}

// Scenarios returns the embedded catalogue.
func Scenarios() (*Catalogue, error) {
	catalogueOnce.Do(func() {
		data, err := templateFS.ReadFile("scenarios.yaml")
		if err != nil {
			catalogueErr = fmt.Errorf("failed to read scenario catalogue: %w", err)
			return
		}
		catalogue, catalogueErr = ParseCatalogue(data)
	})
	return catalogue, catalogueErr
}

// Lookup returns the scenario with id, or the default scenario when id is unknown.
func (c *Catalogue) Lookup(id string) Scenario {
	if i, ok := c.byID[id]; ok {
		return c.Scenarios[i]
	}
	return c.Scenarios[c.byID[c.Default]]
}

// Has reports whether id names a scenario.
func (c *Catalogue) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// SystemPrompt is the shared instructions followed by the scenario's own prompt.
func (c *Catalogue) SystemPrompt(s *Scenario) string {
	return c.CommonInstructions + "\n" + s.Prompt
}
