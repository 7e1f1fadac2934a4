// Package questionbank loads the embedded question packs that can seed plan generation.
package questionbank

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed packs/*.json
var packsFS embed.FS

// DefaultMaxQuestions caps how many questions are rendered into a prompt.
const DefaultMaxQuestions = 200

// Question is one entry of a pack.
type Question struct {
	ID         string   `json:"id"`
	Question   string   `json:"question"`
	Tags       []string `json:"tags,omitempty"`
	Difficulty int      `json:"difficulty,omitempty"`
	Followups  []string `json:"followups,omitempty"`
	Variants   []string `json:"variants,omitempty"`
}

// Pack is a named, versioned list of questions. Version is derived from the file
// bytes, so any edit to a pack changes it.
type Pack struct {
	ID        string     `json:"pack_id"`
	Version   string     `json:"version"`
	Questions []Question `json:"questions"`
}

// Summary describes a pack without its questions.
type Summary struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	Questions int    `json:"questions"`
}

//nolint:gochecknoglobals // cache of immutable embedded packs
var (
	registryMu sync.Mutex
	registry   = make(map[string]*Pack)
)

// ListAvailable returns the ids of all embedded packs, sorted.
func ListAvailable() ([]string, error) {
	entries, err := packsFS.ReadDir("packs")
	if err != nil {
		return nil, fmt.Errorf("failed to list question packs: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Get returns the pack with id, loading it on first use.
func Get(id string) (*Pack, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if p, ok := registry[id]; ok {
		return p, nil
	}
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return nil, fmt.Errorf("invalid question pack id %q", id)
	}
	data, err := packsFS.ReadFile(path.Join("packs", id+".json"))
	if err != nil {
		return nil, fmt.Errorf("question pack not found: %s", id)
	}
	p, err := Parse(id, data)
	if err != nil {
		return nil, err
	}
	registry[id] = p
	return p, nil
}

// Summaries lists every embedded pack with its version.
func Summaries() ([]Summary, error) {
	ids, err := ListAvailable()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		p, err := Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{ID: p.ID, Version: p.Version, Questions: len(p.Questions)})
	}
	return out, nil
}

// Parse validates a pack file: a JSON array of objects each carrying string id and question.
func Parse(id string, data []byte) (*Pack, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("question pack %s must be a JSON array: %w", id, err)
	}

	questions := make([]Question, 0, len(raw))
	for i, r := range raw {
		var q Question
		if err := json.Unmarshal(r, &q); err != nil {
			return nil, fmt.Errorf("question #%d in pack %s must be an object: %w", i, id, err)
		}
		if q.ID == "" {
			return nil, fmt.Errorf("question #%d in pack %s is missing string field 'id'", i, id)
		}
		if q.Question == "" {
			return nil, fmt.Errorf("question #%d in pack %s is missing string field 'question'", i, id)
		}
		questions = append(questions, q)
	}

	sum := sha1.Sum(data) //nolint:gosec // see import
	return &Pack{ID: id, Version: hex.EncodeToString(sum[:])[:12], Questions: questions}, nil
}

// RenderForPrompt encodes at most maxQuestions questions as compact JSON for the
// plan-generation prompt. A negative maxQuestions renders every question.
func RenderForPrompt(p *Pack, maxQuestions int) (string, error) {
	subset := p.Questions
	if maxQuestions >= 0 && len(subset) > maxQuestions {
		subset = subset[:maxQuestions]
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Pack{ID: p.ID, Version: p.Version, Questions: subset}); err != nil {
		return "", fmt.Errorf("failed to render question pack %s: %w", p.ID, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
