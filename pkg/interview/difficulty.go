package interview

// Difficulty bounds for the interviewer persona.
const (
	MinDifficulty     = 1
	MaxDifficulty     = 10
	DefaultDifficulty = 5
)

// Preset describes how the interviewer behaves at one difficulty level.
type Preset struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Style string `json:"style"`
	Tone  string `json:"tone"`
}

//nolint:gochecknoglobals // fixed table
var presets = [MaxDifficulty]Preset{
	{1, "Gentlest", "gentle, encouraging, patient, use simple words", "warm, supportive, comforting"},
	{2, "Gentle", "friendly, approachable, easygoing", "kind, soft, positive"},
	{3, "Mild", "polite, respectful, moderate pace", "balanced, courteous"},
	{4, "Friendly", "professional but warm, clear instructions", "constructive, helpful"},
	{5, "Moderate", "neutral, professional, standard interview style", "objective, balanced"},
	{6, "Strict", "formal, demanding, precise expectations", "serious, expectant"},
	{7, "Stricter", "challenging, probing, critical thinking", "sharp, analytical"},
	{8, "Severe", "tough, skeptical, deep-digging into answers", "stern, pressing"},
	{9, "Very Severe", "harsh, grueling, relentless questioning", "severe, uncompromising"},
	{10, "Hell", "brutal, impossible standards, crushing pressure", "merciless, devastating"},
}

// ClampDifficulty maps any level into [MinDifficulty, MaxDifficulty]; zero means the default.
func ClampDifficulty(level int) int {
	switch {
	case level == 0:
		return DefaultDifficulty
	case level < MinDifficulty:
		return MinDifficulty
	case level > MaxDifficulty:
		return MaxDifficulty
	default:
		return level
	}
}

// PresetFor returns the preset for level after clamping.
func PresetFor(level int) Preset {
	return presets[ClampDifficulty(level)-1]
}

// Presets returns every preset in level order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets[:])
	return out
}
