package mutation

import "strings"

// ScoreRepair corrects scores the evaluator model under-reports. A score below Floor
// whose evaluation contains a positive word becomes Bumped; a score of zero then
// becomes ZeroDefault.
type ScoreRepair struct {
	Enabled       bool
	Floor         int
	Bumped        int
	ZeroDefault   int
	PositiveWords []string
}

// DefaultScoreRepair returns the rule used unless configured otherwise.
func DefaultScoreRepair() ScoreRepair {
	return ScoreRepair{
		Enabled:       true,
		Floor:         60,
		Bumped:        70,
		ZeroDefault:   60,
		PositiveWords: []string{"good", "correct"},
	}
}

// Apply returns the repaired score.
func (r ScoreRepair) Apply(score int, evaluation string) int {
	if !r.Enabled {
		return score
	}
	if score < r.Floor && r.positive(evaluation) {
		score = r.Bumped
	}
	if score == 0 {
		score = r.ZeroDefault
	}
	return score
}

func (r ScoreRepair) positive(evaluation string) bool {
	lower := strings.ToLower(evaluation)
	for _, w := range r.PositiveWords {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
