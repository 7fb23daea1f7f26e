package model

import "math"

// confidenceScale is how many margins of score gap it takes to reach full confidence.
const confidenceScale = 2.0

// Decide compares the scores against the margin. Comparisons use the unrounded
// scores; only the returned values are rounded.
func Decide(s Scores, p Params) Recommendation {
	diff := s.Conservative - s.Activity
	gap := math.Abs(diff)

	suggestion := SuggestionTie
	switch {
	case diff == 0 || gap < p.Margin:
	case diff > 0:
		suggestion = SuggestionConservative
	default:
		suggestion = SuggestionActivity
	}

	return Recommendation{
		Suggestion: suggestion,
		Confidence: round(confidence(gap, p.Margin), 3),
		Scores: Scores{
			Conservative: round(s.Conservative, 3),
			Activity:     round(s.Activity, 3),
		},
	}
}

func confidence(gap, margin float64) float64 {
	if margin <= 0 {
		if gap > 0 {
			return 1
		}
		return 0
	}
	return Clamp(gap/(confidenceScale*margin), 0, 1)
}
