package puzzle

import (
	"math"
	"time"
)

const (
	MaxScore = 1000
	MinScore = 300

	graceSeconds    = 180
	timeStepSeconds = 60
	timeStepPenalty = 50
	maxTimePenalty  = 300
	hintPenalty     = 100
	errorPenalty    = 30
)

type Score struct {
	Score int `json:"score"`
	Stars int `json:"stars"`
}

// Compute applies the scoring formula. The result is always within
// [MinScore, MaxScore] with 1 to 3 stars.
func Compute(elapsed time.Duration, hints, wrong int) Score {
	steps := math.Floor((elapsed.Seconds() - graceSeconds) / timeStepSeconds)
	timePenalty := int(math.Min(maxTimePenalty, math.Max(0, steps*timeStepPenalty)))

	score := MaxScore - timePenalty - max(0, hints)*hintPenalty - max(0, wrong)*errorPenalty
	score = max(MinScore, min(MaxScore, score))

	return Score{Score: score, Stars: Stars(score)}
}

func Stars(score int) int {
	switch {
	case score >= 900:
		return 3
	case score >= 600:
		return 2
	default:
		return 1
	}
}
