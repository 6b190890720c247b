package run

import (
	"math"
	"time"
)

// Run rules.
const (
	QuestionsPerRun       = 20
	PassRatio             = 0.85
	DefaultQuestionBudget = 15 * time.Second
)

// PassCorrectCount is the number of correct answers a run needs to pass.
var PassCorrectCount = int(math.Ceil(QuestionsPerRun * PassRatio)) //nolint:gochecknoglobals // derived constant

// State is a run engine state.
type State string

const (
	StateIdle           State = "IDLE"
	StateActive         State = "ACTIVE"
	StateQuestionShown  State = "QUESTION_SHOWN"
	StateAnswerPending  State = "ANSWER_PENDING"
	StateResultShown    State = "RESULT_SHOWN"
	StateRunComplete    State = "RUN_COMPLETE"
	StateOfflineWarning State = "OFFLINE_WARNING"
)

// canStart reports whether StartRun is accepted in s.
func (s State) canStart() bool {
	return s == StateIdle || s == StateRunComplete || s == StateOfflineWarning
}

// SpeedTier labels how quickly a question was answered. It scales rewards only.
type SpeedTier string

const (
	SpeedLightning SpeedTier = "LIGHTNING"
	SpeedFast      SpeedTier = "FAST"
	SpeedNormal    SpeedTier = "NORMAL"
	SpeedStandard  SpeedTier = "STANDARD"
)

// Multiplier returns the reward multiplier of the tier.
func (t SpeedTier) Multiplier() float64 {
	switch t {
	case SpeedLightning:
		return 2.0
	case SpeedFast:
		return 1.5
	case SpeedNormal:
		return 1.25
	default:
		return 1.0
	}
}

// ClassifySpeed maps elapsed time to a tier by the share of budget consumed.
// Boundaries are inclusive: exactly 20% of the budget is LIGHTNING.
func ClassifySpeed(elapsed, budget time.Duration) SpeedTier {
	e, b := int64(elapsed), int64(budget)
	switch {
	case e*100 <= b*20:
		return SpeedLightning
	case e*100 <= b*40:
		return SpeedFast
	case e*100 <= b*60:
		return SpeedNormal
	default:
		return SpeedStandard
	}
}

// Score returns round(correct/total*100), 0 for an empty total.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// MasteryDelta is the progress handed off for a passed run.
func MasteryDelta(score int, passed bool) int {
	if !passed {
		return 0
	}
	return int(math.Round(float64(score) / 10))
}
