package metrics

import (
	"math"

	"tova-go/internal/models"
)

// Performance bands used on the results page and in the results email.
const (
	BandGood = "good"
	BandFair = "fair"
	BandPoor = "poor"
)

// Attentiveness is the share of targets that were detected, as a percentage.
func Attentiveness(r models.ScoreResult) int {
	if r.TargetsShown == 0 {
		return 0
	}
	return percent(1 - float64(r.OmissionErrors)/float64(r.TargetsShown))
}

// ImpulseControl penalises commissions relative to the non-targets shown.
// Stray presses count too, so the raw ratio can exceed one; the score is
// clamped at zero.
func ImpulseControl(r models.ScoreResult) int {
	if r.NonTargetsShown == 0 {
		if r.CommissionErrors == 0 {
			return 100
		}
		return 0
	}
	return percent(1 - float64(r.CommissionErrors)/float64(r.NonTargetsShown))
}

// Consistency is one minus the coefficient of variation of the reaction
// times, as a percentage.
func Consistency(r models.ScoreResult) int {
	if r.ReactionTimeSamples == 0 || r.MeanReactionTimeMs <= 0 {
		return 0
	}
	return percent(1 - r.ReactionTimeVariabilityMs/r.MeanReactionTimeMs)
}

// Band buckets a percentage score.
func Band(score int) string {
	switch {
	case score >= 80:
		return BandGood
	case score >= 60:
		return BandFair
	default:
		return BandPoor
	}
}

func percent(ratio float64) int {
	return int(math.Round(100 * math.Min(1, math.Max(0, ratio))))
}
