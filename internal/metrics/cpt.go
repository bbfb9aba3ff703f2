package metrics

import (
	"math"
	"time"

	"tova-go/internal/models"
)

// DefaultReactionTimeUpperBoundMs excludes corrupted or out-of-range latency
// samples from the reaction-time statistics.
const DefaultReactionTimeUpperBoundMs = 3000

// CPTData is the raw stimulus/response stream of one session.
type CPTData struct {
	Trials           []models.Trial
	Responses        []models.Response
	RealizedDuration time.Duration
}

// ScoringOptions tunes the reaction-time filter.
type ScoringOptions struct {
	ReactionTimeUpperBoundMs int64
}

func (o ScoringOptions) upperBound() int64 {
	if o.ReactionTimeUpperBoundMs <= 0 {
		return DefaultReactionTimeUpperBoundMs
	}
	return o.ReactionTimeUpperBoundMs
}

// Score derives every session metric from the raw stream. It is a pure
// function of its input.
func Score(data *CPTData, opts ScoringOptions) models.ScoreResult {
	correct := correctDetections(data)
	reactionTimes := ReactionTimes(data, opts)

	result := models.ScoreResult{
		OmissionErrors:            CountOmissionErrors(data),
		CommissionErrors:          CountCommissionErrors(data),
		MeanReactionTimeMs:        CalculateAverageReactionTime(reactionTimes),
		ReactionTimeVariabilityMs: CalculateReactionTimeSD(reactionTimes),
		RealizedDurationMs:        data.RealizedDuration.Milliseconds(),

		TargetsShown:        CountTargets(data),
		NonTargetsShown:     CountNonTargets(data),
		CorrectDetections:   len(correct),
		TotalResponses:      len(data.Responses),
		ReactionTimeSamples: len(reactionTimes),
		DetectionRate:       CalculateDetectionRate(data),
		OmissionErrorRate:   CalculateOmissionErrorRate(data),
		CommissionErrorRate: CalculateCommissionErrorRate(data),
	}
	result.Attentiveness = Attentiveness(result)
	result.ImpulseControl = ImpulseControl(result)
	result.Consistency = Consistency(result)
	return result
}

// correctDetections returns the index of every response that is the first
// match for a target trial. A trial can be credited at most once.
func correctDetections(data *CPTData) map[int]struct{} {
	credited := make(map[int]struct{})
	seen := make(map[int]struct{})
	for i, response := range data.Responses {
		if !response.CorrectDetection() {
			continue
		}
		if _, dup := seen[response.MatchedTrial]; dup {
			continue
		}
		seen[response.MatchedTrial] = struct{}{}
		credited[i] = struct{}{}
	}
	return credited
}

func CountTargets(data *CPTData) int {
	count := 0
	for _, trial := range data.Trials {
		if trial.IsTarget {
			count++
		}
	}
	return count
}

func CountNonTargets(data *CPTData) int {
	return len(data.Trials) - CountTargets(data)
}

func CountCorrectDetections(data *CPTData) int {
	return len(correctDetections(data))
}

// CountOmissionErrors counts targets nobody responded to.
func CountOmissionErrors(data *CPTData) int {
	return max(0, CountTargets(data)-CountCorrectDetections(data))
}

// CountCommissionErrors counts every response that is not a correct
// detection: presses on non-targets and stray presses alike.
func CountCommissionErrors(data *CPTData) int {
	return len(data.Responses) - CountCorrectDetections(data)
}

// ReactionTimes returns the latencies of correct detections that fall
// strictly between zero and the sanity bound.
func ReactionTimes(data *CPTData, opts ScoringOptions) []float64 {
	credited := correctDetections(data)
	bound := opts.upperBound()

	reactionTimes := make([]float64, 0, len(credited))
	for i, response := range data.Responses {
		if _, ok := credited[i]; !ok {
			continue
		}
		if response.LatencyMs > 0 && response.LatencyMs < bound {
			reactionTimes = append(reactionTimes, float64(response.LatencyMs))
		}
	}
	return reactionTimes
}

func CalculateAverageReactionTime(reactionTimes []float64) float64 {
	if len(reactionTimes) == 0 {
		return 0
	}
	var sum float64
	for _, rt := range reactionTimes {
		sum += rt
	}
	return sum / float64(len(reactionTimes))
}

// CalculateReactionTimeSD is the sample standard deviation (n-1).
func CalculateReactionTimeSD(reactionTimes []float64) float64 {
	if len(reactionTimes) < 2 {
		return 0
	}

	avg := CalculateAverageReactionTime(reactionTimes)
	var sumSquaredDiff float64
	for _, rt := range reactionTimes {
		diff := rt - avg
		sumSquaredDiff += diff * diff
	}

	variance := sumSquaredDiff / float64(len(reactionTimes)-1)
	return math.Sqrt(variance)
}

func CalculateDetectionRate(data *CPTData) float64 {
	totalTargets := CountTargets(data)
	if totalTargets == 0 {
		return 0
	}
	return float64(CountCorrectDetections(data)) / float64(totalTargets)
}

func CalculateOmissionErrorRate(data *CPTData) float64 {
	totalTargets := CountTargets(data)
	if totalTargets == 0 {
		return 0
	}
	return float64(CountOmissionErrors(data)) / float64(totalTargets)
}

func CalculateCommissionErrorRate(data *CPTData) float64 {
	nonTargetCount := CountNonTargets(data)
	if nonTargetCount == 0 {
		return 0
	}
	return float64(CountCommissionErrors(data)) / float64(nonTargetCount)
}
