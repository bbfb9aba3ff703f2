package engine

import (
	"fmt"
	"time"
)

// Config holds the timing and probability constants of a session.
type Config struct {
	ISI                 time.Duration
	Exposure            time.Duration
	LeadIn              time.Duration // delay before the first trial
	TrialCount          int
	Duration            time.Duration // zero derives LeadIn + TrialCount*ISI
	TargetProbability   float64
	ResponseWindow      time.Duration
	ReactionTimeCeiling time.Duration
}

// DefaultConfig returns the standard protocol: a 2 s interval, 100 ms
// exposure, 648 trials and a 22% target probability.
func DefaultConfig() Config {
	return Config{
		ISI:                 2000 * time.Millisecond,
		Exposure:            100 * time.Millisecond,
		LeadIn:              2000 * time.Millisecond,
		TrialCount:          648,
		TargetProbability:   0.22,
		ResponseWindow:      2000 * time.Millisecond,
		ReactionTimeCeiling: 3000 * time.Millisecond,
	}
}

// SessionDuration is the countdown after which a running session completes.
// By default it coincides with the tick that follows the final trial.
func (c Config) SessionDuration() time.Duration {
	if c.Duration > 0 {
		return c.Duration
	}
	return c.LeadIn + time.Duration(c.TrialCount)*c.ISI
}

// Validate reports the first invalid setting, wrapped in ErrConfig.
func (c Config) Validate() error {
	switch {
	case c.ISI <= 0:
		return fmt.Errorf("%w: inter-stimulus interval must be positive, got %s", ErrConfig, c.ISI)
	case c.Exposure <= 0:
		return fmt.Errorf("%w: exposure must be positive, got %s", ErrConfig, c.Exposure)
	case c.Exposure >= c.ISI:
		return fmt.Errorf("%w: exposure %s must be shorter than the interval %s", ErrConfig, c.Exposure, c.ISI)
	case c.LeadIn < 0:
		return fmt.Errorf("%w: lead-in must not be negative, got %s", ErrConfig, c.LeadIn)
	case c.TrialCount <= 0:
		return fmt.Errorf("%w: trial count must be positive, got %d", ErrConfig, c.TrialCount)
	case c.Duration < 0:
		return fmt.Errorf("%w: duration must not be negative, got %s", ErrConfig, c.Duration)
	case c.TargetProbability < 0 || c.TargetProbability > 1:
		return fmt.Errorf("%w: target probability must be within [0, 1], got %g", ErrConfig, c.TargetProbability)
	case c.ResponseWindow <= 0:
		return fmt.Errorf("%w: response window must be positive, got %s", ErrConfig, c.ResponseWindow)
	case c.ReactionTimeCeiling <= 0:
		return fmt.Errorf("%w: reaction time ceiling must be positive, got %s", ErrConfig, c.ReactionTimeCeiling)
	}
	return nil
}
