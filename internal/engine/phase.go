package engine

// Phase is the coarse state of a session. Phases only move forward.
type Phase int

const (
	PhaseVerifying Phase = iota
	PhaseBriefed
	PhaseRunning
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseVerifying:
		return "verifying"
	case PhaseBriefed:
		return "briefed"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// EndReason records which trigger completed a session.
type EndReason string

const (
	ReasonDurationElapsed   EndReason = "duration_elapsed"
	ReasonTrialCountReached EndReason = "trial_count_reached"
	ReasonStopped           EndReason = "stopped"
	ReasonError             EndReason = "error"
)

// Early reports whether the session ended before its natural end.
func (r EndReason) Early() bool {
	return r == ReasonStopped || r == ReasonError
}
