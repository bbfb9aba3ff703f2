package engine

import (
	"time"

	"tova-go/internal/models"
)

// Observer is told about everything that happens in a session. Calls are
// made on the scheduler's timeline and must not block.
type Observer interface {
	PhaseChanged(from, to Phase)
	TrialPresented(models.Trial)
	ResponseRecorded(models.Response)
	PauseChanged(paused bool)
	Completed(Outcome)
}

// NopObserver ignores every notification. Embed it to implement only the
// callbacks you need.
type NopObserver struct{}

func (NopObserver) PhaseChanged(from, to Phase)      {}
func (NopObserver) TrialPresented(models.Trial)      {}
func (NopObserver) ResponseRecorded(models.Response) {}
func (NopObserver) PauseChanged(bool)                {}
func (NopObserver) Completed(Outcome)                {}

// Outcome is everything a completed session produced.
type Outcome struct {
	SessionID   string
	Participant models.Participant
	Reason      EndReason
	Err         error // set when Reason is ReasonError
	Result      models.ScoreResult
	Trials      []models.Trial
	Responses   []models.Response
	StartedAt   time.Duration // monotonic
	CompletedAt time.Duration // monotonic
	FinishedAt  time.Time     // wall clock
}

// Status is a snapshot of a session safe to read from any goroutine.
type Status struct {
	Phase           Phase
	Paused          bool
	TrialsPresented int
	Responses       int
	TrialCount      int
	// Elapsed is the active running time at PublishedAt.
	Elapsed     time.Duration
	PublishedAt time.Time
}

// Remaining estimates the countdown left at wall time now.
func (st Status) Remaining(total time.Duration, now time.Time) time.Duration {
	elapsed := st.Elapsed
	if st.Phase == PhaseRunning && !st.Paused {
		elapsed += now.Sub(st.PublishedAt)
	}
	return max(0, total-elapsed)
}
