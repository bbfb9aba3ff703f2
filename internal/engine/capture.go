package engine

import (
	"time"

	"tova-go/internal/models"
)

// ResponseCapture classifies key presses against the recorder's current
// trials. It holds no trial state of its own, so it can never see a stale
// view of the session.
type ResponseCapture struct {
	window time.Duration
}

func NewResponseCapture(window time.Duration) *ResponseCapture {
	return &ResponseCapture{window: window}
}

// Classify builds the response for a press observed at observedAt. The
// press matches the latest trial presented at or before it when it falls
// inside the response window and that trial is still unanswered.
func (c *ResponseCapture) Classify(rec *Recorder, observedAt time.Duration) models.Response {
	if last, ok := rec.LastResponse(); ok && observedAt < last.ObservedAt {
		observedAt = last.ObservedAt
	}

	resp := models.Response{ObservedAt: observedAt}
	trial, ok := rec.LatestTrialAt(observedAt)
	if !ok || rec.IsMatched(trial.Sequence) {
		return resp
	}

	delta := observedAt - trial.PresentedAt
	if delta > c.window {
		return resp
	}
	resp.MatchedTrial = trial.Sequence
	resp.IsTarget = trial.IsTarget
	resp.LatencyMs = delta.Milliseconds()
	return resp
}

// Record classifies the press and appends it to the recorder.
func (c *ResponseCapture) Record(rec *Recorder, observedAt time.Duration) (models.Response, error) {
	resp := c.Classify(rec, observedAt)
	return resp, rec.AppendResponse(resp)
}
