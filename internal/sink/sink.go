// Package sink delivers completed sessions to the results store. A session
// is handed to the Submitter exactly once; whatever cannot be delivered is
// kept on disk and retried later.
package sink

import (
	"context"
	"errors"

	"tova-go/internal/engine"
	"tova-go/internal/models"
)

// ErrDuplicate means the store already holds a result for the participant.
// It is not a failure: the session is complete either way.
var ErrDuplicate = errors.New("result already submitted")

// Sink persists one submission.
type Sink interface {
	Submit(ctx context.Context, sub models.Submission) error
}

// State is the delivery status of a session's result.
type State string

const (
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StatePending    State = "pending"
	StateDuplicate  State = "duplicate"
	// StateUnsaved means delivery failed and the pending store could not
	// keep the result either. It is held in memory and retried while the
	// process runs.
	StateUnsaved State = "unsaved"
)

// FromOutcome builds the submission for a completed session.
func FromOutcome(o engine.Outcome) models.Submission {
	return models.Submission{
		SessionID:   o.SessionID,
		Participant: o.Participant,
		EndReason:   string(o.Reason),
		Early:       o.Reason.Early(),
		Result:      o.Result,
		Trials:      o.Trials,
		Responses:   o.Responses,
		TestDate:    o.FinishedAt.UTC(),
	}
}
