package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Submission is what a completed session hands to the result sink. It is
// also the request body of the results API.
type Submission struct {
	SessionID   string      `json:"sessionId"`
	Participant Participant `json:"participant"`
	EndReason   string      `json:"endReason"`
	Early       bool        `json:"early"`
	Result      ScoreResult `json:"result"`
	Trials      []Trial     `json:"trials"`
	Responses   []Response  `json:"responses"`
	TestDate    time.Time   `json:"testDate"`
}

const (
	ResultStatusCompleted  = "completed"
	ResultStatusTerminated = "terminated"
)

type rawSession struct {
	Trials    []Trial    `json:"trials"`
	Responses []Response `json:"responses"`
}

// ToRecords converts the submission into the summary row and its event
// rows, trials first.
func (s Submission) ToRecords() (TestResult, []TestEvent, error) {
	raw, err := json.Marshal(rawSession{Trials: s.Trials, Responses: s.Responses})
	if err != nil {
		return TestResult{}, nil, fmt.Errorf("encoding raw session data: %w", err)
	}

	status := ResultStatusCompleted
	if s.Early {
		status = ResultStatusTerminated
	}
	r := s.Result
	summary := TestResult{
		SessionID:                 s.SessionID,
		Email:                     s.Participant.Email,
		PaymentCode:               s.Participant.PaymentCode,
		ParticipantName:           s.Participant.DisplayName(),
		DurationMs:                r.RealizedDurationMs,
		EndReason:                 s.EndReason,
		OmissionErrors:            r.OmissionErrors,
		CommissionErrors:          r.CommissionErrors,
		MeanReactionTimeMs:        r.MeanReactionTimeMs,
		ReactionTimeVariabilityMs: r.ReactionTimeVariabilityMs,
		TargetsShown:              r.TargetsShown,
		CorrectDetections:         r.CorrectDetections,
		DetectionRate:             r.DetectionRate,
		OmissionErrorRate:         r.OmissionErrorRate,
		CommissionErrorRate:       r.CommissionErrorRate,
		Attentiveness:             r.Attentiveness,
		ImpulseControl:            r.ImpulseControl,
		Consistency:               r.Consistency,
		Status:                    status,
		RawData:                   raw,
		TestDate:                  s.TestDate,
	}

	events := make([]TestEvent, 0, len(s.Trials)+len(s.Responses))
	for _, t := range s.Trials {
		seq, target := t.Sequence, t.IsTarget
		events = append(events, TestEvent{
			EventType: EventTypeStimulus,
			Sequence:  &seq,
			IsTarget:  &target,
			AtMs:      t.PresentedAt.Milliseconds(),
		})
	}
	for _, resp := range s.Responses {
		ev := TestEvent{EventType: EventTypeResponse, AtMs: resp.ObservedAt.Milliseconds()}
		if resp.Matched() {
			matched, target, latency := resp.MatchedTrial, resp.IsTarget, resp.LatencyMs
			ev.MatchedTrial = &matched
			ev.IsTarget = &target
			ev.LatencyMs = &latency
		}
		events = append(events, ev)
	}
	return summary, events, nil
}
