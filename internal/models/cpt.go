package models

import (
	"encoding/json"
	"time"
)

// Trial is one stimulus presentation. Trials are created by the generator
// and never modified afterwards. PresentedAt and Response.ObservedAt are
// active time since Begin, with paused time removed.
type Trial struct {
	Sequence    int           `json:"sequence"`
	IsTarget    bool          `json:"isTarget"`
	PresentedAt time.Duration `json:"presentedAt"`
}

// Response is one key press. MatchedTrial is zero for a stray press that
// no stimulus accounts for; LatencyMs is only meaningful when matched.
type Response struct {
	ObservedAt   time.Duration `json:"observedAt"`
	MatchedTrial int           `json:"matchedTrial,omitempty"`
	IsTarget     bool          `json:"isTarget"`
	LatencyMs    int64         `json:"latencyMs"`
}

// Matched reports whether the response was attributed to a trial.
func (r Response) Matched() bool {
	return r.MatchedTrial > 0
}

// CorrectDetection reports whether the response answered a target.
func (r Response) CorrectDetection() bool {
	return r.Matched() && r.IsTarget
}

// ScoreResult holds the processed metrics of one completed session.
type ScoreResult struct {
	OmissionErrors            int     `json:"omissionErrors"`
	CommissionErrors          int     `json:"commissionErrors"`
	MeanReactionTimeMs        float64 `json:"meanReactionTimeMs"`
	ReactionTimeVariabilityMs float64 `json:"reactionTimeVariabilityMs"`
	RealizedDurationMs        int64   `json:"realizedDurationMs"`

	TargetsShown        int     `json:"targetsShown"`
	NonTargetsShown     int     `json:"nonTargetsShown"`
	CorrectDetections   int     `json:"correctDetections"`
	TotalResponses      int     `json:"totalResponses"`
	ReactionTimeSamples int     `json:"reactionTimeSamples"`
	DetectionRate       float64 `json:"detectionRate"`
	OmissionErrorRate   float64 `json:"omissionErrorRate"`
	CommissionErrorRate float64 `json:"commissionErrorRate"`

	Attentiveness  int `json:"attentiveness"`
	ImpulseControl int `json:"impulseControl"`
	Consistency    int `json:"consistency"`
}

// TestResult is the stored summary of a session, one per payment code.
type TestResult struct {
	ID                        uint   `gorm:"primaryKey"`
	SessionID                 string `gorm:"size:36;index"`
	Email                     string `gorm:"index"`
	PaymentCode               string `gorm:"uniqueIndex"`
	ParticipantName           string
	DurationMs                int64
	EndReason                 string
	OmissionErrors            int
	CommissionErrors          int
	MeanReactionTimeMs        float64
	ReactionTimeVariabilityMs float64
	TargetsShown              int
	CorrectDetections         int
	DetectionRate             float64
	OmissionErrorRate         float64
	CommissionErrorRate       float64
	Attentiveness             int
	ImpulseControl            int
	Consistency               int
	Status                    string
	RawData                   json.RawMessage `gorm:"type:jsonb"`
	TestDate                  time.Time
	CreatedAt                 time.Time
}

// TestEvent is a single trial or response belonging to a TestResult.
type TestEvent struct {
	ID           uint   `gorm:"primaryKey"`
	ResultID     uint   `gorm:"index"`
	EventType    string // 'stimulus' or 'response'
	Sequence     *int   // Pointer to allow null
	IsTarget     *bool
	AtMs         int64
	MatchedTrial *int
	LatencyMs    *int64
}

const (
	EventTypeStimulus = "stimulus"
	EventTypeResponse = "response"
)
