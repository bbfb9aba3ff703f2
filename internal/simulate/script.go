// Package simulate replays scripted participants against a session on
// virtual time, so a full-length test runs in milliseconds.
package simulate

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tova-go/internal/engine"
	"tova-go/internal/models"
)

// Script describes one simulated participant. Times are milliseconds from
// the moment the session begins.
type Script struct {
	Name        string             `yaml:"name"`
	Test        TestOverrides      `yaml:"test"`
	Pattern     string             `yaml:"pattern"` // e.g. "TNNT"; empty draws randomly
	Seed        int64              `yaml:"seed"`
	Participant models.Participant `yaml:"participant"`
	Respond     Responder          `yaml:"respond"`
	Presses     []int64            `yaml:"presses"`
	Pauses      []Pause            `yaml:"pauses"`
	StopAtMs    int64              `yaml:"stop_at_ms"`
	Expect      Expect             `yaml:"expect"`
}

// TestOverrides replaces the matching settings of the base configuration.
// Zero values keep the base setting.
type TestOverrides struct {
	ISIMs             int      `yaml:"isi_ms"`
	ExposureMs        int      `yaml:"exposure_ms"`
	LeadInMs          *int     `yaml:"lead_in_ms"`
	TrialCount        int      `yaml:"trial_count"`
	DurationMs        int      `yaml:"duration_ms"`
	TargetProbability *float64 `yaml:"target_probability"`
	ResponseWindowMs  int      `yaml:"response_window_ms"`
	RTUpperBoundMs    int      `yaml:"rt_upper_bound_ms"`
}

// Responder answers trials automatically as they are presented.
type Responder struct {
	LatencyMs  int64 `yaml:"latency_ms"`
	Targets    bool  `yaml:"targets"`
	NonTargets bool  `yaml:"non_targets"`
	// Trials limits automatic answers to these trial numbers.
	Trials []int `yaml:"trials"`
}

type Pause struct {
	AtMs  int64 `yaml:"at_ms"`
	ForMs int64 `yaml:"for_ms"`
}

// Expect lists figures the outcome must match; unset fields are not
// checked.
type Expect struct {
	EndReason                 string   `yaml:"end_reason"`
	Trials                    *int     `yaml:"trials"`
	Responses                 *int     `yaml:"responses"`
	OmissionErrors            *int     `yaml:"omission_errors"`
	CommissionErrors          *int     `yaml:"commission_errors"`
	MeanReactionTimeMs        *float64 `yaml:"mean_rt_ms"`
	ReactionTimeVariabilityMs *float64 `yaml:"rt_sd_ms"`
	RealizedDurationMs        *int64   `yaml:"duration_ms"`
}

// Load reads a script from a YAML file. Unknown keys are rejected.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing simulation script: %w", err)
	}
	if s.StopAtMs < 0 {
		return nil, fmt.Errorf("stop_at_ms must not be negative")
	}
	for _, p := range s.Pauses {
		if p.AtMs < 0 || p.ForMs <= 0 {
			return nil, fmt.Errorf("invalid pause at %d ms for %d ms", p.AtMs, p.ForMs)
		}
	}
	return &s, nil
}

// Apply returns base with the overrides applied.
func (o TestOverrides) Apply(base engine.Config) engine.Config {
	cfg := base
	if o.ISIMs > 0 {
		cfg.ISI = ms(int64(o.ISIMs))
		if o.LeadInMs == nil {
			cfg.LeadIn = cfg.ISI
		}
	}
	if o.ExposureMs > 0 {
		cfg.Exposure = ms(int64(o.ExposureMs))
	}
	if o.LeadInMs != nil {
		cfg.LeadIn = ms(int64(*o.LeadInMs))
	}
	if o.TrialCount > 0 {
		cfg.TrialCount = o.TrialCount
	}
	if o.DurationMs > 0 {
		cfg.Duration = ms(int64(o.DurationMs))
	}
	if o.TargetProbability != nil {
		cfg.TargetProbability = *o.TargetProbability
	}
	if o.ResponseWindowMs > 0 {
		cfg.ResponseWindow = ms(int64(o.ResponseWindowMs))
	}
	if o.RTUpperBoundMs > 0 {
		cfg.ReactionTimeCeiling = ms(int64(o.RTUpperBoundMs))
	}
	return cfg
}

// Check compares the outcome with the expectations and reports every
// mismatch.
func (e Expect) Check(o engine.Outcome) error {
	var errs []error
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Errorf("%s: want %v, got %v", field, want, got))
	}
	r := o.Result

	if e.EndReason != "" && e.EndReason != string(o.Reason) {
		mismatch("end_reason", e.EndReason, o.Reason)
	}
	if e.Trials != nil && *e.Trials != len(o.Trials) {
		mismatch("trials", *e.Trials, len(o.Trials))
	}
	if e.Responses != nil && *e.Responses != len(o.Responses) {
		mismatch("responses", *e.Responses, len(o.Responses))
	}
	if e.OmissionErrors != nil && *e.OmissionErrors != r.OmissionErrors {
		mismatch("omission_errors", *e.OmissionErrors, r.OmissionErrors)
	}
	if e.CommissionErrors != nil && *e.CommissionErrors != r.CommissionErrors {
		mismatch("commission_errors", *e.CommissionErrors, r.CommissionErrors)
	}
	if e.MeanReactionTimeMs != nil && !approx(*e.MeanReactionTimeMs, r.MeanReactionTimeMs) {
		mismatch("mean_rt_ms", *e.MeanReactionTimeMs, r.MeanReactionTimeMs)
	}
	if e.ReactionTimeVariabilityMs != nil && !approx(*e.ReactionTimeVariabilityMs, r.ReactionTimeVariabilityMs) {
		mismatch("rt_sd_ms", *e.ReactionTimeVariabilityMs, r.ReactionTimeVariabilityMs)
	}
	if e.RealizedDurationMs != nil && *e.RealizedDurationMs != r.RealizedDurationMs {
		mismatch("duration_ms", *e.RealizedDurationMs, r.RealizedDurationMs)
	}
	return errors.Join(errs...)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
