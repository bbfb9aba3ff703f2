package simulate

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"tova-go/internal/clock"
	"tova-go/internal/engine"
	"tova-go/internal/metrics"
	"tova-go/internal/models"
)

// Report is the result of one simulated session.
type Report struct {
	Script  string
	Config  engine.Config
	Outcome engine.Outcome
	// Shown counts stimuli drawn on the simulated display.
	Shown int
	// Mismatch is set when the outcome does not meet the expectations.
	Mismatch error
}

// countingDisplay is always ready and only counts what it is asked to draw.
type countingDisplay struct {
	shown, hidden int
}

func (d *countingDisplay) Ready() error { return nil }
func (d *countingDisplay) Show(models.Trial) { d.shown++ }
func (d *countingDisplay) Hide() { d.hidden++ }

// responder answers presented trials after a fixed latency.
type responder struct {
	engine.NopObserver
	sched   clock.Scheduler
	rule    Responder
	trials  map[int]bool
	session *engine.Session
}

func (r *responder) TrialPresented(t models.Trial) {
	if len(r.trials) > 0 && !r.trials[t.Sequence] {
		return
	}
	if (t.IsTarget && r.rule.Targets) || (!t.IsTarget && r.rule.NonTargets) {
		r.sched.AfterFunc(ms(r.rule.LatencyMs), r.session.Press)
	}
}

type action struct {
	at   time.Duration
	kind string
}

// Run plays script against a fresh session configured from base.
func Run(script *Script, base engine.Config, log *zap.Logger) (*Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := script.Test.Apply(base)

	var sequence engine.Sequence
	if script.Pattern != "" {
		seq, err := engine.ParsePattern(script.Pattern)
		if err != nil {
			return nil, err
		}
		sequence = seq
	}

	sched := clock.NewManual()
	display := &countingDisplay{}
	resp := &responder{sched: sched, rule: script.Respond}
	if len(script.Respond.Trials) > 0 {
		resp.trials = make(map[int]bool, len(script.Respond.Trials))
		for _, k := range script.Respond.Trials {
			resp.trials[k] = true
		}
	}

	session, err := engine.NewSession(cfg, engine.Options{
		Scheduler: sched,
		Display:   display,
		Sequence:  sequence,
		Seed:      script.Seed,
		Observer:  resp,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	resp.session = session

	if err := session.Authorize(script.Participant); err != nil {
		return nil, err
	}
	if err := session.Begin(); err != nil {
		return nil, err
	}

	var actions []action
	var paused time.Duration
	for _, at := range script.Presses {
		actions = append(actions, action{at: ms(at), kind: "press"})
	}
	for _, p := range script.Pauses {
		actions = append(actions, action{at: ms(p.AtMs), kind: "pause"}, action{at: ms(p.AtMs + p.ForMs), kind: "resume"})
		paused += ms(p.ForMs)
	}
	if script.StopAtMs > 0 {
		actions = append(actions, action{at: ms(script.StopAtMs), kind: "stop"})
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].at < actions[j].at })

	for _, a := range actions {
		if session.Status().Phase == engine.PhaseCompleted {
			break
		}
		sched.AdvanceTo(a.at)
		switch a.kind {
		case "press":
			session.Press()
		case "pause":
			err = session.Pause()
		case "resume":
			err = session.Resume()
		case "stop":
			err = session.Stop()
		}
		if err != nil && session.Status().Phase != engine.PhaseCompleted {
			return nil, fmt.Errorf("%s at %s: %w", a.kind, a.at, err)
		}
	}
	sched.Advance(cfg.SessionDuration() + paused)

	outcome, ok := session.Outcome()
	if !ok {
		return nil, fmt.Errorf("session did not complete within %s", cfg.SessionDuration()+paused)
	}
	return &Report{
		Script:   script.Name,
		Config:   cfg,
		Outcome:  outcome,
		Shown:    display.shown,
		Mismatch: script.Expect.Check(outcome),
	}, nil
}

// Render writes the report as a two-column table.
func (r *Report) Render(w io.Writer) error {
	res := r.Outcome.Result
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Measure", "Value").
		Row("Script", r.Script).
		Row("End reason", string(r.Outcome.Reason)).
		Row("Trials shown", strconv.Itoa(r.Shown)).
		Row("Responses", strconv.Itoa(res.TotalResponses)).
		Row("Omission errors", strconv.Itoa(res.OmissionErrors)).
		Row("Commission errors", strconv.Itoa(res.CommissionErrors)).
		Row("Mean RT (ms)", strconv.FormatFloat(res.MeanReactionTimeMs, 'f', 1, 64)).
		Row("RT variability (ms)", strconv.FormatFloat(res.ReactionTimeVariabilityMs, 'f', 1, 64)).
		Row("Duration (ms)", strconv.FormatInt(res.RealizedDurationMs, 10)).
		Row("Attentiveness", fmt.Sprintf("%d (%s)", res.Attentiveness, metrics.Band(res.Attentiveness))).
		Row("Impulse control", fmt.Sprintf("%d (%s)", res.ImpulseControl, metrics.Band(res.ImpulseControl))).
		Row("Consistency", fmt.Sprintf("%d (%s)", res.Consistency, metrics.Band(res.Consistency)))
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}
	if r.Mismatch != nil {
		_, err := fmt.Fprintf(w, "MISMATCH:\n%v\n", r.Mismatch)
		return err
	}
	return nil
}
