package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tova-go/internal/clock"
	"tova-go/internal/models"
)

type displayEvent struct {
	at    time.Duration
	shown bool
	trial int
}

// recordingDisplay keeps every show/hide and fails the test on overlap.
type recordingDisplay struct {
	t        *testing.T
	sched    clock.Scheduler
	readyErr error
	visible  bool
	events   []displayEvent
}

func (d *recordingDisplay) Ready() error { return d.readyErr }

func (d *recordingDisplay) Show(trial models.Trial) {
	require.False(d.t, d.visible, "stimulus %d shown while another is visible", trial.Sequence)
	d.visible = true
	d.events = append(d.events, displayEvent{at: d.sched.Now(), shown: true, trial: trial.Sequence})
}

func (d *recordingDisplay) Hide() {
	require.True(d.t, d.visible, "hide without a visible stimulus")
	d.visible = false
	d.events = append(d.events, displayEvent{at: d.sched.Now()})
}

type recordingObserver struct {
	NopObserver
	phases    []Phase
	trials    []models.Trial
	responses []models.Response
	pauses    []bool
	completed []Outcome
}

func (o *recordingObserver) PhaseChanged(_, to Phase) { o.phases = append(o.phases, to) }
func (o *recordingObserver) TrialPresented(t models.Trial) { o.trials = append(o.trials, t) }
func (o *recordingObserver) ResponseRecorded(r models.Response) { o.responses = append(o.responses, r) }
func (o *recordingObserver) PauseChanged(paused bool) { o.pauses = append(o.pauses, paused) }
func (o *recordingObserver) Completed(out Outcome) { o.completed = append(o.completed, out) }

type harness struct {
	t        *testing.T
	cfg      Config
	sched    *clock.Manual
	display  *recordingDisplay
	observer *recordingObserver
	session  *Session
	handoffs []Outcome
}

func scenarioConfig(trials int) Config {
	cfg := DefaultConfig()
	cfg.TrialCount = trials
	return cfg
}

func newHarness(t *testing.T, cfg Config, sequence Sequence) *harness {
	t.Helper()
	h := &harness{t: t, cfg: cfg, sched: clock.NewManual(), observer: &recordingObserver{}}
	h.display = &recordingDisplay{t: t, sched: h.sched}

	s, err := NewSession(cfg, Options{
		Scheduler:  h.sched,
		Display:    h.display,
		Sequence:   sequence,
		Observer:   h.observer,
		OnComplete: func(o Outcome) { h.handoffs = append(h.handoffs, o) },
		WallClock:  func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	require.NoError(t, err)
	h.session = s
	return h
}

func newPatternHarness(t *testing.T, cfg Config, pattern string) *harness {
	t.Helper()
	seq, err := ParsePattern(pattern)
	require.NoError(t, err)
	return newHarness(t, cfg, seq)
}

func (h *harness) start() {
	h.t.Helper()
	require.NoError(h.t, h.session.Authorize(models.Participant{Email: "p@example.com", PaymentCode: "PAY-1"}))
	require.NoError(h.t, h.session.Begin())
}

// pressAt advances virtual time to at and presses.
func (h *harness) pressAt(at time.Duration) {
	h.sched.AdvanceTo(at)
	h.session.Press()
}

// trialAt is when trial k is presented for a session started at zero.
func (h *harness) trialAt(k int) time.Duration {
	return h.cfg.LeadIn + time.Duration(k-1)*h.cfg.ISI
}

func (h *harness) runToEnd() {
	h.sched.Advance(h.cfg.SessionDuration() + time.Minute)
}

func (h *harness) outcome() Outcome {
	h.t.Helper()
	o, ok := h.session.Outcome()
	require.True(h.t, ok, "session has not completed")
	return o
}
