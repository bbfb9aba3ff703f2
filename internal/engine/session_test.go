package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tova-go/internal/models"
)

const scenarioPattern = "TNNTNTNNNT"

func TestSessionAllTargetsAnswered(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(10), scenarioPattern)
	h.start()

	for _, k := range []int{1, 4, 6, 10} {
		h.pressAt(h.trialAt(k) + 300*time.Millisecond)
	}
	h.runToEnd()

	o := h.outcome()
	assert.Equal(t, 0, o.Result.OmissionErrors)
	assert.Equal(t, 0, o.Result.CommissionErrors)
	assert.Equal(t, 300.0, o.Result.MeanReactionTimeMs)
	assert.Equal(t, 0.0, o.Result.ReactionTimeVariabilityMs)
	assert.Equal(t, int64(22000), o.Result.RealizedDurationMs)
	assert.Len(t, o.Trials, 10)
	assert.Equal(t, ReasonTrialCountReached, o.Reason)
}

func TestSessionSingleAnswerAndStrayPress(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(10), scenarioPattern)
	h.start()

	h.pressAt(time.Second) // before any trial
	h.pressAt(h.trialAt(1) + 250*time.Millisecond)
	h.runToEnd()

	o := h.outcome()
	assert.Equal(t, 3, o.Result.OmissionErrors)
	assert.Equal(t, 1, o.Result.CommissionErrors)
	assert.Equal(t, 250.0, o.Result.MeanReactionTimeMs)
	require.Len(t, o.Responses, 2)
	assert.False(t, o.Responses[0].Matched())
	assert.Equal(t, 1, o.Responses[1].MatchedTrial)
	assert.Equal(t, int64(250), o.Responses[1].LatencyMs)
}

func TestSessionPressJustOutsideWindowIsUnmatched(t *testing.T) {
	cfg := scenarioConfig(2)
	cfg.ISI = 3000 * time.Millisecond
	cfg.LeadIn = 3000 * time.Millisecond
	h := newPatternHarness(t, cfg, "TT")
	h.start()

	h.pressAt(h.trialAt(1) + 2001*time.Millisecond)
	h.pressAt(h.trialAt(2) + 2000*time.Millisecond)
	h.runToEnd()

	o := h.outcome()
	require.Len(t, o.Responses, 2)
	assert.False(t, o.Responses[0].Matched(), "2001 ms after the trial is outside the window")
	assert.Equal(t, 2, o.Responses[1].MatchedTrial, "exactly on the window edge still matches")
	assert.Equal(t, 1, o.Result.CommissionErrors)
	assert.Equal(t, 1, o.Result.OmissionErrors)
}

func TestSessionFirstResponseWins(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(3), "TNN")
	h.start()

	h.pressAt(h.trialAt(1) + 200*time.Millisecond)
	h.pressAt(h.trialAt(1) + 400*time.Millisecond)
	h.runToEnd()

	o := h.outcome()
	require.Len(t, o.Responses, 2)
	assert.Equal(t, 1, o.Responses[0].MatchedTrial)
	assert.False(t, o.Responses[1].Matched())
	assert.Equal(t, 0, o.Result.OmissionErrors)
	assert.Equal(t, 1, o.Result.CommissionErrors)
	assert.Equal(t, 200.0, o.Result.MeanReactionTimeMs)
}

func TestSessionPressAtTrialBoundaryGoesToNewTrial(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(3), "NTN")
	h.start()

	// The tick presenting trial 2 runs before the press posted at the same
	// instant, so the press reads the fresh trial, not trial 1.
	h.sched.AdvanceTo(h.trialAt(2))
	h.session.Press()
	h.runToEnd()

	o := h.outcome()
	require.Len(t, o.Responses, 1)
	assert.Equal(t, 2, o.Responses[0].MatchedTrial)
	assert.Equal(t, int64(0), o.Responses[0].LatencyMs)
	assert.Equal(t, 0, o.Result.ReactionTimeSamples, "zero latency is not a valid sample")
}

func TestSessionCompletesExactlyOnceWhenTriggersCoincide(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(3), "TNT")
	h.start()

	// The default duration equals the tick after the final trial, so both
	// completion triggers are due at the same instant.
	h.sched.AdvanceTo(h.cfg.SessionDuration())
	require.Len(t, h.handoffs, 1)
	require.Len(t, h.observer.completed, 1)
	assert.Equal(t, ReasonTrialCountReached, h.handoffs[0].Reason)

	h.runToEnd()
	assert.ErrorIs(t, h.session.Stop(), ErrInvalidTransition)
	h.session.complete(ReasonStopped, nil)
	assert.Len(t, h.handoffs, 1)
	assert.Zero(t, h.sched.Pending(), "no timer may outlive completion")
}

func TestSessionDoubleTriggerInSameTurn(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(3), "TNT")
	h.start()
	h.sched.AdvanceTo(h.trialAt(2) + 500*time.Millisecond)

	h.sched.Post(func() {
		h.session.complete(ReasonStopped, nil)
		h.session.complete(ReasonDurationElapsed, nil)
	})
	require.Len(t, h.handoffs, 1)
	assert.Equal(t, ReasonStopped, h.handoffs[0].Reason)
}

func TestSessionEarlyTermination(t *testing.T) {
	pattern := "TNNTNTNNNTTNNT"
	for k := 1; k < len(pattern); k++ {
		h := newPatternHarness(t, scenarioConfig(len(pattern)), pattern)
		h.start()
		h.sched.AdvanceTo(h.trialAt(k) + 700*time.Millisecond)
		require.NoError(t, h.session.Stop())

		o := h.outcome()
		want := 0
		for _, c := range pattern[:k] {
			if c == 'T' {
				want++
			}
		}
		assert.Equal(t, ReasonStopped, o.Reason)
		assert.Len(t, o.Trials, k)
		assert.Equal(t, want, o.Result.TargetsShown, "stopped after trial %d", k)
		assert.Equal(t, want, o.Result.OmissionErrors)
		assert.Equal(t, (h.trialAt(k) + 700*time.Millisecond).Milliseconds(), o.Result.RealizedDurationMs)
		assert.Less(t, o.Result.RealizedDurationMs, h.cfg.SessionDuration().Milliseconds())

		h.runToEnd()
		assert.Len(t, h.handoffs, 1)
		assert.Len(t, h.outcome().Trials, k, "no trial after stop")
	}
}

func TestSessionStimulusExposureNeverOverlaps(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(4), "TNTN")
	h.start()
	h.runToEnd()

	require.Len(t, h.display.events, 8)
	for i := 0; i < len(h.display.events); i += 2 {
		show, hide := h.display.events[i], h.display.events[i+1]
		k := i/2 + 1
		assert.True(t, show.shown)
		assert.Equal(t, k, show.trial)
		assert.Equal(t, h.trialAt(k), show.at)
		assert.False(t, hide.shown)
		assert.Equal(t, h.trialAt(k)+100*time.Millisecond, hide.at)
	}
}

func TestSessionStopHidesVisibleStimulus(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(4), "TNTN")
	h.start()
	h.sched.AdvanceTo(h.trialAt(2) + 50*time.Millisecond)
	require.True(t, h.display.visible)

	require.NoError(t, h.session.Stop())
	assert.False(t, h.display.visible)
	h.runToEnd()
	assert.Len(t, h.display.events, 4)
}

func TestSessionBeginFailsWithoutDisplay(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(2), "TN")
	h.display.readyErr = errors.New("no tty")
	require.NoError(t, h.session.Authorize(models.Participant{}))

	err := h.session.Begin()
	assert.ErrorIs(t, err, ErrDisplayUnavailable)
	assert.Equal(t, PhaseBriefed, h.session.Status().Phase)
	assert.Zero(t, h.sched.Pending())

	s, err := NewSession(scenarioConfig(2), Options{Scheduler: h.sched})
	require.NoError(t, err)
	require.NoError(t, s.Authorize(models.Participant{}))
	assert.ErrorIs(t, s.Begin(), ErrDisplayUnavailable)
}

func TestSessionRejectsInvalidConfiguration(t *testing.T) {
	cfg := scenarioConfig(0)
	_, err := NewSession(cfg, Options{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSessionPhasesOnlyMoveForward(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(1), "T")

	assert.ErrorIs(t, h.session.Begin(), ErrInvalidTransition)
	assert.ErrorIs(t, h.session.Stop(), ErrInvalidTransition)
	h.start()
	assert.ErrorIs(t, h.session.Authorize(models.Participant{}), ErrInvalidTransition)
	assert.ErrorIs(t, h.session.Begin(), ErrInvalidTransition)
	h.runToEnd()
	assert.ErrorIs(t, h.session.Begin(), ErrInvalidTransition)
	assert.ErrorIs(t, h.session.Pause(), ErrInvalidTransition)

	assert.Equal(t, []Phase{PhaseBriefed, PhaseRunning, PhaseCompleted}, h.observer.phases)
	assert.Equal(t, PhaseCompleted, h.session.Status().Phase)
}

func TestSessionIgnoresPressesOutsideRunning(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(1), "T")
	h.session.Press()
	require.NoError(t, h.session.Authorize(models.Participant{}))
	h.session.Press()
	require.NoError(t, h.session.Begin())
	h.runToEnd()
	h.session.Press()

	assert.Empty(t, h.outcome().Responses)
	assert.Equal(t, 1, h.outcome().Result.OmissionErrors)
}

func TestSessionPauseAndResume(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(4), "TNTN")
	h.start()

	h.sched.AdvanceTo(h.trialAt(2) + 500*time.Millisecond)
	require.NoError(t, h.session.Pause())
	assert.False(t, h.display.visible)

	h.sched.Advance(10 * time.Second)
	h.session.Press()
	assert.Len(t, h.observer.trials, 2, "no trial while paused")
	assert.Empty(t, h.observer.responses, "no capture while paused")

	require.NoError(t, h.session.Resume())
	// trial 3 was due 1.5 s of active time after the pause started
	h.sched.Advance(1500*time.Millisecond - time.Millisecond)
	assert.Len(t, h.observer.trials, 2)
	h.sched.Advance(time.Millisecond)
	require.Len(t, h.observer.trials, 3)

	h.runToEnd()
	o := h.outcome()
	assert.Len(t, o.Trials, 4)
	assert.Equal(t, h.cfg.SessionDuration().Milliseconds(), o.Result.RealizedDurationMs, "paused time is excluded")
	assert.Equal(t, []bool{true, false}, h.observer.pauses)
}

func TestSessionLatencyExcludesPausedTime(t *testing.T) {
	for _, pause := range []time.Duration{time.Second, 10 * time.Second} {
		t.Run(pause.String(), func(t *testing.T) {
			h := newPatternHarness(t, scenarioConfig(2), "TN")
			h.start()

			h.sched.AdvanceTo(h.trialAt(1) + 50*time.Millisecond)
			require.NoError(t, h.session.Pause())
			h.sched.Advance(pause)
			require.NoError(t, h.session.Resume())
			h.sched.Advance(50 * time.Millisecond)
			h.session.Press()

			require.Len(t, h.observer.responses, 1)
			assert.Equal(t, models.Response{
				ObservedAt:   h.trialAt(1) + 100*time.Millisecond,
				MatchedTrial: 1,
				IsTarget:     true,
				LatencyMs:    100,
			}, h.observer.responses[0])

			h.runToEnd()
			o := h.outcome()
			require.Len(t, o.Trials, 2)
			assert.Equal(t, h.trialAt(2), o.Trials[1].PresentedAt)
			assert.Equal(t, 0, o.Result.OmissionErrors)
			assert.Equal(t, 0, o.Result.CommissionErrors)
			assert.Equal(t, 100.0, o.Result.MeanReactionTimeMs)
		})
	}
}

func TestSessionActiveTimeSkipsPauses(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(4), "TNTN")
	h.start()

	h.sched.AdvanceTo(3 * time.Second)
	require.NoError(t, h.session.Pause())
	h.sched.Advance(5 * time.Second)
	require.NoError(t, h.session.Resume())

	at, ok := h.session.activeAt(2 * time.Second)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, at)

	_, ok = h.session.activeAt(4 * time.Second)
	assert.False(t, ok, "stamped during the pause")

	at, ok = h.session.activeAt(9 * time.Second)
	assert.True(t, ok)
	assert.Equal(t, 4*time.Second, at)
}

func TestSessionStopWhilePaused(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(4), "TNTN")
	h.start()
	h.sched.AdvanceTo(h.trialAt(1) + time.Second)
	require.NoError(t, h.session.Pause())
	h.sched.Advance(time.Minute)

	require.NoError(t, h.session.Stop())
	o := h.outcome()
	assert.Equal(t, (h.trialAt(1) + time.Second).Milliseconds(), o.Result.RealizedDurationMs)
	assert.Zero(t, h.sched.Pending())
}

func TestSessionExhaustedSequenceEndsEarlyWithError(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(5), "TN")
	h.start()
	h.runToEnd()

	o := h.outcome()
	assert.Equal(t, ReasonError, o.Reason)
	assert.ErrorIs(t, o.Err, ErrSequenceExhausted)
	assert.Len(t, o.Trials, 2)
	assert.Equal(t, h.trialAt(3).Milliseconds(), o.Result.RealizedDurationMs)
	assert.Len(t, h.handoffs, 1)
}

func TestSessionFailEndsEarly(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(5), "TNTNT")
	h.start()
	h.sched.AdvanceTo(h.trialAt(2))

	boom := errors.New("display lost")
	h.session.Fail(boom)
	o := h.outcome()
	assert.Equal(t, ReasonError, o.Reason)
	assert.ErrorIs(t, o.Err, boom)
	assert.Len(t, h.handoffs, 1)
}

func TestSessionShortDurationCapsRun(t *testing.T) {
	cfg := scenarioConfig(10)
	cfg.Duration = 7 * time.Second
	h := newPatternHarness(t, cfg, scenarioPattern)
	h.start()
	h.runToEnd()

	o := h.outcome()
	assert.Equal(t, ReasonDurationElapsed, o.Reason)
	assert.Len(t, o.Trials, 3)
	assert.Equal(t, int64(7000), o.Result.RealizedDurationMs)
}

func TestSessionStatusTracksProgress(t *testing.T) {
	h := newPatternHarness(t, scenarioConfig(4), "TNTN")
	h.start()
	h.pressAt(h.trialAt(2) + 100*time.Millisecond)

	st := h.session.Status()
	assert.Equal(t, PhaseRunning, st.Phase)
	assert.Equal(t, 2, st.TrialsPresented)
	assert.Equal(t, 1, st.Responses)
	assert.Equal(t, 4, st.TrialCount)
	assert.Equal(t, h.trialAt(2)+100*time.Millisecond, st.Elapsed)
}
