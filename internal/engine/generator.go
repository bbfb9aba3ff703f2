package engine

import (
	"time"

	"tova-go/internal/clock"
	"tova-go/internal/models"
)

// TrialGenerator emits one trial per interval while started. Ticks are
// scheduled against absolute deadlines on the session's active clock, so
// neither callback latency nor pauses make the cadence drift.
type TrialGenerator struct {
	sched    clock.Scheduler
	cfg      Config
	sequence Sequence

	// active returns the session's elapsed running time, pauses excluded.
	active func() time.Duration
	emit   func(models.Trial)
	finish func(EndReason, error)

	emitted int
	timer   clock.Timer
	running bool
}

func NewTrialGenerator(sched clock.Scheduler, cfg Config, sequence Sequence, active func() time.Duration, emit func(models.Trial), finish func(EndReason, error)) *TrialGenerator {
	return &TrialGenerator{
		sched:    sched,
		cfg:      cfg,
		sequence: sequence,
		active:   active,
		emit:     emit,
		finish:   finish,
	}
}

// Emitted is the number of trials produced so far.
func (g *TrialGenerator) Emitted() int {
	return g.emitted
}

// Start schedules the next tick. Calling Start on a running generator is a
// no-op.
func (g *TrialGenerator) Start() {
	if g.running {
		return
	}
	g.running = true
	g.schedule()
}

// Stop cancels the pending tick.
func (g *TrialGenerator) Stop() {
	g.running = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// nextDue is the active time of the next tick: trial k is due at
// LeadIn + (k-1)*ISI and the tick after the final trial closes the run.
func (g *TrialGenerator) nextDue() time.Duration {
	return g.cfg.LeadIn + time.Duration(g.emitted)*g.cfg.ISI
}

func (g *TrialGenerator) schedule() {
	delay := g.nextDue() - g.active()
	if delay < 0 {
		delay = 0
	}
	g.timer = g.sched.AfterFunc(delay, g.tick)
}

func (g *TrialGenerator) tick() {
	g.timer = nil
	if !g.running {
		return
	}
	if g.emitted >= g.cfg.TrialCount {
		g.running = false
		g.finish(ReasonTrialCountReached, nil)
		return
	}

	isTarget, err := g.sequence.Next()
	if err != nil {
		g.running = false
		g.finish(ReasonError, err)
		return
	}
	g.emitted++
	trial := models.Trial{
		Sequence:    g.emitted,
		IsTarget:    isTarget,
		PresentedAt: g.active(),
	}
	g.schedule()
	g.emit(trial)
}
