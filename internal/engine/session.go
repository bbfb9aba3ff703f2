package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tova-go/internal/clock"
	"tova-go/internal/metrics"
	"tova-go/internal/models"
)

// Options wires a session to its collaborators.
type Options struct {
	Scheduler clock.Scheduler
	Display   Display
	// Sequence defaults to a RandomSequence seeded with Seed.
	Sequence Sequence
	Seed     int64
	Observer Observer
	// OnComplete receives the outcome exactly once. It runs on the
	// timeline and must hand any I/O off to another goroutine.
	OnComplete func(Outcome)
	Logger     *zap.Logger
	// WallClock stamps Outcome.FinishedAt; defaults to time.Now.
	WallClock func() time.Time
}

// Session is the state machine that owns one test run. All fields below
// the divider are only touched on the scheduler's timeline.
type Session struct {
	id         string
	cfg        Config
	sched      clock.Scheduler
	display    Display
	observer   Observer
	onComplete func(Outcome)
	log        *zap.Logger
	wall       func() time.Time

	status  atomic.Pointer[Status]
	outcome atomic.Pointer[Outcome]

	// ---

	phase       Phase
	participant models.Participant
	recorder    *Recorder
	generator   *TrialGenerator
	presenter   *Presenter
	capture     *ResponseCapture
	countdown   clock.Timer
	startedAt   time.Duration
	pausedAt    time.Duration
	pausedTotal time.Duration
	paused      bool
	pauses      []span
}

// span is a finished pause on the scheduler clock.
type span struct {
	from, to time.Duration
}

// NewSession creates a session in the Verifying phase.
func NewSession(cfg Config, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Scheduler == nil {
		return nil, errors.New("engine: a scheduler is required")
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		sched:      opts.Scheduler,
		display:    opts.Display,
		observer:   opts.Observer,
		onComplete: opts.OnComplete,
		log:        opts.Logger,
		wall:       opts.WallClock,
		phase:      PhaseVerifying,
		recorder:   NewRecorder(cfg.TrialCount),
		capture:    NewResponseCapture(cfg.ResponseWindow),
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.wall == nil {
		s.wall = time.Now
	}
	s.log = s.log.With(zap.String("session", s.id))

	sequence := opts.Sequence
	if sequence == nil {
		sequence = NewRandomSequence(cfg.TargetProbability, opts.Seed)
	}
	s.generator = NewTrialGenerator(s.sched, cfg, sequence, s.activeElapsed, s.onTrial, s.complete)
	if s.display != nil {
		s.presenter = NewPresenter(s.sched, s.display, cfg.Exposure)
	}
	s.publish()
	return s, nil
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Config() Config { return s.cfg }

// Status returns the latest published snapshot.
func (s *Session) Status() Status {
	return *s.status.Load()
}

// Outcome returns the session's outcome once it has completed.
func (s *Session) Outcome() (Outcome, bool) {
	o := s.outcome.Load()
	if o == nil {
		return Outcome{}, false
	}
	return *o, true
}

// Authorize records the participant the external access check approved
// and moves the session to Briefed.
func (s *Session) Authorize(p models.Participant) error {
	return s.call(func() error {
		if s.phase != PhaseVerifying {
			return s.transitionError(PhaseBriefed)
		}
		s.participant = p
		s.setPhase(PhaseBriefed)
		return nil
	})
}

// Begin starts the run. A missing or unready display is reported here and
// leaves the session in Briefed.
func (s *Session) Begin() error {
	return s.call(func() error {
		if s.phase != PhaseBriefed {
			return s.transitionError(PhaseRunning)
		}
		if s.display == nil {
			return ErrDisplayUnavailable
		}
		if err := s.display.Ready(); err != nil {
			return fmt.Errorf("%w: %w", ErrDisplayUnavailable, err)
		}

		s.startedAt = s.sched.Now()
		s.setPhase(PhaseRunning)
		s.countdown = s.sched.AfterFunc(s.cfg.SessionDuration(), s.durationElapsed)
		s.generator.Start()
		return nil
	})
}

// Press reports a key press. It is time-stamped now and classified on the
// timeline against the active clock, so pauses never add to a latency.
func (s *Session) Press() {
	at := s.sched.Now()
	s.sched.Post(func() { s.press(at) })
}

// Stop ends a running session early.
func (s *Session) Stop() error {
	return s.call(func() error {
		if s.phase != PhaseRunning {
			return s.transitionError(PhaseCompleted)
		}
		s.complete(ReasonStopped, nil)
		return nil
	})
}

// Fail ends a running session early because of an error outside the
// engine, for example a display that stopped working.
func (s *Session) Fail(err error) {
	s.sched.Post(func() { s.complete(ReasonError, err) })
}

// Pause suspends trial generation and the countdown. Paused time does not
// count towards the session duration.
func (s *Session) Pause() error {
	return s.call(func() error {
		if s.phase != PhaseRunning {
			return fmt.Errorf("%w: cannot pause a %s session", ErrInvalidTransition, s.phase)
		}
		if s.paused {
			return nil
		}
		s.generator.Stop()
		s.stopPresenter()
		s.countdown.Stop()
		s.paused = true
		s.pausedAt = s.sched.Now()
		s.log.Info("Session paused", zap.Duration("elapsed", s.activeElapsed()))
		s.publish()
		s.observer.PauseChanged(true)
		return nil
	})
}

// Resume continues a paused session where it left off.
func (s *Session) Resume() error {
	return s.call(func() error {
		if s.phase != PhaseRunning {
			return fmt.Errorf("%w: cannot resume a %s session", ErrInvalidTransition, s.phase)
		}
		if !s.paused {
			return nil
		}
		now := s.sched.Now()
		s.pausedTotal += now - s.pausedAt
		s.pauses = append(s.pauses, span{from: s.pausedAt, to: now})
		s.paused = false

		remaining := s.cfg.SessionDuration() - s.activeElapsed()
		s.countdown = s.sched.AfterFunc(remaining, s.durationElapsed)
		s.generator.Start()
		s.log.Info("Session resumed", zap.Duration("remaining", remaining))
		s.publish()
		s.observer.PauseChanged(false)
		return nil
	})
}

// durationElapsed completes the run when the countdown fires. A countdown
// that coincides with the end of the trial schedule reports the trial count.
func (s *Session) durationElapsed() {
	reason := ReasonDurationElapsed
	if s.generator.Emitted() >= s.cfg.TrialCount {
		reason = ReasonTrialCountReached
	}
	s.complete(reason, nil)
}

func (s *Session) call(fn func() error) error {
	done := make(chan error, 1)
	if !s.sched.Post(func() { done <- fn() }) {
		return ErrSchedulerClosed
	}
	closed := schedulerDone(s.sched)
	select {
	case err := <-done:
		return err
	case <-closed:
		select {
		case err := <-done:
			return err
		default:
			return ErrSchedulerClosed
		}
	}
}

func schedulerDone(sched clock.Scheduler) <-chan struct{} {
	if d, ok := sched.(interface{ Done() <-chan struct{} }); ok {
		return d.Done()
	}
	return nil
}

func (s *Session) transitionError(to Phase) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.phase, to)
}

func (s *Session) setPhase(to Phase) {
	from := s.phase
	s.phase = to
	s.log.Info("Session phase changed", zap.Stringer("from", from), zap.Stringer("to", to))
	s.publish()
	s.observer.PhaseChanged(from, to)
}

// activeElapsed is the running time since Begin with pauses removed.
func (s *Session) activeElapsed() time.Duration {
	if s.phase < PhaseRunning {
		return 0
	}
	now := s.sched.Now()
	elapsed := now - s.startedAt - s.pausedTotal
	if s.paused {
		elapsed -= now - s.pausedAt
	}
	return elapsed
}

// activeAt converts a scheduler time stamp into active time. A stamp taken
// before Begin or during a pause has no active time.
func (s *Session) activeAt(at time.Duration) (time.Duration, bool) {
	if at < s.startedAt || (s.paused && at >= s.pausedAt) {
		return 0, false
	}
	active := at - s.startedAt
	for _, p := range s.pauses {
		switch {
		case at >= p.to:
			active -= p.to - p.from
		case at >= p.from:
			return 0, false
		}
	}
	return active, true
}

func (s *Session) onTrial(trial models.Trial) {
	if s.phase != PhaseRunning || s.paused {
		return
	}
	if err := s.recorder.AppendTrial(trial); err != nil {
		s.complete(ReasonError, err)
		return
	}
	s.presenter.Present(trial)
	s.publish()
	s.observer.TrialPresented(trial)
}

func (s *Session) press(at time.Duration) {
	active, ok := s.activeAt(at)
	if s.phase != PhaseRunning || s.paused || !ok {
		s.log.Debug("Ignoring key press", zap.Stringer("phase", s.phase), zap.Bool("paused", s.paused))
		return
	}
	resp, err := s.capture.Record(s.recorder, active)
	if err != nil {
		s.complete(ReasonError, err)
		return
	}
	s.publish()
	s.observer.ResponseRecorded(resp)
}

func (s *Session) stopPresenter() {
	if s.presenter != nil {
		s.presenter.Stop()
	}
}

// complete is the only way into Completed. Whichever trigger calls it
// first wins; every later call finds the phase already terminal.
func (s *Session) complete(reason EndReason, cause error) {
	if s.phase != PhaseRunning {
		return
	}

	s.generator.Stop()
	s.stopPresenter()
	if s.countdown != nil {
		s.countdown.Stop()
	}

	now := s.sched.Now()
	if s.paused {
		s.pausedTotal += now - s.pausedAt
		s.paused = false
	}
	realized := now - s.startedAt - s.pausedTotal

	// Read the live recorder now, inside the terminal callback: nothing
	// can append between this snapshot and the phase change below.
	snap := s.recorder.Snapshot()
	result := metrics.Score(&metrics.CPTData{
		Trials:           snap.Trials,
		Responses:        snap.Responses,
		RealizedDuration: realized,
	}, metrics.ScoringOptions{ReactionTimeUpperBoundMs: s.cfg.ReactionTimeCeiling.Milliseconds()})

	outcome := &Outcome{
		SessionID:   s.id,
		Participant: s.participant,
		Reason:      reason,
		Err:         cause,
		Result:      result,
		Trials:      snap.Trials,
		Responses:   snap.Responses,
		StartedAt:   s.startedAt,
		CompletedAt: now,
		FinishedAt:  s.wall(),
	}
	s.outcome.Store(outcome)
	s.setPhase(PhaseCompleted)

	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.Int("trials", len(snap.Trials)),
		zap.Int("responses", len(snap.Responses)),
		zap.Int("omission_errors", result.OmissionErrors),
		zap.Int("commission_errors", result.CommissionErrors),
		zap.Float64("mean_rt_ms", result.MeanReactionTimeMs),
		zap.Float64("rt_sd_ms", result.ReactionTimeVariabilityMs),
		zap.Int64("duration_ms", result.RealizedDurationMs),
	}
	if cause != nil {
		s.log.Error("Session ended by error", append(fields, zap.Error(cause))...)
	} else {
		s.log.Info("Session completed", fields...)
	}

	s.observer.Completed(*outcome)
	if s.onComplete != nil {
		s.onComplete(*outcome)
	}
}

func (s *Session) publish() {
	trials, responses := s.recorder.Counts()
	s.status.Store(&Status{
		Phase:           s.phase,
		Paused:          s.paused,
		TrialsPresented: trials,
		Responses:       responses,
		TrialCount:      s.cfg.TrialCount,
		Elapsed:         s.activeElapsed(),
		PublishedAt:     s.wall(),
	})
}
