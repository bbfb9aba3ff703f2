package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tova-go/internal/engine"
	"tova-go/internal/models"
)

// Submitter delivers each session's result at most once, off the engine's
// timeline. Failed deliveries go to the pending store, or stay in memory
// when the store cannot take them.
type Submitter struct {
	sink    Sink
	pending *PendingStore
	log     *zap.Logger
	timeout time.Duration

	// OnState, when set, is told about every delivery state change.
	OnState func(sessionID string, st State)

	mu     sync.Mutex
	handed map[string]struct{}
	states map[string]State
	held   map[string]models.Submission
	wg     sync.WaitGroup
}

// NewSubmitter creates a submitter. A nil sink keeps every result pending.
func NewSubmitter(sink Sink, pending *PendingStore, timeout time.Duration, log *zap.Logger) *Submitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Submitter{
		sink:    sink,
		pending: pending,
		log:     log,
		timeout: timeout,
		handed:  make(map[string]struct{}),
		states:  make(map[string]State),
		held:    make(map[string]models.Submission),
	}
}

// Handoff starts delivery of a completed session and returns immediately.
// It fits engine.Options.OnComplete.
func (s *Submitter) Handoff(o engine.Outcome) {
	sub := FromOutcome(o)
	s.mu.Lock()
	if _, dup := s.handed[sub.SessionID]; dup {
		s.mu.Unlock()
		s.log.Warn("Ignoring repeated hand-off", zap.String("session", sub.SessionID))
		return
	}
	s.handed[sub.SessionID] = struct{}{}
	s.mu.Unlock()

	s.setState(sub.SessionID, StateSubmitting)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.deliver(ctx, sub)
	}()
}

// Wait blocks until every hand-off has settled.
func (s *Submitter) Wait() {
	s.wg.Wait()
}

// State returns the delivery state of a session.
func (s *Submitter) State(sessionID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	return st, ok
}

// RetryPending resubmits stored and held results and returns how many were
// delivered (or found to be duplicates). Held results that still cannot be
// delivered are moved to the pending store once it accepts them.
func (s *Submitter) RetryPending(ctx context.Context) (int, error) {
	subs, listErr := s.pending.List()
	if listErr != nil {
		s.log.Error("Failed to list pending results", zap.Error(listErr))
	}
	held := s.heldSubmissions()

	settled := 0
	for _, sub := range held {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if st, ok := s.submit(ctx, sub); ok {
			s.release(sub.SessionID)
			settled++
			s.setState(sub.SessionID, st)
			continue
		}
		if err := s.pending.Save(sub); err != nil {
			s.log.Warn("Held result still cannot be stored", zap.String("session", sub.SessionID), zap.Error(err))
			continue
		}
		s.release(sub.SessionID)
		s.setState(sub.SessionID, StatePending)
	}

	if s.sink == nil {
		return settled, listErr
	}
	for _, sub := range subs {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		st, ok := s.submit(ctx, sub)
		if !ok {
			continue
		}
		if rmErr := s.pending.Remove(sub.SessionID); rmErr != nil {
			s.log.Error("Failed to remove delivered result", zap.String("session", sub.SessionID), zap.Error(rmErr))
			continue
		}
		settled++
		s.setState(sub.SessionID, st)
	}
	return settled, listErr
}

// submit makes one retry attempt and reports the settled state.
func (s *Submitter) submit(ctx context.Context, sub models.Submission) (State, bool) {
	if s.sink == nil {
		return "", false
	}
	subCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.sink.Submit(subCtx, sub)
	cancel()

	switch {
	case err == nil:
		s.log.Info("Pending result delivered", zap.String("session", sub.SessionID))
		return StateSubmitted, true
	case errors.Is(err, ErrDuplicate):
		s.log.Info("Pending result already on record", zap.String("session", sub.SessionID))
		return StateDuplicate, true
	default:
		s.log.Warn("Pending result still undeliverable", zap.String("session", sub.SessionID), zap.Error(err))
		return "", false
	}
}

func (s *Submitter) heldSubmissions() []models.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Submission, 0, len(s.held))
	for _, sub := range s.held {
		out = append(out, sub)
	}
	return out
}

func (s *Submitter) release(sessionID string) {
	s.mu.Lock()
	delete(s.held, sessionID)
	s.mu.Unlock()
}

func (s *Submitter) deliver(ctx context.Context, sub models.Submission) {
	log := s.log.With(zap.String("session", sub.SessionID), zap.String("payment_code", sub.Participant.PaymentCode))

	var err error
	if s.sink == nil {
		err = errors.New("no result sink configured")
	} else {
		err = s.sink.Submit(ctx, sub)
	}

	switch {
	case err == nil:
		log.Info("Result submitted")
		s.setState(sub.SessionID, StateSubmitted)
	case errors.Is(err, ErrDuplicate):
		log.Warn("Result already on record")
		s.setState(sub.SessionID, StateDuplicate)
	default:
		log.Warn("Result submission failed, keeping it pending", zap.Error(err))
		if saveErr := s.pending.Save(sub); saveErr != nil {
			log.Error("Failed to store pending result, holding it in memory", zap.Error(saveErr))
			s.mu.Lock()
			s.held[sub.SessionID] = sub
			s.mu.Unlock()
			s.setState(sub.SessionID, StateUnsaved)
			return
		}
		s.setState(sub.SessionID, StatePending)
	}
}

func (s *Submitter) setState(sessionID string, st State) {
	s.mu.Lock()
	s.states[sessionID] = st
	s.mu.Unlock()
	if s.OnState != nil {
		s.OnState(sessionID, st)
	}
}
