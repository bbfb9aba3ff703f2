package engine

import (
	"fmt"
	"sync"
	"time"

	"tova-go/internal/models"
)

// Recorder is the append-only log of a session's trials and responses. It
// is the single source of truth scoring reads from.
type Recorder struct {
	mu        sync.RWMutex
	trials    []models.Trial
	responses []models.Response
	matched   map[int]struct{}
}

// Snapshot is a point-in-time copy of the log.
type Snapshot struct {
	Trials    []models.Trial
	Responses []models.Response
}

func NewRecorder(expectedTrials int) *Recorder {
	return &Recorder{
		trials:  make([]models.Trial, 0, expectedTrials),
		matched: make(map[int]struct{}),
	}
}

// AppendTrial adds the next trial. Sequence numbers must be gapless.
func (r *Recorder) AppendTrial(t models.Trial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if want := len(r.trials) + 1; t.Sequence != want {
		return fmt.Errorf("%w: trial %d appended, expected %d", ErrRecordOrder, t.Sequence, want)
	}
	if n := len(r.trials); n > 0 && t.PresentedAt < r.trials[n-1].PresentedAt {
		return fmt.Errorf("%w: trial %d presented before trial %d", ErrRecordOrder, t.Sequence, n)
	}
	r.trials = append(r.trials, t)
	return nil
}

// AppendResponse adds a response. Responses must arrive in observation
// order and a trial can be matched at most once.
func (r *Recorder) AppendResponse(resp models.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.responses); n > 0 && resp.ObservedAt < r.responses[n-1].ObservedAt {
		return fmt.Errorf("%w: response at %s after response at %s", ErrRecordOrder, resp.ObservedAt, r.responses[n-1].ObservedAt)
	}
	if resp.Matched() {
		if _, dup := r.matched[resp.MatchedTrial]; dup {
			return fmt.Errorf("%w: trial %d already matched", ErrRecordOrder, resp.MatchedTrial)
		}
		r.matched[resp.MatchedTrial] = struct{}{}
	}
	r.responses = append(r.responses, resp)
	return nil
}

// LatestTrialAt returns the most recent trial presented at or before at.
func (r *Recorder) LatestTrialAt(at time.Duration) (models.Trial, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.trials) - 1; i >= 0; i-- {
		if r.trials[i].PresentedAt <= at {
			return r.trials[i], true
		}
	}
	return models.Trial{}, false
}

// LastResponse returns the most recent response.
func (r *Recorder) LastResponse() (models.Response, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.responses) == 0 {
		return models.Response{}, false
	}
	return r.responses[len(r.responses)-1], true
}

// IsMatched reports whether a response already claimed the trial.
func (r *Recorder) IsMatched(sequence int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.matched[sequence]
	return ok
}

// Counts returns the number of trials and responses recorded so far.
func (r *Recorder) Counts() (trials, responses int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trials), len(r.responses)
}

// Snapshot copies the log.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Trials:    append([]models.Trial(nil), r.trials...),
		Responses: append([]models.Response(nil), r.responses...),
	}
}
