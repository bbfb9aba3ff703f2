package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a real-time Scheduler backed by a single goroutine. Callbacks are
// queued without bound, so posting from inside a callback never blocks.
type Loop struct {
	epoch time.Time

	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewLoop creates a loop whose epoch is the moment of creation. Run must be
// called for callbacks to execute.
func NewLoop() *Loop {
	return &Loop{
		epoch: time.Now(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Now returns the monotonic time since the loop was created.
func (l *Loop) Now() time.Duration {
	return time.Since(l.epoch)
}

// Post queues fn. It returns false once the loop has been closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc schedules fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	run := func() {
		if t.state.CompareAndSwap(timerActive, timerFired) {
			fn()
		}
	}
	if d <= 0 {
		l.Post(run)
		return t
	}
	t.t = time.AfterFunc(d, func() { l.Post(run) })
	return t
}

// Run executes queued callbacks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
		l.drain()
	}
}

// Close stops the loop. Callbacks still queued are dropped.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.pending = nil
	close(l.done)
}

// Done is closed once the loop has been closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if l.closed || len(l.pending) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		for i, fn := range batch {
			if l.isClosed() {
				return
			}
			fn()
			batch[i] = nil
		}
	}
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

const (
	timerActive int32 = iota
	timerFired
	timerStopped
)

type loopTimer struct {
	t     *time.Timer
	state atomic.Int32
}

func (t *loopTimer) Stop() bool {
	if !t.state.CompareAndSwap(timerActive, timerStopped) {
		return false
	}
	if t.t != nil {
		t.t.Stop()
	}
	return true
}
