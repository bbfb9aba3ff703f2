package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a virtual-time Scheduler. Time only moves when Advance is
// called; due callbacks then run on the caller's goroutine in deadline
// order, ties broken by scheduling order.
type Manual struct {
	mu          sync.Mutex
	now         time.Duration
	seq         uint64
	timers      timerHeap
	dispatching bool
}

// NewManual returns a Manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{m: m, at: m.now + d, seq: m.seq, fn: fn}
	m.seq++
	heap.Push(&m.timers, t)
	return t
}

// Post runs fn at the current virtual time. Called outside a callback it
// runs immediately, together with anything else already due; called from
// inside a callback it runs once that callback returns.
func (m *Manual) Post(fn func()) bool {
	m.AfterFunc(0, fn)
	m.Advance(0)
	return true
}

// Advance moves virtual time forward by d, running every callback due on
// the way. Nested calls from inside a callback are ignored.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	target := m.now + d
	m.dispatching = true
	for len(m.timers) > 0 && m.timers[0].at <= target {
		t := heap.Pop(&m.timers).(*manualTimer)
		if t.at > m.now {
			m.now = t.at
		}
		t.fired = true
		m.mu.Unlock()
		t.fn()
		m.mu.Lock()
	}
	if target > m.now {
		m.now = target
	}
	m.dispatching = false
	m.mu.Unlock()
}

// AdvanceTo moves virtual time to the absolute offset at, if it is ahead.
func (m *Manual) AdvanceTo(at time.Duration) {
	now := m.Now()
	if at > now {
		m.Advance(at - now)
		return
	}
	m.Advance(0)
}

// Pending reports how many callbacks are scheduled and not yet run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

type manualTimer struct {
	m       *Manual
	at      time.Duration
	seq     uint64
	index   int
	fn      func()
	fired   bool
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	heap.Remove(&t.m.timers, t.index)
	return true
}

type timerHeap []*manualTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
