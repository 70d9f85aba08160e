package control

import (
	"sync"
	"time"
)

// Scheduler runs delayed tasks keyed by ID.
type Scheduler interface {
	// After runs fn once after d, unless cancelled first. Scheduling an ID
	// that is already pending replaces nothing; both tasks run.
	After(id uint64, d time.Duration, fn func())

	// Cancel stops the pending task with id and reports whether it was
	// still pending.
	Cancel(id uint64) bool

	// Stop cancels every pending task and ignores later After calls.
	Stop()
}

// Ensure TimerScheduler implements Scheduler.
var _ Scheduler = (*TimerScheduler)(nil)

// TimerScheduler is a Scheduler backed by time.AfterFunc. Tasks run on their
// own goroutines.
//
// Thread Safety: All methods are safe for concurrent use.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[uint64][]*time.Timer
	stopped bool
}

// NewTimerScheduler creates an empty scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[uint64][]*time.Timer)}
}

// After implements Scheduler.
func (s *TimerScheduler) After(id uint64, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		s.remove(id, t)
		s.mu.Unlock()
		fn()
	})
	s.timers[id] = append(s.timers[id], t)
}

// Cancel implements Scheduler.
func (s *TimerScheduler) Cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := false
	for _, t := range s.timers[id] {
		if t.Stop() {
			cancelled = true
		}
	}
	delete(s.timers, id)
	return cancelled
}

// Stop implements Scheduler.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, ts := range s.timers {
		for _, t := range ts {
			t.Stop()
		}
		delete(s.timers, id)
	}
}

// Pending returns the number of tasks not yet run or cancelled.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, ts := range s.timers {
		n += len(ts)
	}
	return n
}

// remove drops t from the pending list of id. Caller holds s.mu.
func (s *TimerScheduler) remove(id uint64, t *time.Timer) {
	ts := s.timers[id]
	for i := range ts {
		if ts[i] == t {
			ts = append(ts[:i], ts[i+1:]...)
			break
		}
	}
	if len(ts) == 0 {
		delete(s.timers, id)
		return
	}
	s.timers[id] = ts
}
