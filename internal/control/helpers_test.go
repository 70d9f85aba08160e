package control

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// manualScheduler runs tasks only when the test advances its clock.
type manualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*manualTask
}

type manualTask struct {
	id  uint64
	due time.Time
	fn  func()
}

func newManualScheduler(start time.Time) *manualScheduler {
	return &manualScheduler{now: start}
}

func (s *manualScheduler) After(id uint64, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &manualTask{id: id, due: s.now.Add(d), fn: fn})
}

func (s *manualScheduler) Cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.id == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	return found
}

func (s *manualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = nil
}

// advance moves the clock to now and runs every task that fell due, in
// due order.
func (s *manualScheduler) advance(now time.Time) {
	s.mu.Lock()
	s.now = now
	var due, kept []*manualTask
	for _, t := range s.tasks {
		if !t.due.After(now) {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	for _, t := range due {
		t.fn()
	}
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// flakyBank wraps a bank and fails every call while down is set.
type flakyBank struct {
	register.Accessor
	down atomic.Bool
}

func (f *flakyBank) Read(addr uint16) (uint16, error) {
	if f.down.Load() {
		return 0, register.ErrBankUnavailable
	}
	return f.Accessor.Read(addr)
}

func (f *flakyBank) ReadRange(addr, count uint16) ([]uint16, error) {
	if f.down.Load() {
		return nil, register.ErrBankUnavailable
	}
	return f.Accessor.ReadRange(addr, count)
}

func (f *flakyBank) Write(addr, value uint16) error {
	if f.down.Load() {
		return register.ErrBankUnavailable
	}
	return f.Accessor.Write(addr, value)
}

func (f *flakyBank) WriteRange(addr uint16, values []uint16) error {
	if f.down.Load() {
		return register.ErrBankUnavailable
	}
	return f.Accessor.WriteRange(addr, values)
}

// recordingLogger counts log calls per level.
type recordingLogger struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{counts: make(map[string]int)}
}

func (l *recordingLogger) log(level string) {
	l.mu.Lock()
	l.counts[level]++
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(string, ...any) { l.log("debug") }
func (l *recordingLogger) Info(string, ...any)  { l.log("info") }
func (l *recordingLogger) Warn(string, ...any)  { l.log("warn") }
func (l *recordingLogger) Error(string, ...any) { l.log("error") }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[level]
}

// read returns a word or fails the test.
func read(t testing.TB, a register.Accessor, addr uint16) uint16 {
	t.Helper()
	v, err := a.Read(addr)
	if err != nil {
		t.Fatalf("Read(%#x) error: %v", addr, err)
	}
	return v
}
