package engine

import (
	"sync"
	"time"
)

// Handle identifies a pending scheduled callback.
type Handle uint64

// Scheduler abstracts one-shot timer scheduling so the sequencer's
// drift-correction logic can run against a fake clock in tests.
type Scheduler interface {
	Now() time.Time
	ScheduleAfter(d time.Duration, fn func()) Handle
	Cancel(h Handle)
}

// wallScheduler schedules on real timers.
type wallScheduler struct {
	mu     sync.Mutex
	next   Handle
	timers map[Handle]*time.Timer
}

// NewWallScheduler returns a Scheduler backed by time.AfterFunc.
func NewWallScheduler() Scheduler {
	return &wallScheduler{timers: make(map[Handle]*time.Timer)}
}

func (s *wallScheduler) Now() time.Time {
	return time.Now()
}

func (s *wallScheduler) ScheduleAfter(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	h := s.next
	s.timers[h] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, h)
		s.mu.Unlock()
		fn()
	})
	return h
}

func (s *wallScheduler) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[h]; ok {
		timer.Stop()
		delete(s.timers, h)
	}
}
