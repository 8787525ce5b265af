package sequencer

import (
	"sync"
	"time"
)

// Scheduler runs functions at absolute times
type Scheduler interface {
	At(t time.Time, fn func())
	CancelAll()
}

// TimerScheduler runs each function on its own time.AfterFunc timer.
// Functions scheduled in the past run as soon as possible.
type TimerScheduler struct {
	mu       sync.Mutex
	pending  map[uint64]*time.Timer
	nextID   uint64
	inFlight sync.WaitGroup
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{pending: make(map[uint64]*time.Timer)}
}

// At schedules fn to run at t
func (s *TimerScheduler) At(t time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.inFlight.Add(1)
	s.pending[id] = time.AfterFunc(time.Until(t), func() {
		defer s.inFlight.Done()

		s.mu.Lock()
		_, ok := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()

		if ok {
			fn()
		}
	})
}

// Pending returns the number of functions not yet run
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// CancelAll drops every pending function and waits for running ones to return
func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	for id, t := range s.pending {
		if t.Stop() {
			s.inFlight.Done()
		}
		delete(s.pending, id)
	}
	s.mu.Unlock()

	s.inFlight.Wait()
}
