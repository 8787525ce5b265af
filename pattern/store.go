package pattern

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

// ErrStepIndex is returned for edits outside 0..NumSteps-1
var ErrStepIndex = errors.New("step index out of range")

// Store holds the live pattern.
//
// Readers get the current pattern through Snapshot without locking: every
// write builds a new Pattern and swaps the pointer, so a tick in flight sees
// either the old or the new pattern, never a half-applied step. Writers are
// serialized by mu.
type Store struct {
	current  atomic.Pointer[Pattern]
	revision atomic.Uint64
	mu       sync.Mutex

	// Notify UI of pattern changes
	UpdateChan chan struct{}
}

// NewStore creates a store holding p
func NewStore(p Pattern) *Store {
	s := &Store{
		UpdateChan: make(chan struct{}, 1),
	}
	s.install(p)
	return s
}

// Snapshot returns a copy of the current pattern
func (s *Store) Snapshot() Pattern {
	return *s.current.Load()
}

// Step returns a single step of the current pattern
func (s *Store) Step(index int) Step {
	return s.current.Load().At(index)
}

// Revision increments on every successful write
func (s *Store) Revision() uint64 {
	return s.revision.Load()
}

// SetStep replaces one step. The pitch class is clamped into range.
func (s *Store) SetStep(index int, step Step) error {
	if index < 0 || index >= NumSteps {
		return fault.Wrap(ErrStepIndex, fmsg.With(fmt.Sprintf("set step %d", index)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.current.Load()
	next[index] = step.Normalized()
	s.install(next)
	return nil
}

// Update applies fn to a copy of the step at index and stores the result
func (s *Store) Update(index int, fn func(Step) Step) error {
	if index < 0 || index >= NumSteps {
		return fault.Wrap(ErrStepIndex, fmsg.With(fmt.Sprintf("update step %d", index)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.current.Load()
	next[index] = fn(next[index]).Normalized()
	s.install(next)
	return nil
}

// Replace installs a whole pattern at once
func (s *Store) Replace(p Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(p)
}

// Clear turns every step off and resets accent/slide
func (s *Store) Clear() {
	s.Replace(Empty())
}

// install normalizes p and swaps it in; callers hold mu (or own s exclusively)
func (s *Store) install(p Pattern) {
	for i := range p {
		p[i] = p[i].Normalized()
	}
	s.current.Store(&p)
	s.revision.Add(1)

	select {
	case s.UpdateChan <- struct{}{}:
	default:
	}
}
