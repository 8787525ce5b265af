package sequencer

import (
	"sort"
	"sync"
	"time"

	"go-acid/midi"
)

type trigger struct {
	pitch    int
	duration time.Duration
	at       time.Time
	velocity float64
	slide    bool
}

type fakeVoice struct {
	mu       sync.Mutex
	initErr  error
	inits    int
	releases int
	triggers []trigger
}

func (v *fakeVoice) Initialize() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inits++
	return v.initErr
}

func (v *fakeVoice) TriggerNote(pitch int, duration time.Duration, at time.Time, velocity float64, slide bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.triggers = append(v.triggers, trigger{pitch, duration, at, velocity, slide})
}

func (v *fakeVoice) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.releases++
}

func (v *fakeVoice) count() (inits, releases, triggers int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inits, v.releases, len(v.triggers)
}

type sent struct {
	on       bool
	note     uint8
	velocity uint8
}

type fakeSink struct {
	mu     sync.Mutex
	sent   []sent
	panics int
}

func (s *fakeSink) SendNoteOn(note, velocity uint8) (midi.LogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{true, note, velocity})
	return midi.LogEntry{Time: time.Now()}, true
}

func (s *fakeSink) SendNoteOff(note uint8) (midi.LogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{false, note, 0})
	return midi.LogEntry{Time: time.Now()}, true
}

func (s *fakeSink) Panic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics++
}

func (s *fakeSink) counts() (sends, panics int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent), s.panics
}

type scheduled struct {
	at time.Time
	fn func()
}

// fakeScheduler records scheduled functions; Run executes them in time order
type fakeScheduler struct {
	mu        sync.Mutex
	jobs      []scheduled
	cancelled int
}

func (f *fakeScheduler) At(t time.Time, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, scheduled{t, fn})
}

func (f *fakeScheduler) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = nil
	f.cancelled++
}

func (f *fakeScheduler) Jobs() []scheduled {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]scheduled(nil), f.jobs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

func (f *fakeScheduler) Run() {
	for _, j := range f.Jobs() {
		j.fn()
	}
	f.mu.Lock()
	f.jobs = nil
	f.mu.Unlock()
}
