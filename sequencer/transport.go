package sequencer

import (
	"io"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	charmlog "github.com/charmbracelet/log"

	"go-acid/pattern"
)

// Options configures a Transport
type Options struct {
	BPM       float64
	MinBPM    float64
	MaxBPM    float64
	BasePitch int
	Scheduler Scheduler        // nil uses a TimerScheduler
	Logger    *charmlog.Logger // nil discards
}

// Transport orchestrates playback: it owns the clock, the dispatcher, the
// send scheduler and the step notifier, and forces both sinks silent on stop.
type Transport struct {
	store      *pattern.Store
	voice      Voice
	out        NoteSink
	clock      *Clock
	sched      Scheduler
	notifier   *StepNotifier
	dispatcher *Dispatcher
	logger     *charmlog.Logger

	minBPM, maxBPM float64

	mu            sync.Mutex
	running       bool
	audioReported bool

	tickMu   sync.Mutex
	lastTick Tick
	haveTick bool

	// controller surface (Launchpad LEDs, keyboard step entry)
	surface *Surface

	// Notify TUI of transport changes (play/stop/tempo)
	UpdateChan chan struct{}
}

// NewTransport creates a stopped transport. voice and out may be nil.
func NewTransport(store *pattern.Store, voice Voice, out NoteSink, opts Options) *Transport {
	if opts.MinBPM <= 0 {
		opts.MinBPM = 60
	}
	if opts.MaxBPM < opts.MinBPM {
		opts.MaxBPM = 180
	}
	if opts.BasePitch == 0 {
		opts.BasePitch = DefaultBasePitch
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewTimerScheduler()
	}
	logger := opts.Logger
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}

	t := &Transport{
		store:      store,
		voice:      voice,
		out:        out,
		sched:      opts.Scheduler,
		notifier:   NewStepNotifier(),
		logger:     logger,
		minBPM:     opts.MinBPM,
		maxBPM:     opts.MaxBPM,
		UpdateChan: make(chan struct{}, 1),
	}
	t.dispatcher = NewDispatcher(store, voice, out, t.sched, t.notifier, opts.BasePitch).WithLogger(logger)
	t.clock = NewClock(t.clampTempo(opts.BPM), t.onTick)
	t.surface = newSurface(t)
	return t
}

func (t *Transport) onTick(tick Tick) {
	t.tickMu.Lock()
	t.lastTick = tick
	t.haveTick = true
	t.tickMu.Unlock()

	t.dispatcher.OnTick(tick)
	t.surface.markDirty()
}

// Store returns the pattern store driving playback
func (t *Transport) Store() *pattern.Store {
	return t.store
}

// Notifier returns the UI step notifier
func (t *Transport) Notifier() *StepNotifier {
	return t.notifier
}

// Surface returns the controller surface
func (t *Transport) Surface() *Surface {
	return t.surface
}

// Play starts playback from step 0. The audio voice is opened on first play;
// if that fails the error is returned once and playback continues on MIDI.
func (t *Transport) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}

	var audioErr error
	if t.voice != nil {
		if err := t.voice.Initialize(); err != nil && !t.audioReported {
			t.audioReported = true
			t.logger.Warn("audio unavailable, continuing without it", "err", err)
			audioErr = fault.Wrap(err, fmsg.WithDesc("start audio", "Audio unavailable, playing MIDI only"))
		}
	}

	t.tickMu.Lock()
	t.haveTick = false
	t.tickMu.Unlock()
	t.notifier.Reset()

	t.running = true
	t.clock.Start()
	t.logger.Info("play", "bpm", t.clock.Tempo())
	t.notifyUpdate()
	return audioErr
}

// Stop halts playback synchronously: no step fires after it returns, pending
// MIDI sends are dropped, both sinks get all-notes-off and the step display
// resets. Stop always sends exactly one Panic.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clock.Stop()
	t.sched.CancelAll()
	if t.out != nil {
		t.out.Panic()
	}
	if t.voice != nil {
		t.voice.Release()
	}
	t.notifier.Reset()

	if t.running {
		t.logger.Info("stop")
	}
	t.running = false
	t.surface.markDirty()
	t.notifyUpdate()
}

// Toggle flips between Play and Stop
func (t *Transport) Toggle() error {
	if t.Running() {
		t.Stop()
		return nil
	}
	return t.Play()
}

// Running reports whether the transport is playing
func (t *Transport) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// SetTempo sets the BPM, clamped to the configured range. Takes effect from
// the next tick.
func (t *Transport) SetTempo(bpm float64) float64 {
	bpm = t.clampTempo(bpm)
	t.clock.SetTempo(bpm)
	t.logger.Debug("tempo", "bpm", bpm)
	t.notifyUpdate()
	return bpm
}

// Tempo returns the current BPM
func (t *Transport) Tempo() float64 {
	return t.clock.Tempo()
}

// TempoRange returns the allowed BPM range
func (t *Transport) TempoRange() (min, max float64) {
	return t.minBPM, t.maxBPM
}

func (t *Transport) clampTempo(bpm float64) float64 {
	if bpm <= 0 {
		bpm = 120
	}
	if bpm < t.minBPM {
		bpm = t.minBPM
	}
	if bpm > t.maxBPM {
		bpm = t.maxBPM
	}
	return bpm
}

// State returns the current transport state
func (t *Transport) State() State {
	s := State{
		Tempo:   t.clock.Tempo(),
		Running: t.Running(),
		Tick:    -1,
		Step:    t.notifier.Current(),
	}

	t.tickMu.Lock()
	if t.haveTick && s.Running {
		s.Tick = t.lastTick.Count
		s.TickTime = t.lastTick.Time
		s.Interval = t.lastTick.Interval
	}
	t.tickMu.Unlock()

	if s.Interval == 0 {
		s.Interval = Interval(s.Tempo)
	}
	return s
}

// StartRuntime starts the controller goroutines (called once at startup)
func (t *Transport) StartRuntime() {
	t.surface.start()
}

// Close stops playback and the controller goroutines
func (t *Transport) Close() {
	t.Stop()
	t.surface.stop()
}

// notifyUpdate signals the TUI without blocking
func (t *Transport) notifyUpdate() {
	select {
	case t.UpdateChan <- struct{}{}:
	default:
	}
}
