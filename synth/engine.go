// Package synth is the built-in acid voice: a monophonic saw/square
// oscillator through a resonant ladder filter and distortion, played on the
// host sound card with beep.
package synth

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	charmlog "github.com/charmbracelet/log"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const (
	SampleRate = beep.SampleRate(48000)
	bufferTime = 100 * time.Millisecond
)

// ErrEngineUnavailable is returned when the sound card cannot be opened
var ErrEngineUnavailable = errors.New("audio engine unavailable")

// TagEngineUnavailable marks audio startup failures
const TagEngineUnavailable ftag.Kind = "engine_unavailable"

// State is the engine lifecycle
type State int

const (
	StateUninitialized State = iota
	StateReady               // speaker open, voice playing
	StateActive              // a parameter set has been applied
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	default:
		return "uninitialized"
	}
}

// output is the host audio device
type output struct {
	init  func(sr beep.SampleRate, bufferSize int) error
	play  func(s ...beep.Streamer)
	clear func()
}

var speakerOutput = output{
	init:  speaker.Init,
	play:  speaker.Play,
	clear: speaker.Clear,
}

// Engine owns the voice and the speaker. The speaker is opened lazily on the
// first Initialize, which must come from a user action.
type Engine struct {
	mu     sync.Mutex
	state  State
	voice  *Voice
	params Params
	staged bool // params set before initialization
	out    output
	now    func() time.Time
	logger *charmlog.Logger

	origin time.Time // wall clock of voice frame 0
}

// NewEngine creates an uninitialized engine
func NewEngine(logger *charmlog.Logger) *Engine {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	return &Engine{
		params: DefaultParams(),
		out:    speakerOutput,
		now:    time.Now,
		logger: logger,
	}
}

// Initialize opens the sound card and starts the voice. Safe to call
// repeatedly; a running engine re-anchors its clock, and after a failure the
// next call tries again.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateUninitialized {
		e.anchor()
		return nil
	}

	voice, err := NewVoice(SampleRate, e.params)
	if err != nil {
		return unavailable(err, "build voice")
	}
	if err := e.out.init(SampleRate, SampleRate.N(bufferTime)); err != nil {
		return unavailable(err, "open audio output")
	}

	e.voice = voice
	e.anchor()
	e.out.play(voice)

	e.state = StateReady
	if e.staged {
		e.state = StateActive
	}
	e.logger.Info("audio started", "rate", int(SampleRate), "state", e.state)
	return nil
}

func unavailable(err error, msg string) error {
	return fault.Wrap(errors.Join(ErrEngineUnavailable, err),
		fmsg.WithDesc(msg, "Audio unavailable"),
		ftag.With(TagEngineUnavailable),
	)
}

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Params returns the last parameter set
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// UpdateParameters applies p to the live voice, or stores it for Initialize
func (e *Engine) UpdateParameters(p Params) {
	p = p.Clamp()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.params = p
	if e.voice == nil {
		e.staged = true
		return
	}
	if err := e.voice.SetParams(p); err != nil {
		e.logger.Warn("voice rejected parameters", "params", p, "err", err)
	}
	if err := e.voice.Err(); err != nil {
		e.logger.Warn("ladder cutoff rejected", "err", err)
	}
	e.state = StateActive
}

// TriggerNote queues a note at wall-clock time at. Notes before
// initialization are dropped.
func (e *Engine) TriggerNote(pitch int, duration time.Duration, at time.Time, velocity float64, slide bool) {
	e.mu.Lock()
	voice := e.voice
	frame := e.frameAt(at)
	e.mu.Unlock()

	if voice == nil {
		return
	}
	voice.Schedule(frame, pitch, duration, velocity, slide)
}

// frameAt maps a wall-clock time to a voice frame. The speaker renders one
// buffer ahead of what is audible, so a note sounds one buffer after at.
func (e *Engine) frameAt(at time.Time) int64 {
	if e.voice == nil {
		return 0
	}
	offset := at.Sub(e.origin) + bufferTime
	if offset < 0 {
		offset = 0
	}
	return int64(SampleRate.N(offset))
}

// anchor pins origin to the frame audible now: the render position less one
// buffer. Keeps the wall clock and the sound card clock from drifting apart.
func (e *Engine) anchor() {
	audible := e.voice.Position() - int64(SampleRate.N(bufferTime))
	if audible < 0 {
		audible = 0
	}
	e.origin = e.now().Add(-SampleRate.D(int(audible)))
}

// Release silences the voice and drops queued notes
func (e *Engine) Release() {
	e.mu.Lock()
	voice := e.voice
	e.mu.Unlock()

	if voice != nil {
		voice.Release()
	}
}

// Close stops playback. A later Initialize starts a fresh voice.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateUninitialized {
		return
	}
	e.out.clear()
	e.voice = nil
	e.state = StateUninitialized
	e.staged = true
}
