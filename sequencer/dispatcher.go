package sequencer

import (
	"time"

	charmlog "github.com/charmbracelet/log"

	"go-acid/midi"
	"go-acid/pattern"
)

// DefaultBasePitch is the MIDI note of pitch class 0 (C2)
const DefaultBasePitch = 36

// Per-sink velocity and gate constants
const (
	voiceVelocity       = 0.6
	voiceAccentVelocity = 1.0
	midiVelocity        = 90
	midiAccentVelocity  = 127

	midiGate      = 0.5 // fraction of a sixteenth
	midiSlideGate = 1.1 // past the next step, so the synth legatos
)

// Voice is the internal audio sink
type Voice interface {
	Initialize() error
	TriggerNote(pitch int, duration time.Duration, at time.Time, velocity float64, slide bool)
	Release()
}

// NoteSink is the external MIDI sink
type NoteSink interface {
	SendNoteOn(note, velocity uint8) (midi.LogEntry, bool)
	SendNoteOff(note uint8) (midi.LogEntry, bool)
	Panic()
}

// NotePlan is what one active step sends to each sink
type NotePlan struct {
	Pitch         int
	Slide         bool
	VoiceVelocity float64
	MIDIVelocity  uint8
	VoiceGate     time.Duration
	MIDIGate      time.Duration
}

// Plan computes the note for step at tick. ok is false for inactive steps.
func Plan(step pattern.Step, tick Tick, basePitch int) (plan NotePlan, ok bool) {
	if !step.Sounding() {
		return NotePlan{}, false
	}

	plan = NotePlan{
		Pitch:         basePitch + pattern.ClampPitch(step.PitchClass),
		Slide:         step.Slide,
		VoiceVelocity: voiceVelocity,
		MIDIVelocity:  midiVelocity,
		VoiceGate:     tick.Interval,
		MIDIGate:      scale(tick.Interval, midiGate),
	}
	if step.Accent {
		plan.VoiceVelocity = voiceAccentVelocity
		plan.MIDIVelocity = midiAccentVelocity
	}
	if step.Slide {
		plan.VoiceGate = 2 * tick.Interval
		plan.MIDIGate = scale(tick.Interval, midiSlideGate)
	}
	return plan, true
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

func midiNote(pitch int) uint8 {
	if pitch < 0 {
		return 0
	}
	if pitch > 127 {
		return 127
	}
	return uint8(pitch)
}

// Dispatcher turns clock ticks into sink events
type Dispatcher struct {
	store     *pattern.Store
	voice     Voice
	out       NoteSink
	sched     Scheduler
	notifier  *StepNotifier
	basePitch int
	logger    *charmlog.Logger
}

// NewDispatcher wires the sinks. voice and out may be nil.
func NewDispatcher(store *pattern.Store, voice Voice, out NoteSink, sched Scheduler, notifier *StepNotifier, basePitch int) *Dispatcher {
	return &Dispatcher{
		store:     store,
		voice:     voice,
		out:       out,
		sched:     sched,
		notifier:  notifier,
		basePitch: basePitch,
	}
}

// WithLogger sets the dispatch logger
func (d *Dispatcher) WithLogger(l *charmlog.Logger) *Dispatcher {
	d.logger = l
	return d
}

// OnTick is the clock callback. It reads one pattern snapshot, so an edit
// lands whole on the next tick.
func (d *Dispatcher) OnTick(t Tick) {
	idx := StepIndex(t.Count)
	snap := d.store.Snapshot()

	if plan, ok := Plan(snap[idx], t, d.basePitch); ok {
		if d.voice != nil {
			d.voice.TriggerNote(plan.Pitch, plan.VoiceGate, t.Time, plan.VoiceVelocity, plan.Slide)
		}
		if d.out != nil && d.sched != nil {
			note, vel := midiNote(plan.Pitch), plan.MIDIVelocity
			out := d.out
			d.sched.At(t.Time, func() { out.SendNoteOn(note, vel) })
			d.sched.At(t.Time.Add(plan.MIDIGate), func() { out.SendNoteOff(note) })
		}
		if d.logger != nil {
			d.logger.Debug("step", "tick", t.Count, "step", idx, "pitch", plan.Pitch, "accent", snap[idx].Accent, "slide", plan.Slide)
		}
	}

	if d.notifier != nil {
		d.notifier.Publish(idx)
	}
}
